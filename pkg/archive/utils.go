package archive

import "fmt"

func mergeBytes(ks ...[]byte) []byte {
	var ret []byte
	for _, k := range ks {
		if k == nil {
			continue
		}
		ret = append(ret, k...)
	}
	return ret
}

// nameKey prefixes name with its length so that names can not collide as key prefixes
func nameKey(name []byte) ([]byte, error) {
	if len(name) == 0 || len(name) > maxNameLen {
		return nil, fmt.Errorf("invalid name length %d", len(name))
	}
	return mergeBytes([]byte{byte(len(name))}, name), nil
}

// successor returns the smallest key greater than every key with prefix p,
// nil when there is none
func successor(p []byte) []byte {
	ret := append([]byte(nil), p...)
	for i := len(ret) - 1; i >= 0; i-- {
		if ret[i] != 0xff {
			ret[i]++
			return ret[:i+1]
		}
	}
	return nil
}
