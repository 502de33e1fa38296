package scan

import (
	"encoding/binary"
	"fmt"
)

// MaxChunks is the largest number of chunks a message can be split into
const MaxChunks = 255

// EncodeMessage prepends the message header to body
func EncodeMessage(typ, name string, body []byte) ([]byte, error) {
	if len(name) == 0 || len(name) > nameLen {
		return nil, fmt.Errorf("name %q must be 1 to %d bytes", name, nameLen)
	}
	if len(typ) == 0 || len(typ) > typeLen {
		return nil, fmt.Errorf("type %q must be 1 to %d bytes", typ, typeLen)
	}
	msg := make([]byte, HeaderLen+len(body))
	copy(msg[offName:], name)
	copy(msg[offType:], typ)
	binary.LittleEndian.PutUint32(msg[offLengthDiff:], uint32(len(body)))
	copy(msg[HeaderLen:], body)
	return msg, nil
}

// Split cuts msg into chunks carrying at most size payload bytes each
func Split(msg []byte, size int) ([][]byte, error) {
	if size <= HeaderLen {
		return nil, fmt.Errorf("chunk size %d must be larger than %d", size, HeaderLen)
	}
	if len(msg) <= HeaderLen {
		return nil, fmt.Errorf("message of %d bytes has no body", len(msg))
	}
	count := (len(msg) + size - 1) / size
	if count > MaxChunks {
		return nil, fmt.Errorf("message of %d bytes needs %d chunks, limit is %d", len(msg), count, MaxChunks)
	}

	group := Sum(msg)
	ret := make([][]byte, 0, count)
	for i := 0; i < count; i++ {
		end := (i + 1) * size
		if end > len(msg) {
			end = len(msg)
		}
		part := msg[i*size : end]
		c := &Chunk{
			Seq:       uint8(i + 1),
			Total:     uint8(count),
			Hash:      Sum(part),
			GroupHash: group,
			Payload:   part,
		}
		ret = append(ret, c.Bytes())
	}
	return ret, nil
}

// SequenceOf peeks at the sequence number of a raw chunk without validating it
func SequenceOf(raw []byte) (uint8, bool) {
	if len(raw) <= offSeq {
		return 0, false
	}
	return raw[offSeq], true
}
