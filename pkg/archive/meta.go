package archive

type Meta struct {
	// inputs
	// mime type: https://developer.mozilla.org/en-US/docs/Web/HTTP/Basics_of_HTTP/MIME_types
	Mime string `json:"mime"`
	// hex encoded md5 of the value, the group hash of an assembled entity
	Digest string `json:"digest"`

	// outputs
	// value len in bytes, it will automatically set
	TotalLen int `json:"totalLen"`
}

type putOption struct {
	meta *Meta
}

// PutOption configures a single Put
type PutOption func(*putOption)

// WithMeta stores meta along with the value, TotalLen is filled in by Put
func WithMeta(meta *Meta) PutOption {
	return func(o *putOption) {
		o.meta = meta
	}
}

func applyPutOptions(f []PutOption) *putOption {
	o := &putOption{}
	for _, fn := range f {
		fn(o)
	}
	return o
}
