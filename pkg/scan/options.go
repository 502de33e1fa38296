package scan

type options struct {
	maxLength int
	messages  Messages
}

// Option configures a Session
type Option func(*options)

// WithMaxLength limits the total length a first chunk may declare
func WithMaxLength(n int) Option {
	return func(o *options) {
		o.maxLength = n
	}
}

// WithMessages replaces the user facing diagnostics
func WithMessages(m Messages) Option {
	return func(o *options) {
		o.messages = m
	}
}

func applyOptions(f []Option) *options {
	opt := &options{
		maxLength: DefaultMaxLength,
		messages:  DefaultMessages,
	}
	for _, fn := range f {
		fn(opt)
	}
	return opt
}
