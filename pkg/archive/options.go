package archive

import "github.com/dgraph-io/badger/v3"

// Logger is satisfied by the dashboard's zap logger
type Logger = badger.Logger

const (
	// DefaultValueLogFileSize suits entities of at most a few hundred KiB
	DefaultValueLogFileSize = 16 << 20
)

// Option configures how New opens the archive database
type Option func(*dbOption)

type dbOption struct {
	logger           Logger
	inMemory         bool
	valueLogFileSize int64
}

// WithLogger routes badger logs to l
func WithLogger(l Logger) Option {
	return func(o *dbOption) {
		o.logger = l
	}
}

// InMemory keeps everything in memory, path is ignored
func InMemory() Option {
	return func(o *dbOption) {
		o.inMemory = true
	}
}

// WithValueLogFileSize sets the size of each value log file, badger accepts 1MiB to 2GiB
func WithValueLogFileSize(n int64) Option {
	return func(o *dbOption) {
		o.valueLogFileSize = n
	}
}

func (o *dbOption) badgerOptions(path string) badger.Options {
	opt := badger.DefaultOptions(path)
	if o.inMemory {
		opt = badger.DefaultOptions("").WithInMemory(true)
	}
	return opt.
		WithLogger(o.logger).
		WithValueLogFileSize(o.valueLogFileSize)
}

func applyOptions(f []Option) *dbOption {
	o := &dbOption{valueLogFileSize: DefaultValueLogFileSize}
	for _, fn := range f {
		fn(o)
	}
	return o
}
