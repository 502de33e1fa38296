package archive

type MetaPrefix = byte

const (
	dbDataPrefix MetaPrefix = iota
	dbMetaPrefix
)

const (
	nsBuiltinBucketPrefix MetaPrefix = iota
	nsOtherBucketPrefix
	nsMetaPrefix
)

const (
	nsBucketListKey = "buckets"
)

const (
	builtinDocBucketName    = "d"
	builtinObjectBucketName = "o"
)

const (
	bucketKeyPrefix MetaPrefix = iota
	bucketMetaPrefix
)

const maxNameLen = 255

const (
	// MimeEntity is the mime type of assembled entity data
	MimeEntity = "application/octet-stream"
)
