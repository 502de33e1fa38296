package scan

import (
	"bytes"
	"crypto/md5"
	"encoding/binary"
)

const (
	// ChunkHeaderLen is the size of the fixed fields in front of every chunk payload
	ChunkHeaderLen = 36
	// HeaderLen is the size of the message header carried by the first chunk
	HeaderLen = 20
	// DefaultMaxLength is the largest message a session accepts by default
	DefaultMaxLength = 128 * 1024

	digestLen = md5.Size

	offSeq        = 2
	offTotal      = 3
	offChunkHash  = 4
	offGroupHash  = offChunkHash + digestLen
	offName       = 0
	nameLen       = 8
	offType       = 9
	typeLen       = 3
	offLengthDiff = 12
)

var magic = [2]byte{'P', 'T'}

// Digest is the MD5 sum used for both chunk and group hashes
type Digest [digestLen]byte

// Sum returns the digest of b
func Sum(b []byte) Digest {
	return md5.Sum(b)
}

// Chunk is one decoded QR code split into its fields
type Chunk struct {
	Seq       uint8
	Total     uint8
	Hash      Digest
	GroupHash Digest
	Payload   []byte
}

// ParseChunk splits raw into a Chunk and verifies the payload hash.
// It never touches any session, so a corrupted chunk is rejected before
// it can reach one.
func ParseChunk(raw []byte) (*Chunk, error) {
	if len(raw) <= ChunkHeaderLen || raw[0] != magic[0] || raw[1] != magic[1] {
		return nil, &Error{Kind: KindFormatInvalid}
	}
	c := &Chunk{
		Seq:     raw[offSeq],
		Total:   raw[offTotal],
		Payload: raw[ChunkHeaderLen:],
	}
	if c.Seq == 0 || c.Total == 0 {
		return nil, &Error{Kind: KindFormatInvalid, Seq: c.Seq}
	}
	copy(c.Hash[:], raw[offChunkHash:offGroupHash])
	copy(c.GroupHash[:], raw[offGroupHash:ChunkHeaderLen])
	if Sum(c.Payload) != c.Hash {
		return nil, &Error{Kind: KindChunkCorrupt, Seq: c.Seq}
	}
	return c, nil
}

// Bytes encodes the chunk back into its wire form, hashes are written as they are
func (c *Chunk) Bytes() []byte {
	raw := make([]byte, ChunkHeaderLen+len(c.Payload))
	copy(raw, magic[:])
	raw[offSeq] = c.Seq
	raw[offTotal] = c.Total
	copy(raw[offChunkHash:], c.Hash[:])
	copy(raw[offGroupHash:], c.GroupHash[:])
	copy(raw[ChunkHeaderLen:], c.Payload)
	return raw
}

// extractValue reads a little-endian signed 32 bit value at off
func extractValue(b []byte, off int) int {
	return int(int32(binary.LittleEndian.Uint32(b[off : off+4])))
}

// extractString reads a NUL padded string of at most n bytes at off
func extractString(b []byte, off, n int) string {
	s := b[off : off+n]
	if i := bytes.IndexByte(s, 0); i >= 0 {
		s = s[:i]
	}
	return string(s)
}
