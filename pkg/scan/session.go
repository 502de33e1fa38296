package scan

import "image"

// State is the lifecycle state of a Session
type State int

const (
	// StateEmpty has no message started
	StateEmpty State = iota
	// StateAccumulating has a message started and waits for more chunks
	StateAccumulating
	// StateComplete holds a verified message
	StateComplete
	// StateDead failed fatally and needs a Reset
	StateDead
)

func (s State) String() string {
	switch s {
	case StateEmpty:
		return "empty"
	case StateAccumulating:
		return "accumulating"
	case StateComplete:
		return "complete"
	case StateDead:
		return "dead"
	}
	return "unknown"
}

// Status tells whether a chunk finished the message
type Status int

const (
	// StatusAccepted means the chunk was appended and more are expected
	StatusAccepted Status = iota + 1
	// StatusCompleted means the chunk finished a verified message
	StatusCompleted
)

// Entity is a fully assembled and verified message
type Entity struct {
	Type string
	Name string
	Data []byte
}

// ID returns the "<type>:<name>" identifier of the entity
func (e *Entity) ID() string {
	return e.Type + ":" + e.Name
}

// Outcome of a successfully processed chunk, Entity is set when Status is StatusCompleted
type Outcome struct {
	Status Status
	Entity *Entity
}

// Decoder turns an image into the raw bytes of the QR code in it
type Decoder interface {
	Decode(img image.Image) ([]byte, error)
}

// Session reassembles one multi chunk message.
// It is not safe for concurrent use.
type Session struct {
	opt *options

	state          State
	totalCount     uint8
	receivedCount  uint8
	totalLength    int
	receivedLength int
	groupHash      Digest
	typ, name      string
	buffer         []byte
	message        string
}

// NewSession returns an empty session
func NewSession(opts ...Option) *Session {
	s := &Session{opt: applyOptions(opts)}
	s.Reset()
	return s
}

// Reset drops all progress and makes the session accept a new message.
// A buffer handed out by a completed session is left untouched.
func (s *Session) Reset() {
	s.state = StateEmpty
	s.totalCount = 0
	s.receivedCount = 0
	s.totalLength = 0
	s.receivedLength = 0
	s.groupHash = Digest{}
	s.typ, s.name = "", ""
	s.buffer = nil
	s.message = ""
}

// Scan decodes img and processes the resulting chunk
func (s *Session) Scan(d Decoder, img image.Image) (Outcome, error) {
	raw, err := d.Decode(img)
	if err != nil {
		s.message = ""
		return Outcome{}, &Error{Kind: KindDecodeFailure, err: err}
	}
	return s.ProcessChunk(raw)
}

// ProcessChunk validates raw and appends it to the message.
// Recoverable errors leave the session as it was, fatal ones (see Kind.Fatal)
// move it to StateDead.
func (s *Session) ProcessChunk(raw []byte) (Outcome, error) {
	if !s.Active() {
		return s.fail(&Error{Kind: KindInactive})
	}
	c, err := ParseChunk(raw)
	if err != nil {
		return s.fail(err.(*Error))
	}

	if s.totalCount == 0 {
		if err := s.start(c); err != nil {
			return s.fail(err)
		}
	}

	if c.Total != s.totalCount || c.GroupHash != s.groupHash {
		return s.fail(&Error{Kind: KindGroupMismatch, Seq: c.Seq})
	}
	if int(c.Seq) != int(s.receivedCount)+1 {
		return s.fail(&Error{Kind: KindOrderViolation, Seq: c.Seq})
	}
	if s.receivedLength+len(c.Payload) > s.totalLength {
		return s.kill(&Error{Kind: KindOverflow, Seq: c.Seq})
	}

	copy(s.buffer[s.receivedLength:], c.Payload)
	s.receivedCount++
	s.receivedLength += len(c.Payload)

	if s.receivedCount < s.totalCount {
		s.message = ""
		return Outcome{Status: StatusAccepted}, nil
	}
	return s.finish(c.Seq)
}

// start initialises the session from the first chunk, nothing is changed on error
func (s *Session) start(c *Chunk) *Error {
	if len(c.Payload) <= HeaderLen {
		return &Error{Kind: KindFirstChunkTooShort, Seq: c.Seq}
	}
	if c.Seq != 1 {
		return &Error{Kind: KindFirstChunkSequence, Seq: c.Seq}
	}
	total := extractValue(c.Payload, offLengthDiff) + HeaderLen
	if total < 0 || total > s.opt.maxLength {
		return &Error{Kind: KindFirstChunkLengthInvalid, Seq: c.Seq}
	}

	s.state = StateAccumulating
	s.totalCount = c.Total
	s.groupHash = c.GroupHash
	s.totalLength = total
	s.typ = extractString(c.Payload, offType, typeLen)
	s.name = extractString(c.Payload, offName, nameLen)
	s.buffer = make([]byte, total)
	s.receivedCount = 0
	s.receivedLength = 0
	return nil
}

func (s *Session) finish(seq uint8) (Outcome, error) {
	if s.receivedLength < s.totalLength {
		return s.kill(&Error{Kind: KindUnderflow, Seq: seq})
	}
	if Sum(s.buffer) != s.groupHash {
		return s.kill(&Error{Kind: KindFinalIntegrity, Seq: seq})
	}
	s.state = StateComplete
	s.message = ""
	return Outcome{
		Status: StatusCompleted,
		Entity: &Entity{Type: s.typ, Name: s.name, Data: s.buffer},
	}, nil
}

func (s *Session) fail(e *Error) (Outcome, error) {
	e.Message = s.opt.messages.message(e.Kind, e.Seq)
	s.message = e.Message
	return Outcome{}, e
}

func (s *Session) kill(e *Error) (Outcome, error) {
	s.state = StateDead
	return s.fail(e)
}

// State returns the lifecycle state
func (s *Session) State() State {
	return s.state
}

// Active reports whether the session still accepts chunks
func (s *Session) Active() bool {
	return s.state == StateEmpty || s.state == StateAccumulating
}

// ReceivedCount returns the number of chunks accepted so far
func (s *Session) ReceivedCount() int {
	return int(s.receivedCount)
}

// TotalCount returns the chunk count announced by the first chunk, 0 before it
func (s *Session) TotalCount() int {
	return int(s.totalCount)
}

// ReceivedLength returns the number of message bytes assembled so far
func (s *Session) ReceivedLength() int {
	return s.receivedLength
}

// TotalLength returns the message length declared in the first chunk header
func (s *Session) TotalLength() int {
	return s.totalLength
}

// Message returns the diagnostic of the last call, empty after a success
func (s *Session) Message() string {
	return s.message
}

// Name returns the "<type>:<name>" of the message, empty before the first chunk
func (s *Session) Name() string {
	if s.totalCount == 0 {
		return ""
	}
	return s.typ + ":" + s.name
}

// Data returns the assembled message once the session is complete, nil otherwise
func (s *Session) Data() []byte {
	if s.state != StateComplete {
		return nil
	}
	return s.buffer
}
