package common

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

const (
	MimeChunk = "application/octet-stream"
	MimeJson  = "application/json"

	UriChunk        = "/api/chunk"
	UriSession      = "/api/session"
	UriSessionReset = "/api/session/reset"
	UriSessionData  = "/api/session/data"
	UriEntity       = "/api/entity"
	UriSettings     = "/api/settings"
)

// SessionState is the dashboard's view of its scan session
type SessionState struct {
	State          string `json:"state"`
	Active         bool   `json:"active"`
	ReceivedCount  int    `json:"receivedCount"`
	TotalCount     int    `json:"totalCount"`
	ReceivedLength int    `json:"receivedLength"`
	TotalLength    int    `json:"totalLength"`
	Name           string `json:"name,omitempty"`
	Message        string `json:"message,omitempty"`
}

// ChunkResult is the response of a chunk upload
type ChunkResult struct {
	// Status is "accepted", "completed" or "rejected"
	Status  string       `json:"status"`
	Kind    string       `json:"kind,omitempty"`
	Fatal   bool         `json:"fatal,omitempty"`
	Error   string       `json:"error,omitempty"`
	Session SessionState `json:"session"`
	// Entity is the id of the completed entity
	Entity string `json:"entity,omitempty"`
	// Archived is set when the completed entity was saved
	Archived bool `json:"archived,omitempty"`
}

const (
	StatusAccepted  = "accepted"
	StatusCompleted = "completed"
	StatusRejected  = "rejected"
)

// HttpCli talks to a running dashboard
type HttpCli struct {
	http.Client

	base   string
	header http.Header
}

func NewWithHeader(base string, header map[string]string) (cli *HttpCli, err error) {
	if !strings.HasPrefix(base, "http://") && !strings.HasPrefix(base, "https://") {
		return nil, fmt.Errorf("invalid dashboard url %q", base)
	}
	h := http.Header{}
	for k, v := range header {
		h.Set(k, v)
	}

	cli = &HttpCli{
		Client: http.Client{},
		base:   strings.TrimSuffix(base, "/"),
		header: h,
	}
	return
}

// do sends a request, a rejected chunk still carries a json body so any status
// with a json body is returned to the caller
func (h *HttpCli) do(method, uri, contentType string, data []byte) (int, []byte, error) {
	var body io.Reader
	if data != nil {
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, h.base+uri, body)
	if err != nil {
		return 0, nil, err
	}
	req.Header = h.header.Clone()
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := h.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()
	content, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, err
	}
	if resp.StatusCode >= 300 && !strings.HasPrefix(resp.Header.Get("Content-Type"), MimeJson) {
		return resp.StatusCode, nil, fmt.Errorf("error status code %d: %s", resp.StatusCode, strings.TrimSpace(string(content)))
	}
	return resp.StatusCode, content, nil
}

// PostChunk uploads one raw chunk
func (h *HttpCli) PostChunk(raw []byte) (*ChunkResult, error) {
	_, content, err := h.do(http.MethodPost, UriChunk, MimeChunk, raw)
	if err != nil {
		return nil, err
	}
	ret := new(ChunkResult)
	if err = json.Unmarshal(content, ret); err != nil {
		return nil, fmt.Errorf("unmarshal chunk resp fail with err: %v, content %q", err, string(content))
	}
	return ret, nil
}

// Session returns the dashboard session state
func (h *HttpCli) Session() (*SessionState, error) {
	return h.session(http.MethodGet, UriSession)
}

// Reset resets the dashboard session
func (h *HttpCli) Reset() (*SessionState, error) {
	return h.session(http.MethodPost, UriSessionReset)
}

func (h *HttpCli) session(method, uri string) (*SessionState, error) {
	_, content, err := h.do(method, uri, "", nil)
	if err != nil {
		return nil, err
	}
	ret := new(SessionState)
	if err = json.Unmarshal(content, ret); err != nil {
		return nil, fmt.Errorf("unmarshal session resp fail with err: %v, content %q", err, string(content))
	}
	return ret, nil
}
