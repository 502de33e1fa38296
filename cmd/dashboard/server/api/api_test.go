package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/sincaw/chred/cmd/dashboard/server/common"
	"github.com/sincaw/chred/pkg/archive"
	"github.com/sincaw/chred/pkg/scan"
)

func newApi(t *testing.T) (*Api, func()) {
	db, err := archive.New("", archive.InMemory())
	require.Nil(t, err)
	store, err := archive.Open(db, archive.DefaultNamespace)
	require.Nil(t, err)

	config := common.DefaultConfig()
	config.DatabasePath = "db"
	return New(context.Background(), store, &config), func() { db.Close() }
}

func newChunks(t *testing.T, body []byte, size int) ([]byte, [][]byte) {
	msg, err := scan.EncodeMessage("CHR", "HELLO", body)
	require.Nil(t, err)
	chunks, err := scan.Split(msg, size)
	require.Nil(t, err)
	return msg, chunks
}

func postChunk(t *testing.T, h http.Handler, raw []byte) (int, *common.ChunkResult) {
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest("POST", common.UriChunk, bytes.NewReader(raw)))
	ret := new(common.ChunkResult)
	require.Nil(t, json.Unmarshal(w.Body.Bytes(), ret))
	return w.Code, ret
}

type listResp struct {
	Data  []map[string]interface{} `json:"data"`
	Total int                      `json:"total"`
}

func listEntities(t *testing.T, h http.Handler, query string) *listResp {
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest("GET", common.UriEntity+query, nil))
	require.Equal(t, http.StatusOK, w.Code)
	ret := new(listResp)
	require.Nil(t, json.Unmarshal(w.Body.Bytes(), ret))
	return ret
}

func TestChunkFlow(t *testing.T) {
	a, clean := newApi(t)
	defer clean()
	r := a.Router()

	msg, chunks := newChunks(t, bytes.Repeat([]byte("sprite"), 20), 50)
	require.Len(t, chunks, 3)

	code, ret := postChunk(t, r, chunks[0])
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, common.StatusAccepted, ret.Status)
	require.Equal(t, 1, ret.Session.ReceivedCount)
	require.Equal(t, 3, ret.Session.TotalCount)
	require.Equal(t, "CHR:HELLO", ret.Session.Name)

	code, ret = postChunk(t, r, chunks[2])
	require.Equal(t, http.StatusUnprocessableEntity, code)
	require.Equal(t, common.StatusRejected, ret.Status)
	require.Equal(t, scan.KindOrderViolation.String(), ret.Kind)
	require.Equal(t, "Wrong code number: 3.", ret.Session.Message)
	require.True(t, ret.Session.Active)

	code, _ = postChunk(t, r, chunks[1])
	require.Equal(t, http.StatusOK, code)
	code, ret = postChunk(t, r, chunks[2])
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, common.StatusCompleted, ret.Status)
	require.Equal(t, "CHR:HELLO", ret.Entity)
	require.True(t, ret.Archived)
	require.Equal(t, "complete", ret.Session.State)

	// session data
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest("GET", common.UriSessionData, nil))
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, msg, w.Body.Bytes())

	// completed session rejects further chunks until reset
	code, ret = postChunk(t, r, chunks[0])
	require.Equal(t, http.StatusConflict, code)
	require.Equal(t, scan.KindInactive.String(), ret.Kind)

	// archived entity
	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest("GET", common.UriEntity+"/CHR:HELLO", nil))
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, msg, w.Body.Bytes())
	require.Contains(t, w.Header().Get("Content-Disposition"), "HELLO.CHR")

	req := httptest.NewRequest("GET", common.UriEntity+"/CHR:HELLO", nil)
	req.Header.Set("Range", "bytes=0-19")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusPartialContent, w.Code)
	require.Equal(t, msg[:20], w.Body.Bytes())

	list := listEntities(t, r, "")
	require.Equal(t, 1, list.Total)
	require.Len(t, list.Data, 1)
	require.Equal(t, "CHR:HELLO", list.Data[0]["_id"])
	require.Equal(t, 0, listEntities(t, r, "?type=COL").Total)
	require.Equal(t, 1, listEntities(t, r, "?type=CHR").Total)
	list = listEntities(t, r, "?type=CHR&offset=1&limit=5")
	require.Equal(t, 1, list.Total)
	require.Empty(t, list.Data)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest("DELETE", common.UriEntity+"/CHR:HELLO", nil))
	require.Equal(t, http.StatusNoContent, w.Code)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest("GET", common.UriEntity+"/CHR:HELLO", nil))
	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestChunkFatal(t *testing.T) {
	a, clean := newApi(t)
	defer clean()
	r := a.Router()

	msg, err := scan.EncodeMessage("CHR", "A", make([]byte, 40))
	require.Nil(t, err)
	group := scan.Sum(msg)
	frame := func(seq, total uint8, payload []byte) []byte {
		return (&scan.Chunk{Seq: seq, Total: total, Hash: scan.Sum(payload), GroupHash: group, Payload: payload}).Bytes()
	}

	code, ret := postChunk(t, r, []byte("garbage"))
	require.Equal(t, http.StatusUnprocessableEntity, code)
	require.Equal(t, scan.KindFormatInvalid.String(), ret.Kind)
	require.False(t, ret.Fatal)

	code, _ = postChunk(t, r, frame(1, 3, msg[:30]))
	require.Equal(t, http.StatusOK, code)
	code, ret = postChunk(t, r, frame(2, 3, make([]byte, 40)))
	require.Equal(t, http.StatusConflict, code)
	require.True(t, ret.Fatal)
	require.Equal(t, "dead", ret.Session.State)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest("GET", common.UriSessionData, nil))
	require.Equal(t, http.StatusNotFound, w.Code)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest("POST", common.UriSessionReset, nil))
	require.Equal(t, http.StatusOK, w.Code)
	state := common.SessionState{}
	require.Nil(t, json.Unmarshal(w.Body.Bytes(), &state))
	require.Equal(t, "empty", state.State)
	require.True(t, state.Active)
}

func TestChunkNoArchive(t *testing.T) {
	a, clean := newApi(t)
	defer clean()
	a.config.Server.Archive = false

	_, chunks := newChunks(t, []byte("body"), 64)
	code, ret := postChunk(t, a.Router(), chunks[0])
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, common.StatusCompleted, ret.Status)
	require.False(t, ret.Archived)

	n, err := a.archive.Count()
	require.Nil(t, err)
	require.Equal(t, 0, n)
}

func TestResetIdle(t *testing.T) {
	a, clean := newApi(t)
	defer clean()

	tm := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	a.now = func() time.Time { return tm }

	// nothing to reset for an empty session
	require.False(t, a.ResetIdle(time.Minute))

	_, chunks := newChunks(t, make([]byte, 100), 50)
	code, _ := postChunk(t, a.Router(), chunks[0])
	require.Equal(t, http.StatusOK, code)

	tm = tm.Add(30 * time.Second)
	require.False(t, a.ResetIdle(time.Minute))
	tm = tm.Add(time.Minute)
	require.True(t, a.ResetIdle(time.Minute))
	require.Equal(t, scan.StateEmpty, a.session.State())
}

func TestServe(t *testing.T) {
	a, clean := newApi(t)
	defer clean()

	ctx, cancel := context.WithCancel(context.Background())
	a.ctx = ctx
	a.config.Server.Addr = "127.0.0.1:0"
	done := make(chan error, 1)
	go func() { done <- a.Serve() }()
	cancel()

	select {
	case err := <-done:
		require.Nil(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}

func TestClient(t *testing.T) {
	a, clean := newApi(t)
	defer clean()
	srv := httptest.NewServer(a.Router())
	defer srv.Close()

	cli, err := common.NewWithHeader(srv.URL, nil)
	require.Nil(t, err)

	_, chunks := newChunks(t, make([]byte, 100), 50)
	ret, err := cli.PostChunk(chunks[1])
	require.Nil(t, err)
	require.Equal(t, common.StatusRejected, ret.Status)
	require.Equal(t, scan.KindFirstChunkSequence.String(), ret.Kind)

	ret, err = cli.PostChunk(chunks[0])
	require.Nil(t, err)
	require.Equal(t, common.StatusAccepted, ret.Status)

	state, err := cli.Session()
	require.Nil(t, err)
	require.Equal(t, 1, state.ReceivedCount)

	state, err = cli.Reset()
	require.Nil(t, err)
	require.Equal(t, 0, state.ReceivedCount)

	resp, err := http.Get(srv.URL + common.UriEntity + "/CHR:NONE")
	require.Nil(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	require.Equal(t, http.StatusNotFound, resp.StatusCode, string(body))

	_, err = common.NewWithHeader("localhost:1234", nil)
	require.NotNil(t, err)
}
