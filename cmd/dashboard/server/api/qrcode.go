package api

import (
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/sincaw/chred/cmd/dashboard/server/common"
	"github.com/sincaw/chred/pkg/scan"
)

// ChunkHandler feeds one decoded QR code (raw request body) into the session
func (a *Api) ChunkHandler(w http.ResponseWriter, r *http.Request) {
	l := logger.With("api", "chunk")
	defer r.Body.Close()
	raw, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxChunkSize))
	if err != nil {
		l.Error("read chunk fail ", err)
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	a.mu.Lock()
	a.lastActive = a.now()
	out, err := a.session.ProcessChunk(raw)
	state := a.state()
	a.mu.Unlock()

	ret := &common.ChunkResult{Session: state}
	if err != nil {
		ret.Status = common.StatusRejected
		ret.Kind = scan.KindOf(err).String()
		ret.Fatal = scan.KindOf(err).Fatal()
		ret.Error = err.Error()
		l.With("kind", ret.Kind, "fatal", ret.Fatal).Info("chunk rejected: ", err)

		code := http.StatusUnprocessableEntity
		if ret.Fatal || errors.Is(err, scan.ErrInactive) {
			code = http.StatusConflict
		}
		responseJson(w, code, ret)
		return
	}

	if out.Status == scan.StatusAccepted {
		ret.Status = common.StatusAccepted
		l.Debugf("chunk accepted %d/%d", state.ReceivedCount, state.TotalCount)
		responseJson(w, http.StatusOK, ret)
		return
	}

	ret.Status = common.StatusCompleted
	ret.Entity = out.Entity.ID()
	l = l.With("entity", ret.Entity)
	l.Infof("completed, %d bytes", len(out.Entity.Data))
	if a.archiveEnabled() {
		if err := a.acceptor.Accept(out.Entity); err != nil {
			l.Error("archive entity fail ", err)
			responseServerError(w, err)
			return
		}
		ret.Archived = true
	}
	responseJson(w, http.StatusOK, ret)
}

func (a *Api) archiveEnabled() bool {
	a.settingsMu.RLock()
	defer a.settingsMu.RUnlock()
	return a.config.Server.Archive
}

// SessionHandler returns the session state
func (a *Api) SessionHandler(w http.ResponseWriter, r *http.Request) {
	a.mu.Lock()
	state := a.state()
	a.mu.Unlock()
	responseJson(w, http.StatusOK, state)
}

// ResetHandler drops the session progress
func (a *Api) ResetHandler(w http.ResponseWriter, r *http.Request) {
	a.mu.Lock()
	a.session.Reset()
	a.lastActive = a.now()
	state := a.state()
	a.mu.Unlock()
	logger.Info("session reset")
	responseJson(w, http.StatusOK, state)
}

// SessionDataHandler returns the assembled data of a completed session
func (a *Api) SessionDataHandler(w http.ResponseWriter, r *http.Request) {
	a.mu.Lock()
	data, name := a.session.Data(), a.session.Name()
	a.mu.Unlock()

	if data == nil {
		http.Error(w, "session is not complete", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", common.MimeChunk)
	w.Header().Set("Content-Disposition", attachment(name))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(data); err != nil {
		logger.Error("write content fail: ", err)
	}
}

// ResetIdle resets an unfinished session that saw no chunk for idle
func (a *Api) ResetIdle(idle time.Duration) bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.session.State() != scan.StateAccumulating || a.now().Sub(a.lastActive) < idle {
		return false
	}
	logger.With("name", a.session.Name()).Infof("reset session idle since %v", a.lastActive)
	a.session.Reset()
	return true
}

// state must be called with mu held
func (a *Api) state() common.SessionState {
	s := a.session
	return common.SessionState{
		State:          s.State().String(),
		Active:         s.Active(),
		ReceivedCount:  s.ReceivedCount(),
		TotalCount:     s.TotalCount(),
		ReceivedLength: s.ReceivedLength(),
		TotalLength:    s.TotalLength(),
		Name:           s.Name(),
		Message:        s.Message(),
	}
}
