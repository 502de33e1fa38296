package api

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"

	"github.com/sincaw/chred/cmd/dashboard/server/common"
	"github.com/sincaw/chred/cmd/dashboard/server/utils"
	"github.com/sincaw/chred/pkg/archive"
	"github.com/sincaw/chred/pkg/scan"
)

const (
	defaultPageLimit = 20
	// a QR code holds less than 3KB, anything much larger is not a chunk
	maxChunkSize = 64 * 1024
)

var (
	logger = utils.Logger()
)

type Api struct {
	ctx      context.Context
	archive  *archive.Archive
	acceptor common.EntityAcceptor

	// settingsMu guards config, the settings handler rewrites it in place
	settingsMu sync.RWMutex
	config     *common.Config

	// mu guards the session, chunks are processed one at a time
	mu         sync.Mutex
	session    *scan.Session
	lastActive time.Time
	now        func() time.Time
}

// New Api instance using archive and config, completed entities go to the archive
func New(ctx context.Context, store *archive.Archive, config *common.Config) *Api {
	return &Api{
		ctx:      ctx,
		archive:  store,
		acceptor: store,
		config:   config,
		session:  scan.NewSession(config.Session.SessionOptions()...),
		now:      time.Now,
	}
}

// Router returns the api routes
func (a *Api) Router() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc(common.UriChunk, a.ChunkHandler).Methods("POST")
	r.HandleFunc(common.UriSession, a.SessionHandler).Methods("GET")
	r.HandleFunc(common.UriSessionReset, a.ResetHandler).Methods("POST")
	r.HandleFunc(common.UriSessionData, a.SessionDataHandler).Methods("GET")
	r.HandleFunc(common.UriEntity, a.ListHandler).Methods("GET")
	r.HandleFunc(common.UriEntity+"/{id}", a.EntityHandler).Methods("GET")
	r.HandleFunc(common.UriEntity+"/{id}", a.DeleteHandler).Methods("DELETE")
	r.HandleFunc(common.UriSettings, a.SettingsHandler).Methods("GET", "POST")
	return r
}

// Serve http server until ctx is done
func (a *Api) Serve() error {
	a.settingsMu.RLock()
	addr := a.config.Server.Addr
	a.settingsMu.RUnlock()
	srv := &http.Server{
		Handler:      a.Router(),
		Addr:         addr,
		WriteTimeout: 15 * time.Second,
		ReadTimeout:  15 * time.Second,
	}

	go func() {
		<-a.ctx.Done()
		logger.Info("shutting down server")
		ctx, cancel := context.WithTimeout(context.Background(), time.Second*10)
		defer cancel()
		err := srv.Shutdown(ctx)
		if err != nil {
			logger.Errorf("shutdown server fail %v", err)
		}
	}()
	logger.Infof("serving on http://%s", addr)
	err := srv.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}
