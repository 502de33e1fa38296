package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sincaw/chred/cmd/dashboard/server/common"
)

func TestUpdateWholeSettings(t *testing.T) {
	a, clean := newApi(t)
	defer clean()

	var changed []common.Config
	a.config.OnChange(func(c common.Config) error {
		changed = append(changed, c)
		return nil
	})
	r := a.Router()

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest("GET", common.UriSettings, nil))
	require.Equal(t, http.StatusOK, w.Code)
	current := common.Config{}
	require.Nil(t, json.Unmarshal(w.Body.Bytes(), &current))
	require.Equal(t, a.config.Server, current.Server)

	patch := []byte(`{"session": {"idleReset": "5m"}, "server": {"archive": false}}`)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest("POST", common.UriSettings, bytes.NewReader(patch)))
	require.Equal(t, http.StatusOK, w.Code)
	require.Len(t, changed, 1)
	require.Equal(t, "5m", a.config.Session.IdleReset)
	require.False(t, a.config.Server.Archive)
	// untouched fields survive the patch
	require.Equal(t, "127.0.0.1:8080", a.config.Server.Addr)
	require.Equal(t, "db", a.config.DatabasePath)
}

func TestUpdateInvalidSettings(t *testing.T) {
	a, clean := newApi(t)
	defer clean()
	r := a.Router()

	for _, patch := range []string{
		`{"session": {"idleReset": "soon"}}`,
		`{"maintain": {"cron": "every day"}}`,
		`{"server": {"addr": null}}`,
		`not json`,
	} {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest("POST", common.UriSettings, bytes.NewReader([]byte(patch))))
		require.Equal(t, http.StatusBadRequest, w.Code, patch)
	}
	require.Equal(t, "", a.config.Session.IdleReset)
	require.Equal(t, "@daily", a.config.Maintain.Cron)
}

func TestSettingsWhileScanning(t *testing.T) {
	a, clean := newApi(t)
	defer clean()
	r := a.Router()
	_, chunks := newChunks(t, []byte("body"), 64)

	const rounds = 50
	var (
		wg            sync.WaitGroup
		settingsCodes = make([]int, rounds)
		chunkCodes    = make([]int, rounds)
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < rounds; i++ {
			patch := fmt.Sprintf(`{"server": {"archive": %v}}`, i%2 == 0)
			w := httptest.NewRecorder()
			r.ServeHTTP(w, httptest.NewRequest("POST", common.UriSettings, bytes.NewReader([]byte(patch))))
			settingsCodes[i] = w.Code
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < rounds; i++ {
			w := httptest.NewRecorder()
			r.ServeHTTP(w, httptest.NewRequest("POST", common.UriChunk, bytes.NewReader(chunks[0])))
			chunkCodes[i] = w.Code
			if i%10 == 9 {
				w = httptest.NewRecorder()
				r.ServeHTTP(w, httptest.NewRequest("POST", common.UriSessionReset, nil))
			}
		}
	}()
	wg.Wait()

	for i := 0; i < rounds; i++ {
		require.Equal(t, http.StatusOK, settingsCodes[i])
		require.Contains(t, []int{http.StatusOK, http.StatusConflict}, chunkCodes[i])
	}
	require.Equal(t, http.StatusOK, chunkCodes[0])
	require.False(t, a.config.Server.Archive)
}
