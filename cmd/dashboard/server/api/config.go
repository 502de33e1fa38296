package api

import (
	"encoding/json"
	"io"
	"net/http"

	jsonpatch "github.com/evanphx/json-patch/v5"

	"github.com/sincaw/chred/cmd/dashboard/server/common"
)

// SettingsHandler handles get and patch settings call
func (a *Api) SettingsHandler(w http.ResponseWriter, r *http.Request) {
	l := logger.With("api", "settings")
	switch r.Method {
	case "GET":
		content, err := a.getCurrentSettings()
		if err != nil {
			responseServerError(w, err)
			return
		}
		w.Header().Set("Content-Type", common.MimeJson)
		w.Write(content)
	case "POST":
		defer r.Body.Close()
		content, err := io.ReadAll(r.Body)
		if err != nil {
			responseServerError(w, err)
			return
		}
		after, err := a.updateCurrentSettings(content)
		if err != nil {
			l.Error("update settings fail ", err)
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		l.Infof("settings updated %s", string(after))
		w.Header().Set("Content-Type", common.MimeJson)
		w.Write(after)
	}
}

// getCurrentSettings returns current config json string
func (a *Api) getCurrentSettings() ([]byte, error) {
	a.settingsMu.RLock()
	defer a.settingsMu.RUnlock()
	return json.Marshal(a.config)
}

// updateCurrentSettings merge patches current config, the patch follows RFC 7386
func (a *Api) updateCurrentSettings(patch []byte) ([]byte, error) {
	a.settingsMu.Lock()
	defer a.settingsMu.Unlock()

	current, err := json.Marshal(a.config)
	if err != nil {
		return nil, err
	}
	after, err := jsonpatch.MergePatch(current, patch)
	if err != nil {
		return nil, err
	}
	newConf := common.Config{}
	err = json.Unmarshal(after, &newConf)
	if err != nil {
		return nil, err
	}
	err = a.config.Update(newConf)
	if err != nil {
		return nil, err
	}
	return after, nil
}
