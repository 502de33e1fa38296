package api

import (
	"encoding/json"
	"fmt"
	"mime"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/sincaw/chred/cmd/dashboard/server/common"
)

// getIntVal gets int value by key from url request, it returns default value when key not found
func getIntVal(vars url.Values, key string, defaultVal, minVal int) (int, error) {
	if v, ok := vars[key]; ok {
		l, err := strconv.Atoi(v[0])
		if err != nil {
			return 0, err

		}
		if l < minVal {
			return 0, fmt.Errorf("wrong %s %d", key, l)
		}
		return l, nil
	}
	return defaultVal, nil
}

func responseServerError(w http.ResponseWriter, err error) {
	http.Error(w, err.Error(), http.StatusInternalServerError)
}

func responseJson(w http.ResponseWriter, code int, v interface{}) {
	content, err := json.Marshal(v)
	if err != nil {
		responseServerError(w, err)
		return
	}
	w.Header().Set("Content-Type", common.MimeJson)
	w.WriteHeader(code)
	if _, err = w.Write(content); err != nil {
		logger.Error("write content fail: ", err)
	}
}

// attachment builds a Content-Disposition header, "CHR:HELLO" becomes HELLO.CHR
func attachment(id string) string {
	name := id
	if i := strings.Index(id, ":"); i >= 0 {
		name = id[i+1:] + "." + id[:i]
	}
	return mime.FormatMediaType("attachment", map[string]string{"filename": name})
}
