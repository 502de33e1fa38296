package api

import (
	"bytes"
	"fmt"
	"net/http"

	"github.com/gorilla/mux"
	"go.mongodb.org/mongo-driver/bson"

	"github.com/sincaw/chred/cmd/dashboard/server/common"
	"github.com/sincaw/chred/pkg/archive"
)

// ListHandler handles archived entity list call, newest first
func (a *Api) ListHandler(w http.ResponseWriter, r *http.Request) {
	l := logger.With("api", "list")
	vars := r.URL.Query()
	limit, err := getIntVal(vars, "limit", defaultPageLimit, 1)
	if err != nil {
		l.Error("parse limit fail ", err)
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprintf(w, "%v", err)
		return
	}

	offset, err := getIntVal(vars, "offset", 0, 0)
	if err != nil {
		l.Error("parse offset fail ", err)
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprintf(w, "%v", err)
		return
	}

	var (
		items []*archive.Record
		total int
	)
	if typ := vars.Get("type"); typ != "" {
		items, total, err = a.archive.FindType(typ, offset, limit)
	} else {
		items, total, err = a.archive.List(offset, limit)
	}
	if err != nil {
		l.Error("list archive fail ", err)
		responseServerError(w, err)
		return
	}
	if items == nil {
		items = []*archive.Record{}
	}

	content, err := bson.MarshalExtJSON(bson.M{"data": items, "total": total}, false, true)
	if err != nil {
		l.Error("marshal result fail ", err)
		responseServerError(w, err)
		return
	}
	w.Header().Set("Content-Type", common.MimeJson)
	w.WriteHeader(http.StatusOK)
	_, err = w.Write(content)
	if err != nil {
		l.Error("write content fail: ", err)
	}
}

// EntityHandler serves the data of an archived entity, range requests included
func (a *Api) EntityHandler(w http.ResponseWriter, r *http.Request) {
	var (
		l  = logger.With("api", "entity")
		id = mux.Vars(r)["id"]
	)
	if id == "" {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	l = l.With("id", id)

	rec, err := a.archive.Record(id)
	if err == archive.ErrNotFound {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	if err != nil {
		l.Error("get record fail: ", err)
		responseServerError(w, err)
		return
	}
	meta, err := a.archive.Meta(id)
	if err != nil {
		l.Error("get object meta fail: ", err)
		responseServerError(w, err)
		return
	}
	e, err := a.archive.Get(id)
	if err != nil {
		l.Error("get entity fail: ", err)
		responseServerError(w, err)
		return
	}

	w.Header().Set("Content-Type", meta.Mime)
	w.Header().Set("Content-Disposition", attachment(id))
	w.Header().Set("ETag", fmt.Sprintf("%q", rec.Digest))
	http.ServeContent(w, r, id, rec.CreatedAt, bytes.NewReader(e.Data))
	l.Debugf("served %d bytes", meta.TotalLen)
}

// DeleteHandler removes an archived entity
func (a *Api) DeleteHandler(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	err := a.archive.Delete(id)
	if err == archive.ErrNotFound {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	if err != nil {
		logger.With("api", "delete", "id", id).Error("delete entity fail: ", err)
		responseServerError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
