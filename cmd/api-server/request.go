package main

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/protomem/district-tasks/internal/model"
)

const _maxUploadBytes = 10 << 20

func idFromRequest(r *http.Request, key string) (model.ID, error) {
	id, err := strconv.ParseUint(chi.URLParam(r, key), 10, 64)
	return model.ID(id), err
}

func userIDFromRequest(r *http.Request) (model.ID, error) {
	return idFromRequest(r, "userId")
}

func taskIDFromRequest(r *http.Request) (model.ID, error) {
	return idFromRequest(r, "taskId")
}

func optionalIDQueryParams(r *http.Request, key string) *model.ID {
	return parseOptionalID(r.URL.Query().Get(key))
}

// optionalIDFormValue reads an id from a submitted form. Blank and malformed
// values read as "not chosen".
func optionalIDFormValue(r *http.Request, key string) *model.ID {
	return parseOptionalID(r.PostFormValue(key))
}

func parseOptionalID(val string) *model.ID {
	val = strings.TrimSpace(val)
	if val == "" {
		return nil
	}
	id, err := strconv.ParseUint(val, 10, 64)
	if err != nil || id == 0 {
		return nil
	}
	ref := model.ID(id)
	return &ref
}

// optionalStringFormValue is nil when the form does not carry the field at
// all, so partial edit forms leave the other fields alone.
func optionalStringFormValue(r *http.Request, key string) *string {
	if _, ok := r.PostForm[key]; !ok {
		return nil
	}
	val := r.PostForm.Get(key)
	return &val
}
