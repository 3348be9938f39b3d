package main

import (
	"fmt"
	"log/slog"
	"net/http"
	"runtime/debug"

	"github.com/protomem/district-tasks/internal/ctxstore"
	"github.com/protomem/district-tasks/internal/response"
	"github.com/protomem/district-tasks/internal/session"
	"github.com/protomem/district-tasks/internal/validator"
)

func (app *application) reportServerError(r *http.Request, err error) {
	var (
		message = err.Error()
		method  = r.Method
		url     = r.URL.String()
		trace   = string(debug.Stack())
		tid     = ctxstore.FromOr(r.Context(), _traceIDKey, "")
	)

	requestAttrs := slog.Group("request", "method", method, "url", url, _traceIDKey.String(), tid)
	app.serverLogger().Error(message, requestAttrs, "trace", trace)
}

func (app *application) errorMessage(w http.ResponseWriter, r *http.Request, status int, message string, headers http.Header) {
	err := response.JSONWithHeaders(w, status, response.JSONObject{"error": message}, headers)
	if err != nil {
		app.reportServerError(r, err)
		w.WriteHeader(http.StatusInternalServerError)
	}
}

func (app *application) serverError(w http.ResponseWriter, r *http.Request, err error) {
	app.reportServerError(r, err)

	message := "The server encountered a problem and could not process your request"
	app.errorMessage(w, r, http.StatusInternalServerError, message, nil)
}

func (app *application) notFound(w http.ResponseWriter, r *http.Request) {
	message := "The requested resource could not be found"
	app.errorMessage(w, r, http.StatusNotFound, message, nil)
}

func (app *application) methodNotAllowed(w http.ResponseWriter, r *http.Request) {
	message := fmt.Sprintf("The %s method is not supported for this resource", r.Method)
	app.errorMessage(w, r, http.StatusMethodNotAllowed, message, nil)
}

func (app *application) badRequest(w http.ResponseWriter, r *http.Request, err error) {
	app.errorMessage(w, r, http.StatusBadRequest, err.Error(), nil)
}

func (app *application) forbidden(w http.ResponseWriter, r *http.Request, err error) {
	app.errorMessage(w, r, http.StatusForbidden, err.Error(), nil)
}

func (app *application) conflict(w http.ResponseWriter, r *http.Request, err error) {
	app.errorMessage(w, r, http.StatusConflict, err.Error(), nil)
}

func (app *application) failedValidation(w http.ResponseWriter, r *http.Request, v validator.Validator) {
	err := response.JSON(w, http.StatusUnprocessableEntity, v)
	if err != nil {
		app.serverError(w, r, err)
	}
}

// redirectWithFlash queues a flash message on the session and sends the
// browser to url with 303 See Other.
func (app *application) redirectWithFlash(
	w http.ResponseWriter, r *http.Request, url string, level session.FlashLevel, message string,
) {
	if message != "" {
		session.FromContext(r.Context()).AddFlash(level, message)
	}
	http.Redirect(w, r, url, http.StatusSeeOther)
}
