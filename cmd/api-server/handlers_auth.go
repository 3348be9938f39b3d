package main

import (
	"errors"
	"net/http"
	"strings"

	"github.com/protomem/district-tasks/internal/ctxstore"
	"github.com/protomem/district-tasks/internal/model"
	"github.com/protomem/district-tasks/internal/response"
	"github.com/protomem/district-tasks/internal/service/directory"
	"github.com/protomem/district-tasks/internal/service/linking"
	"github.com/protomem/district-tasks/internal/session"
	"github.com/protomem/district-tasks/internal/validator"
)

func (app *application) handleLoginPage(w http.ResponseWriter, r *http.Request) {
	if _, ok := contextMember(r); ok {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}

	sess := session.FromContext(r.Context())

	err := response.JSON(w, http.StatusOK, response.JSONObject{
		"messages":    sess.PopFlashes(),
		"pendingLink": sess.PendingTelegramID != nil,
	})
	if err != nil {
		app.serverError(w, r, err)
	}
}

func (app *application) handleLogin(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if err := r.ParseForm(); err != nil {
		app.badRequest(w, r, err)
		return
	}

	var (
		username = strings.TrimSpace(r.PostForm.Get("username"))
		password = r.PostForm.Get("password")
	)

	var v validator.Validator
	validateLoginForm(&v, username, password)
	if v.HasErrors() {
		app.failedValidation(w, r, v)
		return
	}

	user, err := app.directory.Authenticate(ctx, username, password)
	if err != nil {
		if errors.Is(err, directory.ErrInvalidCredentials) {
			v.AddError("invalid username or password")
			app.failedValidation(w, r, v)
			return
		}

		app.serverError(w, r, err)
		return
	}

	sess := session.FromContext(ctx)
	sess.Login(user.ID)
	app.completePendingLink(r, sess, user)

	app.redirectWithFlash(w, r, "/", session.FlashSuccess, "Welcome, "+user.DisplayName())
}

func (app *application) handleLogout(w http.ResponseWriter, r *http.Request) {
	session.FromContext(r.Context()).Logout()

	app.redirectWithFlash(w, r, "/login", session.FlashInfo, "You have been logged out")
}

func (app *application) handleRegisterPage(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if _, ok := contextMember(r); ok {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}

	districts, err := app.directory.ListDistricts(ctx)
	if err != nil {
		app.serverError(w, r, err)
		return
	}

	positions, err := app.directory.PositionsFor(ctx, nil)
	if err != nil {
		app.serverError(w, r, err)
		return
	}

	err = response.JSON(w, http.StatusOK, response.JSONObject{
		"districts":       districts,
		"positions":       positionOptions(positions),
		"departmentTypes": []model.DepartmentType{model.DepartmentApparat, model.DepartmentDistrict},
	})
	if err != nil {
		app.serverError(w, r, err)
	}
}

func (app *application) handleRegister(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if err := r.ParseForm(); err != nil {
		app.badRequest(w, r, err)
		return
	}

	user, v, err := app.directory.Register(ctx, directory.RegisterInput{
		Username:       r.PostForm.Get("username"),
		Password1:      r.PostForm.Get("password1"),
		Password2:      r.PostForm.Get("password2"),
		LastName:       r.PostForm.Get("last_name"),
		FirstName:      r.PostForm.Get("first_name"),
		MiddleName:     r.PostForm.Get("middle_name"),
		Email:          r.PostForm.Get("email"),
		DepartmentType: r.PostForm.Get("department_type"),
		DistrictID:     optionalIDFormValue(r, "district"),
		PositionID:     optionalIDFormValue(r, "position"),
	})
	if err != nil {
		app.serverError(w, r, err)
		return
	}
	if v.HasErrors() {
		app.failedValidation(w, r, *v)
		return
	}

	sess := session.FromContext(ctx)
	sess.Login(user.ID)
	app.completePendingLink(r, sess, user)

	app.redirectWithFlash(w, r, "/", session.FlashSuccess, "Registration complete")
}

// handleTelegramLogin presents a bot link token. Every failure redirects with
// a flash and leaves accounts as they were.
func (app *application) handleTelegramLogin(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := app.logger.With(
		_traceIDKey.String(), ctxstore.MustFrom[string](ctx, _traceIDKey),
		"handler", "telegramLogin",
	)

	sess := session.FromContext(ctx)
	token := strings.TrimSpace(r.URL.Query().Get("token"))

	var current *model.User
	failTarget := "/login"
	if member, ok := contextMember(r); ok {
		current = &member
		failTarget = "/"
	}

	outcome, err := app.linking.Resolve(ctx, token, current)
	switch {
	case errors.Is(err, linking.ErrMissingToken):
		app.redirectWithFlash(w, r, failTarget, session.FlashError, "Link token is missing")
		return
	case errors.Is(err, linking.ErrInvalidToken):
		logger.Debug("rejected link token")
		app.redirectWithFlash(w, r, failTarget, session.FlashError, "The link is invalid or has expired")
		return
	case errors.Is(err, model.ErrTelegramTaken):
		app.redirectWithFlash(w, r, failTarget, session.FlashError, "This Telegram account is linked to another user")
		return
	case err != nil:
		app.serverError(w, r, err)
		return
	}

	switch outcome.Kind {
	case linking.OutcomeLinked:
		app.redirectWithFlash(w, r, "/", session.FlashSuccess, "Telegram account linked")
	case linking.OutcomeLoggedIn:
		sess.Login(outcome.User.ID)
		app.redirectWithFlash(w, r, "/", session.FlashSuccess, "Signed in with Telegram")
	case linking.OutcomePending:
		sess.SetPendingLink(outcome.TelegramID, token)
		app.redirectWithFlash(w, r, "/login", session.FlashInfo, "Log in to finish linking your Telegram account")
	}
}

// completePendingLink binds a telegram id parked in the session by an
// anonymous token visit. Failures only produce a flash.
func (app *application) completePendingLink(r *http.Request, sess *session.Session, user model.User) {
	telegramID, token, ok := sess.TakePendingLink()
	if !ok {
		return
	}

	err := app.linking.CompletePending(r.Context(), user, telegramID, token)
	switch {
	case err == nil:
		sess.AddFlash(session.FlashSuccess, "Telegram account linked")
	case errors.Is(err, linking.ErrInvalidToken):
		sess.AddFlash(session.FlashWarning, "The Telegram link has expired, request a new one from the bot")
	case errors.Is(err, model.ErrTelegramTaken):
		sess.AddFlash(session.FlashError, "This Telegram account is linked to another user")
	default:
		app.reportServerError(r, err)
		sess.AddFlash(session.FlashError, "Failed to link Telegram account")
	}
}

func (app *application) handleGetPositions(w http.ResponseWriter, r *http.Request) {
	positions, err := app.directory.PositionsFor(r.Context(), optionalIDQueryParams(r, "district_id"))
	if err != nil {
		app.serverError(w, r, err)
		return
	}

	if err := response.JSON(w, http.StatusOK, response.JSONObject{"positions": positionOptions(positions)}); err != nil {
		app.serverError(w, r, err)
	}
}

type positionOption struct {
	ID    model.ID `json:"id"`
	Title string   `json:"title"`
}

func positionOptions(positions []model.Position) []positionOption {
	out := make([]positionOption, 0, len(positions))
	for _, p := range positions {
		out = append(out, positionOption{ID: p.ID, Title: p.Title})
	}
	return out
}
