package main

import (
	"errors"
	"net/http"

	"github.com/protomem/district-tasks/internal/access"
	"github.com/protomem/district-tasks/internal/model"
	"github.com/protomem/district-tasks/internal/response"
	"github.com/protomem/district-tasks/internal/service/directory"
	"github.com/protomem/district-tasks/internal/session"
)

func (app *application) handleListUsers(w http.ResponseWriter, r *http.Request) {
	member, _ := contextMember(r)

	users, err := app.directory.ListMembers(r.Context(), member)
	if err != nil {
		if errors.Is(err, directory.ErrNotPermitted) {
			app.redirectWithFlash(w, r, "/", session.FlashError, "You do not have access to the member list")
			return
		}

		app.serverError(w, r, err)
		return
	}

	subject := access.SubjectOf(member)
	views := make([]memberView, 0, len(users))
	for _, u := range users {
		views = append(views, memberView{User: u, CanManage: subject.CanManageMember(u)})
	}

	if err := response.JSON(w, http.StatusOK, response.JSONObject{"users": views}); err != nil {
		app.serverError(w, r, err)
	}
}

type memberView struct {
	model.User
	CanManage bool `json:"canManage"`
}

func (app *application) handleEditUser(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDFromRequest(r)
	if err != nil {
		app.badRequest(w, r, err)
		return
	}

	app.editMember(w, r, userID, "/users")
}

func (app *application) handleEditProfile(w http.ResponseWriter, r *http.Request) {
	member, _ := contextMember(r)

	app.editMember(w, r, member.ID, "/profile")
}

func (app *application) editMember(w http.ResponseWriter, r *http.Request, targetID model.ID, next string) {
	member, _ := contextMember(r)

	if err := r.ParseForm(); err != nil {
		app.badRequest(w, r, err)
		return
	}

	updated, v, err := app.directory.UpdateMember(r.Context(), member, targetID, directory.UpdateMemberInput{
		Username:   optionalStringFormValue(r, "username"),
		LastName:   optionalStringFormValue(r, "last_name"),
		FirstName:  optionalStringFormValue(r, "first_name"),
		MiddleName: optionalStringFormValue(r, "middle_name"),
		Email:      optionalStringFormValue(r, "email"),
		DistrictID: optionalIDFormValue(r, "district"),
		PositionID: optionalIDFormValue(r, "position"),
	})
	if err != nil {
		switch {
		case errors.Is(err, model.ErrNotFound):
			app.notFound(w, r)
		case errors.Is(err, directory.ErrNotPermitted):
			app.redirectWithFlash(w, r, next, session.FlashError, "You cannot edit this member")
		default:
			app.serverError(w, r, err)
		}
		return
	}
	if v.HasErrors() {
		app.failedValidation(w, r, *v)
		return
	}

	app.redirectWithFlash(w, r, next, session.FlashSuccess, "Member "+updated.DisplayName()+" updated")
}

func (app *application) handleDeleteUser(w http.ResponseWriter, r *http.Request) {
	member, _ := contextMember(r)

	userID, err := userIDFromRequest(r)
	if err != nil {
		app.badRequest(w, r, err)
		return
	}

	err = app.directory.DeleteMember(r.Context(), member, userID)
	if err != nil {
		switch {
		case errors.Is(err, model.ErrNotFound):
			app.notFound(w, r)
		case errors.Is(err, directory.ErrNotPermitted):
			app.redirectWithFlash(w, r, "/users", session.FlashError, "You cannot delete this member")
		default:
			app.serverError(w, r, err)
		}
		return
	}

	if userID == member.ID {
		session.FromContext(r.Context()).Logout()
		http.Redirect(w, r, "/login", http.StatusSeeOther)
		return
	}

	app.redirectWithFlash(w, r, "/users", session.FlashSuccess, "Member deleted")
}
