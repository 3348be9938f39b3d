package main

import (
	"errors"
	"net/http"

	"github.com/protomem/district-tasks/internal/model"
	"github.com/protomem/district-tasks/internal/response"
	"github.com/protomem/district-tasks/internal/service/tasks"
	"github.com/protomem/district-tasks/internal/session"
)

func (app *application) handleListTasks(w http.ResponseWriter, r *http.Request) {
	member, _ := contextMember(r)

	views, err := app.tasks.ListForViewer(r.Context(), member)
	if err != nil {
		app.serverError(w, r, err)
		return
	}

	if err := response.JSON(w, http.StatusOK, response.JSONObject{"tasks": views}); err != nil {
		app.serverError(w, r, err)
	}
}

func (app *application) handleToggleSignup(w http.ResponseWriter, r *http.Request) {
	member, _ := contextMember(r)

	taskID, err := taskIDFromRequest(r)
	if err != nil {
		app.badRequest(w, r, err)
		return
	}

	signedUp, err := app.tasks.ToggleSignup(r.Context(), taskID, member.ID)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			app.notFound(w, r)
			return
		}

		app.serverError(w, r, err)
		return
	}

	message := "You are no longer signed up for the task"
	if signedUp {
		message = "You have signed up for the task"
	}
	app.redirectWithFlash(w, r, "/tasks", session.FlashSuccess, message)
}

func (app *application) handleEditTask(w http.ResponseWriter, r *http.Request) {
	member, _ := contextMember(r)

	taskID, err := taskIDFromRequest(r)
	if err != nil {
		app.badRequest(w, r, err)
		return
	}

	if err := r.ParseForm(); err != nil {
		app.badRequest(w, r, err)
		return
	}

	task, err := app.tasks.Update(r.Context(), member, taskID, tasks.UpdateInput{
		Title:        r.PostForm.Get("title"),
		Description:  r.PostForm.Get("description"),
		Deadline:     r.PostForm.Get("deadline"),
		DeadlineTime: r.PostForm.Get("deadline_time"),
		EventDate:    r.PostForm.Get("event_date"),
		EventTime:    r.PostForm.Get("event_time"),
		Status:       r.PostForm.Get("status"),
	})
	if !app.handleTaskMutationError(w, r, err) {
		return
	}

	app.redirectWithFlash(w, r, "/tasks", session.FlashSuccess, "Task \""+task.Title+"\" updated")
}

func (app *application) handleDeleteTask(w http.ResponseWriter, r *http.Request) {
	member, _ := contextMember(r)

	taskID, err := taskIDFromRequest(r)
	if err != nil {
		app.badRequest(w, r, err)
		return
	}

	err = app.tasks.Delete(r.Context(), member, taskID)
	if !app.handleTaskMutationError(w, r, err) {
		return
	}

	app.redirectWithFlash(w, r, "/tasks", session.FlashSuccess, "Task deleted")
}

// handleTaskMutationError writes the response for a failed edit or delete
// and reports whether the handler may continue.
func (app *application) handleTaskMutationError(w http.ResponseWriter, r *http.Request, err error) bool {
	switch {
	case err == nil:
		return true
	case errors.Is(err, model.ErrNotFound):
		app.notFound(w, r)
	case tasks.IsForbidden(err):
		app.redirectWithFlash(w, r, "/tasks", session.FlashError, "You cannot change this task")
	case tasks.IsValidationError(err):
		app.redirectWithFlash(w, r, "/tasks", session.FlashError, err.Error())
	default:
		app.serverError(w, r, err)
	}
	return false
}
