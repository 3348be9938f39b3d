package main

import (
	"crypto/subtle"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/protomem/district-tasks/internal/ctxstore"
	"github.com/protomem/district-tasks/internal/model"
	"github.com/protomem/district-tasks/internal/request"
	"github.com/protomem/district-tasks/internal/response"
	"github.com/protomem/district-tasks/internal/service/tasks"
)

// handleBotCreateTask creates a task on behalf of the member linked to the
// sender's telegram id. Errors use the {"error": ...} shape the bot reads.
func (app *application) handleBotCreateTask(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := app.logger.With(
		_traceIDKey.String(), ctxstore.MustFrom[string](ctx, _traceIDKey),
		"handler", "botCreateTask",
	)

	if r.Method != http.MethodPost {
		app.botError(w, r, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	if !app.botAuthorized(r) {
		logger.Warn("bot request with bad token")
		app.botError(w, r, http.StatusForbidden, "invalid bot token")
		return
	}

	var input requestBotCreateTask
	if err := request.DecodeJSON(w, r, &input); err != nil {
		app.botError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	telegramID, err := input.telegramID()
	if err != nil {
		app.botError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	task, err := app.tasks.CreateFromBot(ctx, tasks.CreateInput{
		TelegramID:   telegramID,
		Title:        input.Title,
		Description:  input.Description,
		Type:         input.Type,
		Deadline:     input.Deadline,
		DeadlineTime: input.DeadlineTime,
		EventDate:    input.EventDate,
		EventTime:    input.EventTime,
	})
	if err != nil {
		switch {
		case tasks.IsValidationError(err):
			app.botError(w, r, http.StatusBadRequest, err.Error())
		case tasks.IsForbidden(err):
			app.botError(w, r, http.StatusForbidden, err.Error())
		default:
			app.reportServerError(r, err)
			app.botError(w, r, http.StatusInternalServerError, "failed to create task")
		}
		return
	}

	logger.Info("task created from bot", "taskId", task.ID, "type", task.Type)

	err = response.JSON(w, http.StatusCreated, responseBotCreateTask{
		Message: "task created",
		TaskID:  task.ID,
		Title:   task.Title,
	})
	if err != nil {
		app.serverError(w, r, err)
	}
}

type requestBotCreateTask struct {
	Title               string      `json:"title"`
	Description         string      `json:"description"`
	Type                string      `json:"type"`
	Deadline            string      `json:"deadline"`
	DeadlineTime        string      `json:"deadline_time"`
	EventDate           string      `json:"event_date"`
	EventTime           string      `json:"event_time"`
	// CreatedByTelegramID arrives as a number or a numeric string.
	CreatedByTelegramID json.Number `json:"created_by_telegram_id"`
}

func (in requestBotCreateTask) telegramID() (*int64, error) {
	if in.CreatedByTelegramID == "" {
		return nil, nil
	}

	id, err := in.CreatedByTelegramID.Int64()
	if err != nil {
		return nil, errors.New("created_by_telegram_id must be an integer")
	}
	return &id, nil
}

type responseBotCreateTask struct {
	Message string   `json:"message"`
	TaskID  model.ID `json:"task_id"`
	Title   string   `json:"title"`
}

// botAuthorized accepts "Bearer <token>" and "Token <token>". An unset
// token rejects every request.
func (app *application) botAuthorized(r *http.Request) bool {
	want := app.config.bot.apiToken
	if want == "" {
		return false
	}

	scheme, got, ok := strings.Cut(r.Header.Get("Authorization"), " ")
	if !ok {
		return false
	}
	if !strings.EqualFold(scheme, "Bearer") && !strings.EqualFold(scheme, "Token") {
		return false
	}

	return subtle.ConstantTimeCompare([]byte(strings.TrimSpace(got)), []byte(want)) == 1
}

func (app *application) botError(w http.ResponseWriter, r *http.Request, status int, message string) {
	if err := response.Error(w, status, message); err != nil {
		app.reportServerError(r, err)
	}
}
