package main

import (
	"errors"
	"net/http"

	"github.com/protomem/district-tasks/internal/model"
	"github.com/protomem/district-tasks/internal/request"
	"github.com/protomem/district-tasks/internal/response"
	"github.com/protomem/district-tasks/internal/service/directory"
	"github.com/protomem/district-tasks/internal/service/ledger"
	"github.com/protomem/district-tasks/internal/validator"
)

var errParticipationExists = errors.New("participation for this member and event already exists")

// Districts

func (app *application) handleAdminListDistricts(w http.ResponseWriter, r *http.Request) {
	districts, err := app.directory.ListDistricts(r.Context())
	if err != nil {
		app.serverError(w, r, err)
		return
	}

	if err := response.JSON(w, http.StatusOK, response.JSONObject{"districts": districts}); err != nil {
		app.serverError(w, r, err)
	}
}

type requestDistrict struct {
	Name string `json:"name"`
	Code string `json:"code"`
}

func (app *application) handleAdminCreateDistrict(w http.ResponseWriter, r *http.Request) {
	var input requestDistrict
	if err := request.DecodeJSONStrict(w, r, &input); err != nil {
		app.badRequest(w, r, err)
		return
	}

	district, v, err := app.directory.CreateDistrict(r.Context(), input.Name, input.Code)
	if err != nil {
		app.serverError(w, r, err)
		return
	}
	if v.HasErrors() {
		app.failedValidation(w, r, *v)
		return
	}

	if err := response.JSON(w, http.StatusCreated, response.JSONObject{"district": district}); err != nil {
		app.serverError(w, r, err)
	}
}

func (app *application) handleAdminUpdateDistrict(w http.ResponseWriter, r *http.Request) {
	districtID, err := idFromRequest(r, "districtId")
	if err != nil {
		app.badRequest(w, r, err)
		return
	}

	var input requestDistrict
	if err := request.DecodeJSONStrict(w, r, &input); err != nil {
		app.badRequest(w, r, err)
		return
	}

	district, v, err := app.directory.UpdateDistrict(r.Context(), districtID, input.Name, input.Code)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			app.notFound(w, r)
			return
		}

		app.serverError(w, r, err)
		return
	}
	if v.HasErrors() {
		app.failedValidation(w, r, *v)
		return
	}

	if err := response.JSON(w, http.StatusOK, response.JSONObject{"district": district}); err != nil {
		app.serverError(w, r, err)
	}
}

func (app *application) handleAdminDeleteDistrict(w http.ResponseWriter, r *http.Request) {
	member, _ := contextMember(r)

	districtID, err := idFromRequest(r, "districtId")
	if err != nil {
		app.badRequest(w, r, err)
		return
	}

	err = app.directory.DeleteDistrict(r.Context(), member, districtID)
	switch {
	case errors.Is(err, model.ErrNotFound):
		app.notFound(w, r)
	case errors.Is(err, directory.ErrNotPermitted):
		app.forbidden(w, r, errors.New("districts cannot be deleted"))
	case err != nil:
		app.serverError(w, r, err)
	default:
		w.WriteHeader(http.StatusNoContent)
	}
}

// Positions

func (app *application) handleAdminListPositions(w http.ResponseWriter, r *http.Request) {
	positions, err := app.directory.ListPositions(r.Context())
	if err != nil {
		app.serverError(w, r, err)
		return
	}

	if err := response.JSON(w, http.StatusOK, response.JSONObject{"positions": positions}); err != nil {
		app.serverError(w, r, err)
	}
}

type requestPosition struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	// Omitted capabilities are resolved from the title.
	Capabilities []string `json:"capabilities"`
}

func (app *application) handleAdminCreatePosition(w http.ResponseWriter, r *http.Request) {
	var input requestPosition
	if err := request.DecodeJSONStrict(w, r, &input); err != nil {
		app.badRequest(w, r, err)
		return
	}

	position, v, err := app.directory.CreatePosition(r.Context(), directory.PositionInput{
		Title:        input.Title,
		Description:  input.Description,
		Capabilities: input.Capabilities,
	})
	if err != nil {
		app.serverError(w, r, err)
		return
	}
	if v.HasErrors() {
		app.failedValidation(w, r, *v)
		return
	}

	if err := response.JSON(w, http.StatusCreated, response.JSONObject{"position": position}); err != nil {
		app.serverError(w, r, err)
	}
}

// Importances

func (app *application) handleAdminListImportances(w http.ResponseWriter, r *http.Request) {
	importances, err := app.ledger.ListImportances(r.Context())
	if err != nil {
		app.serverError(w, r, err)
		return
	}

	if err := response.JSON(w, http.StatusOK, response.JSONObject{"importances": importances}); err != nil {
		app.serverError(w, r, err)
	}
}

type requestImportance struct {
	Level  string `json:"level"`
	Weight int    `json:"weight"`
}

func (app *application) handleAdminCreateImportance(w http.ResponseWriter, r *http.Request) {
	var input requestImportance
	if err := request.DecodeJSONStrict(w, r, &input); err != nil {
		app.badRequest(w, r, err)
		return
	}

	importance, v, err := app.ledger.CreateImportance(r.Context(), input.Level, input.Weight)
	if err != nil {
		app.serverError(w, r, err)
		return
	}
	if v.HasErrors() {
		app.failedValidation(w, r, *v)
		return
	}

	if err := response.JSON(w, http.StatusCreated, response.JSONObject{"importance": importance}); err != nil {
		app.serverError(w, r, err)
	}
}

// Events

func (app *application) handleAdminListEvents(w http.ResponseWriter, r *http.Request) {
	events, err := app.ledger.ListEvents(r.Context())
	if err != nil {
		app.serverError(w, r, err)
		return
	}

	if err := response.JSON(w, http.StatusOK, response.JSONObject{"events": events}); err != nil {
		app.serverError(w, r, err)
	}
}

type requestEvent struct {
	Name              string    `json:"name"`
	Date              string    `json:"date"`
	Type              string    `json:"type"`
	ImportanceID      *model.ID `json:"importanceId"`
	ParticipantsCount int       `json:"participantsCount"`
}

func (app *application) handleAdminCreateEvent(w http.ResponseWriter, r *http.Request) {
	var input requestEvent
	if err := request.DecodeJSONStrict(w, r, &input); err != nil {
		app.badRequest(w, r, err)
		return
	}

	event, v, err := app.ledger.CreateEvent(r.Context(), ledger.EventInput{
		Name:              input.Name,
		Date:              input.Date,
		Type:              input.Type,
		ImportanceID:      input.ImportanceID,
		ParticipantsCount: input.ParticipantsCount,
	})
	if err != nil {
		app.serverError(w, r, err)
		return
	}
	if v.HasErrors() {
		app.failedValidation(w, r, *v)
		return
	}

	if err := response.JSON(w, http.StatusCreated, response.JSONObject{"event": event}); err != nil {
		app.serverError(w, r, err)
	}
}

func (app *application) handleAdminDeleteEvent(w http.ResponseWriter, r *http.Request) {
	eventID, err := idFromRequest(r, "eventId")
	if err != nil {
		app.badRequest(w, r, err)
		return
	}

	if err := app.ledger.DeleteEvent(r.Context(), eventID); err != nil {
		if errors.Is(err, model.ErrNotFound) {
			app.notFound(w, r)
			return
		}

		app.serverError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// Participations

func (app *application) handleAdminListParticipations(w http.ResponseWriter, r *http.Request) {
	userID := optionalIDQueryParams(r, "user_id")
	if userID == nil {
		var v validator.Validator
		v.AddFieldError("user_id", "must be provided")
		app.failedValidation(w, r, v)
		return
	}

	report, err := app.ledger.Report(r.Context(), *userID)
	if err != nil {
		app.serverError(w, r, err)
		return
	}

	if err := response.JSON(w, http.StatusOK, response.JSONObject{"participations": report.Lines}); err != nil {
		app.serverError(w, r, err)
	}
}

type requestParticipation struct {
	UserID  model.ID `json:"userId"`
	EventID model.ID `json:"eventId"`
	Role    string   `json:"role"`
	Status  string   `json:"status"`
}

func (app *application) handleAdminRecordParticipation(w http.ResponseWriter, r *http.Request) {
	var input requestParticipation
	if err := request.DecodeJSONStrict(w, r, &input); err != nil {
		app.badRequest(w, r, err)
		return
	}

	var v validator.Validator
	validateRequestParticipation(&v, input)
	if v.HasErrors() {
		app.failedValidation(w, r, v)
		return
	}

	participation, pv, err := app.ledger.RecordParticipation(r.Context(), ledger.ParticipationInput{
		UserID:  input.UserID,
		EventID: input.EventID,
		Role:    input.Role,
		Status:  input.Status,
	})
	if err != nil {
		switch {
		case errors.Is(err, model.ErrExists):
			app.conflict(w, r, errParticipationExists)
		case errors.Is(err, model.ErrNotFound):
			app.notFound(w, r)
		default:
			app.serverError(w, r, err)
		}
		return
	}
	if pv.HasErrors() {
		app.failedValidation(w, r, *pv)
		return
	}

	if err := response.JSON(w, http.StatusCreated, response.JSONObject{"participation": participation}); err != nil {
		app.serverError(w, r, err)
	}
}

func (app *application) handleAdminDeleteParticipation(w http.ResponseWriter, r *http.Request) {
	participationID, err := idFromRequest(r, "participationId")
	if err != nil {
		app.badRequest(w, r, err)
		return
	}

	if err := app.ledger.DeleteParticipation(r.Context(), participationID); err != nil {
		if errors.Is(err, model.ErrNotFound) {
			app.notFound(w, r)
			return
		}

		app.serverError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
