package main

import (
	"bytes"
	"net/http"
	"path/filepath"

	"github.com/protomem/district-tasks/internal/access"
	"github.com/protomem/district-tasks/internal/ctxstore"
	"github.com/protomem/district-tasks/internal/imageproc"
	"github.com/protomem/district-tasks/internal/media"
	"github.com/protomem/district-tasks/internal/response"
	"github.com/protomem/district-tasks/internal/validator"
)

func (app *application) handleUploadAvatar(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := app.logger.With(
		_traceIDKey.String(), ctxstore.MustFrom[string](ctx, _traceIDKey),
		"handler", "uploadAvatar",
	)

	member, _ := contextMember(r)

	r.Body = http.MaxBytesReader(w, r.Body, _maxUploadBytes)
	if err := r.ParseMultipartForm(_maxUploadBytes); err != nil {
		app.uploadError(w, r, http.StatusBadRequest, "Invalid request")
		return
	}

	file, header, err := r.FormFile("avatar")
	if err != nil {
		app.uploadError(w, r, http.StatusBadRequest, "Invalid request")
		return
	}
	defer file.Close()

	var v validator.Validator
	validateAvatarFilename(&v, header.Filename)
	if v.HasErrors() {
		app.uploadError(w, r, http.StatusBadRequest, v.FieldErrors["avatar"])
		return
	}

	name, err := app.media.Save(media.DirAvatars, filepath.Ext(header.Filename), file)
	if err != nil {
		app.serverError(w, r, err)
		return
	}

	if err := app.directory.SetAvatar(ctx, member.ID, name); err != nil {
		_ = app.media.Remove(name)
		app.serverError(w, r, err)
		return
	}

	if member.Avatar != nil {
		if err := app.media.Remove(*member.Avatar); err != nil {
			logger.Warn("failed to remove previous avatar", "error", err)
		}
	}

	logger.Info("avatar uploaded", "userId", member.ID, "file", name)

	err = response.JSON(w, http.StatusOK, response.JSONObject{
		"status":     "success",
		"avatar_url": app.media.URL(name),
	})
	if err != nil {
		app.serverError(w, r, err)
	}
}

// handleUploadTeamPhoto stores a normalised team photo for the leader's
// district.
func (app *application) handleUploadTeamPhoto(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := app.logger.With(
		_traceIDKey.String(), ctxstore.MustFrom[string](ctx, _traceIDKey),
		"handler", "uploadTeamPhoto",
	)

	if r.Method != http.MethodPost {
		app.uploadError(w, r, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	member, _ := contextMember(r)
	if !access.SubjectOf(member).CanUploadTeamPhoto() {
		app.uploadError(w, r, http.StatusForbidden, "Access denied")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, _maxUploadBytes)
	if err := r.ParseMultipartForm(_maxUploadBytes); err != nil {
		app.uploadError(w, r, http.StatusBadRequest, "No file selected")
		return
	}

	file, _, err := r.FormFile("team_photo")
	if err != nil {
		app.uploadError(w, r, http.StatusBadRequest, "No file selected")
		return
	}
	defer file.Close()

	photo, err := imageproc.TeamPhoto(file)
	if err != nil {
		logger.Warn("failed to process team photo", "error", err)
		app.uploadError(w, r, http.StatusInternalServerError, "Failed to process image")
		return
	}

	name, err := app.media.Save(media.DirDistrictTeams, ".jpg", bytes.NewReader(photo))
	if err != nil {
		app.serverError(w, r, err)
		return
	}

	if err := app.directory.SetTeamPhoto(ctx, member, name); err != nil {
		_ = app.media.Remove(name)
		app.serverError(w, r, err)
		return
	}

	if member.District != nil && member.District.TeamPhoto != nil {
		if err := app.media.Remove(*member.District.TeamPhoto); err != nil {
			logger.Warn("failed to remove previous team photo", "error", err)
		}
	}

	logger.Info("team photo uploaded", "districtId", *member.DistrictID, "file", name)

	err = response.JSON(w, http.StatusOK, response.JSONObject{
		"status":    "success",
		"photo_url": app.media.URL(name),
	})
	if err != nil {
		app.serverError(w, r, err)
	}
}

func (app *application) uploadError(w http.ResponseWriter, r *http.Request, status int, message string) {
	err := response.JSON(w, status, response.JSONObject{"status": "error", "message": message})
	if err != nil {
		app.reportServerError(r, err)
	}
}
