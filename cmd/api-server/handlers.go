package main

import (
	"net/http"

	"github.com/protomem/district-tasks/internal/model"
	"github.com/protomem/district-tasks/internal/response"
	"github.com/protomem/district-tasks/internal/session"
)

func (app *application) handleStatus(w http.ResponseWriter, r *http.Request) {
	if err := response.JSON(w, http.StatusOK, response.JSONObject{"status": "OK"}); err != nil {
		app.serverError(w, r, err)
	}
}

func (app *application) handleDashboard(w http.ResponseWriter, r *http.Request) {
	member, _ := contextMember(r)
	sess := session.FromContext(r.Context())

	err := response.JSON(w, http.StatusOK, responseDashboard{
		User:           member,
		TelegramLinked: member.TelegramID != nil,
		Messages:       sess.PopFlashes(),
	})
	if err != nil {
		app.serverError(w, r, err)
	}
}

type responseDashboard struct {
	User           model.User      `json:"user"`
	TelegramLinked bool            `json:"telegramLinked"`
	Messages       []session.Flash `json:"messages"`
}

// handleMessages pops the queued flash messages.
func (app *application) handleMessages(w http.ResponseWriter, r *http.Request) {
	flashes := session.FromContext(r.Context()).PopFlashes()

	if err := response.JSON(w, http.StatusOK, response.JSONObject{"messages": flashes}); err != nil {
		app.serverError(w, r, err)
	}
}

func (app *application) handleProfile(w http.ResponseWriter, r *http.Request) {
	member, _ := contextMember(r)

	res := responseProfile{
		User:           member,
		TelegramLinked: member.TelegramID != nil,
	}
	if member.Avatar != nil {
		res.AvatarURL = app.media.URL(*member.Avatar)
	}
	if member.District != nil && member.District.TeamPhoto != nil {
		res.TeamPhotoURL = app.media.URL(*member.District.TeamPhoto)
	}

	if err := response.JSON(w, http.StatusOK, res); err != nil {
		app.serverError(w, r, err)
	}
}

type responseProfile struct {
	User           model.User `json:"user"`
	AvatarURL      string     `json:"avatarUrl,omitempty"`
	TeamPhotoURL   string     `json:"teamPhotoUrl,omitempty"`
	TelegramLinked bool       `json:"telegramLinked"`
}
