package main

import (
	"errors"
	"net/http"

	"github.com/protomem/district-tasks/internal/access"
	"github.com/protomem/district-tasks/internal/model"
	"github.com/protomem/district-tasks/internal/response"
	"github.com/protomem/district-tasks/internal/service/ledger"
)

var errReportNotPermitted = errors.New("you cannot view this member's report")

// handleReport shows the member's own participation report. Admins and the
// leader of the member's district may pass ?user_id= for someone else.
func (app *application) handleReport(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	member, _ := contextMember(r)

	target := member
	if id := optionalIDQueryParams(r, "user_id"); id != nil && *id != member.ID {
		other, err := app.directory.Member(ctx, *id)
		if err != nil {
			if errors.Is(err, model.ErrNotFound) {
				app.notFound(w, r)
				return
			}

			app.serverError(w, r, err)
			return
		}

		if !member.IsAdmin && !access.SubjectOf(member).CanManageMember(other) {
			app.forbidden(w, r, errReportNotPermitted)
			return
		}

		target = other
	}

	report, err := app.ledger.Report(ctx, target.ID)
	if err != nil {
		app.serverError(w, r, err)
		return
	}

	err = response.JSON(w, http.StatusOK, responseReport{
		User:   target,
		Report: report,
	})
	if err != nil {
		app.serverError(w, r, err)
	}
}

type responseReport struct {
	User   model.User    `json:"user"`
	Report ledger.Report `json:"report"`
}
