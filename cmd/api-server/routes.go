package main

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

func (app *application) routes() http.Handler {
	mux := chi.NewRouter()

	mux.NotFound(app.notFound)
	mux.MethodNotAllowed(app.methodNotAllowed)

	mux.Use(app.traceID)
	mux.Use(app.logAccess)
	mux.Use(app.recoverPanic)

	mux.Use(app.CORS)
	mux.Use(middleware.StripSlashes)

	mux.Get("/api/v1/status", app.handleStatus)

	// The bot answers 405 itself, in its own error shape.
	mux.HandleFunc("/api/tasks/create", app.handleBotCreateTask)

	mediaPrefix := "/" + strings.Trim(app.media.BaseURL(), "/")
	mux.Handle(mediaPrefix+"/*", http.StripPrefix(mediaPrefix, http.FileServer(http.Dir(app.media.Root()))))

	mux.Group(func(mux chi.Router) {
		mux.Use(app.sessions.Handle)
		mux.Use(app.authenticate)

		mux.Get("/login", app.handleLoginPage)
		mux.Post("/login", app.handleLogin)
		mux.Get("/register", app.handleRegisterPage)
		mux.Post("/register", app.handleRegister)
		mux.Get("/telegram-login", app.handleTelegramLogin)
		mux.Get("/get-positions", app.handleGetPositions)

		mux.Group(func(mux chi.Router) {
			mux.Use(app.requireAuthentication)

			mux.Post("/logout", app.handleLogout)
			mux.Get("/", app.handleDashboard)
			mux.Get("/messages", app.handleMessages)

			mux.Get("/profile", app.handleProfile)
			mux.Post("/profile/edit", app.handleEditProfile)

			mux.Get("/tasks", app.handleListTasks)
			mux.Post("/tasks/{taskId}/signup", app.handleToggleSignup)
			mux.Post("/tasks/{taskId}/edit", app.handleEditTask)
			mux.Post("/tasks/{taskId}/delete", app.handleDeleteTask)

			mux.Get("/users", app.handleListUsers)
			mux.Post("/users/{userId}/edit", app.handleEditUser)
			mux.Post("/users/{userId}/delete", app.handleDeleteUser)

			mux.Post("/upload-avatar", app.handleUploadAvatar)
			mux.HandleFunc("/upload-team-photo", app.handleUploadTeamPhoto)

			mux.Get("/reports", app.handleReport)

			mux.Route("/admin", func(mux chi.Router) {
				mux.Use(app.requireAdmin)

				mux.Get("/districts", app.handleAdminListDistricts)
				mux.Post("/districts", app.handleAdminCreateDistrict)
				mux.Put("/districts/{districtId}", app.handleAdminUpdateDistrict)
				mux.Delete("/districts/{districtId}", app.handleAdminDeleteDistrict)

				mux.Get("/positions", app.handleAdminListPositions)
				mux.Post("/positions", app.handleAdminCreatePosition)

				mux.Get("/importances", app.handleAdminListImportances)
				mux.Post("/importances", app.handleAdminCreateImportance)

				mux.Get("/events", app.handleAdminListEvents)
				mux.Post("/events", app.handleAdminCreateEvent)
				mux.Delete("/events/{eventId}", app.handleAdminDeleteEvent)

				mux.Get("/participations", app.handleAdminListParticipations)
				mux.Post("/participations", app.handleAdminRecordParticipation)
				mux.Delete("/participations/{participationId}", app.handleAdminDeleteParticipation)
			})
		})
	})

	app.logger.Debug("routes configured", "routes", chiRoutesToStrings(mux.Routes()))

	return mux
}

func chiRoutesToStrings(routes []chi.Route) []string {
	parsedRoutes := make([]string, 0, len(routes))
	for _, route := range routes {
		parsedRoutes = append(parsedRoutes, route.Pattern)
	}
	return parsedRoutes
}
