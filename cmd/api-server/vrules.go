package main

import (
	"path/filepath"
	"strings"

	"github.com/protomem/district-tasks/internal/validator"
)

// Validation rules

var _avatarExtensions = []string{".jpg", ".jpeg", ".png", ".gif", ".webp"}

func validateLoginForm(v *validator.Validator, username, password string) {
	v.CheckField(validator.NotBlank(username), "username", "cannot be blank")
	v.CheckField(validator.NotBlank(password), "password", "cannot be blank")
}

func validateAvatarFilename(v *validator.Validator, filename string) {
	ext := strings.ToLower(filepath.Ext(filename))
	v.CheckField(
		validator.PermittedValue(ext, _avatarExtensions...),
		"avatar", "must be a jpg, png, gif or webp image",
	)
}

func validateRequestParticipation(v *validator.Validator, request requestParticipation) {
	v.CheckField(request.UserID != 0, "userId", "must be provided")
	v.CheckField(request.EventID != 0, "eventId", "must be provided")
}
