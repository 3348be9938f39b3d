package validator

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidator(t *testing.T) {
	var v Validator
	assert.False(t, v.HasErrors())

	v.CheckField(NotBlank("  "), "name", "cannot be blank")
	v.CheckField(false, "name", "second message is ignored")
	v.Check(IsEmail("user@example.com"), "never added")
	v.Check(IsEmail("not-an-email"), "email is invalid")

	assert.True(t, v.HasErrors())
	assert.Equal(t, map[string]string{"name": "cannot be blank"}, v.FieldErrors)
	assert.Equal(t, []string{"email is invalid"}, v.Errors)
}

func TestHelpers(t *testing.T) {
	assert.True(t, MinRunes("пароль12", 8))
	assert.False(t, MaxRunes("абв", 2))
	assert.True(t, PermittedValue("b", "a", "b"))
	assert.False(t, PermittedValue(3, 1, 2))
	assert.False(t, NotContainsAny("SuperIDIOT", "idiot"))
	assert.True(t, NotContainsAny("ivanov", "idiot"))
}
