package apperror

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHTTPStatus(t *testing.T) {
	assert.Equal(t, http.StatusBadRequest, Validation("bad").HTTPStatus())
	assert.Equal(t, http.StatusBadRequest, InvalidCredential("nope").HTTPStatus())
	assert.Equal(t, http.StatusUnauthorized, Unauthorized("no", nil).HTTPStatus())
	assert.Equal(t, http.StatusInternalServerError, Server("db", errors.New("boom")).HTTPStatus())
	assert.Equal(t, http.StatusUnauthorized, InvalidCredential("nope").WithStatus(http.StatusUnauthorized).HTTPStatus())
}

func TestErrorWrapping(t *testing.T) {
	cause := errors.New("connection refused")
	err := fmt.Errorf("request otp: %w", Server("Database Error", cause))

	assert.True(t, Is(err, KindServer))
	assert.False(t, Is(err, KindUnauthorized))
	assert.ErrorIs(t, err, cause)

	e, ok := As(err)
	assert.True(t, ok)
	assert.Equal(t, "Database Error", e.Message)
	assert.Equal(t, "Database Error: connection refused", e.Error())
}

func TestAs_PlainError(t *testing.T) {
	_, ok := As(errors.New("plain"))
	assert.False(t, ok)
	assert.False(t, Is(nil, KindServer))
}

func TestKindString(t *testing.T) {
	assert.Equal(t, "validation", KindValidation.String())
	assert.Equal(t, "invalid_credential", KindInvalidCredential.String())
	assert.Equal(t, "unauthorized", KindUnauthorized.String())
	assert.Equal(t, "server", KindServer.String())
}
