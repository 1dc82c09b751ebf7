package apperrors

import (
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestServiceErrorHTTPStatus(t *testing.T) {
	cases := []struct {
		kind   Kind
		status int
	}{
		{Validation, http.StatusBadRequest},
		{Authz, http.StatusForbidden},
		{NotFoundKind, http.StatusNotFound},
		{Conflict, http.StatusConflict},
		{Insufficient, http.StatusPaymentRequired},
		{CooldownKind, http.StatusTooManyRequests},
		{Policy, http.StatusForbidden},
		{Expired, http.StatusGone},
		{Internal, http.StatusInternalServerError},
	}
	for _, c := range cases {
		se := New(c.kind, "")
		assert.Equal(t, c.status, se.HTTPStatus())
		assert.NotEmpty(t, se.Message)
	}
}

func TestWithDetailsChaining(t *testing.T) {
	se := NewInsufficient("wealth", 100, 40)
	assert.Equal(t, int64(100), se.Details["required"])
	assert.Equal(t, int64(40), se.Details["available"])
}

func TestIsAndAs(t *testing.T) {
	err := error(NewCooldown("rob", 30))
	assert.True(t, Is(err, CooldownKind))
	assert.False(t, Is(err, Policy))

	wrapped := errors.New("boom")
	internal := NewInternal("db write failed", wrapped)
	assert.True(t, Is(internal, Internal))
	assert.ErrorIs(t, internal, wrapped)

	se := As(internal)
	assert.NotNil(t, se)
	assert.Equal(t, Internal, se.Kind)
}

func TestNotAServiceError(t *testing.T) {
	plain := errors.New("plain")
	assert.False(t, Is(plain, Internal))
	assert.Nil(t, As(plain))
}
