package apperr

import (
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorIs(t *testing.T) {
	err := NotFound("schedule_not_found", "schedule not found")

	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, err, NotFound("schedule_not_found", ""))
	assert.NotErrorIs(t, err, NotFound("booking_not_found", ""))
	assert.NotErrorIs(t, err, ErrInvalidState)

	wrapped := fmt.Errorf("create booking: %w", err)
	assert.ErrorIs(t, wrapped, ErrNotFound)
}

func TestPersistence(t *testing.T) {
	assert.Nil(t, Persistence("op", nil))

	err := Persistence("load schedule", sql.ErrConnDone)
	assert.ErrorIs(t, err, ErrPersistence)
	assert.ErrorIs(t, err, sql.ErrConnDone)
	assert.Equal(t, "load schedule: "+sql.ErrConnDone.Error(), err.Error())

	typed := New(KindFull, "class_full", "class is full")
	assert.Same(t, typed, Persistence("reserve seat", typed))
}

func TestKindAndCode(t *testing.T) {
	assert.Equal(t, KindQuotaExceeded, KindOf(ErrQuotaExceeded))
	assert.Equal(t, KindPersistence, KindOf(errors.New("boom")))

	assert.Equal(t, "schedule_started", CodeOf(InvalidState("schedule_started", "already started")))
	assert.Equal(t, "full", CodeOf(ErrFull))
	assert.Equal(t, "persistence_failure", CodeOf(errors.New("boom")))
}

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		kind Kind
		want int
	}{
		{KindNotFound, http.StatusNotFound},
		{KindMembershipRequired, http.StatusForbidden},
		{KindQuotaExceeded, http.StatusForbidden},
		{KindForbidden, http.StatusForbidden},
		{KindFull, http.StatusBadRequest},
		{KindScheduleCancelled, http.StatusBadRequest},
		{KindInvalidState, http.StatusBadRequest},
		{KindAlreadyCancelled, http.StatusBadRequest},
		{KindValidation, http.StatusBadRequest},
		{KindPaymentRequired, http.StatusPaymentRequired},
		{KindConflict, http.StatusConflict},
		{KindPersistence, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(string(tt.kind), func(t *testing.T) {
			assert.Equal(t, tt.want, HTTPStatus(tt.kind))
		})
	}
}
