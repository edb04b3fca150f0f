package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"

	"workflow-portal-go/internal/models"
)

func TestPredicatesSeeThroughWrapping(t *testing.T) {
	err := fmt.Errorf("update alert: %w", NewNotFoundError("alert not found", "a1"))

	assert.True(t, IsNotFound(err))
	assert.False(t, IsValidation(err))
	assert.Equal(t, http.StatusNotFound, GetAppError(err).Code)
	assert.Equal(t, "not_found: alert not found (a1)", GetAppError(err).Error())
}

func TestPersistenceErrorUnwraps(t *testing.T) {
	cause := errors.New("quota exceeded")
	err := NewPersistenceError("portal-akron-alerts", cause)

	assert.True(t, IsPersistence(err))
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "quota exceeded")
}

func TestWrap(t *testing.T) {
	assert.Nil(t, Wrap(nil))

	te := &models.InvalidTransitionError{From: models.StatusCompleted, Event: models.EventRespond}
	wrapped := Wrap(fmt.Errorf("respond: %w", te))
	assert.Equal(t, ErrorTypeInvalidTransition, wrapped.Type)
	assert.Equal(t, http.StatusConflict, wrapped.Code)
	assert.True(t, IsInvalidTransition(te))
	assert.True(t, IsInvalidTransition(wrapped))

	internal := Wrap(errors.New("boom"))
	assert.Equal(t, ErrorTypeInternal, internal.Type)

	v := NewValidationError("bad")
	assert.Same(t, v, Wrap(v))
}

func TestSchemaVersionError(t *testing.T) {
	err := NewSchemaVersionError("portal-akron-records", 2, 1)
	assert.True(t, IsSchemaVersion(err))
	assert.Contains(t, err.Error(), "version 2")
}
