package errors

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStatusCodes(t *testing.T) {
	assert.Equal(t, http.StatusBadRequest, NewValidation("bad").StatusCode())
	assert.Equal(t, http.StatusNotFound, NewNotFound("thing").StatusCode())
	assert.Equal(t, http.StatusConflict, NewConflict("clash").StatusCode())
	assert.Equal(t, http.StatusUnauthorized, NewUnauthorized("no").StatusCode())
	assert.Equal(t, http.StatusServiceUnavailable, NewTransient("flaky", nil).StatusCode())
	assert.Equal(t, http.StatusInternalServerError, NewInternal(fmt.Errorf("boom")).StatusCode())
}

func TestPredicatesSeeThroughWrapping(t *testing.T) {
	err := fmt.Errorf("loading period: %w", NewNotFound("payment period"))
	assert.True(t, IsNotFound(err))
	assert.False(t, IsConflict(err))
	assert.False(t, IsTransient(err))

	wrapped := fmt.Errorf("outer: %w", NewTransient("db write failed", fmt.Errorf("conn reset")))
	assert.True(t, IsTransient(wrapped))
	assert.False(t, IsNotFound(nil))
}

func TestErrorMessageIncludesCause(t *testing.T) {
	err := NewTransient("db write failed", fmt.Errorf("conn reset"))
	assert.Contains(t, err.Error(), "db write failed")
	assert.Contains(t, err.Error(), "conn reset")
	assert.Equal(t, "payment not found", NewNotFound("payment").Error())
}
