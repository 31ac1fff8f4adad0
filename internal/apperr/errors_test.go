package apperr

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCodeOf(t *testing.T) {
	notFound := NotFound("conversation not found")

	assert.Equal(t, CodeNotFound, CodeOf(notFound))
	assert.Equal(t, CodeNotFound, CodeOf(fmt.Errorf("load: %w", notFound)))
	assert.Equal(t, CodeDeadlineExceeded, CodeOf(fmt.Errorf("query: %w", context.DeadlineExceeded)))
	assert.Equal(t, CodeInternal, CodeOf(errors.New("boom")))
	assert.Equal(t, Code(""), CodeOf(nil))
}

func TestWrapKeepsCause(t *testing.T) {
	cause := errors.New("connection reset")
	err := Transient("load conversation", cause)

	assert.ErrorIs(t, err, cause)
	assert.True(t, Is(err, CodeTransientStore))
	assert.Equal(t, "load conversation: connection reset", err.Error())
	assert.Equal(t, "load conversation", MessageOf(err))
}

func TestMessageOfHidesInternalErrors(t *testing.T) {
	assert.Equal(t, "internal error", MessageOf(errors.New("pq: password authentication failed")))
	assert.Equal(t, "request timed out", MessageOf(context.DeadlineExceeded))
}
