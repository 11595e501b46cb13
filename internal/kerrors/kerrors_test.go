package kerrors

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsRetryable(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want bool
	}{
		{"transient is retryable", NewTransientError(errors.New("timeout")), true},
		{"terminal is not retryable", NewTerminalError(errors.New("bad shape")), false},
		{"not found is not retryable", NewNotFoundError("target", nil), false},
		{"unclassified error is not retryable", errors.New("outer"), false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, IsRetryable(tc.err))
		})
	}
}

func TestIsNotFound(t *testing.T) {
	assert.True(t, IsNotFound(NewNotFoundError("target", nil)))
	assert.False(t, IsNotFound(NewTransientError(errors.New("x"))))
}

func TestIsUniquenessRace(t *testing.T) {
	assert.True(t, IsUniquenessRace(NewUniquenessRaceError("kwargs", errors.New("dup"))))
	assert.False(t, IsUniquenessRace(NewTerminalError(errors.New("x"))))
}

func TestEnvelopeNeverNil(t *testing.T) {
	cases := []error{
		NewNotFoundError("target", nil),
		NewValidationError("bad input"),
		NewUniquenessRaceError("k", errors.New("dup")),
		NewTransientError(errors.New("x")),
		NewTerminalError(errors.New("x")),
		errors.New("mystery"),
	}

	for _, err := range cases {
		env := Envelope(err)
		assert.NotNil(t, env)
	}
}
