package faults

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestKindOfWrappedFault(t *testing.T) {
	t.Parallel()

	cause := errors.New("exit status 1")
	err := fmt.Errorf("install: %w", Wrap(DependencyInstall, cause, "pip install failed"))

	require.Equal(t, DependencyInstall, KindOf(err))
	require.True(t, Is(err, DependencyInstall))
	require.False(t, Is(err, Publish))
	require.ErrorIs(t, err, cause)
}

func TestKindOfPlainError(t *testing.T) {
	t.Parallel()

	require.Equal(t, Kind(""), KindOf(errors.New("boom")))
	require.False(t, Is(nil, Validation))
}

func TestMessage(t *testing.T) {
	t.Parallel()

	// Archive messages keep their fixed wording.
	archive := Wrap(Archive, errors.New("zip: not a valid zip file"), "Failed to open a zip file: /tmp/x.zip")
	require.Equal(t, "Failed to open a zip file: /tmp/x.zip", Message(archive))

	// Other kinds include the cause.
	publish := Wrap(Publish, errors.New("409 Conflict"), "failed to publish action demo")
	require.Equal(t, "failed to publish action demo: 409 Conflict", Message(publish))

	require.Equal(t, "boom", Message(errors.New("boom")))
}
