package gpu

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenUnknownBackend(t *testing.T) {
	_, err := Open("no-such-backend", Options{})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrDeviceUnavailable)
}

func TestOpenFailingBackend(t *testing.T) {
	cause := errors.New("no adapter")
	Register("failing-test-backend", func(Options) (Device, error) { return nil, cause })

	_, err := Open("failing-test-backend", Options{})
	assert.ErrorIs(t, err, ErrDeviceUnavailable)
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, Backends(), "failing-test-backend")
}

func TestRegisterIgnoresEmpty(t *testing.T) {
	before := Backends()
	Register("", func(Options) (Device, error) { return nil, nil })
	Register("nil-factory", nil)
	assert.Equal(t, before, Backends())
}

func TestOptionDefaults(t *testing.T) {
	o := Options{}.withDefaults()
	assert.Equal(t, DefaultSurfaceSize, o.SurfaceWidth)
	assert.Equal(t, DefaultSurfaceSize, o.SurfaceHeight)
	assert.NotNil(t, o.Logger)
}

func TestSubmissionCompletesOnce(t *testing.T) {
	s := NewSubmission(nil)
	assert.False(t, s.Finished())
	assert.NoError(t, s.Err())

	first := errors.New("first")
	s.Complete(first)
	s.Complete(errors.New("second"))

	assert.True(t, s.Finished())
	assert.Equal(t, first, s.Err())
	assert.Equal(t, first, s.Wait(context.Background()))
}

func TestSubmissionWaitHonoursContext(t *testing.T) {
	s := NewSubmission(nil)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, s.Wait(ctx), context.DeadlineExceeded)
}

func TestSubmissionWaitPolls(t *testing.T) {
	var s *Submission
	polls := 0
	s = NewSubmission(func() {
		polls++
		s.Complete(nil)
	})
	require.NoError(t, s.Wait(context.Background()))
	require.NoError(t, s.Wait(context.Background()))
	assert.Equal(t, 1, polls)
}

func TestSubmissionOnComplete(t *testing.T) {
	cause := errors.New("lost")
	sub := NewSubmission(nil)
	var got []error
	sub.OnComplete(func(err error) {
		assert.False(t, sub.Finished(), "callbacks run before Done closes")
		got = append(got, err)
	})
	assert.Empty(t, got)

	sub.Complete(cause)
	sub.Complete(nil)
	require.Len(t, got, 1)
	assert.ErrorIs(t, got[0], cause)

	sub.OnComplete(func(err error) { got = append(got, err) })
	require.Len(t, got, 2)
	assert.ErrorIs(t, got[1], cause)
}

func TestCompleted(t *testing.T) {
	assert.True(t, Completed(nil).Finished())
}

func TestWordCodec(t *testing.T) {
	raw := EncodeWords([]uint32{1, 0x01020304})
	assert.Equal(t, []byte{1, 0, 0, 0, 4, 3, 2, 1}, raw)
	assert.Equal(t, []uint32{1, 0x01020304}, DecodeWords(append(raw, 9)))
}

func TestResourceErrorUnwraps(t *testing.T) {
	cause := errors.New("out of memory")
	err := NewResourceError("buffer", "cells", cause)
	assert.ErrorIs(t, err, ErrResourceCreation)
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), `"cells"`)
}
