package systems

import (
	"errors"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJobSystemRunsCallbacks(t *testing.T) {
	js, err := NewJobSystem(2, 8)
	require.NoError(t, err)

	var completed, failed atomic.Int32
	boom := errors.New("boom")
	for i := range 10 {
		require.NoError(t, js.Submit(JobTask{
			Name: "job",
			Run: func() error {
				if i%2 == 0 {
					return boom
				}
				return nil
			},
			OnComplete: func() { completed.Add(1) },
			OnFailure: func(err error) {
				assert.ErrorIs(t, err, boom)
				failed.Add(1)
			},
		}))
	}
	require.NoError(t, js.Shutdown())

	assert.Equal(t, int32(5), completed.Load())
	assert.Equal(t, int32(5), failed.Load())
}

func TestJobSystemRejectsAfterShutdown(t *testing.T) {
	js, err := NewJobSystem(1, 0)
	require.NoError(t, err)
	require.NoError(t, js.Shutdown())
	require.NoError(t, js.Shutdown())

	assert.ErrorIs(t, js.Submit(JobTask{Run: func() error { return nil }}), ErrJobSystemClosed)
}

func TestNewJobSystemValidation(t *testing.T) {
	_, err := NewJobSystem(0, 1)
	assert.ErrorIs(t, err, ErrNoWorkers)
	_, err = NewJobSystem(1, -1)
	assert.ErrorIs(t, err, ErrNegativeChannelSize)
}
