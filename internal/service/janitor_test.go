package service

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeCleaner struct {
	calls atomic.Int32
	err   error
}

func (f *fakeCleaner) CleanupOrphans(context.Context) (int64, error) {
	f.calls.Add(1)
	return 3, f.err
}

func TestNewJanitor_InvalidSchedule(t *testing.T) {
	_, err := NewJanitor("every day", &fakeCleaner{}, discardLogger())
	assert.Error(t, err)
}

func TestJanitor_RunsOnSchedule(t *testing.T) {
	cleaner := &fakeCleaner{}
	j, err := NewJanitor("@every 1s", cleaner, discardLogger())
	require.NoError(t, err)

	j.Start()
	assert.Eventually(t, func() bool { return cleaner.calls.Load() > 0 }, 3*time.Second, 50*time.Millisecond)
	j.Stop()
}

func TestJanitor_ErrorIsLogged(t *testing.T) {
	cleaner := &fakeCleaner{err: errors.New("db down")}
	j, err := NewJanitor("@daily", cleaner, discardLogger())
	require.NoError(t, err)

	j.runTagCleanup()
	assert.Equal(t, int32(1), cleaner.calls.Load())
}
