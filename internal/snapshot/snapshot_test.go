package snapshot_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"labelerdir/internal/labelers"
	"labelerdir/internal/snapshot"
)

type runnerFunc func(ctx context.Context) (*labelers.ResultSet, error)

func (f runnerFunc) Run(ctx context.Context) (*labelers.ResultSet, error) { return f(ctx) }

func resultOf(dids ...string) *labelers.ResultSet {
	rs := &labelers.ResultSet{GeneratedAt: time.Now()}
	for _, did := range dids {
		rs.Labelers = append(rs.Labelers, labelers.EnrichedProfile{DID: did})
	}
	return rs
}

func TestRefresh_PublishesResult(t *testing.T) {
	s := snapshot.New(runnerFunc(func(context.Context) (*labelers.ResultSet, error) {
		return resultOf("did:a", "did:b"), nil
	}), time.Hour, nil)

	assert.Nil(t, s.Current())
	require.NoError(t, s.Refresh(context.Background()))

	require.NotNil(t, s.Current())
	assert.Len(t, s.Current().Labelers, 2)

	st := s.Status()
	assert.Equal(t, 2, st.Count)
	assert.Empty(t, st.LastError)
	assert.False(t, st.Busy)
}

func TestRefresh_FailureKeepsPreviousResult(t *testing.T) {
	var fail atomic.Bool
	s := snapshot.New(runnerFunc(func(context.Context) (*labelers.ResultSet, error) {
		if fail.Load() {
			return nil, errors.New("upstream down")
		}
		return resultOf("did:a"), nil
	}), time.Hour, nil)

	require.NoError(t, s.Refresh(context.Background()))
	first := s.Current()

	fail.Store(true)
	assert.Error(t, s.Refresh(context.Background()))

	assert.Same(t, first, s.Current())
	assert.Equal(t, "upstream down", s.Status().LastError)
}

func TestRefresh_Busy(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	s := snapshot.New(runnerFunc(func(context.Context) (*labelers.ResultSet, error) {
		close(started)
		<-release
		return resultOf(), nil
	}), time.Hour, nil)

	done := make(chan error, 1)
	go func() { done <- s.Refresh(context.Background()) }()

	<-started
	assert.True(t, s.Status().Busy)
	assert.ErrorIs(t, s.Refresh(context.Background()), snapshot.ErrBusy)

	close(release)
	require.NoError(t, <-done)
}

func TestStart_RunsImmediatelyAndOnInterval(t *testing.T) {
	var runs atomic.Int32
	s := snapshot.New(runnerFunc(func(context.Context) (*labelers.ResultSet, error) {
		runs.Add(1)
		return resultOf(), nil
	}), 10*time.Millisecond, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Start(ctx) }()

	require.Eventually(t, func() bool { return runs.Load() >= 3 }, 2*time.Second, 5*time.Millisecond)
	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
	assert.False(t, s.Status().NextAttempt.IsZero())
}
