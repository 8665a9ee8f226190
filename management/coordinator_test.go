package management_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/jrsteele09/go-admin-console/management"
)

const (
	eventWait = 2 * time.Second
	eventTick = 5 * time.Millisecond
)

type fakeSink struct {
	mu       sync.Mutex
	loading  int
	failures []string
}

func (s *fakeSink) MarkLoading() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loading++
}

func (s *fakeSink) Fail(msg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures = append(s.failures, msg)
}

func (s *fakeSink) loadingCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loading
}

func (s *fakeSink) failed() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.failures...)
}

func TestRunMarksLoadingSynchronously(t *testing.T) {
	coord := management.NewCoordinator(tokenOK, zerolog.Nop())
	sink := &fakeSink{}
	release := make(chan struct{})

	coord.Run(context.Background(), "op", sink,
		func(ctx context.Context, token string) error {
			<-release
			return nil
		},
		nil,
	)

	require.Equal(t, 1, sink.loadingCalls())
	close(release)
}

func TestRunSuccessRunsFollowUp(t *testing.T) {
	coord := management.NewCoordinator(tokenOK, zerolog.Nop())
	sink := &fakeSink{}

	var mu sync.Mutex
	var gotToken string
	done := false

	coord.Run(context.Background(), "op", sink,
		func(ctx context.Context, token string) error {
			mu.Lock()
			defer mu.Unlock()
			gotToken = token
			return nil
		},
		func() {
			mu.Lock()
			defer mu.Unlock()
			done = true
		},
	)

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return done
	}, eventWait, eventTick)
	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, "tok", gotToken)
	require.Empty(t, sink.failed())
}

func TestRunMutationFailureLandsInSink(t *testing.T) {
	coord := management.NewCoordinator(tokenOK, zerolog.Nop())
	sink := &fakeSink{}

	coord.Run(context.Background(), "op", sink,
		func(ctx context.Context, token string) error {
			return errors.New("boom")
		},
		func() { t.Error("follow-up ran after failure") },
	)

	require.Eventually(t, func() bool {
		return len(sink.failed()) == 1
	}, eventWait, eventTick)
	require.Equal(t, []string{"boom"}, sink.failed())
}

func TestRunTokenFailureLandsInSink(t *testing.T) {
	tokens := func(ctx context.Context) (string, error) {
		return "", errors.New("session expired")
	}
	coord := management.NewCoordinator(tokens, zerolog.Nop())
	sink := &fakeSink{}

	coord.Run(context.Background(), "op", sink,
		func(ctx context.Context, token string) error {
			t.Error("mutation ran without a token")
			return nil
		},
		nil,
	)

	require.Eventually(t, func() bool {
		return len(sink.failed()) == 1
	}, eventWait, eventTick)
	require.Equal(t, []string{"session expired"}, sink.failed())
}

// A slow failing mutation must not clobber the outcome of a newer
// mutation of the same kind.
func TestRunSupersededFailureDiscarded(t *testing.T) {
	coord := management.NewCoordinator(tokenOK, zerolog.Nop())
	sink := &fakeSink{}
	release := make(chan struct{})

	coord.Run(context.Background(), "op", sink,
		func(ctx context.Context, token string) error {
			<-release
			return errors.New("stale failure")
		},
		nil,
	)

	var mu sync.Mutex
	done := false
	coord.Run(context.Background(), "op", sink,
		func(ctx context.Context, token string) error { return nil },
		func() {
			mu.Lock()
			defer mu.Unlock()
			done = true
		},
	)

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return done
	}, eventWait, eventTick)

	close(release)
	require.Never(t, func() bool {
		return len(sink.failed()) > 0
	}, 100*time.Millisecond, eventTick)
}

// Different kinds do not supersede each other.
func TestRunIndependentKinds(t *testing.T) {
	coord := management.NewCoordinator(tokenOK, zerolog.Nop())
	sink := &fakeSink{}
	release := make(chan struct{})

	coord.Run(context.Background(), "slow", sink,
		func(ctx context.Context, token string) error {
			<-release
			return errors.New("slow failed")
		},
		nil,
	)
	coord.Run(context.Background(), "fast", sink,
		func(ctx context.Context, token string) error { return nil },
		nil,
	)

	close(release)
	require.Eventually(t, func() bool {
		return len(sink.failed()) == 1
	}, eventWait, eventTick)
	require.Equal(t, []string{"slow failed"}, sink.failed())
}
