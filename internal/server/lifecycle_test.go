package server

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// blockingService starts successfully and blocks until stopped.
type blockingService struct {
	name string
	log  *[]string
	mu   *sync.Mutex

	stopCh   chan struct{}
	stopOnce sync.Once
}

func newBlockingService(name string, log *[]string, mu *sync.Mutex) *blockingService {
	return &blockingService{name: name, log: log, mu: mu, stopCh: make(chan struct{})}
}

func (s *blockingService) Start() error {
	<-s.stopCh
	return nil
}

func (s *blockingService) Stop() {
	s.stopOnce.Do(func() {
		s.mu.Lock()
		*s.log = append(*s.log, s.name)
		s.mu.Unlock()
		close(s.stopCh)
	})
}

func TestLifecycle_StopsInReverseOrderOnCancel(t *testing.T) {
	var (
		mu  sync.Mutex
		log []string
	)
	lc := NewLifecycle(zap.NewNop())
	lc.Add("first", newBlockingService("first", &log, &mu))
	lc.Add("second", newBlockingService("second", &log, &mu))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- lc.Run(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after context cancellation")
	}

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"second", "first"}, log)
}

func TestLifecycle_ReturnsFirstServiceFailure(t *testing.T) {
	var (
		mu  sync.Mutex
		log []string
	)
	boom := errors.New("listener exploded")

	lc := NewLifecycle(zap.NewNop())
	lc.Add("healthy", newBlockingService("healthy", &log, &mu))
	lc.Add("broken", &FuncService{
		StartFn: func() error { return boom },
		StopFn:  func() {},
	})

	err := lc.Run(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "broken")

	mu.Lock()
	defer mu.Unlock()
	assert.Contains(t, log, "healthy", "surviving services are stopped after a failure")
}
