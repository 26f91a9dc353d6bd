package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/DevRickLin/tpp-chat-filter/internal/biz/domain"
)

// DefaultRefreshInterval matches the UI refresh cadence
const DefaultRefreshInterval = 250 * time.Millisecond

// RefreshScheduler rescans the line buffer and publishes slowmode countdowns
type RefreshScheduler struct {
	chat            *ChatService
	interval        time.Duration
	cleanupInterval time.Duration

	mu   sync.Mutex
	last domain.SlowmodeStatus

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewRefreshScheduler creates a new refresh scheduler
func NewRefreshScheduler(chat *ChatService, interval time.Duration) *RefreshScheduler {
	if interval <= 0 {
		interval = DefaultRefreshInterval
	}
	return &RefreshScheduler{
		chat:            chat,
		interval:        interval,
		cleanupInterval: time.Minute,
	}
}

// Start starts the scheduler
func (s *RefreshScheduler) Start(ctx context.Context) {
	s.ctx, s.cancel = context.WithCancel(ctx)

	s.wg.Add(2)
	go s.refreshLoop()
	go s.cleanupLoop()

	fmt.Printf("[Scheduler] Started with interval %v\n", s.interval)
}

// Stop stops the scheduler
func (s *RefreshScheduler) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
	fmt.Println("[Scheduler] Stopped")
}

func (s *RefreshScheduler) refreshLoop() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			s.Tick()
		}
	}
}

func (s *RefreshScheduler) cleanupLoop() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			if n := s.chat.Buffer().Cleanup(); n > 0 {
				fmt.Printf("[Scheduler] Dropped %d expired lines\n", n)
			}
		}
	}
}

// Tick runs one refresh: rescan dirty lines, then publish the countdown if the shown value moved
func (s *RefreshScheduler) Tick() {
	changed := s.chat.Buffer().Rescan()
	for i := range changed {
		line := changed[i]
		s.chat.Publish(Event{Type: EventUpdate, Line: &line})
	}
	if len(changed) > 0 {
		fmt.Printf("[Scheduler] Re-evaluated %d lines\n", len(changed))
	}

	st := s.chat.Engine().SlowmodeStatus("")
	s.mu.Lock()
	moved := st.Blocked != s.last.Blocked || st.Reason != s.last.Reason || st.WaitSeconds() != s.last.WaitSeconds()
	s.last = st
	s.mu.Unlock()
	if moved {
		s.chat.Publish(Event{Type: EventSlowmode, Slowmode: &st})
	}
}
