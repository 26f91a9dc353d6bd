package usecase

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/DevRickLin/tpp-chat-filter/internal/biz/domain"
)

// BufferConfig contains buffer configuration
type BufferConfig struct {
	Capacity int           // Lines kept for re-evaluation, default 200
	MaxAge   time.Duration // Lines older than this are dropped on cleanup
}

// DefaultBufferConfig returns default buffer configuration
func DefaultBufferConfig() BufferConfig {
	return BufferConfig{
		Capacity: 200,
		MaxAge:   30 * time.Minute,
	}
}

// Evaluator computes the decision for a chat line
type Evaluator interface {
	Process(text, sender string) domain.Decision
}

// BufferUsecase keeps recently displayed lines so setting changes apply retroactively
type BufferUsecase struct {
	evaluator Evaluator
	config    BufferConfig
	now       func() time.Time

	mu    sync.Mutex
	lines []*domain.BufferedLine // oldest first
	dirty bool
}

// NewBufferUsecase creates a new buffer usecase
func NewBufferUsecase(evaluator Evaluator, config BufferConfig) *BufferUsecase {
	if config.Capacity <= 0 {
		config.Capacity = DefaultBufferConfig().Capacity
	}
	return &BufferUsecase{
		evaluator: evaluator,
		config:    config,
		now:       time.Now,
	}
}

// Add stores a line with the decision it was displayed with
func (uc *BufferUsecase) Add(msg *domain.Message, decision domain.Decision) domain.BufferedLine {
	id := msg.ID
	if id == "" {
		id = uuid.NewString()
	}
	received := msg.CreateTime
	if received.IsZero() {
		received = uc.now()
	}
	line := &domain.BufferedLine{
		ID:         id,
		ChatID:     msg.ChatID,
		Text:       msg.Content,
		Sender:     msg.SenderName,
		ReceivedAt: received,
		Decision:   decision,
	}

	uc.mu.Lock()
	defer uc.mu.Unlock()
	uc.lines = append(uc.lines, line)
	if over := len(uc.lines) - uc.config.Capacity; over > 0 {
		uc.lines = append([]*domain.BufferedLine(nil), uc.lines[over:]...)
	}
	return *line
}

// Get returns a buffered line by ID
func (uc *BufferUsecase) Get(id string) (domain.BufferedLine, bool) {
	uc.mu.Lock()
	defer uc.mu.Unlock()
	for _, l := range uc.lines {
		if l.ID == id {
			return *l, true
		}
	}
	return domain.BufferedLine{}, false
}

// List returns up to limit of the newest lines, oldest first. limit <= 0 returns all.
func (uc *BufferUsecase) List(limit int) []domain.BufferedLine {
	uc.mu.Lock()
	defer uc.mu.Unlock()
	start := 0
	if limit > 0 && len(uc.lines) > limit {
		start = len(uc.lines) - limit
	}
	out := make([]domain.BufferedLine, 0, len(uc.lines)-start)
	for _, l := range uc.lines[start:] {
		out = append(out, *l)
	}
	return out
}

// Len returns the number of buffered lines
func (uc *BufferUsecase) Len() int {
	uc.mu.Lock()
	defer uc.mu.Unlock()
	return len(uc.lines)
}

// MarkDirty schedules a rescan on the next tick
func (uc *BufferUsecase) MarkDirty() {
	uc.mu.Lock()
	uc.dirty = true
	uc.mu.Unlock()
}

// Dirty reports whether a rescan is pending
func (uc *BufferUsecase) Dirty() bool {
	uc.mu.Lock()
	defer uc.mu.Unlock()
	return uc.dirty
}

// Rescan re-evaluates every chat line if dirty and returns the ones whose decision changed.
// Admin notices keep their original decision.
func (uc *BufferUsecase) Rescan() []domain.BufferedLine {
	uc.mu.Lock()
	defer uc.mu.Unlock()
	if !uc.dirty {
		return nil
	}
	uc.dirty = false

	var changed []domain.BufferedLine
	for _, l := range uc.lines {
		if l.Decision.Admin {
			continue
		}
		d := uc.evaluator.Process(l.Text, l.Sender)
		if d.Equal(l.Decision) {
			continue
		}
		l.Decision = d
		changed = append(changed, *l)
	}
	return changed
}

// Cleanup drops lines older than MaxAge and returns how many were removed
func (uc *BufferUsecase) Cleanup() int {
	if uc.config.MaxAge <= 0 {
		return 0
	}
	before := uc.now().Add(-uc.config.MaxAge)

	uc.mu.Lock()
	defer uc.mu.Unlock()
	keep := uc.lines[:0]
	for _, l := range uc.lines {
		if l.ReceivedAt.After(before) {
			keep = append(keep, l)
		}
	}
	removed := len(uc.lines) - len(keep)
	for i := len(keep); i < len(uc.lines); i++ {
		uc.lines[i] = nil
	}
	uc.lines = keep
	return removed
}
