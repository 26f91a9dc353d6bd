package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/DevRickLin/tpp-chat-filter/internal/biz/domain"
	"github.com/DevRickLin/tpp-chat-filter/internal/biz/repo"
	"github.com/DevRickLin/tpp-chat-filter/internal/biz/usecase"
)

// ErrSendBlocked is returned when slowmode forbids sending the draft
var ErrSendBlocked = errors.New("send blocked by slowmode")

// EventType identifies what an Event carries
type EventType string

const (
	EventLine     EventType = "line"     // a new line was displayed
	EventUpdate   EventType = "update"   // a buffered line changed after a rescan
	EventSlowmode EventType = "slowmode" // the send status changed
	EventSetting  EventType = "setting"  // a setting changed
)

// Event is published to subscribers such as the websocket stream
type Event struct {
	Type     EventType              `json:"type"`
	Line     *domain.BufferedLine   `json:"line,omitempty"`
	Slowmode *domain.SlowmodeStatus `json:"slowmode,omitempty"`
	Setting  string                 `json:"setting,omitempty"`
	Value    *domain.Value          `json:"value,omitempty"`
}

// ChatService wires incoming lines, outgoing sends and setting changes together
type ChatService struct {
	engine      *usecase.Engine
	buffer      *usecase.BufferUsecase
	messageRepo repo.MessageRepo

	subsMu sync.RWMutex
	subs   map[int]chan Event
	nextID int
}

// NewChatService creates a chat service. messageRepo may be nil when the host sends itself.
func NewChatService(engine *usecase.Engine, buffer *usecase.BufferUsecase, messageRepo repo.MessageRepo) *ChatService {
	s := &ChatService{
		engine:      engine,
		buffer:      buffer,
		messageRepo: messageRepo,
		subs:        make(map[int]chan Event),
	}
	engine.OnAnySettingChanged(func(name string, newValue, _ domain.Value) {
		buffer.MarkDirty()
		v := newValue
		s.Publish(Event{Type: EventSetting, Setting: name, Value: &v})
	})
	return s
}

// Engine returns the underlying engine
func (s *ChatService) Engine() *usecase.Engine {
	return s.engine
}

// Buffer returns the line buffer
func (s *ChatService) Buffer() *usecase.BufferUsecase {
	return s.buffer
}

// HandleIncoming evaluates a received line, buffers it and publishes the decision
func (s *ChatService) HandleIncoming(msg *domain.Message) domain.BufferedLine {
	decision := s.engine.OnIncomingMessage(msg.Content, msg.SenderName, msg.IsAdmin)
	line := s.buffer.Add(msg, decision)

	if !decision.Visible {
		fmt.Printf("[Chat] Hidden line from %s (%s): %s\n",
			msg.SenderName, strings.Join(decision.MatchedFilters, ","), truncate(msg.Content, 50))
	}
	s.Publish(Event{Type: EventLine, Line: &line})

	if msg.IsAdmin {
		st := s.engine.SlowmodeStatus("")
		s.Publish(Event{Type: EventSlowmode, Slowmode: &st})
	}
	return line
}

// Backfill loads recent history from the transport into the buffer.
// Admin notices and our own relayed lines are skipped.
func (s *ChatService) Backfill(ctx context.Context, chatID string, limit int) (int, error) {
	if s.messageRepo == nil {
		return 0, fmt.Errorf("no message transport configured")
	}
	msgs, err := s.messageRepo.GetChatHistory(ctx, chatID, limit)
	if err != nil {
		return 0, fmt.Errorf("failed to load chat history: %w", err)
	}

	n := 0
	for i := range msgs {
		msg := &msgs[i]
		if msg.IsAdmin || msg.IsBot {
			continue
		}
		line := s.buffer.Add(msg, s.engine.Process(msg.Content, msg.SenderName))
		s.Publish(Event{Type: EventLine, Line: &line})
		n++
	}
	return n, nil
}

// RecordSend notes a message the host sent on its own
func (s *ChatService) RecordSend(text string) domain.SlowmodeStatus {
	s.engine.SendAttempted(text)
	st := s.engine.SlowmodeStatus("")
	s.Publish(Event{Type: EventSlowmode, Slowmode: &st})
	return st
}

// Send checks slowmode, then sends text through the message repository
func (s *ChatService) Send(ctx context.Context, chatID, text string) (domain.SlowmodeStatus, error) {
	if strings.TrimSpace(text) == "" {
		return domain.SlowmodeStatus{}, fmt.Errorf("empty message")
	}
	st := s.engine.SlowmodeStatus(text)
	if st.Blocked {
		return st, fmt.Errorf("%w: %s, wait %ds", ErrSendBlocked, st.Reason, st.WaitSeconds())
	}
	if s.messageRepo == nil {
		return st, fmt.Errorf("no message transport configured")
	}
	if err := s.messageRepo.SendText(ctx, chatID, text); err != nil {
		return st, fmt.Errorf("failed to send message: %w", err)
	}
	return s.RecordSend(text), nil
}

// Subscribe registers an event listener; call the returned func to unsubscribe
func (s *ChatService) Subscribe(buffer int) (<-chan Event, func()) {
	ch := make(chan Event, buffer)

	s.subsMu.Lock()
	id := s.nextID
	s.nextID++
	s.subs[id] = ch
	s.subsMu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.subsMu.Lock()
			delete(s.subs, id)
			s.subsMu.Unlock()
			close(ch)
		})
	}
}

// Publish fans an event out; slow subscribers drop events
func (s *ChatService) Publish(ev Event) {
	s.subsMu.RLock()
	defer s.subsMu.RUnlock()
	for id, ch := range s.subs {
		select {
		case ch <- ev:
		default:
			fmt.Printf("[Chat] Subscriber %d is slow, dropped %s event\n", id, ev.Type)
		}
	}
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
