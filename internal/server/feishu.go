package server

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/time/rate"

	"github.com/DevRickLin/tpp-chat-filter/internal/data"
	"github.com/DevRickLin/tpp-chat-filter/internal/infra/feishu"
	"github.com/DevRickLin/tpp-chat-filter/internal/service"
)

// SeenCacheSize bounds the redelivery dedup cache
const SeenCacheSize = 1024

// Transport is the part of the Feishu client the relay needs
type Transport interface {
	OnMessage(handler feishu.MessageHandler)
	Start() error
	Stop()
	SenderName(openID string) string
	GetChatMembers(ctx context.Context, chatID string) ([]*feishu.ChatMember, error)
}

// RelayConfig routes a source group into a target chat
type RelayConfig struct {
	SourceChatID string
	TargetChatID string  // empty disables relaying; lines are still filtered and buffered
	Rate         float64 // sends per second
	Burst        int
	QueueSize    int
}

// FeishuServer feeds a Feishu group through the filter engine and relays visible lines
type FeishuServer struct {
	transport Transport
	chat      *service.ChatService
	config    RelayConfig

	seen    *lru.Cache[string, struct{}]
	limiter *rate.Limiter
	queue   chan string

	membersMu     sync.Mutex
	membersLoaded map[string]bool

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewFeishuServer creates a new Feishu server
func NewFeishuServer(transport Transport, chat *service.ChatService, config RelayConfig) (*FeishuServer, error) {
	seen, err := lru.New[string, struct{}](SeenCacheSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create dedup cache: %w", err)
	}
	if config.Rate <= 0 {
		config.Rate = 1
	}
	if config.Burst <= 0 {
		config.Burst = 1
	}
	if config.QueueSize <= 0 {
		config.QueueSize = 100
	}

	return &FeishuServer{
		transport:     transport,
		chat:          chat,
		config:        config,
		seen:          seen,
		limiter:       rate.NewLimiter(rate.Limit(config.Rate), config.Burst),
		queue:         make(chan string, config.QueueSize),
		membersLoaded: make(map[string]bool),
	}, nil
}

// Start starts the relay worker and blocks on the Feishu connection
func (s *FeishuServer) Start(ctx context.Context) error {
	s.ctx, s.cancel = context.WithCancel(ctx)

	if s.config.TargetChatID != "" {
		s.wg.Add(1)
		go s.relayLoop()
	}

	s.transport.OnMessage(s.HandleMessage)
	fmt.Printf("[Relay] Filtering %s -> %s\n", s.config.SourceChatID, s.config.TargetChatID)
	return s.transport.Start()
}

// Stop stops the server
func (s *FeishuServer) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	s.transport.Stop()
	s.wg.Wait()
}

// HandleMessage filters one Feishu message and queues it for relay when visible
func (s *FeishuServer) HandleMessage(msg *feishu.Message) {
	if s.config.SourceChatID != "" && msg.ChatID != s.config.SourceChatID {
		return
	}
	// Feishu redelivers events it did not see ACKed in time
	if ok, _ := s.seen.ContainsOrAdd(msg.MsgID, struct{}{}); ok {
		fmt.Printf("[Relay] Duplicate message ignored: %s\n", msg.MsgID)
		return
	}

	senderName := ""
	if msg.Sender != nil {
		senderName = s.resolveName(msg.ChatID, msg.Sender.SenderID)
	}

	line := s.chat.HandleIncoming(data.ToDomainMessage(msg, senderName))
	if !line.Decision.Visible || line.Decision.Admin || s.config.TargetChatID == "" {
		return
	}

	text := fmt.Sprintf("%s: %s", line.Sender, line.Decision.Text)
	select {
	case s.queue <- text:
	default:
		fmt.Printf("[Relay] Queue full, dropped line %s\n", line.ID)
	}
}

// resolveName looks up a display name, loading the member list once per chat
func (s *FeishuServer) resolveName(chatID, openID string) string {
	if name := s.transport.SenderName(openID); name != "" {
		return name
	}

	s.membersMu.Lock()
	loaded := s.membersLoaded[chatID]
	s.membersLoaded[chatID] = true
	s.membersMu.Unlock()

	if !loaded {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if _, err := s.transport.GetChatMembers(ctx, chatID); err != nil {
			fmt.Printf("[Relay] Failed to load members of %s: %v\n", chatID, err)
		}
	}
	return s.transport.SenderName(openID)
}

func (s *FeishuServer) relayLoop() {
	defer s.wg.Done()
	for {
		select {
		case <-s.ctx.Done():
			return
		case text := <-s.queue:
			s.relay(text)
		}
	}
}

// relay sends one line, waiting out the rate limiter and any slowmode block
func (s *FeishuServer) relay(text string) {
	if err := s.limiter.Wait(s.ctx); err != nil {
		return
	}

	for attempt := 0; attempt < 2; attempt++ {
		st, err := s.chat.Send(s.ctx, s.config.TargetChatID, text)
		if err == nil {
			return
		}
		if !errors.Is(err, service.ErrSendBlocked) {
			fmt.Printf("[Relay] Failed to relay line: %v\n", err)
			return
		}
		wait := time.Duration(st.WaitMillis) * time.Millisecond
		select {
		case <-s.ctx.Done():
			return
		case <-time.After(wait):
		}
	}
	fmt.Printf("[Relay] Gave up on line after slowmode retries: %s\n", truncate(text, 50))
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
