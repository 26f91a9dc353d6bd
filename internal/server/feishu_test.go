package server

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DevRickLin/tpp-chat-filter/internal/biz/domain"
	"github.com/DevRickLin/tpp-chat-filter/internal/biz/usecase"
	"github.com/DevRickLin/tpp-chat-filter/internal/infra/feishu"
	"github.com/DevRickLin/tpp-chat-filter/internal/service"
)

type fakeTransport struct {
	mu          sync.Mutex
	names       map[string]string
	memberCalls int
	started     chan struct{}
	stopped     chan struct{}
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{
		names:   map[string]string{},
		started: make(chan struct{}),
		stopped: make(chan struct{}),
	}
}

func (f *fakeTransport) OnMessage(handler feishu.MessageHandler) {}

func (f *fakeTransport) Start() error {
	close(f.started)
	<-f.stopped
	return nil
}

func (f *fakeTransport) Stop() {
	select {
	case <-f.stopped:
	default:
		close(f.stopped)
	}
}

func (f *fakeTransport) SenderName(openID string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.names[openID]
}

func (f *fakeTransport) GetChatMembers(ctx context.Context, chatID string) ([]*feishu.ChatMember, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.memberCalls++
	f.names["ou_red"] = "Red"
	return []*feishu.ChatMember{{MemberID: "ou_red", Name: "Red"}}, nil
}

type recordingRepo struct {
	mu   sync.Mutex
	sent []string
}

func (r *recordingRepo) GetChatHistory(ctx context.Context, chatID string, limit int) ([]domain.Message, error) {
	return nil, nil
}

func (r *recordingRepo) SendText(ctx context.Context, chatID, text string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, chatID+"|"+text)
	return nil
}

func (r *recordingRepo) Sent() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.sent...)
}

func newTestServer(t *testing.T, target string) (*FeishuServer, *fakeTransport, *recordingRepo, *service.ChatService) {
	t.Helper()
	engine, err := usecase.NewEngine(nil, usecase.DefaultRulesConfig(),
		usecase.WithSlowmodeConfig(usecase.SlowmodeConfig{Grace: 0}))
	require.NoError(t, err)
	buffer := usecase.NewBufferUsecase(engine, usecase.DefaultBufferConfig())
	repo := &recordingRepo{}
	chat := service.NewChatService(engine, buffer, repo)

	transport := newFakeTransport()
	s, err := NewFeishuServer(transport, chat, RelayConfig{
		SourceChatID: "oc_source",
		TargetChatID: target,
		Rate:         1000,
		Burst:        10,
	})
	require.NoError(t, err)
	return s, transport, repo, chat
}

func incoming(id, chatID, text string) *feishu.Message {
	return &feishu.Message{
		ChatID:  chatID,
		MsgID:   id,
		MsgType: "text",
		Content: text,
		Sender:  &feishu.Sender{SenderID: "ou_red", SenderType: "user"},
	}
}

func TestFeishuServer_FiltersAndDedups(t *testing.T) {
	s, transport, _, chat := newTestServer(t, "")

	s.HandleMessage(incoming("om_1", "oc_source", "gg well played team"))
	s.HandleMessage(incoming("om_1", "oc_source", "gg well played team"))
	s.HandleMessage(incoming("om_2", "oc_other", "from another chat"))
	s.HandleMessage(incoming("om_3", "oc_source", "DEMOCRACY"))

	lines := chat.Buffer().List(0)
	require.Len(t, lines, 2)
	assert.Equal(t, "Red", lines[0].Sender)
	assert.True(t, lines[0].Decision.Visible)
	assert.False(t, lines[1].Decision.Visible)
	assert.Equal(t, 1, transport.memberCalls, "member list loaded once per chat")
}

func TestFeishuServer_RelaysVisibleLines(t *testing.T) {
	s, transport, repo, _ := newTestServer(t, "oc_target")

	done := make(chan error, 1)
	go func() { done <- s.Start(context.Background()) }()
	<-transport.started

	s.HandleMessage(incoming("om_1", "oc_source", "DEMOCRACY"))
	s.HandleMessage(incoming("om_2", "oc_source", "HEYY HEYY HEYY HEYY check it out"))

	require.Eventually(t, func() bool { return len(repo.Sent()) == 1 }, time.Second, 10*time.Millisecond)
	assert.Equal(t, "oc_target|Red: heyy check it out", repo.Sent()[0])

	s.Stop()
	require.NoError(t, <-done)
}

func TestFeishuServer_AdminNoticesAreNotRelayed(t *testing.T) {
	s, _, _, chat := newTestServer(t, "oc_target")

	msg := incoming("om_1", "oc_source", "This room is now in slow mode. You may send messages every 5 seconds.")
	msg.MsgType = "system"
	s.HandleMessage(msg)

	assert.Equal(t, 5*time.Second, chat.Engine().SlowmodeState().RateLimit)
	assert.Empty(t, s.queue)
}
