package data

import (
	"context"
	"strconv"
	"time"

	"github.com/DevRickLin/tpp-chat-filter/internal/biz/domain"
	"github.com/DevRickLin/tpp-chat-filter/internal/biz/repo"
	"github.com/DevRickLin/tpp-chat-filter/internal/infra/feishu"
)

// feishuRepo implements the Feishu message repository
type feishuRepo struct {
	client *feishu.Client
}

// NewFeishuRepo creates a new Feishu repository
func NewFeishuRepo(client *feishu.Client) repo.MessageRepo {
	return &feishuRepo{client: client}
}

// GetChatHistory gets chat history, resolving sender names through the member list
func (r *feishuRepo) GetChatHistory(ctx context.Context, chatID string, limit int) ([]domain.Message, error) {
	msgs, err := r.client.GetChatHistory(ctx, chatID, limit)
	if err != nil {
		return nil, err
	}

	members, _ := r.client.GetChatMembers(ctx, chatID)
	memberMap := make(map[string]string, len(members))
	for _, m := range members {
		memberMap[m.MemberID] = m.Name
	}

	result := make([]domain.Message, 0, len(msgs))
	for _, m := range msgs {
		msg := domain.Message{
			ID:         m.MsgID,
			ChatID:     chatID,
			Content:    m.Content,
			CreateTime: parseMillis(m.CreateTime),
			IsAdmin:    m.MsgType == "system",
		}
		if m.Sender != nil {
			msg.SenderID = m.Sender.SenderID
			msg.SenderName = memberMap[m.Sender.SenderID]
			msg.IsBot = m.Sender.SenderType == "app"
		}
		result = append(result, msg)
	}
	return result, nil
}

// SendText sends a text message
func (r *feishuRepo) SendText(ctx context.Context, chatID, text string) error {
	return r.client.SendText(ctx, chatID, text)
}

// ToDomainMessage converts a received Feishu message
func ToDomainMessage(m *feishu.Message, senderName string) *domain.Message {
	msg := &domain.Message{
		ID:         m.MsgID,
		ChatID:     m.ChatID,
		Content:    m.Content,
		SenderName: senderName,
		CreateTime: time.UnixMilli(m.CreateTime),
		IsAdmin:    m.IsSystem(),
	}
	if m.CreateTime == 0 {
		msg.CreateTime = time.Now()
	}
	if m.Sender != nil {
		msg.SenderID = m.Sender.SenderID
		if msg.SenderName == "" {
			msg.SenderName = m.Sender.SenderID
		}
	}
	return msg
}

// parseMillis parses Feishu's millisecond timestamp strings
func parseMillis(s string) time.Time {
	if ms, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.UnixMilli(ms)
	}
	return time.Now()
}
