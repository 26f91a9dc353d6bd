package repo

import (
	"context"

	"github.com/DevRickLin/tpp-chat-filter/internal/biz/domain"
)

// MessageRepo is the chat transport used by host adapters
type MessageRepo interface {
	// GetChatHistory gets recent messages, oldest first
	GetChatHistory(ctx context.Context, chatID string, limit int) ([]domain.Message, error)

	// SendText sends a text message
	SendText(ctx context.Context, chatID, text string) error
}
