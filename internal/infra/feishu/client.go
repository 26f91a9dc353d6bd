package feishu

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"sync"

	lark "github.com/larksuite/oapi-sdk-go/v3"
	larkcore "github.com/larksuite/oapi-sdk-go/v3/core"
	"github.com/larksuite/oapi-sdk-go/v3/event/dispatcher"
	larkim "github.com/larksuite/oapi-sdk-go/v3/service/im/v1"
	larkws "github.com/larksuite/oapi-sdk-go/v3/ws"
)

// Message is a chat line received from Feishu
type Message struct {
	ChatID     string
	MsgID      string
	MsgType    string // text, post, system
	Content    string // Plain text with mention placeholders resolved
	Sender     *Sender
	CreateTime int64 // Milliseconds since epoch
}

// IsSystem reports group notices posted by Feishu itself
func (m *Message) IsSystem() bool {
	return m.MsgType == "system"
}

// Sender represents the message sender
type Sender struct {
	SenderID   string // open_id
	SenderType string // user, app
}

// ChatMember represents a member in a chat
type ChatMember struct {
	MemberID string `json:"member_id"`
	Name     string `json:"name"`
}

// HistoryMessage represents a message from chat history
type HistoryMessage struct {
	MsgID      string `json:"message_id"`
	MsgType    string `json:"msg_type"`
	Content    string `json:"content"`
	CreateTime string `json:"create_time"`
	Sender     *Sender
}

// MessageHandler is the callback for received messages
type MessageHandler func(msg *Message)

// Client is the Feishu API client
type Client struct {
	appID     string
	appSecret string
	larkCli   *lark.Client
	wsCli     *larkws.Client
	onMessage MessageHandler
	ctx       context.Context
	cancel    context.CancelFunc

	namesMu sync.RWMutex
	names   map[string]string // open_id -> display name
}

// NewClient creates a new Feishu client. The REST client is usable before Start.
func NewClient(appID, appSecret string) *Client {
	return &Client{
		appID:     appID,
		appSecret: appSecret,
		larkCli:   lark.NewClient(appID, appSecret),
		names:     make(map[string]string),
	}
}

// OnMessage sets the message handler
func (c *Client) OnMessage(handler MessageHandler) {
	c.onMessage = handler
}

// Start connects to Feishu via WebSocket and blocks until Stop
func (c *Client) Start() error {
	c.ctx, c.cancel = context.WithCancel(context.Background())

	// Must return quickly so the SDK can ACK, otherwise Feishu redelivers
	eventHandler := dispatcher.NewEventDispatcher("", "").
		OnP2MessageReceiveV1(func(ctx context.Context, event *larkim.P2MessageReceiveV1) error {
			go c.handleMessage(event)
			return nil
		})

	c.wsCli = larkws.NewClient(c.appID, c.appSecret,
		larkws.WithEventHandler(eventHandler),
		larkws.WithLogLevel(larkcore.LogLevelInfo),
	)

	fmt.Println("[Feishu] Starting WebSocket connection...")
	return c.wsCli.Start(c.ctx)
}

// Stop disconnects from Feishu
func (c *Client) Stop() {
	if c.cancel != nil {
		c.cancel()
	}
}

func (c *Client) handleMessage(event *larkim.P2MessageReceiveV1) {
	msg := convertEvent(event)
	if msg == nil {
		return
	}
	fmt.Printf("[Feishu] Received %s in chat %s: %s\n", msg.MsgType, msg.ChatID, truncate(msg.Content, 50))
	if c.onMessage != nil {
		c.onMessage(msg)
	}
}

// convertEvent turns a receive event into a Message; bot echoes and unsupported types yield nil
func convertEvent(event *larkim.P2MessageReceiveV1) *Message {
	if event == nil || event.Event == nil || event.Event.Message == nil {
		return nil
	}
	raw := event.Event.Message
	if raw.ChatId == nil || raw.MessageId == nil || raw.MessageType == nil || raw.Content == nil {
		return nil
	}

	msg := &Message{
		ChatID:  *raw.ChatId,
		MsgID:   *raw.MessageId,
		MsgType: *raw.MessageType,
	}
	if raw.CreateTime != nil {
		if ts, err := strconv.ParseInt(*raw.CreateTime, 10, 64); err == nil {
			msg.CreateTime = ts
		}
	}

	if s := event.Event.Sender; s != nil {
		msg.Sender = &Sender{}
		if s.SenderId != nil && s.SenderId.OpenId != nil {
			msg.Sender.SenderID = *s.SenderId.OpenId
		}
		if s.SenderType != nil {
			msg.Sender.SenderType = *s.SenderType
		}
		// Our own relayed lines come back as app messages
		if msg.Sender.SenderType == "app" {
			return nil
		}
	}

	mentionMap := make(map[string]string)
	for _, m := range raw.Mentions {
		if m != nil && m.Key != nil && m.Name != nil {
			mentionMap[*m.Key] = *m.Name
		}
	}

	switch msg.MsgType {
	case "text":
		msg.Content = parseTextContent(*raw.Content, mentionMap)
	case "post":
		msg.Content = parsePostContent(*raw.Content, mentionMap)
	case "system":
		msg.Content = parseSystemContent(*raw.Content)
	default:
		fmt.Printf("[Feishu] Unsupported message type: %s\n", msg.MsgType)
		return nil
	}
	return msg
}

// parseTextContent extracts text from a text message and resolves @_user_N placeholders
func parseTextContent(content string, mentionMap map[string]string) string {
	var parsed struct {
		Text string `json:"text"`
	}
	if err := json.Unmarshal([]byte(content), &parsed); err != nil {
		return ""
	}
	return replaceMentions(parsed.Text, mentionMap)
}

// parsePostContent flattens a rich text message into lines of plain text
func parsePostContent(content string, mentionMap map[string]string) string {
	var parsed struct {
		Title   string `json:"title"`
		Content [][]struct {
			Tag    string `json:"tag"`
			Text   string `json:"text,omitempty"`
			Href   string `json:"href,omitempty"`
			UserID string `json:"user_id,omitempty"`
		} `json:"content"`
	}
	if err := json.Unmarshal([]byte(content), &parsed); err != nil {
		return ""
	}

	var lines []string
	if parsed.Title != "" {
		lines = append(lines, parsed.Title)
	}
	for _, line := range parsed.Content {
		var b strings.Builder
		for _, elem := range line {
			switch elem.Tag {
			case "text":
				b.WriteString(elem.Text)
			case "a":
				// Keep the target so the link filter can see it
				if elem.Href != "" {
					b.WriteString(elem.Href)
				} else {
					b.WriteString(elem.Text)
				}
			case "at":
				if name, ok := mentionMap[elem.UserID]; ok {
					b.WriteString("@" + name)
				} else if elem.UserID != "" {
					b.WriteString("@" + elem.UserID)
				}
			}
		}
		if b.Len() > 0 {
			lines = append(lines, b.String())
		}
	}
	return replaceMentions(strings.Join(lines, "\n"), mentionMap)
}

// parseSystemContent extracts the template text of a group notice
func parseSystemContent(content string) string {
	var parsed struct {
		Template string `json:"template"`
		Text     string `json:"text"`
	}
	if err := json.Unmarshal([]byte(content), &parsed); err != nil {
		return content
	}
	if parsed.Text != "" {
		return parsed.Text
	}
	if parsed.Template != "" {
		return parsed.Template
	}
	return content
}

// replaceMentions replaces mention placeholders (@_user_1, @_user_2, ...) with real names
func replaceMentions(text string, mentionMap map[string]string) string {
	for key, name := range mentionMap {
		text = strings.ReplaceAll(text, key, "@"+name)
	}
	return text
}

// SendText sends a text message to a chat
func (c *Client) SendText(ctx context.Context, chatID, text string) error {
	contentJSON, err := json.Marshal(map[string]string{"text": text})
	if err != nil {
		return fmt.Errorf("failed to encode message: %w", err)
	}

	req := larkim.NewCreateMessageReqBuilder().
		ReceiveIdType(larkim.ReceiveIdTypeChatId).
		Body(larkim.NewCreateMessageReqBodyBuilder().
			ReceiveId(chatID).
			MsgType(larkim.MsgTypeText).
			Content(string(contentJSON)).
			Build()).
		Build()

	resp, err := c.larkCli.Im.Message.Create(ctx, req)
	if err != nil {
		return fmt.Errorf("send message failed: %w", err)
	}
	if !resp.Success() {
		return fmt.Errorf("send message error: %s", resp.Msg)
	}
	return nil
}

// GetChatHistory retrieves recent messages, oldest first. pageSize is capped at 50.
func (c *Client) GetChatHistory(ctx context.Context, chatID string, pageSize int) ([]*HistoryMessage, error) {
	if pageSize > 50 {
		pageSize = 50
	}
	if pageSize <= 0 {
		pageSize = 20
	}

	// Descending so a page holds the newest messages
	req := larkim.NewListMessageReqBuilder().
		ContainerIdType("chat").
		ContainerId(chatID).
		SortType("ByCreateTimeDesc").
		PageSize(pageSize).
		Build()

	resp, err := c.larkCli.Im.Message.List(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("get chat history failed: %w", err)
	}
	if !resp.Success() {
		return nil, fmt.Errorf("get chat history error: %s", resp.Msg)
	}

	var messages []*HistoryMessage
	for _, item := range resp.Data.Items {
		if item.MessageId == nil || item.MsgType == nil {
			continue
		}
		msg := &HistoryMessage{
			MsgID:   *item.MessageId,
			MsgType: *item.MsgType,
		}
		if item.CreateTime != nil {
			msg.CreateTime = *item.CreateTime
		}

		mentionMap := make(map[string]string)
		for _, m := range item.Mentions {
			if m != nil && m.Key != nil && m.Name != nil {
				mentionMap[*m.Key] = *m.Name
			}
		}
		if item.Body != nil && item.Body.Content != nil {
			raw := *item.Body.Content
			switch msg.MsgType {
			case "text":
				msg.Content = parseTextContent(raw, mentionMap)
			case "post":
				msg.Content = parsePostContent(raw, mentionMap)
			case "system":
				msg.Content = parseSystemContent(raw)
			default:
				msg.Content = raw
			}
		}

		if item.Sender != nil {
			msg.Sender = &Sender{}
			if item.Sender.Id != nil {
				msg.Sender.SenderID = *item.Sender.Id
			}
			if item.Sender.SenderType != nil {
				msg.Sender.SenderType = *item.Sender.SenderType
			}
		}
		messages = append(messages, msg)
	}

	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}

	fmt.Printf("[Feishu] Retrieved %d messages from chat %s\n", len(messages), chatID)
	return messages, nil
}

// GetChatMembers retrieves every member of a group, following pagination
func (c *Client) GetChatMembers(ctx context.Context, chatID string) ([]*ChatMember, error) {
	var members []*ChatMember
	var pageToken string

	for {
		reqBuilder := larkim.NewGetChatMembersReqBuilder().
			MemberIdType("open_id").
			ChatId(chatID).
			PageSize(100)
		if pageToken != "" {
			reqBuilder = reqBuilder.PageToken(pageToken)
		}

		resp, err := c.larkCli.Im.ChatMembers.Get(ctx, reqBuilder.Build())
		if err != nil {
			return nil, fmt.Errorf("get chat members failed: %w", err)
		}
		if !resp.Success() {
			return nil, fmt.Errorf("get chat members error: %s", resp.Msg)
		}

		for _, item := range resp.Data.Items {
			member := &ChatMember{}
			if item.MemberId != nil {
				member.MemberID = *item.MemberId
			}
			if item.Name != nil {
				member.Name = *item.Name
			}
			members = append(members, member)
		}

		if resp.Data.PageToken == nil || *resp.Data.PageToken == "" {
			break
		}
		pageToken = *resp.Data.PageToken
	}

	c.namesMu.Lock()
	for _, m := range members {
		c.names[m.MemberID] = m.Name
	}
	c.namesMu.Unlock()

	fmt.Printf("[Feishu] Retrieved %d members from chat %s\n", len(members), chatID)
	return members, nil
}

// SenderName returns the cached display name of an open_id, empty when unknown
func (c *Client) SenderName(openID string) string {
	c.namesMu.RLock()
	defer c.namesMu.RUnlock()
	return c.names[openID]
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
