package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/DevRickLin/tpp-chat-filter/internal/biz/domain"
	"github.com/DevRickLin/tpp-chat-filter/internal/service"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Local API, the host page may be served from anywhere
	},
}

// Server exposes the filter engine over HTTP
type Server struct {
	chat   *service.ChatService
	server *http.Server
	port   int
}

// NewServer creates a new API server
func NewServer(chat *service.ChatService, port int) *Server {
	return &Server{
		chat: chat,
		port: port,
	}
}

// Handler builds the route table
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	// Chat lines
	mux.HandleFunc("/api/messages", s.handleMessages)
	mux.HandleFunc("/api/classify", s.handleClassify)
	mux.HandleFunc("/api/rewrite", s.handleRewrite)
	mux.HandleFunc("/api/lines", s.handleLines)

	// Settings
	mux.HandleFunc("/api/settings", s.handleSettings)
	mux.HandleFunc("/api/settings/reset", s.handleSettingsReset)
	mux.HandleFunc("/api/settings/", s.handleSettingItem)
	mux.HandleFunc("/api/stylers", s.handleStylers)
	mux.HandleFunc("/api/pipeline", s.handlePipeline)

	// Slowmode
	mux.HandleFunc("/api/slowmode", s.handleSlowmode)
	mux.HandleFunc("/api/slowmode/send", s.handleSlowmodeSend)
	mux.HandleFunc("/api/slowmode/notice", s.handleSlowmodeNotice)

	// Event stream
	mux.HandleFunc("/ws", s.handleWebSocket)

	// Health check
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	return mux
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:              fmt.Sprintf("127.0.0.1:%d", s.port),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	fmt.Printf("[API] Starting HTTP server on port %d\n", s.port)
	return s.server.ListenAndServe()
}

// Stop stops the HTTP server
func (s *Server) Stop() error {
	if s.server != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.server.Shutdown(ctx)
	}
	return nil
}

// ============ Line Handlers ============

// MessageRequest is a chat line pushed by the host
type MessageRequest struct {
	ID     string `json:"id"`
	ChatID string `json:"chat_id"`
	Text   string `json:"text"`
	Sender string `json:"sender"`
	Admin  bool   `json:"admin"`
}

func (s *Server) handleMessages(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req MessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	line := s.chat.HandleIncoming(&domain.Message{
		ID:         req.ID,
		ChatID:     req.ChatID,
		Content:    req.Text,
		SenderName: req.Sender,
		IsAdmin:    req.Admin,
	})
	s.writeJSON(w, line)
}

func (s *Server) handleClassify(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req struct {
		Text   string `json:"text"`
		Sender string `json:"sender"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	s.writeJSON(w, s.chat.Engine().Process(req.Text, req.Sender))
}

func (s *Server) handleRewrite(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	s.writeJSON(w, map[string]string{"text": s.chat.Engine().Rewrite(req.Text)})
}

func (s *Server) handleLines(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	limit := 50
	if l := r.URL.Query().Get("limit"); l != "" {
		if parsed, err := strconv.Atoi(l); err == nil {
			limit = parsed
		}
	}

	s.writeJSON(w, map[string]interface{}{"lines": s.chat.Buffer().List(limit)})
}

// ============ Settings Handlers ============

func (s *Server) handleSettings(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	s.writeJSON(w, map[string]interface{}{"settings": s.chat.Engine().Settings()})
}

func (s *Server) handleSettingsReset(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if err := s.chat.Engine().ResetAllSettings(r.Context()); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, map[string]interface{}{"success": true})
}

func (s *Server) handleSettingItem(w http.ResponseWriter, r *http.Request) {
	name := strings.TrimPrefix(r.URL.Path, "/api/settings/")
	if name == "" || strings.Contains(name, "/") {
		http.Error(w, "invalid setting name", http.StatusBadRequest)
		return
	}
	engine := s.chat.Engine()

	switch r.Method {
	case http.MethodGet:
		for _, info := range engine.Settings() {
			if info.Name == name {
				s.writeJSON(w, info)
				return
			}
		}
		s.writeError(w, fmt.Errorf("%w: %s", domain.ErrUnknownSetting, name))

	case http.MethodPut:
		var req struct {
			Value *domain.Value `json:"value"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if req.Value == nil {
			http.Error(w, "value is required", http.StatusBadRequest)
			return
		}
		if err := engine.SetSetting(r.Context(), name, *req.Value); err != nil {
			s.writeError(w, err)
			return
		}
		s.writeJSON(w, map[string]interface{}{"success": true, "value": req.Value})

	case http.MethodDelete:
		if err := engine.ResetSetting(r.Context(), name); err != nil {
			s.writeError(w, err)
			return
		}
		s.writeJSON(w, map[string]interface{}{"success": true})

	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (s *Server) handleStylers(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	s.writeJSON(w, map[string]interface{}{"stylers": s.chat.Engine().ActiveStylers()})
}

func (s *Server) handlePipeline(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	engine := s.chat.Engine()
	s.writeJSON(w, map[string]interface{}{
		"filters":   engine.FilterNames(),
		"rewriters": engine.RewriterNames(),
	})
}

// ============ Slowmode Handlers ============

func (s *Server) handleSlowmode(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	engine := s.chat.Engine()
	draft := r.URL.Query().Get("draft")
	s.writeJSON(w, map[string]interface{}{
		"status": engine.SlowmodeStatus(draft),
		"state":  engine.SlowmodeState(),
	})
}

func (s *Server) handleSlowmodeSend(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	s.writeJSON(w, map[string]interface{}{"status": s.chat.RecordSend(req.Text)})
}

func (s *Server) handleSlowmodeNotice(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	line := s.chat.HandleIncoming(&domain.Message{Content: req.Text, IsAdmin: true})
	s.writeJSON(w, map[string]interface{}{
		"line":   line,
		"status": s.chat.Engine().SlowmodeStatus(""),
	})
}

// ============ Event Stream ============

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		fmt.Printf("[API] WebSocket upgrade error: %v\n", err)
		return
	}
	defer conn.Close()

	events, unsubscribe := s.chat.Subscribe(64)
	defer unsubscribe()
	fmt.Printf("[API] WebSocket client connected from %s\n", r.RemoteAddr)

	// Clients only listen; the read loop notices disconnects
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-closed:
			fmt.Printf("[API] WebSocket client disconnected from %s\n", r.RemoteAddr)
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
			if err := conn.WriteJSON(ev); err != nil {
				fmt.Printf("[API] WebSocket write error: %v\n", err)
				return
			}
		}
	}
}

// ============ Helpers ============

func (s *Server) writeJSON(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(data)
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	var settingErr *domain.SettingError
	switch {
	case errors.Is(err, domain.ErrUnknownSetting):
		status = http.StatusNotFound
	case errors.Is(err, domain.ErrKindMismatch), errors.As(err, &settingErr):
		status = http.StatusBadRequest
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
}
