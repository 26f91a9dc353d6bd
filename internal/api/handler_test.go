package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DevRickLin/tpp-chat-filter/internal/biz/domain"
	"github.com/DevRickLin/tpp-chat-filter/internal/biz/usecase"
	"github.com/DevRickLin/tpp-chat-filter/internal/service"
)

func newTestServer(t *testing.T) (*Server, http.Handler) {
	t.Helper()
	engine, err := usecase.NewEngine(nil, usecase.DefaultRulesConfig())
	require.NoError(t, err)
	buffer := usecase.NewBufferUsecase(engine, usecase.DefaultBufferConfig())
	chat := service.NewChatService(engine, buffer, nil)
	s := NewServer(chat, 0)
	return s, s.Handler()
}

func do(t *testing.T, h http.Handler, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return out
}

func TestHandleMessagesAndLines(t *testing.T) {
	_, h := newTestServer(t)

	w := do(t, h, http.MethodPost, "/api/messages", MessageRequest{Text: "DEMOCRACY", Sender: "viewer"})
	require.Equal(t, http.StatusOK, w.Code)
	line := decode[domain.BufferedLine](t, w)
	assert.NotEmpty(t, line.ID)
	assert.False(t, line.Decision.Visible)
	assert.Equal(t, []string{usecase.SettingFilterCommand}, line.Decision.MatchedFilters)

	do(t, h, http.MethodPost, "/api/messages", MessageRequest{Text: "gg well played team", Sender: "viewer"})

	w = do(t, h, http.MethodGet, "/api/lines?limit=1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	lines := decode[map[string][]domain.BufferedLine](t, w)["lines"]
	require.Len(t, lines, 1)
	assert.Equal(t, "gg well played team", lines[0].Text)

	w = do(t, h, http.MethodGet, "/api/messages", nil)
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
}

func TestHandleClassifyAndRewrite(t *testing.T) {
	_, h := newTestServer(t)

	w := do(t, h, http.MethodPost, "/api/classify", map[string]string{"text": "heyy heyy heyy heyy check it out"})
	require.Equal(t, http.StatusOK, w.Code)
	d := decode[domain.Decision](t, w)
	assert.True(t, d.Visible)
	assert.Equal(t, "heyy check it out", d.Text)
	assert.NotNil(t, d.MatchedFilters)

	w = do(t, h, http.MethodPost, "/api/rewrite", map[string]string{"text": "HELLO"})
	assert.Equal(t, "hello", decode[map[string]string](t, w)["text"])

	req := httptest.NewRequest(http.MethodPost, "/api/classify", strings.NewReader("{"))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleSettings(t *testing.T) {
	_, h := newTestServer(t)

	w := do(t, h, http.MethodGet, "/api/settings", nil)
	require.Equal(t, http.StatusOK, w.Code)
	infos := decode[map[string][]domain.SettingInfo](t, w)["settings"]
	assert.Len(t, infos, 16)

	w = do(t, h, http.MethodPut, "/api/settings/"+usecase.SettingFilterCommand, map[string]interface{}{"value": false})
	require.Equal(t, http.StatusOK, w.Code)

	w = do(t, h, http.MethodGet, "/api/settings/"+usecase.SettingFilterCommand, nil)
	require.Equal(t, http.StatusOK, w.Code)
	info := decode[domain.SettingInfo](t, w)
	assert.False(t, info.Value.Bool())
	assert.True(t, info.Overridden)

	w = do(t, h, http.MethodPost, "/api/classify", map[string]string{"text": "DEMOCRACY"})
	assert.True(t, decode[domain.Decision](t, w).Visible)

	w = do(t, h, http.MethodDelete, "/api/settings/"+usecase.SettingFilterCommand, nil)
	require.Equal(t, http.StatusOK, w.Code)
	w = do(t, h, http.MethodPost, "/api/classify", map[string]string{"text": "DEMOCRACY"})
	assert.False(t, decode[domain.Decision](t, w).Visible)

	w = do(t, h, http.MethodPut, "/api/settings/"+usecase.SettingBannedWords, map[string]interface{}{"value": []string{"kappa"}})
	require.Equal(t, http.StatusOK, w.Code)
	w = do(t, h, http.MethodPost, "/api/settings/reset", nil)
	require.Equal(t, http.StatusOK, w.Code)
	w = do(t, h, http.MethodGet, "/api/settings/"+usecase.SettingBannedWords, nil)
	assert.Empty(t, decode[domain.SettingInfo](t, w).Value.List())
}

func TestHandleSettingErrors(t *testing.T) {
	_, h := newTestServer(t)

	w := do(t, h, http.MethodGet, "/api/settings/NoSuchSetting", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = do(t, h, http.MethodPut, "/api/settings/NoSuchSetting", map[string]interface{}{"value": true})
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = do(t, h, http.MethodPut, "/api/settings/"+usecase.SettingFilterCommand, map[string]interface{}{"value": []string{"x"}})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(t, h, http.MethodPut, "/api/settings/"+usecase.SettingFilterCommand, map[string]interface{}{})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandleStylers(t *testing.T) {
	_, h := newTestServer(t)

	do(t, h, http.MethodPut, "/api/settings/"+usecase.SettingHideEmoticons, map[string]interface{}{"value": true})
	w := do(t, h, http.MethodGet, "/api/stylers", nil)
	assert.Equal(t, []string{usecase.SettingHideEmoticons}, decode[map[string][]string](t, w)["stylers"])
}

func TestHandlePipeline(t *testing.T) {
	_, h := newTestServer(t)

	w := do(t, h, http.MethodGet, "/api/pipeline", nil)
	require.Equal(t, http.StatusOK, w.Code)
	got := decode[map[string][]string](t, w)
	assert.Contains(t, got["filters"], usecase.SettingFilterCommand)
	assert.Contains(t, got["filters"], usecase.SettingFilterBots)
	assert.Equal(t, []string{usecase.SettingRewriteDuplicates, usecase.SettingMopUpDrinks, usecase.SettingConvertAllcaps}, got["rewriters"])

	w = do(t, h, http.MethodPost, "/api/pipeline", nil)
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
}

func TestHandleSlowmode(t *testing.T) {
	_, h := newTestServer(t)

	w := do(t, h, http.MethodPost, "/api/slowmode/send", map[string]string{"text": "hello"})
	require.Equal(t, http.StatusOK, w.Code)

	w = do(t, h, http.MethodPost, "/api/slowmode/notice", map[string]string{
		"text": "This room is now in slow mode. You may send messages every 30 seconds.",
	})
	require.Equal(t, http.StatusOK, w.Code)
	var notice struct {
		Line   domain.BufferedLine   `json:"line"`
		Status domain.SlowmodeStatus `json:"status"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &notice))
	assert.True(t, notice.Line.Decision.Admin)
	assert.True(t, notice.Status.Blocked)

	w = do(t, h, http.MethodGet, "/api/slowmode?draft=hello", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var status struct {
		Status domain.SlowmodeStatus `json:"status"`
		State  domain.SlowmodeState  `json:"state"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &status))
	assert.True(t, status.Status.Blocked)
	assert.Equal(t, 30*time.Second, status.State.RateLimit)
}

func TestHealth(t *testing.T) {
	_, h := newTestServer(t)
	w := do(t, h, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok", w.Body.String())
}

func TestWebSocketStream(t *testing.T) {
	s, h := newTestServer(t)
	ts := httptest.NewServer(h)
	defer ts.Close()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	// The handler subscribes after the upgrade completes, so keep publishing until a line arrives
	stop := make(chan struct{})
	go func() {
		ticker := time.NewTicker(20 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				s.chat.HandleIncoming(&domain.Message{Content: "up up left", SenderName: "viewer"})
			}
		}
	}()

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var first service.Event
	require.NoError(t, conn.ReadJSON(&first))
	close(stop)
	assert.Equal(t, service.EventLine, first.Type)
	require.NotNil(t, first.Line)
	assert.False(t, first.Line.Decision.Visible)

	require.NoError(t, s.chat.Engine().SetSetting(context.Background(), usecase.SettingNoColor, domain.BoolValue(true)))
	conn.SetReadDeadline(time.Now().Add(time.Second))
	for {
		var ev service.Event
		require.NoError(t, conn.ReadJSON(&ev))
		if ev.Type == service.EventSetting {
			assert.Equal(t, usecase.SettingNoColor, ev.Setting)
			break
		}
	}
}
