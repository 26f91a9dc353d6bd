package mcp

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
)

func connectToolServer(t *testing.T, apiURL string) *sdkmcp.ClientSession {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	t.Cleanup(cancel)

	server := NewToolServer(NewHandler(NewClient(apiURL)), "test")
	clientTransport, serverTransport := sdkmcp.NewInMemoryTransports()
	if _, err := server.GetServer().Connect(ctx, serverTransport, nil); err != nil {
		t.Fatalf("server connect failed: %v", err)
	}

	client := sdkmcp.NewClient(&sdkmcp.Implementation{Name: "test-client", Version: "test"}, nil)
	session, err := client.Connect(ctx, clientTransport, nil)
	if err != nil {
		t.Fatalf("client connect failed: %v", err)
	}
	t.Cleanup(func() { session.Close() })
	return session
}

func TestToolServer_ListTools(t *testing.T) {
	session := connectToolServer(t, "http://localhost:1")

	result, err := session.ListTools(context.Background(), nil)
	if err != nil {
		t.Fatalf("ListTools failed: %v", err)
	}

	names := make(map[string]bool)
	for _, tool := range result.Tools {
		names[tool.Name] = true
	}
	for _, def := range GetToolDefinitions() {
		if !names[def.Name] {
			t.Errorf("Tool %s not registered", def.Name)
		}
	}
}

func TestToolServer_CallRewrite(t *testing.T) {
	api := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"text": "hello there"})
	}))
	defer api.Close()

	session := connectToolServer(t, api.URL)
	result, err := session.CallTool(context.Background(), &sdkmcp.CallToolParams{
		Name:      "chatfilter_rewrite",
		Arguments: map[string]any{"text": "HELLO THERE"},
	})
	if err != nil {
		t.Fatalf("CallTool failed: %v", err)
	}
	if result.IsError {
		t.Fatal("Expected success")
	}

	text := result.Content[0].(*sdkmcp.TextContent).Text
	if !strings.Contains(text, `"hello there"`) {
		t.Errorf("Unexpected content: %s", text)
	}
}

func TestToolServer_CallReportsHandlerError(t *testing.T) {
	session := connectToolServer(t, "http://localhost:1")

	result, err := session.CallTool(context.Background(), &sdkmcp.CallToolParams{
		Name:      "chatfilter_reset_setting",
		Arguments: map[string]any{"name": ""},
	})
	if err != nil {
		t.Fatalf("CallTool failed: %v", err)
	}

	text := result.Content[0].(*sdkmcp.TextContent).Text
	if !strings.Contains(text, "name is required") {
		t.Errorf("Expected handler error in output, got %s", text)
	}
}
