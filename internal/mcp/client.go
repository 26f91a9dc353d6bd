package mcp

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/DevRickLin/tpp-chat-filter/internal/biz/domain"
)

// Client is the HTTP client for the filter daemon API
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a new MCP client
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// SlowmodeReport is the daemon's view of send eligibility
type SlowmodeReport struct {
	Status domain.SlowmodeStatus `json:"status"`
	State  domain.SlowmodeState  `json:"state"`
}

// NoticeReport is returned after feeding an admin notice
type NoticeReport struct {
	Line   domain.BufferedLine   `json:"line"`
	Status domain.SlowmodeStatus `json:"status"`
}

// ============ Lines ============

// Classify runs the full pipeline on a line without buffering it
func (c *Client) Classify(text, sender string) (*domain.Decision, error) {
	body := map[string]string{"text": text, "sender": sender}
	var decision domain.Decision
	if err := c.post("/api/classify", body, &decision); err != nil {
		return nil, err
	}
	return &decision, nil
}

// Rewrite applies the enabled rewriters to a line
func (c *Client) Rewrite(text string) (string, error) {
	var result struct {
		Text string `json:"text"`
	}
	if err := c.post("/api/rewrite", map[string]string{"text": text}, &result); err != nil {
		return "", err
	}
	return result.Text, nil
}

// RecentLines lists the newest buffered lines
func (c *Client) RecentLines(limit int) ([]domain.BufferedLine, error) {
	var result struct {
		Lines []domain.BufferedLine `json:"lines"`
	}
	if err := c.get("/api/lines?limit="+strconv.Itoa(limit), &result); err != nil {
		return nil, err
	}
	return result.Lines, nil
}

// ============ Settings ============

// ListSettings lists every registered setting with its current value
func (c *Client) ListSettings() ([]domain.SettingInfo, error) {
	var result struct {
		Settings []domain.SettingInfo `json:"settings"`
	}
	if err := c.get("/api/settings", &result); err != nil {
		return nil, err
	}
	return result.Settings, nil
}

// SetSetting stores a new value for a setting
func (c *Client) SetSetting(name string, value domain.Value) error {
	body := map[string]interface{}{"value": value}
	return c.put(fmt.Sprintf("/api/settings/%s", url.PathEscape(name)), body)
}

// ResetSetting restores a setting to its default
func (c *Client) ResetSetting(name string) error {
	return c.delete(fmt.Sprintf("/api/settings/%s", url.PathEscape(name)))
}

// Pipeline lists the registered filters and rewriters in evaluation order
func (c *Client) Pipeline() (filters, rewriters []string, err error) {
	var result struct {
		Filters   []string `json:"filters"`
		Rewriters []string `json:"rewriters"`
	}
	if err := c.get("/api/pipeline", &result); err != nil {
		return nil, nil, err
	}
	return result.Filters, result.Rewriters, nil
}

// ============ Slowmode ============

// SlowmodeStatus checks whether a draft could be sent now
func (c *Client) SlowmodeStatus(draft string) (*SlowmodeReport, error) {
	var report SlowmodeReport
	if err := c.get("/api/slowmode?draft="+url.QueryEscape(draft), &report); err != nil {
		return nil, err
	}
	return &report, nil
}

// RecordSend tells the tracker a message was sent
func (c *Client) RecordSend(text string) (*domain.SlowmodeStatus, error) {
	var result struct {
		Status domain.SlowmodeStatus `json:"status"`
	}
	if err := c.post("/api/slowmode/send", map[string]string{"text": text}, &result); err != nil {
		return nil, err
	}
	return &result.Status, nil
}

// Health checks that the daemon is reachable
func (c *Client) Health() error {
	return c.get("/health", nil)
}

// FeedNotice hands an admin notice to the slowmode tracker
func (c *Client) FeedNotice(text string) (*NoticeReport, error) {
	var report NoticeReport
	if err := c.post("/api/slowmode/notice", map[string]string{"text": text}, &report); err != nil {
		return nil, err
	}
	return &report, nil
}

// ============ HTTP Helpers ============

func (c *Client) get(path string, result interface{}) error {
	resp, err := c.httpClient.Get(c.baseURL + path)
	if err != nil {
		return fmt.Errorf("HTTP GET failed: %w", err)
	}
	defer resp.Body.Close()
	return decodeResponse(resp, result)
}

func (c *Client) post(path string, body interface{}, result interface{}) error {
	jsonBody, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal body: %w", err)
	}

	resp, err := c.httpClient.Post(c.baseURL+path, "application/json", bytes.NewReader(jsonBody))
	if err != nil {
		return fmt.Errorf("HTTP POST failed: %w", err)
	}
	defer resp.Body.Close()
	return decodeResponse(resp, result)
}

func (c *Client) put(path string, body interface{}) error {
	jsonBody, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal body: %w", err)
	}

	req, err := http.NewRequest(http.MethodPut, c.baseURL+path, bytes.NewReader(jsonBody))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("HTTP PUT failed: %w", err)
	}
	defer resp.Body.Close()
	return decodeResponse(resp, nil)
}

func (c *Client) delete(path string) error {
	req, err := http.NewRequest(http.MethodDelete, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("HTTP DELETE failed: %w", err)
	}
	defer resp.Body.Close()
	return decodeResponse(resp, nil)
}

func decodeResponse(resp *http.Response, result interface{}) error {
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		var apiErr struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(body, &apiErr) == nil && apiErr.Error != "" {
			return fmt.Errorf("HTTP %d: %s", resp.StatusCode, apiErr.Error)
		}
		return fmt.Errorf("HTTP %d: %s", resp.StatusCode, string(bytes.TrimSpace(body)))
	}

	if result != nil {
		if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}
	return nil
}
