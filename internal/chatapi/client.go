// Package chatapi provides the HTTP bindings the chat client depends on.
// Success for mutating calls is any 2xx status; response bodies are only
// decoded where the caller needs them.
package chatapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/novamart/nova-storefront/internal/model"
)

// Client calls the storefront chat endpoints.
type Client struct {
	httpClient *http.Client
	baseURL    string
}

// New builds a client for the server at baseURL. httpClient may be nil.
func New(baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &Client{httpClient: httpClient, baseURL: baseURL}
}

type appendBody struct {
	Item model.ConversationEntry `json:"item"`
	Incr int                     `json:"incr"`
}

// Append delivers one conversation entry, bumping the server-side unread
// counter by incr.
func (c *Client) Append(ctx context.Context, token string, entry model.ConversationEntry, incr int) error {
	body, err := json.Marshal(appendBody{Item: entry, Incr: incr})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/chat/append", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("chat append: status %d", resp.StatusCode)
	}
	return nil
}

// Fetch retrieves the server-side conversation mirror, used to seed local
// state at startup.
func (c *Client) Fetch(ctx context.Context, token string) (*model.UserChat, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/chat", nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("chat fetch: status %d", resp.StatusCode)
	}
	var chat model.UserChat
	if err := json.NewDecoder(resp.Body).Decode(&chat); err != nil {
		return nil, err
	}
	return &chat, nil
}

// MarkRead clears the server-side unread counter.
func (c *Client) MarkRead(ctx context.Context, token string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/chat/mark-read", nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("chat mark-read: status %d", resp.StatusCode)
	}
	return nil
}

// DeleteEntry removes one entry server-side by its timestamp identity.
func (c *Client) DeleteEntry(ctx context.Context, token string, ts int64) error {
	url := fmt.Sprintf("%s/api/chat/entry/%d", c.baseURL, ts)
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, url, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("chat delete entry: status %d", resp.StatusCode)
	}
	return nil
}

// Ask resolves a question against the QA endpoint.
func (c *Client) Ask(ctx context.Context, question string) ([]model.Answer, error) {
	body, err := json.Marshal(model.QARequest{Question: question})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/qa", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("qa: status %d", resp.StatusCode)
	}
	var qr model.QAResponse
	if err := json.NewDecoder(resp.Body).Decode(&qr); err != nil {
		return nil, err
	}
	return qr.Answers, nil
}
