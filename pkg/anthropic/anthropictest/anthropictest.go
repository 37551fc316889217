// Package anthropictest provides a scripted anthropic.Client for tests in
// other packages.
package anthropictest

import (
	"context"
	"sync"

	"github.com/sells-group/rfpdesk/pkg/anthropic"
)

// Client answers CreateMessage with Fn and records every request.
type Client struct {
	Fn func(req anthropic.MessageRequest) (*anthropic.MessageResponse, error)

	mu   sync.Mutex
	reqs []anthropic.MessageRequest
}

// CreateMessage implements anthropic.Client.
func (c *Client) CreateMessage(_ context.Context, req anthropic.MessageRequest) (*anthropic.MessageResponse, error) {
	c.mu.Lock()
	c.reqs = append(c.reqs, req)
	c.mu.Unlock()
	return c.Fn(req)
}

// Calls returns the number of requests made.
func (c *Client) Calls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.reqs)
}

// Requests returns a copy of the recorded requests.
func (c *Client) Requests() []anthropic.MessageRequest {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]anthropic.MessageRequest(nil), c.reqs...)
}

// Reply builds a single-text-block response.
func Reply(text string) *anthropic.MessageResponse {
	return &anthropic.MessageResponse{Content: []anthropic.ContentBlock{{Type: "text", Text: text}}}
}

// Fixed returns a Client that always replies with text.
func Fixed(text string) *Client {
	return &Client{Fn: func(anthropic.MessageRequest) (*anthropic.MessageResponse, error) {
		return Reply(text), nil
	}}
}
