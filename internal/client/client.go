// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package client calls the twin proxy over HTTP.
//
// Every failure (transport error, non-2xx status, or a 2xx without reply
// text) is returned as an error whose text is what the user should see:
// the server's own error message when it sent one, a generic line otherwise.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/jeranaias/twin/internal/config"
	"github.com/jeranaias/twin/internal/model"
)

const (
	// DefaultTimeout bounds one round trip when the config has none.
	DefaultTimeout = 45 * time.Second

	// maxReplySize bounds the proxy response body.
	maxReplySize = 1 * 1024 * 1024

	// GenericError is shown when the proxy gives no usable message.
	GenericError = "Sorry, I couldn't get a reply right now. Please try again."

	// UnreachableError is shown when the proxy itself cannot be reached.
	UnreachableError = "Unable to reach the assistant. Check your connection and try again."
)

// Error is a failed proxy exchange. Message is display text.
type Error struct {
	// Status is the HTTP status, or 0 when the proxy was not reached.
	Status  int
	Message string
	Err     error
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Sender is the operation the chat UI depends on.
type Sender interface {
	Send(ctx context.Context, req model.ChatRequest) (string, error)
}

// Client posts conversations to the proxy chat endpoint.
// A Client is safe for concurrent use.
type Client struct {
	url        string
	httpClient *http.Client
}

// New creates a client from config.
func New(cfg config.ClientConfig) *Client {
	timeout := cfg.Timeout()
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		url:        cfg.ProxyURL,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// WithURL overrides the proxy endpoint.
func (c *Client) WithURL(url string) *Client {
	c.url = url
	return c
}

// WithHTTPClient replaces the underlying HTTP client.
func (c *Client) WithHTTPClient(hc *http.Client) *Client {
	c.httpClient = hc
	return c
}

// URL returns the proxy endpoint.
func (c *Client) URL() string {
	return c.url
}

// Send posts req and returns the reply text.
func (c *Client) Send(ctx context.Context, req model.ChatRequest) (string, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return "", &Error{Message: GenericError, Err: fmt.Errorf("failed to marshal request: %w", err)}
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(payload))
	if err != nil {
		return "", &Error{Message: GenericError, Err: fmt.Errorf("failed to create request: %w", err)}
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", &Error{Message: UnreachableError, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxReplySize))
	if err != nil {
		return "", &Error{Status: resp.StatusCode, Message: UnreachableError, Err: err}
	}

	// Decode both shapes at once; a non-JSON body leaves both fields empty.
	var decoded struct {
		model.ChatReply
		model.ErrorReply
	}
	decodeErr := json.Unmarshal(body, &decoded)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg := strings.TrimSpace(decoded.Error)
		if msg == "" {
			msg = GenericError
		}
		return "", &Error{Status: resp.StatusCode, Message: msg, Err: fmt.Errorf("proxy returned HTTP %d", resp.StatusCode)}
	}

	reply := strings.TrimSpace(decoded.Reply)
	if reply == "" {
		cause := errors.New("empty reply")
		if decodeErr != nil {
			cause = fmt.Errorf("failed to parse reply: %w", decodeErr)
		}
		return "", &Error{Status: resp.StatusCode, Message: GenericError, Err: cause}
	}
	return reply, nil
}
