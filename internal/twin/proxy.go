// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package twin

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/jeranaias/twin/internal/config"
	"github.com/jeranaias/twin/internal/model"
	"github.com/jeranaias/twin/internal/provider"
)

// Completer is the provider call the proxy depends on.
// *provider.Client satisfies it.
type Completer interface {
	Complete(ctx context.Context, apiKey string, messages []provider.Message) (*provider.ChatResponse, error)
	Model() string
}

// Proxy validates a candidate conversation, forwards it to the provider with
// the persona attached, and normalizes the reply. It holds no per-request
// state and is safe for concurrent use.
type Proxy struct {
	completer   Completer
	credential  *config.Credential
	persona     string
	maxMessages int
	logger      zerolog.Logger
}

// New creates a Proxy. The credential is resolved lazily on first dispatch.
func New(completer Completer, credential *config.Credential) *Proxy {
	return &Proxy{
		completer:   completer,
		credential:  credential,
		persona:     Persona(),
		maxMessages: config.DefaultMaxMessages,
		logger:      zerolog.Nop(),
	}
}

// WithMaxMessages sets how many recent messages are forwarded.
func (p *Proxy) WithMaxMessages(n int) *Proxy {
	if n > 0 {
		p.maxMessages = n
	}
	return p
}

// WithPersona replaces the system instruction.
func (p *Proxy) WithPersona(persona string) *Proxy {
	p.persona = persona
	return p
}

// WithLogger sets the logger.
func (p *Proxy) WithLogger(logger zerolog.Logger) *Proxy {
	p.logger = logger.With().Str("component", "proxy").Logger()
	return p
}

// Model returns the configured provider model.
func (p *Proxy) Model() string {
	return p.completer.Model()
}

// CredentialConfigured reports whether the provider key is available.
func (p *Proxy) CredentialConfigured() bool {
	return p.credential != nil && p.credential.Configured()
}

// =============================================================================
// REQUEST PIPELINE
// =============================================================================

// Handle runs one request through validate, dispatch and normalize. The
// returned error is always a *Error.
func (p *Proxy) Handle(ctx context.Context, body []byte) (model.ChatReply, error) {
	start := time.Now()

	messages, err := Validate(body, p.maxMessages)
	if err != nil {
		p.logFailure(err, start)
		return model.ChatReply{}, err
	}

	resp, err := p.Dispatch(ctx, messages)
	if err != nil {
		p.logFailure(err, start)
		return model.ChatReply{}, err
	}

	reply, err := NormalizeReply(resp, p.completer.Model())
	if err != nil {
		p.logFailure(err, start)
		return model.ChatReply{}, err
	}

	p.logger.Info().
		Int("messages", len(messages)).
		Str("model", reply.Model).
		Int("total_tokens", resp.Usage.TotalTokens).
		Dur("duration", time.Since(start)).
		Msg("CHAT_COMPLETE")
	return reply, nil
}

func (p *Proxy) logFailure(err error, start time.Time) {
	e := Classify(err)
	ev := p.logger.Warn()
	if e.Kind == KindConfiguration {
		ev = p.logger.Error()
	}
	ev.Str("kind", e.Kind.String()).
		Str("reason", e.Message).
		AnErr("cause", e.Err).
		Dur("duration", time.Since(start)).
		Msg("CHAT_FAILED")
}

var errNotObject = errors.New("body is not a JSON object")

// incoming mirrors a client message with every field left undecoded, so a
// bad entry can be dropped without failing the whole body.
type incoming struct {
	Role    json.RawMessage `json:"role"`
	Content json.RawMessage `json:"content"`
}

// Validate parses a proxy request body and returns the sanitized list: only
// user and assistant entries with non-blank string content, in their
// original order, limited to the most recent limit entries. Invalid entries
// are dropped silently.
func Validate(body []byte, limit int) ([]model.ChatMessage, error) {
	if !bytes.HasPrefix(bytes.TrimSpace(body), []byte("{")) {
		return nil, newError(KindClientInput, MsgInvalidBody, errNotObject)
	}

	var envelope struct {
		Messages json.RawMessage `json:"messages"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, newError(KindClientInput, MsgInvalidBody, err)
	}
	if len(envelope.Messages) == 0 {
		return nil, newError(KindClientInput, MsgNoValidMessages, nil)
	}

	var entries []json.RawMessage
	if err := json.Unmarshal(envelope.Messages, &entries); err != nil {
		return nil, newError(KindClientInput, MsgNoValidMessages, err)
	}

	kept := make([]model.ChatMessage, 0, len(entries))
	for _, raw := range entries {
		if msg, ok := sanitize(raw); ok {
			kept = append(kept, msg)
		}
	}

	if limit > 0 && len(kept) > limit {
		kept = kept[len(kept)-limit:]
	}
	if len(kept) == 0 {
		return nil, newError(KindClientInput, MsgNoValidMessages, nil)
	}
	return kept, nil
}

func sanitize(raw json.RawMessage) (model.ChatMessage, bool) {
	var in incoming
	if err := json.Unmarshal(raw, &in); err != nil {
		return model.ChatMessage{}, false
	}

	var role, content string
	if err := json.Unmarshal(in.Role, &role); err != nil {
		return model.ChatMessage{}, false
	}
	if !model.Role(role).IsConversational() {
		return model.ChatMessage{}, false
	}
	if err := json.Unmarshal(in.Content, &content); err != nil {
		return model.ChatMessage{}, false
	}
	if strings.TrimSpace(content) == "" {
		return model.ChatMessage{}, false
	}
	return model.ChatMessage{Role: role, Content: content}, true
}

// Dispatch prepends the persona and calls the provider. Provider failures
// are classified as upstream errors; a missing credential is a
// configuration error and the provider is not called.
func (p *Proxy) Dispatch(ctx context.Context, messages []model.ChatMessage) (*provider.ChatResponse, error) {
	if p.credential == nil {
		return nil, newError(KindConfiguration, MsgMissingKey, config.ErrCredentialMissing)
	}
	apiKey, err := p.credential.Resolve()
	if err != nil {
		return nil, newError(KindConfiguration, MsgMissingKey, err)
	}

	outbound := make([]provider.Message, 0, len(messages)+1)
	outbound = append(outbound, provider.SystemMessage(p.persona))
	for _, m := range messages {
		outbound = append(outbound, provider.Message{Role: m.Role, Content: m.Content})
	}

	resp, err := p.completer.Complete(ctx, apiKey, outbound)
	if err != nil {
		return nil, classifyProvider(err)
	}
	return resp, nil
}

func classifyProvider(err error) *Error {
	var transportErr *provider.TransportError
	var statusErr *provider.StatusError
	switch {
	case errors.As(err, &transportErr):
		return newError(KindUpstream, MsgUnreachable, err)
	case errors.As(err, &statusErr):
		if statusErr.Message != "" {
			return newError(KindUpstream, statusErr.Message, err)
		}
		return newError(KindUpstream, MsgProviderFailed, err)
	case errors.Is(err, provider.ErrNoCredential):
		return newError(KindConfiguration, MsgMissingKey, err)
	default:
		return newError(KindUpstream, MsgInvalidUpstream, err)
	}
}

// NormalizeReply flattens the provider content to text. An empty result is
// an upstream error even though the call succeeded. The model falls back
// to fallbackModel when the provider does not name one.
func NormalizeReply(resp *provider.ChatResponse, fallbackModel string) (model.ChatReply, error) {
	text := resp.Text()
	if text == "" {
		return model.ChatReply{}, newError(KindUpstream, MsgEmptyReply, nil)
	}

	modelName := fallbackModel
	if resp.Model != "" {
		modelName = resp.Model
	}
	return model.ChatReply{Reply: text, Model: modelName}, nil
}
