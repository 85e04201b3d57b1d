// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package twin

import (
	"errors"
	"fmt"
	"net/http"
)

// =============================================================================
// ERROR TAXONOMY
// =============================================================================

// Kind classifies a proxy failure.
type Kind int

const (
	// KindClientInput is a malformed body or a body with no usable messages.
	KindClientInput Kind = iota + 1
	// KindConfiguration is a server that cannot call the provider (no credential).
	KindConfiguration
	// KindUpstream is a transport failure, a provider error, or an empty reply.
	KindUpstream
)

// String returns the kind name used in logs.
func (k Kind) String() string {
	switch k {
	case KindClientInput:
		return "client_input"
	case KindConfiguration:
		return "configuration"
	case KindUpstream:
		return "upstream"
	default:
		return "unknown"
	}
}

// Status maps the kind to the HTTP status returned to the client.
func (k Kind) Status() int {
	switch k {
	case KindClientInput:
		return http.StatusBadRequest
	case KindConfiguration:
		return http.StatusInternalServerError
	case KindUpstream:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// Client-facing error messages.
const (
	MsgInvalidBody     = "invalid body"
	MsgNoValidMessages = "no valid messages"
	MsgMissingKey      = "missing API key"
	MsgUnreachable     = "unable to reach provider"
	MsgProviderFailed  = "provider request failed"
	MsgInvalidUpstream = "invalid provider response"
	MsgEmptyReply      = "empty reply"
	MsgInternal        = "internal error"
)

// Error is a classified proxy failure. Message is safe to return to the
// client; Err holds internal detail for logs only.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches another *Error with the same Kind and Message, so callers can
// write errors.Is(err, twin.ErrEmptyReply).
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind && e.Message == t.Message
}

// Sentinel errors for errors.Is comparisons.
var (
	ErrInvalidBody     = &Error{Kind: KindClientInput, Message: MsgInvalidBody}
	ErrNoValidMessages = &Error{Kind: KindClientInput, Message: MsgNoValidMessages}
	ErrMissingKey      = &Error{Kind: KindConfiguration, Message: MsgMissingKey}
	ErrUnreachable     = &Error{Kind: KindUpstream, Message: MsgUnreachable}
	ErrEmptyReply      = &Error{Kind: KindUpstream, Message: MsgEmptyReply}
)

func newError(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// Classify returns err as an *Error. Unclassified errors become an internal
// configuration-kind failure so they still map to a 500.
func Classify(err error) *Error {
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return newError(KindConfiguration, MsgInternal, err)
}
