// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package provider

import (
	"bytes"
	"encoding/json"
	"strings"
)

// =============================================================================
// REPLY CONTENT (TAGGED UNION)
// =============================================================================

// ContentKind discriminates the shape of reply content.
type ContentKind int

const (
	// ContentEmpty is null, absent, or any shape other than string/array.
	ContentEmpty ContentKind = iota
	// ContentString is a plain string.
	ContentString
	// ContentChunks is an ordered sequence of typed chunks.
	ContentChunks
)

// ChunkTypeText is the only chunk tag that contributes to normalized text.
const ChunkTypeText = "text"

// Chunk is one element of a structured content sequence.
// Fields other than type and text are ignored.
type Chunk struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

// Content is the message content of a provider choice.
type Content struct {
	kind   ContentKind
	text   string
	chunks []Chunk
}

// TextContent builds string content.
func TextContent(s string) Content {
	return Content{kind: ContentString, text: s}
}

// ChunkContent builds chunk-sequence content.
func ChunkContent(chunks ...Chunk) Content {
	return Content{kind: ContentChunks, chunks: chunks}
}

// Kind returns the content shape.
func (c Content) Kind() ContentKind {
	return c.kind
}

// Chunks returns the chunk sequence (nil unless Kind is ContentChunks).
func (c Content) Chunks() []Chunk {
	return c.chunks
}

// Normalize flattens the content to display text.
//
// String content is returned trimmed. For chunk content, the text of every
// chunk tagged "text" is joined with newlines in order, then trimmed; other
// chunk kinds are skipped.
func (c Content) Normalize() string {
	switch c.kind {
	case ContentString:
		return strings.TrimSpace(c.text)
	case ContentChunks:
		parts := make([]string, 0, len(c.chunks))
		for _, ch := range c.chunks {
			switch ch.Type {
			case ChunkTypeText:
				parts = append(parts, ch.Text)
			default:
				// image, tool_use, refusal, ... carry no display text
			}
		}
		return strings.TrimSpace(strings.Join(parts, "\n"))
	default:
		return ""
	}
}

// UnmarshalJSON decodes either a JSON string or a JSON array of chunks.
// Any other shape decodes to empty content rather than failing, and array
// elements that are not chunk objects are dropped.
func (c *Content) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	*c = Content{}

	if len(data) == 0 {
		return nil
	}

	switch data[0] {
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*c = TextContent(s)
	case '[':
		var raw []json.RawMessage
		if err := json.Unmarshal(data, &raw); err != nil {
			return err
		}
		chunks := make([]Chunk, 0, len(raw))
		for _, elem := range raw {
			var ch Chunk
			if err := json.Unmarshal(elem, &ch); err != nil {
				continue
			}
			chunks = append(chunks, ch)
		}
		*c = ChunkContent(chunks...)
	}
	return nil
}

// MarshalJSON encodes the content in its original shape.
func (c Content) MarshalJSON() ([]byte, error) {
	switch c.kind {
	case ContentString:
		return json.Marshal(c.text)
	case ContentChunks:
		if c.chunks == nil {
			return []byte("[]"), nil
		}
		return json.Marshal(c.chunks)
	default:
		return []byte("null"), nil
	}
}
