// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/twin/internal/client"
	"github.com/jeranaias/twin/internal/config"
	"github.com/jeranaias/twin/internal/logging"
	"github.com/jeranaias/twin/internal/model"
	"github.com/jeranaias/twin/internal/ui/chat"
)

type stubSender struct {
	replies []string
	err     error
	reqs    []model.ChatRequest
}

func (s *stubSender) Send(_ context.Context, req model.ChatRequest) (string, error) {
	s.reqs = append(s.reqs, req)
	if s.err != nil {
		return "", s.err
	}
	reply := s.replies[0]
	s.replies = s.replies[1:]
	return reply, nil
}

// lockedBuffer is a bytes.Buffer safe for the server's concurrent log writes.
type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

// =============================================================================
// COMMAND TREE
// =============================================================================

func TestRootCommands(t *testing.T) {
	root := NewRootCmd()
	names := make(map[string]bool)
	for _, c := range root.Commands() {
		names[c.Name()] = true
	}
	for _, want := range []string{"serve", "chat", "ask", "config", "version"} {
		assert.True(t, names[want], "missing command %q", want)
	}
	assert.NotNil(t, root.PersistentFlags().Lookup("config"))
	assert.NotNil(t, root.PersistentFlags().Lookup("log-level"))
}

func TestVersionCommand(t *testing.T) {
	root := NewRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetArgs([]string{"version"})

	require.NoError(t, root.Execute())
	assert.Contains(t, out.String(), "twin "+Version)
	assert.Contains(t, out.String(), "commit:")
}

func TestAskRequiresQuestion(t *testing.T) {
	root := NewRootCmd()
	root.SetOut(&bytes.Buffer{})
	root.SetErr(&bytes.Buffer{})
	root.SetArgs([]string{"ask"})
	assert.Error(t, root.Execute())
}

// =============================================================================
// CONFIG
// =============================================================================

func TestConfigResetWritesLoadableDefaults(t *testing.T) {
	t.Cleanup(func() { configPath = "" })
	path := filepath.Join(t.TempDir(), "config.toml")

	root := NewRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetArgs([]string{"config", "reset", "--config", path})
	require.NoError(t, root.Execute())
	assert.Contains(t, out.String(), path)

	cfg, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, config.Default().Server.Addr, cfg.Server.Addr)
	assert.Equal(t, config.Default().Provider.MaxMessages, cfg.Provider.MaxMessages)
}

func TestConfigShowPublishesGlobalWithOverrides(t *testing.T) {
	config.ResetGlobalForTesting()
	t.Cleanup(func() {
		configPath, logLevel = "", ""
		config.ResetGlobalForTesting()
	})
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, config.Save(config.Default(), path))

	root := NewRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetArgs([]string{"config", "show", "--config", path, "--log-level", "debug"})
	require.NoError(t, root.Execute())

	assert.Contains(t, out.String(), `level = "debug"`)
	assert.Equal(t, "debug", config.Global().Log.Level)
}

func TestNewSenderReadsGlobalConfig(t *testing.T) {
	config.ResetGlobalForTesting()
	t.Cleanup(config.ResetGlobalForTesting)

	cfg := config.Default()
	cfg.Client.ProxyURL = "http://proxy.internal:9000/api/chat"
	config.SetGlobal(cfg)

	assert.Equal(t, cfg.Client.ProxyURL, newSender("").URL())
	assert.Equal(t, "http://127.0.0.1:1/api/chat", newSender("http://127.0.0.1:1/api/chat").URL())
}

func TestShowConfigHidesKey(t *testing.T) {
	cfg := config.Default()
	cred := config.StaticCredential("sk-secret-value")

	var out bytes.Buffer
	require.NoError(t, showConfig(&out, cfg, cred))
	assert.Contains(t, out.String(), "[provider]")
	assert.Contains(t, out.String(), cfg.Provider.Model)
	assert.Contains(t, out.String(), cred.Fingerprint())
	assert.NotContains(t, out.String(), "sk-secret-value")

	out.Reset()
	require.NoError(t, showConfig(&out, cfg, config.StaticCredential("")))
	assert.Contains(t, out.String(), "missing")
}

// =============================================================================
// ASK
// =============================================================================

func TestAsk(t *testing.T) {
	sender := &stubSender{replies: []string{"I build **Go** services."}}
	var out bytes.Buffer

	require.NoError(t, ask(context.Background(), sender, "  what do you build?  ", &out))
	assert.Equal(t, "I build **Go** services.\n", out.String(), "non-terminal output stays raw")

	require.Len(t, sender.reqs, 1)
	msgs := sender.reqs[0].Messages
	require.Len(t, msgs, 2)
	assert.Equal(t, "assistant", msgs[0].Role)
	assert.Equal(t, model.ChatMessage{Role: "user", Content: "what do you build?"}, msgs[1])
}

func TestAskEmptyQuestion(t *testing.T) {
	sender := &stubSender{}
	err := ask(context.Background(), sender, "   ", &bytes.Buffer{})
	require.Error(t, err)
	assert.Empty(t, sender.reqs)
}

func TestAskKeepsClientErrorChain(t *testing.T) {
	sender := &stubSender{err: &client.Error{Status: http.StatusInternalServerError, Message: "missing API key"}}
	err := ask(context.Background(), sender, "hello", &bytes.Buffer{})

	var clientErr *client.Error
	require.ErrorAs(t, err, &clientErr)
	assert.Equal(t, http.StatusInternalServerError, clientErr.Status)
	assert.EqualError(t, err, "missing API key")
}

func TestAskBlankReplyFails(t *testing.T) {
	sender := &stubSender{replies: []string{"   "}}
	var out bytes.Buffer
	err := ask(context.Background(), sender, "hello", &out)
	require.EqualError(t, err, chat.DefaultFailure)
	assert.Empty(t, out.String())
}

func TestAskFailure(t *testing.T) {
	sender := &stubSender{err: errors.New("missing API key")}
	var out bytes.Buffer
	err := ask(context.Background(), sender, "hello", &out)
	require.EqualError(t, err, "missing API key")
	assert.Empty(t, out.String())
}

// =============================================================================
// PLAIN REPL
// =============================================================================

func TestREPLSession(t *testing.T) {
	sender := &stubSender{replies: []string{"First answer.", "Second answer."}}
	var out bytes.Buffer
	s := newREPLSession(sender, &out)

	s.greet()
	assert.Contains(t, out.String(), model.Greeting().Content)

	s.turn(context.Background(), "first")
	s.turn(context.Background(), "   ")
	s.turn(context.Background(), "second")

	assert.Contains(t, out.String(), "First answer.")
	assert.Contains(t, out.String(), "Second answer.")
	require.Len(t, sender.reqs, 2, "blank input is not sent")
	assert.Len(t, sender.reqs[1].Messages, 4)
	assert.Len(t, s.machine.Messages(), 5)
}

func TestREPLSessionFailureKeepsConversation(t *testing.T) {
	sender := &stubSender{err: errors.New("Unable to reach the assistant. Check your connection and try again.")}
	var out bytes.Buffer
	s := newREPLSession(sender, &out)

	s.turn(context.Background(), "hello")
	assert.Contains(t, out.String(), "[Error]")
	assert.Contains(t, out.String(), "Unable to reach the assistant")
	assert.Len(t, s.machine.Messages(), 2, "user message stays, no reply added")

	// An errored session accepts the next question.
	sender.err = nil
	sender.replies = []string{"Back online."}
	s.turn(context.Background(), "again")
	assert.Contains(t, out.String(), "Back online.")
	assert.Empty(t, s.machine.Err())
}

func TestREPLSessionBlankReplyShowsError(t *testing.T) {
	sender := &stubSender{replies: []string{""}}
	var out bytes.Buffer
	s := newREPLSession(sender, &out)

	s.turn(context.Background(), "hello")
	assert.Contains(t, out.String(), chat.DefaultFailure)
	assert.Len(t, s.machine.Messages(), 2)
}

func TestIsExit(t *testing.T) {
	for input, want := range map[string]bool{
		"exit":     true,
		" QUIT ":   true,
		"/q":       true,
		"/quit":    true,
		"exit now": false,
		"":         false,
		"hello":    false,
	} {
		assert.Equal(t, want, isExit(input), "input %q", input)
	}
}

// =============================================================================
// SERVE
// =============================================================================

func TestBuildServerHealth(t *testing.T) {
	cfg := config.Default()
	srv := buildServer(cfg, config.StaticCredential(""), logging.New(cfg.Log, &bytes.Buffer{}))

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"credential":"missing"`)
}

func TestRunServerLogsFingerprintOnly(t *testing.T) {
	cfg := config.Default()
	cfg.Server.Addr = "127.0.0.1:0"
	cred := config.StaticCredential("sk-secret-value")

	var logs lockedBuffer
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- runServer(ctx, cfg, cred, logging.New(cfg.Log, &logs)) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}

	assert.Contains(t, logs.String(), "SERVER_CONFIG")
	assert.Contains(t, logs.String(), cred.Fingerprint())
	assert.NotContains(t, logs.String(), "sk-secret-value")
}
