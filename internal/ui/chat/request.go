// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"
	"sync"
)

// =============================================================================
// REQUEST TRACKING (THREAD-SAFE)
// =============================================================================

// requestTracker numbers outgoing requests and decides whether a result may
// still be applied. Once closed, every pending or later result is dropped
// and the in-flight request's context is cancelled.
//
// Use it as a pointer in Model; Bubble Tea copies the model on every update.
type requestTracker struct {
	mu     sync.Mutex
	seq    uint64
	cancel context.CancelFunc
	closed bool
}

func newRequestTracker() *requestTracker {
	return &requestTracker{}
}

// begin starts request number seq. ok is false after close.
func (rt *requestTracker) begin() (ctx context.Context, seq uint64, ok bool) {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	if rt.closed {
		return nil, 0, false
	}
	if rt.cancel != nil {
		rt.cancel()
	}
	ctx, rt.cancel = context.WithCancel(context.Background())
	rt.seq++
	return ctx, rt.seq, true
}

// finish reports whether the result of request seq should be applied.
func (rt *requestTracker) finish(seq uint64) bool {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	if rt.closed || seq != rt.seq {
		return false
	}
	if rt.cancel != nil {
		rt.cancel()
		rt.cancel = nil
	}
	return true
}

// close drops any pending result. Safe to call more than once.
func (rt *requestTracker) close() {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	rt.closed = true
	if rt.cancel != nil {
		rt.cancel()
		rt.cancel = nil
	}
}

func (rt *requestTracker) isClosed() bool {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	return rt.closed
}
