// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/subosito/gotenv"
)

// ErrCredentialMissing indicates that neither the environment nor the
// fallback file yielded a provider API key.
var ErrCredentialMissing = errors.New("provider API key not configured")

// Credential resolves the provider API key exactly once and caches the outcome.
//
// Resolution order:
//  1. the environment variable named by ProviderConfig.APIKeyEnv
//  2. the same key in ProviderConfig.EnvFile (KEY=value lines, optional quotes)
//
// The outcome (including "missing") is fixed for the lifetime of the
// Credential, so the fallback file is read at most once. Concurrent first
// calls block on the same resolution and observe the same value.
type Credential struct {
	key  string
	file string

	getenv   func(string) string
	readFile func(string) (gotenv.Env, error)

	once   sync.Once
	value  string
	source string
	err    error
}

// NewCredential creates a Credential for the given provider settings.
func NewCredential(p ProviderConfig) *Credential {
	key := p.APIKeyEnv
	if key == "" {
		key = DefaultAPIKeyEnv
	}
	return &Credential{
		key:      key,
		file:     p.EnvFile,
		getenv:   os.Getenv,
		readFile: readEnvFile,
	}
}

// StaticCredential returns a Credential that always resolves to value.
// An empty value resolves to ErrCredentialMissing.
func StaticCredential(value string) *Credential {
	c := &Credential{key: DefaultAPIKeyEnv}
	c.once.Do(func() {
		c.value = strings.TrimSpace(value)
		c.source = "static"
		if c.value == "" {
			c.err = ErrCredentialMissing
		}
	})
	return c
}

// readEnvFile parses a dotenv file without touching the process environment.
func readEnvFile(path string) (gotenv.Env, error) {
	return gotenv.Read(path)
}

// Resolve returns the API key, or ErrCredentialMissing.
func (c *Credential) Resolve() (string, error) {
	c.once.Do(c.resolve)
	return c.value, c.err
}

// Source reports where the key came from: "env", "file", "static" or "".
func (c *Credential) Source() string {
	c.once.Do(c.resolve)
	return c.source
}

// Configured reports whether a key was resolved.
func (c *Credential) Configured() bool {
	_, err := c.Resolve()
	return err == nil
}

// Fingerprint returns a short SHA-256 fingerprint of the key for logging.
func (c *Credential) Fingerprint() string {
	v, err := c.Resolve()
	if err != nil {
		return "none"
	}
	h := sha256.Sum256([]byte(v))
	return hex.EncodeToString(h[:4])
}

func (c *Credential) resolve() {
	if v := strings.TrimSpace(c.getenv(c.key)); v != "" {
		c.value, c.source = v, "env"
		return
	}

	if c.file == "" {
		c.err = ErrCredentialMissing
		return
	}

	env, err := c.readFile(c.file)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			c.err = ErrCredentialMissing
			return
		}
		c.err = fmt.Errorf("%w: reading %s: %v", ErrCredentialMissing, c.file, err)
		return
	}

	if v := trimQuotes(strings.TrimSpace(env[c.key])); v != "" {
		c.value, c.source = v, "file"
		return
	}
	c.err = ErrCredentialMissing
}

// trimQuotes strips one pair of matching surrounding quotes. gotenv already
// unquotes well-formed values; this covers values quoted twice over, e.g.
// KEY="'sk-...'".
func trimQuotes(s string) string {
	if len(s) >= 2 {
		if (s[0] == '"' && s[len(s)-1] == '"') || (s[0] == '\'' && s[len(s)-1] == '\'') {
			return strings.TrimSpace(s[1 : len(s)-1])
		}
	}
	return s
}
