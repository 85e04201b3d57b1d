// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config provides configuration loading for the twin proxy and clients.
//
// Configuration is TOML, with built-in defaults, environment variable
// overrides, and validation.
//
// # Key Types
//
//   - Config: Main configuration structure
//   - ServerConfig: HTTP listener, CORS and rate limiting
//   - ProviderConfig: Completion provider endpoint and sampling settings
//   - Credential: Once-only resolution of the provider API key
//
// # Configuration Precedence
//
// Configuration is loaded from (in order of precedence):
//   - Environment variables (TWIN_*)
//   - --config path, or ~/.twin/config.toml
//   - Built-in defaults
//
// The provider API key is never read from the TOML file. It comes from the
// environment (OPENAI_API_KEY by default) or, failing that, from a KEY=value
// file one directory above the working directory. See Credential.
//
// # Usage
//
//	cfg, err := config.Load("")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	key, err := config.NewCredential(cfg.Provider).Resolve()
package config
