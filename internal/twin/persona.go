// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package twin

import (
	_ "embed"
	"strings"
)

//go:embed persona.md
var personaText string

// Persona returns the system instruction prepended to every provider call.
func Persona() string {
	return strings.TrimSpace(personaText)
}
