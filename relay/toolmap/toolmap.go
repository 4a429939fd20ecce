// Package toolmap shortens client tool names to fit the upstream's
// 64-character limit and restores the originals when tool-use blocks travel
// back to the client.
package toolmap

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// MaxUpstreamNameLen is the longest tool name the upstream accepts.
const MaxUpstreamNameLen = 64

const (
	aliasPrefix  = "t_"
	suffixMaxLen = 20
	mcpPrefix    = "mcp__"
)

// Map records the aliases minted for one request. It is populated while the
// request is converted and read while the response is translated; a Map
// serves exactly one request and is not safe for concurrent use.
type Map struct {
	forward map[string]string // original -> alias
	reverse map[string]string // alias -> original
}

func New() *Map {
	return &Map{
		forward: make(map[string]string),
		reverse: make(map[string]string),
	}
}

// Alias returns the upstream-safe name for a client tool name. Names within
// the limit pass through untouched. Longer names map to
// "t_<suffix>_<16 hex>" where the suffix keeps the most meaningful fragment
// of the original and the digits are a stable hash of the whole name, so the
// same name always yields the same alias.
func (m *Map) Alias(name string) string {
	if len(name) <= MaxUpstreamNameLen {
		return name
	}
	if alias, ok := m.forward[name]; ok {
		return alias
	}
	alias := aliasPrefix + meaningfulSuffix(name) + "_" + nameDigest(name)
	m.forward[name] = alias
	m.reverse[alias] = name
	return alias
}

// Restore maps an upstream tool name back to the client's original. Names
// that were never aliased come back unchanged.
func (m *Map) Restore(name string) string {
	if original, ok := m.reverse[name]; ok {
		return original
	}
	return name
}

// Len reports how many names were aliased.
func (m *Map) Len() int {
	return len(m.forward)
}

// meaningfulSuffix extracts the readable fragment embedded in the alias.
// MCP-style names ("mcp__<server>__<tool>") keep the tool part with hyphens
// folded to underscores; anything else keeps its last path-ish segment.
func meaningfulSuffix(name string) string {
	if rest, ok := strings.CutPrefix(name, mcpPrefix); ok {
		if _, tool, found := strings.Cut(rest, "__"); found && tool != "" {
			return truncate(strings.ReplaceAll(tool, "-", "_"), suffixMaxLen)
		}
	}
	segments := strings.FieldsFunc(name, func(r rune) bool {
		return r == '_' || r == '-' || r == '.' || r == ':'
	})
	if len(segments) > 0 {
		return truncate(segments[len(segments)-1], suffixMaxLen)
	}
	return truncate(name, suffixMaxLen)
}

func nameDigest(name string) string {
	sum := sha256.Sum256([]byte(name))
	return hex.EncodeToString(sum[:8])
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
