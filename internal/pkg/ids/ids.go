package ids

import (
	"crypto/rand"
	"encoding/hex"
	"regexp"
	"strings"
)

// Entity identifiers are 24 lowercase hex characters, matching the
// upstream data the ingestion pipeline was built against.
var idPattern = regexp.MustCompile(`^[0-9a-fA-F]{24}$`)

func IsValid(id string) bool {
	return idPattern.MatchString(id)
}

// Normalize returns the lowercased id, or "" when the input is not a
// well-formed identifier.
func Normalize(id string) string {
	id = strings.TrimSpace(id)
	if !idPattern.MatchString(id) {
		return ""
	}
	return strings.ToLower(id)
}

// NormalizeAll normalizes each id, dropping malformed entries and
// duplicates while preserving order.
func NormalizeAll(in []string) []string {
	out := make([]string, 0, len(in))
	seen := make(map[string]struct{}, len(in))
	for _, raw := range in {
		id := Normalize(raw)
		if id == "" {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

func New() string {
	b := make([]byte, 12)
	if _, err := rand.Read(b); err != nil {
		panic("ids: crypto/rand unavailable: " + err.Error())
	}
	return hex.EncodeToString(b)
}
