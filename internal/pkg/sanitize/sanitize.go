package sanitize

import (
	"regexp"
	"strings"

	"review-pulse/internal/pkg/ids"
)

const (
	MaxTextLength        = 5000
	MaxChatMessageLength = 5000
	MaxHistoryEntryLen   = 2000
	MaxHistoryMessages   = 20
	MaxChatLocations     = 10
	MaxPage              = 1000
	MaxLimit             = 100
)

var controlChars = regexp.MustCompile(`[\x00-\x08\x0B\x0C\x0E-\x1F\x7F]`)

// Text strips null bytes and control characters, collapses whitespace
// and enforces maxLength. It never fails; malformed input degrades to "".
func Text(input string, maxLength int) string {
	if maxLength <= 0 {
		maxLength = MaxTextLength
	}
	s := strings.ReplaceAll(input, "\x00", "")
	s = controlChars.ReplaceAllString(s, "")
	s = strings.Join(strings.Fields(s), " ")
	if len(s) > maxLength {
		s = s[:maxLength]
	}
	return s
}

// ID returns the normalized 24-hex identifier, or "" when rejected.
func ID(id string) string {
	return ids.Normalize(id)
}

// IDArray truncates to maxCount before validating each entry, dropping
// invalid ones.
func IDArray(in []string, maxCount int) []string {
	if maxCount <= 0 {
		maxCount = MaxChatLocations
	}
	if len(in) > maxCount {
		in = in[:maxCount]
	}
	out := make([]string, 0, len(in))
	for _, raw := range in {
		if id := ids.Normalize(raw); id != "" {
			out = append(out, id)
		}
	}
	return out
}

// Pagination clamps page to [1,1000] and limit to [1,100].
func Pagination(page, limit int) (int, int) {
	if page < 1 {
		page = 1
	}
	if page > MaxPage {
		page = MaxPage
	}
	if limit < 1 {
		limit = 20
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}
	return page, limit
}

var maliciousPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)<script`),
	regexp.MustCompile(`(?i)javascript:`),
	regexp.MustCompile(`(?i)on\w+\s*=`),
	regexp.MustCompile(`\$\{.*\}`),
	regexp.MustCompile(`\{\{.*\}\}`),
	regexp.MustCompile(`(?i)drop\s+table`),
	regexp.MustCompile(`(?i)union\s+select`),
	regexp.MustCompile(`(?i)\beval\s*\(`),
	regexp.MustCompile(`(?i)\bexec\s*\(`),
	regexp.MustCompile(`__proto__`),
	regexp.MustCompile(`\.\./\.\./`),
}

// LooksMalicious flags inputs resembling injection payloads. This is a
// coarse UX heuristic against accidental injection-like text, not a
// security boundary; authentication and parameterized queries are.
func LooksMalicious(input string) bool {
	for _, p := range maliciousPatterns {
		if p.MatchString(input) {
			return true
		}
	}
	return false
}

type HistoryEntry struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

var allowedRoles = map[string]bool{"user": true, "assistant": true, "system": true}

// History keeps the most recent maxMessages well-formed entries, with
// each content sanitized and bounded.
func History(in []HistoryEntry, maxMessages int) []HistoryEntry {
	if maxMessages <= 0 {
		maxMessages = MaxHistoryMessages
	}
	if len(in) > maxMessages {
		in = in[len(in)-maxMessages:]
	}
	out := make([]HistoryEntry, 0, len(in))
	for _, m := range in {
		if m.Role == "" || m.Content == "" {
			continue
		}
		role := m.Role
		if !allowedRoles[role] {
			role = "user"
		}
		content := Text(m.Content, MaxHistoryEntryLen)
		if content == "" {
			continue
		}
		out = append(out, HistoryEntry{Role: role, Content: content})
	}
	return out
}

type ChatRequest struct {
	Message             string
	LocationIDs         []string
	SessionID           string
	ConversationHistory []HistoryEntry
}

// ValidateChatRequest normalizes a chat payload. It returns the
// sanitized request and the list of validation errors; it never panics
// on malformed input.
func ValidateChatRequest(message string, locationIDs []string, sessionID string, history []HistoryEntry) (ChatRequest, []string) {
	var errs []string
	out := ChatRequest{}

	switch {
	case strings.TrimSpace(message) == "":
		errs = append(errs, "message cannot be empty")
	case len(message) > MaxChatMessageLength:
		errs = append(errs, "message is too long (max 5000 characters)")
	case LooksMalicious(message):
		errs = append(errs, "message contains potentially malicious content")
	default:
		out.Message = Text(message, MaxChatMessageLength)
	}

	switch {
	case len(locationIDs) == 0:
		errs = append(errs, "at least one location must be attached")
	case len(locationIDs) > MaxChatLocations:
		errs = append(errs, "maximum 10 locations can be attached to a single chat")
	default:
		out.LocationIDs = IDArray(locationIDs, MaxChatLocations)
		if len(out.LocationIDs) == 0 {
			errs = append(errs, "no valid location ids provided")
		}
	}

	if sessionID != "" {
		out.SessionID = Text(sessionID, 100)
	}
	out.ConversationHistory = History(history, MaxHistoryMessages)

	return out, errs
}
