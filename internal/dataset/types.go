// Package dataset turns the pygame script corpus under data/ into
// chat-formatted instruction-tuning records.
//
// Each script is routed by its leading comment lines:
//
//	# CREATE: <prompt>            create a game from a description
//	# SOURCE: <file> / # REMIX: … modify an existing game
//	# CREATE: … / # ERROR: …      (in *_bug.py) fix a crashing script
//
// Records are written one JSON object per line:
//
//	{"messages":[{"role":"system",…},{"role":"user",…},{"role":"assistant",…}]}
package dataset

import "errors"

// Role is a chat message author.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one chat turn.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Record is one training example.
type Record struct {
	Messages []Message `json:"messages"`
}

// Assistant returns the assistant turn's content, or "" if absent.
func (r Record) Assistant() string {
	for _, m := range r.Messages {
		if m.Role == RoleAssistant {
			return m.Content
		}
	}
	return ""
}

// GameType classifies a record.
type GameType string

const (
	GameTypeBase   GameType = "base"
	GameTypeRemix  GameType = "remix"
	GameTypeBugFix GameType = "bug_fix"
)

// Result is the outcome of routing one script.
type Result struct {
	Record Record
	Type   GameType
	// Lines counts non-blank lines of the code the assistant emits.
	Lines int
	// Source is the script the record was built from.
	Source string
	// Tokens is filled by a TokenCounter when token counting is enabled.
	Tokens int
}

var (
	// ErrSkip marks *_fixed.py files; they are consumed with their bug pair.
	ErrSkip = errors.New("script is consumed by its bug pair")

	// ErrFixedNotFound means a *_bug.py has no *_fixed.py sibling.
	ErrFixedNotFound = errors.New("fixed file not found")

	// ErrSourceNotFound means a remix names a base game that does not exist.
	ErrSourceNotFound = errors.New("base game file not found")

	// ErrInvalidEncoding means a script is not valid UTF-8.
	ErrInvalidEncoding = errors.New("script is not valid UTF-8")
)
