// Package llm defines the abstract chat-completion boundary the Planner and
// Semantic Translator depend on. No vendor SDK ships in this module; callers
// wire a concrete ChatClient at the program's edge.
package llm

import "context"

// Role identifies the speaker of a Message in a chat-completion transcript.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

type Message struct {
	Role    Role
	Content string
}

// Options carries the knobs a caller may set on a single Chat call. Fields
// are advisory: a ChatClient that ignores MaxTokens or ReasoningBudget is
// still conformant.
type Options struct {
	MaxTokens int
	// Temperature, when non-nil, requests a specific sampling temperature.
	Temperature *float64
	// ReasoningBudget is the Planner's "extended reasoning" token budget
	// (spec default 8000); zero means no preference expressed.
	ReasoningBudget int
}

// ChatClient is the only surface this repository requires from a language
// model. Implementations are free to wrap any vendor API; Chat returns the
// raw assistant text, unparsed.
type ChatClient interface {
	Chat(ctx context.Context, messages []Message, opts Options) (string, error)
}
