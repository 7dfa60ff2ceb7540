// Package fixture provides a deterministic llm.ChatClient test double,
// recorded the way the teacher's own *_test.go files use literal fixtures
// in place of mocks.
package fixture

import (
	"context"
	"fmt"
	"strings"

	"github.com/yudduy/sql-exenv/internal/llm"
)

// Client replays a canned response for each call, keyed by the index of the
// call (Responses[0] for the first Chat call, Responses[1] for the second,
// and so on). The last entry repeats for any call beyond the slice length,
// so a single-element fixture can stand in for a whole ReAct loop.
type Client struct {
	Responses []string
	Err       error

	calls int
	// Prompts records every message slice passed to Chat, for assertions.
	Prompts [][]llm.Message
}

var _ llm.ChatClient = (*Client)(nil)

func (c *Client) Chat(_ context.Context, messages []llm.Message, _ llm.Options) (string, error) {
	if c.Err != nil {
		return "", c.Err
	}
	c.Prompts = append(c.Prompts, messages)

	if len(c.Responses) == 0 {
		return "", fmt.Errorf("fixture: no responses configured")
	}

	idx := c.calls
	if idx >= len(c.Responses) {
		idx = len(c.Responses) - 1
	}
	c.calls++
	return c.Responses[idx], nil
}

// Calls returns how many times Chat has been invoked.
func (c *Client) Calls() int { return c.calls }

// LastUserMessage returns the content of the most recent user-role message
// sent to the client, for assertions against prompt construction.
func (c *Client) LastUserMessage() string {
	if len(c.Prompts) == 0 {
		return ""
	}
	msgs := c.Prompts[len(c.Prompts)-1]
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].Role == llm.RoleUser {
			return msgs[i].Content
		}
	}
	return ""
}

// ContainsInLastPrompt reports whether needle appears in the last prompt's
// concatenated content, case-insensitively.
func (c *Client) ContainsInLastPrompt(needle string) bool {
	if len(c.Prompts) == 0 {
		return false
	}
	var b strings.Builder
	for _, m := range c.Prompts[len(c.Prompts)-1] {
		b.WriteString(m.Content)
		b.WriteString("\n")
	}
	return strings.Contains(strings.ToLower(b.String()), strings.ToLower(needle))
}
