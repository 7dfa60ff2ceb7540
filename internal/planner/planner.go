// Package planner implements the Planner: given the current query set, the
// latest Feedback, the schema, and iteration memory, it asks an
// llm.ChatClient for the next Action and parses the reply.
package planner

import (
	"context"

	"github.com/yudduy/sql-exenv/internal/action"
	"github.com/yudduy/sql-exenv/internal/llm"
	"github.com/yudduy/sql-exenv/internal/memory"
	"github.com/yudduy/sql-exenv/internal/schema"
	"github.com/yudduy/sql-exenv/internal/task"
	"github.com/yudduy/sql-exenv/internal/translator"
)

// DefaultReasoningBudget is the opaque-token deep-thinking budget used when
// a caller doesn't override it.
const DefaultReasoningBudget = 8000

// Input is everything the Planner needs to produce the next Action.
type Input struct {
	Intent        string
	QuerySet      []string
	Feedback      translator.Feedback
	Memory        []memory.Record
	Schema        schema.Schema
	Category      task.Category
	MaxIterations int
	Iteration     int

	// IndexCreatedButUnused, when set, is the table/index target the
	// learning directive should nudge the planner toward RunAnalyze for.
	IndexCreatedButUnused string
}

// Planner produces the next Action given an Input.
type Planner interface {
	Plan(ctx context.Context, in Input) (action.Action, error)
}

// LLMPlanner is the production Planner: it renders a prompt, calls an
// llm.ChatClient, and parses the reply via the three-tier parse in
// parse.go.
type LLMPlanner struct {
	Client          llm.ChatClient
	ReasoningBudget int
}

func NewLLMPlanner(client llm.ChatClient) *LLMPlanner {
	return &LLMPlanner{Client: client, ReasoningBudget: DefaultReasoningBudget}
}

func (p *LLMPlanner) Plan(ctx context.Context, in Input) (action.Action, error) {
	budget := p.ReasoningBudget
	if budget == 0 {
		budget = DefaultReasoningBudget
	}

	system, user := buildPrompt(in)
	opts := llm.Options{ReasoningBudget: budget}
	reply, err := p.Client.Chat(ctx, []llm.Message{
		{Role: llm.RoleSystem, Content: system},
		{Role: llm.RoleUser, Content: user},
	}, opts)
	if err != nil {
		return action.NewFailed("planner call failed: " + err.Error()), nil
	}

	return parseActionResponse(reply), nil
}
