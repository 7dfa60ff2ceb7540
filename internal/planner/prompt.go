package planner

import (
	"fmt"
	"strings"

	"github.com/yudduy/sql-exenv/internal/task"
)

const systemPrompt = `You are the planning component of an autonomous PostgreSQL query optimization agent.
Given the current query, diagnostic feedback, the database schema, and a log of past iterations,
choose exactly one next action. Respond with a single JSON object and nothing else:

{"type": "CreateIndex|RunAnalyze|RewriteQuery|TestIndex|Done|Failed",
 "ddl": "CREATE INDEX ... (CreateIndex, TestIndex, RunAnalyze)",
 "table": "table name (RunAnalyze)",
 "newSQL": ["... (RewriteQuery, one or more statements)"],
 "probeQuery": "... (TestIndex, optional)",
 "reasoning": "why this action",
 "confidence": 0.0-1.0}`

// buildPrompt renders the system and user messages the Planner sends to
// the LLM, per (a)-(g) of the prompt-construction rule: intent, current
// SQL, Feedback, iteration memory, schema, action grammar and
// category-specific rules, and the strict single-JSON-object instruction
// (carried in the system prompt above).
func buildPrompt(in Input) (string, string) {
	var b strings.Builder

	fmt.Fprintf(&b, "Intent: %s\n\n", in.Intent)

	b.WriteString("Current SQL:\n")
	for _, stmt := range in.QuerySet {
		fmt.Fprintf(&b, "  %s\n", stmt)
	}
	b.WriteString("\n")

	fb := in.Feedback
	fmt.Fprintf(&b, "Feedback: status=%s priority=%s\n  reason: %s\n  suggestion: %s\n\n",
		fb.Status, fb.Priority, fb.Reason, fb.Suggestion)

	if len(in.Memory) > 0 {
		b.WriteString("Iteration history:\n")
		for _, r := range in.Memory {
			fmt.Fprintf(&b, "  %s\n", r.Render())
		}
		b.WriteString("\n")
	}

	if len(in.Schema.Tables) > 0 {
		b.WriteString("Schema:\n")
		for name, t := range in.Schema.Tables {
			cols := make([]string, len(t.Columns))
			for i, c := range t.Columns {
				cols[i] = fmt.Sprintf("%s %s", c.Name, c.Type)
			}
			fmt.Fprintf(&b, "  %s(%s)\n", name, strings.Join(cols, ", "))
			for _, idx := range t.Indexes {
				fmt.Fprintf(&b, "    index %s on (%s)\n", idx.Name, strings.Join(idx.Columns, ", "))
			}
			for _, fk := range t.ForeignKeys {
				fmt.Fprintf(&b, "    fk %s -> %s.%s\n", fk.Column, fk.RefTable, fk.RefColumn)
			}
			for _, row := range in.Schema.SampleRows[name] {
				fmt.Fprintf(&b, "    row %v\n", row)
			}
		}
		b.WriteString("\n")
	}

	writeCategoryRules(&b, in)
	writeLearningDirectives(&b, in)

	fmt.Fprintf(&b, "\nIteration %d of %d.\n", in.Iteration, in.MaxIterations)

	return systemPrompt, b.String()
}

func writeCategoryRules(b *strings.Builder, in Input) {
	switch in.Category {
	case task.Management:
		if len(in.QuerySet) > 1 {
			b.WriteString("Rule: this is a Management task with multiple statements. You may emit a single " +
				"RewriteQuery containing the full corrected sequence; the executor applies statements in order.\n")
		}
	case task.Efficiency:
		b.WriteString("Rule: this is an Efficiency task. Prefer CreateIndex or RunAnalyze over rewriting the query.\n")
	}

	if in.Feedback.Report.Warning != "" && strings.Contains(strings.ToLower(in.Feedback.Report.Warning), "syntax") {
		b.WriteString("Rule: the query failed with a syntax error. Propose a RewriteQuery that fixes the syntax. " +
			"DDL is forbidden until the syntax is valid.\n")
	}

	if strings.Contains(strings.ToUpper(strings.Join(in.QuerySet, " ")), "RETURNING") &&
		strings.Contains(strings.ToUpper(strings.Join(in.QuerySet, " ")), "JOIN") {
		b.WriteString("Rule: PostgreSQL's UPDATE ... RETURNING cannot reference a joined table directly. " +
			"Rewrite using a common-table-expression that performs the join, then UPDATE ... FROM the CTE.\n")
	}
}

func writeLearningDirectives(b *strings.Builder, in Input) {
	b.WriteString("Directives: do not repeat an action recorded as regressed or unchanged in the iteration history. ")
	if in.IndexCreatedButUnused != "" {
		fmt.Fprintf(b, "An index on %s was created but is not used by the planner; consider RunAnalyze. ", in.IndexCreatedButUnused)
	}
	b.WriteString("Emit Done when feedback status is pass or no further improvement is plausible. ")
	b.WriteString("Emit Failed when no productive action remains.\n")
}
