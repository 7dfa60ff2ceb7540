// Package hypopg wraps the hypopg PostgreSQL extension to implement the
// TestIndex action: scoring a candidate index without ever building it.
package hypopg

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/yudduy/sql-exenv/internal/plan"
)

// MinImprovementPct is the threshold below which TestIndex reports an
// index as "not beneficial".
const MinImprovementPct = 10.0

// Result is the outcome of testing one candidate index against one query.
type Result struct {
	IndexDef       string
	WouldBeUsed    bool
	CostBefore     float64
	CostAfter      float64
	ImprovementPct float64
	PlanSnippet    string
	Err            error
}

// Prover tests hypothetical indexes on behalf of the Executor's TestIndex
// action. Available is probed once per connection's lifetime; when false,
// every TestIndex call fails fast. The Planner's action grammar lists
// TestIndex whether or not the extension is available.
type Prover struct {
	Conn      *pgx.Conn
	Available bool
}

// NewProver probes conn for the hypopg extension and returns a Prover
// whose Available field reflects the result. The probe itself never
// errors the caller out — an absent extension is an expected, common case.
func NewProver(ctx context.Context, conn *pgx.Conn) (*Prover, error) {
	var present bool
	err := conn.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM pg_extension WHERE extname = 'hypopg')`).Scan(&present)
	if err != nil {
		return nil, fmt.Errorf("probing hypopg availability: %w", err)
	}
	return &Prover{Conn: conn, Available: present}, nil
}

// TestIndex begins a short-lived hypothetical index, re-EXPLAINs query
// against it, and always drops it afterward — successful test or not. The
// hypothetical index never appears to any other session.
func (p *Prover) TestIndex(ctx context.Context, query, indexDef string) Result {
	if !p.Available {
		return Result{IndexDef: indexDef, Err: fmt.Errorf("hypopg extension not available on this connection")}
	}

	before, err := plan.Estimate(ctx, p.Conn, query)
	if err != nil {
		return Result{IndexDef: indexDef, Err: fmt.Errorf("baseline EXPLAIN: %w", err)}
	}
	costBefore := before.Plan.TotalCost

	var hypoOID int64
	err = p.Conn.QueryRow(ctx, fmt.Sprintf(`SELECT indexrelid FROM hypopg_create_index($$%s$$)`, indexDef)).Scan(&hypoOID)
	if err != nil {
		return Result{IndexDef: indexDef, CostBefore: costBefore, CostAfter: costBefore, Err: fmt.Errorf("hypopg_create_index: %w", err)}
	}
	defer func() {
		_, _ = p.Conn.Exec(ctx, `SELECT hypopg_drop_index($1)`, hypoOID)
	}()

	after, err := plan.Estimate(ctx, p.Conn, query)
	if err != nil {
		return Result{IndexDef: indexDef, CostBefore: costBefore, CostAfter: costBefore, Err: fmt.Errorf("with-index EXPLAIN: %w", err)}
	}
	costAfter := after.Plan.TotalCost

	nodes := findIndexNodes(&after.Plan, nil)
	wouldBeUsed := containsHypo(nodes) || strings.Contains(strings.ToLower(after.Plan.IndexName), "hypo")

	improvement := 0.0
	if costBefore > 0 {
		improvement = (costBefore - costAfter) / costBefore * 100
	}

	snippet := "No index usage detected"
	if len(nodes) > 0 {
		snippet = strings.Join(nodes, "; ")
	}

	return Result{
		IndexDef:       indexDef,
		WouldBeUsed:    wouldBeUsed,
		CostBefore:     costBefore,
		CostAfter:      costAfter,
		ImprovementPct: improvement,
		PlanSnippet:    snippet,
	}
}

// IsWorthwhile reports whether a Result clears the bar for a follow-up
// CreateIndex: no error, the planner would actually use it, and the
// improvement meets MinImprovementPct.
func IsWorthwhile(r Result) bool {
	return r.Err == nil && r.WouldBeUsed && r.ImprovementPct >= MinImprovementPct
}

// Reset drops every hypothetical index on conn, for use between tasks that
// share a connection.
func Reset(ctx context.Context, conn *pgx.Conn) error {
	_, err := conn.Exec(ctx, `SELECT hypopg_reset()`)
	return err
}

func findIndexNodes(node *plan.PlanNode, results []string) []string {
	if strings.Contains(node.NodeType, "Index") {
		name := node.IndexName
		if name == "" {
			name = "N/A"
		}
		results = append(results, fmt.Sprintf("%s: %s", node.NodeType, name))
	}
	for i := range node.Plans {
		results = findIndexNodes(&node.Plans[i], results)
	}
	return results
}

func containsHypo(nodes []string) bool {
	for _, n := range nodes {
		if strings.Contains(strings.ToLower(n), "hypo") {
			return true
		}
	}
	return false
}
