package analyzer

import (
	"fmt"
	"strings"

	"github.com/yudduy/sql-exenv/internal/plan"
)

// Thresholds tunes every rule's trigger points. DefaultThresholds matches
// the values named directly in this system's component design; callers
// that know their workload (e.g. an OLAP warehouse with routinely large
// scans) can widen them via AnalyzeWithThresholds.
type Thresholds struct {
	SeqScanMinRows     int64
	HighCostRatio      float64
	EstimateErrorRatio float64
	NestedLoopMinRows  int64
	WorkMemBytes       int64
	FilterRemovalPct   float64
}

// DefaultThresholds returns the out-of-the-box tuning: a 1,000-row
// sequential scan floor, a 70% cost-dominance bar, a 5x estimate/actual
// mismatch ratio, a 1,000-row nested loop floor, a 4MB working-memory
// budget for the sort-spill fallback, and a 50% filter-removal bar for
// flagging an index scan's unindexed leftover filter.
func DefaultThresholds() Thresholds {
	return Thresholds{
		SeqScanMinRows:     1000,
		HighCostRatio:      0.7,
		EstimateErrorRatio: 5.0,
		NestedLoopMinRows:  1000,
		WorkMemBytes:       4 * 1024 * 1024,
		FilterRemovalPct:   50.0,
	}
}

// Rule inspects one node (with its parent, position among siblings, and
// the whole-tree PlanContext) and returns zero or more Bottlenecks.
type Rule func(node *plan.PlanNode, parent *plan.PlanNode, childIdx int, ctx *PlanContext, th Thresholds, rootCost float64) []Bottleneck

var defaultRules = []Rule{
	checkSeqScanLargeTable,
	checkHighCostNode,
	checkEstimateError,
	checkNestedLoopLarge,
	checkExternalSort,
	checkMissingJoinIndex,
	checkFilterOnUnindexedColumn,
}

func effectiveRows(node *plan.PlanNode) int64 {
	if node.ActualRows > 0 {
		return node.ActualRows
	}
	return node.PlanRows
}

// baseNodeType strips a "Parallel " prefix so parallel-worker node-type
// variants (Parallel Seq Scan, Parallel Index Scan, Parallel Bitmap Heap
// Scan, ...) compare equal to their sequential equivalents — every rule
// that switches on NodeType should compare against this, not the raw
// field, so plans with parallel workers get the same bottlenecks flagged
// as their non-parallel equivalents would.
func baseNodeType(nodeType string) string {
	return strings.TrimPrefix(nodeType, "Parallel ")
}

// checkSeqScanLargeTable flags a leaf sequential scan whose actual (or, if
// unavailable, estimated) row count exceeds the configured floor.
func checkSeqScanLargeTable(node, _ *plan.PlanNode, _ int, _ *PlanContext, th Thresholds, _ float64) []Bottleneck {
	if baseNodeType(node.NodeType) != "Seq Scan" {
		return nil
	}
	rows := effectiveRows(node)
	if rows <= th.SeqScanMinRows {
		return nil
	}

	cols, connective := SplitFilterColumns(node.Filter)
	table := node.RelationName
	suggestion := SynthesizeSuggestion(table, cols, connective)

	return []Bottleneck{{
		Severity:   HIGH,
		Kind:       SeqScanLargeTable,
		Relation:   table,
		Columns:    cols,
		Reason:     fmt.Sprintf("sequential scan on %s examines %d rows, above the %d-row threshold", nodeLabel(node), rows, th.SeqScanMinRows),
		Suggestion: suggestion,
		Cost:       node.TotalCost,
		Rows:       rows,
	}}
}

// checkHighCostNode flags any node whose own total cost already accounts
// for a large share of the whole query's total cost — the single biggest
// lever for improving overall latency.
func checkHighCostNode(node, _ *plan.PlanNode, _ int, _ *PlanContext, th Thresholds, rootCost float64) []Bottleneck {
	if rootCost <= 0 {
		return nil
	}
	pct := node.TotalCost / rootCost
	if pct < th.HighCostRatio {
		return nil
	}

	return []Bottleneck{{
		Severity:       MEDIUM,
		Kind:           HighCostNode,
		Relation:       node.RelationName,
		Reason:         fmt.Sprintf("%s accounts for %.0f%% of the query's total cost", nodeLabel(node), pct*100),
		Suggestion:     fmt.Sprintf("investigate %s directly; it dominates the plan's cost", innerNodeLabel(node)),
		Cost:           node.TotalCost,
		Rows:           effectiveRows(node),
		CostPercentage: pct * 100,
	}}
}

// checkEstimateError flags a node where the planner's row estimate and the
// measured actual diverge by more than the configured ratio in either
// direction, which undermines every cost decision downstream of it.
func checkEstimateError(node, _ *plan.PlanNode, _ int, _ *PlanContext, th Thresholds, _ float64) []Bottleneck {
	if node.ActualRows <= 0 || node.PlanRows <= 0 {
		return nil
	}
	ratio := float64(node.ActualRows) / float64(node.PlanRows)
	inverse := ratio < 1
	if inverse {
		ratio = 1 / ratio
	}
	if ratio <= th.EstimateErrorRatio {
		return nil
	}

	table := node.RelationName
	direction := "underestimated"
	if inverse {
		direction = "overestimated"
	}

	return []Bottleneck{{
		Severity:   LOW,
		Kind:       EstimateError,
		Relation:   table,
		Reason:     fmt.Sprintf("%s %s rows by %.1fx (estimated %d, actual %d)", nodeLabel(node), direction, ratio, node.PlanRows, node.ActualRows),
		Suggestion: runAnalyzeSuggestion(table),
		Cost:       node.TotalCost,
		Rows:       node.ActualRows,
	}}
}

func runAnalyzeSuggestion(table string) string {
	if table == "" {
		table = "the affected table"
	}
	return fmt.Sprintf("RUN_ANALYZE %s", table)
}

// checkNestedLoopLarge flags a nested loop whose inner side is driven over
// a large number of rows — each outer row re-runs the inner plan, so this
// scales multiplicatively rather than linearly.
func checkNestedLoopLarge(node, _ *plan.PlanNode, _ int, _ *PlanContext, th Thresholds, _ float64) []Bottleneck {
	if node.NodeType != "Nested Loop" || len(node.Plans) < 2 {
		return nil
	}
	inner := &node.Plans[1]
	rows := effectiveRows(inner)
	if rows <= th.NestedLoopMinRows {
		return nil
	}

	col := extractJoinColumnForTable(inner, node.JoinFilter)
	table := innerRelation(inner)
	var cols []string
	var suggestion string
	if col != "" {
		cols = []string{col}
		suggestion = singleColumnIndex(table, col)
	} else {
		suggestion = fmt.Sprintf("CREATE INDEX ON %s (...)", pickNonEmpty(table, "the inner relation"))
	}

	return []Bottleneck{{
		Severity:   HIGH,
		Kind:       NestedLoopLarge,
		Relation:   table,
		Columns:    cols,
		Reason:     fmt.Sprintf("nested loop re-runs its inner plan over %d rows per outer row", rows),
		Suggestion: suggestion,
		Cost:       node.TotalCost,
		Rows:       rows,
	}}
}

// checkExternalSort flags a sort that spilled to disk, or one whose
// estimated memory footprint (width * rows) would exceed the configured
// working-memory budget even when actual spill statistics are unavailable
// (an estimate-only EXPLAIN).
func checkExternalSort(node, _ *plan.PlanNode, _ int, _ *PlanContext, th Thresholds, _ float64) []Bottleneck {
	if node.NodeType != "Sort" {
		return nil
	}

	spilled := node.SortSpaceType == "Disk"
	estimatedBytes := int64(node.PlanWidth) * node.PlanRows
	overBudget := estimatedBytes > th.WorkMemBytes
	if !spilled && !overBudget {
		return nil
	}

	table, cols := sortKeySource(node)
	var suggestion string
	if len(cols) > 0 {
		suggestion = SynthesizeSuggestion(table, cols, "AND")
	} else {
		suggestion = "raise work_mem for this session, or add an index matching the sort key"
	}

	reason := fmt.Sprintf("sort spilled %d bytes to disk", node.SortSpaceUsed*1024)
	if !spilled {
		reason = fmt.Sprintf("sort's estimated working set (%d bytes) exceeds the configured memory budget", estimatedBytes)
	}

	return []Bottleneck{{
		Severity:   MEDIUM,
		Kind:       ExternalSort,
		Relation:   table,
		Columns:    cols,
		Reason:     reason,
		Suggestion: suggestion,
		Cost:       node.TotalCost,
		Rows:       effectiveRows(node),
	}}
}

// checkMissingJoinIndex flags a hash join or nested loop whose build/inner
// side is an unindexed sequential scan carrying its own filter or join
// key — the scan has to materialize before the join can even begin.
func checkMissingJoinIndex(node, _ *plan.PlanNode, _ int, _ *PlanContext, _ Thresholds, _ float64) []Bottleneck {
	inner := joinInnerScan(node)
	if inner == nil || baseNodeType(inner.NodeType) != "Seq Scan" {
		return nil
	}

	joinCond := firstNonEmpty(node.HashCond, node.MergeCond, node.JoinFilter)
	joinCol := extractJoinColumnForTable(inner, joinCond)
	filterCols, connective := SplitFilterColumns(inner.Filter)

	var cols []string
	if joinCol != "" {
		cols = append(cols, joinCol)
	}
	for _, c := range filterCols {
		if !containsString(cols, c) {
			cols = append(cols, c)
		}
	}
	if len(cols) == 0 {
		return nil
	}

	table := inner.RelationName
	suggestion := SynthesizeSuggestion(table, cols, connective)

	return []Bottleneck{{
		Severity:   HIGH,
		Kind:       MissingJoinIndex,
		Relation:   table,
		Columns:    cols,
		Reason:     fmt.Sprintf("%s's build side scans %s sequentially instead of via an index on the join key", nodeLabel(node), table),
		Suggestion: suggestion,
		Cost:       inner.TotalCost,
		Rows:       effectiveRows(inner),
	}}
}

// checkFilterOnUnindexedColumn flags an index scan whose post-index filter
// removes a large share of the rows the index already fetched — a sign
// that the index doesn't cover a column the query actually needs.
func checkFilterOnUnindexedColumn(node, _ *plan.PlanNode, _ int, _ *PlanContext, th Thresholds, _ float64) []Bottleneck {
	if bnt := baseNodeType(node.NodeType); bnt != "Index Scan" && bnt != "Index Only Scan" {
		return nil
	}
	if node.Filter == "" || node.RowsRemovedByFilter <= 0 {
		return nil
	}

	kept := node.ActualRows
	total := kept + node.RowsRemovedByFilter
	if total <= 0 {
		return nil
	}
	removedPct := float64(node.RowsRemovedByFilter) / float64(total) * 100
	if removedPct < th.FilterRemovalPct {
		return nil
	}

	filterCols, _ := SplitFilterColumns(node.Filter)
	indexCols, _ := SplitFilterColumns(node.IndexCond)
	var missing []string
	for _, c := range filterCols {
		if !containsString(indexCols, c) {
			missing = append(missing, c)
		}
	}
	if len(missing) == 0 {
		return nil
	}

	table := node.RelationName
	allCols := append(append([]string{}, indexCols...), missing...)
	suggestion := SynthesizeSuggestion(table, allCols, "AND")

	return []Bottleneck{{
		Severity:   HIGH,
		Kind:       FilterOnUnindexedColumn,
		Relation:   table,
		Columns:    missing,
		Reason:     fmt.Sprintf("%s removes %.0f%% of fetched rows via a filter not covered by its index condition", nodeLabel(node), removedPct),
		Suggestion: suggestion,
		Cost:       node.TotalCost,
		Rows:       kept,
	}}
}

// --- shared helpers ---

func nodeLabel(node *plan.PlanNode) string {
	if node.RelationName != "" {
		return fmt.Sprintf("%s on %s", node.NodeType, node.RelationName)
	}
	if node.Alias != "" {
		return fmt.Sprintf("%s (%s)", node.NodeType, node.Alias)
	}
	return node.NodeType
}

func innerNodeLabel(node *plan.PlanNode) string {
	if node.RelationName != "" {
		return node.RelationName
	}
	return strings.ToLower(node.NodeType)
}

func innerRelation(node *plan.PlanNode) string {
	if node.RelationName != "" {
		return node.RelationName
	}
	if node.IsGatherWrapper() {
		return innerRelation(&node.Plans[0])
	}
	for i := range node.Plans {
		if r := innerRelation(&node.Plans[i]); r != "" {
			return r
		}
	}
	return ""
}

// joinInnerScan locates the build/inner side of a Hash Join or the inner
// side of a Nested Loop, unwrapping the intermediate "Hash" node PostgreSQL
// inserts above a hash join's build side.
func joinInnerScan(node *plan.PlanNode) *plan.PlanNode {
	switch node.NodeType {
	case "Hash Join":
		if len(node.Plans) != 2 {
			return nil
		}
		inner := &node.Plans[1]
		if inner.NodeType == "Hash" && len(inner.Plans) == 1 {
			return &inner.Plans[0]
		}
		return inner
	case "Nested Loop":
		if len(node.Plans) != 2 {
			return nil
		}
		return &node.Plans[1]
	default:
		return nil
	}
}

// extractJoinColumnForTable pulls out the column belonging to node's own
// relation from a join condition string such as "(a.id = b.user_id)",
// preferring the side that matches node's relation or alias.
func extractJoinColumnForTable(node *plan.PlanNode, cond string) string {
	if cond == "" {
		return ""
	}
	ident := node.Alias
	if ident == "" {
		ident = node.RelationName
	}
	for _, m := range columnRefRe.FindAllStringSubmatch(cond, -1) {
		if ident != "" && m[1] == ident {
			return m[2]
		}
	}
	m := columnRefRe.FindStringSubmatch(cond)
	if m == nil {
		return ""
	}
	return m[2]
}

// extractColumnFromSortKey strips a qualifier and any ASC/DESC/NULLS
// suffix from one PostgreSQL Sort Key entry.
func extractColumnFromSortKey(key string) string {
	key = strings.TrimSpace(key)
	fields := strings.Fields(key)
	if len(fields) == 0 {
		return ""
	}
	col := fields[0]
	if idx := strings.LastIndex(col, "."); idx >= 0 {
		col = col[idx+1:]
	}
	return strings.Trim(col, `"`)
}

func sortKeySource(node *plan.PlanNode) (table string, cols []string) {
	for _, k := range node.SortKey {
		if c := extractColumnFromSortKey(k); c != "" {
			cols = append(cols, c)
		}
	}
	if len(node.Plans) > 0 {
		table = innerRelation(&node.Plans[0])
	}
	return table, dedupStrings(cols)
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

func pickNonEmpty(a, b string) string {
	if a != "" {
		return a
	}
	return b
}

func containsString(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}

func dedupStrings(in []string) []string {
	seen := make(map[string]bool, len(in))
	var out []string
	for _, s := range in {
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}
