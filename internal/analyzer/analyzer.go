package analyzer

import (
	"fmt"
	"sort"

	"github.com/yudduy/sql-exenv/internal/plan"
)

// Analyze runs the default rule set over output and returns a Report. It
// never returns an error: a malformed or empty plan degrades to an empty
// Report with Warning set, rather than panicking the caller.
func Analyze(output plan.ExplainOutput) Report {
	return AnalyzeWithThresholds(output, DefaultThresholds())
}

// AnalyzeWithThresholds is Analyze with caller-supplied Thresholds.
func AnalyzeWithThresholds(output plan.ExplainOutput, th Thresholds) (report Report) {
	defer func() {
		if r := recover(); r != nil {
			report = Report{Warning: fmt.Sprintf("analyzer recovered from malformed plan: %v", r)}
		}
	}()

	root := &output.Plan
	if root.NodeType == "" {
		return Report{Warning: "malformed EXPLAIN output: root plan node has no Node Type"}
	}

	report.TotalCost = root.TotalCost
	report.ExecutionTimeMS = output.ExecutionTime
	report.PlanningTimeMS = output.PlanningTime

	ctx := BuildContext(root)
	walkTree(root, nil, -1, &ctx, th, root.TotalCost, &report)
	report.Bottlenecks = append(report.Bottlenecks, consolidateEstimateMismatches(root, &ctx, th)...)

	sort.SliceStable(report.Bottlenecks, func(i, j int) bool {
		if report.Bottlenecks[i].Severity != report.Bottlenecks[j].Severity {
			return report.Bottlenecks[i].Severity > report.Bottlenecks[j].Severity
		}
		return report.Bottlenecks[i].Cost > report.Bottlenecks[j].Cost
	})

	return report
}

func walkTree(node, parent *plan.PlanNode, childIdx int, ctx *PlanContext, th Thresholds, rootCost float64, report *Report) {
	for _, rule := range defaultRules {
		report.Bottlenecks = append(report.Bottlenecks, rule(node, parent, childIdx, ctx, th, rootCost)...)
	}

	for i := range node.Plans {
		walkTree(&node.Plans[i], node, i, ctx, th, rootCost, report)
	}
}

// consolidateEstimateMismatches catches a specific pattern plain per-node
// comparison misses: a CTE whose own row estimate was wildly wrong, which
// then propagates bad estimates into every join that scans it later. It
// reports at most one bottleneck per CTE, attributed to the CTE's scan
// sites rather than its definition, since that's where the bad estimate
// actually distorts a join strategy.
func consolidateEstimateMismatches(root *plan.PlanNode, ctx *PlanContext, th Thresholds) []Bottleneck {
	var out []Bottleneck

	for name, cte := range ctx.CTEs {
		if cte.EstimatedRows <= 0 || cte.ActualRows <= 0 {
			continue
		}
		ratio := float64(cte.ActualRows) / float64(cte.EstimatedRows)
		inverse := ratio < 1
		if inverse {
			ratio = 1 / ratio
		}
		if ratio <= th.EstimateErrorRatio {
			continue
		}

		refs := findCTEReferences(root, name)
		if len(refs) == 0 {
			continue
		}

		direction := "underestimated"
		if inverse {
			direction = "overestimated"
		}
		out = append(out, Bottleneck{
			Severity: LOW,
			Kind:     EstimateError,
			Relation: name,
			Reason: fmt.Sprintf(
				"CTE %q %s rows by %.1fx (estimated %d, actual %d), distorting %d downstream join(s)",
				name, direction, ratio, cte.EstimatedRows, cte.ActualRows, len(refs),
			),
			Suggestion: fmt.Sprintf("inline or materialize CTE %q explicitly, or run ANALYZE on its source tables", name),
			Cost:       cte.Node.TotalCost,
			Rows:       cte.ActualRows,
		})
	}

	return out
}

// findCTEReferences returns every node under root whose CTE Name matches
// name — the points where a CTE's (possibly wrong) row estimate feeds into
// a join or scan decision.
func findCTEReferences(node *plan.PlanNode, name string) []*plan.PlanNode {
	var refs []*plan.PlanNode
	if node.CTEName == name {
		refs = append(refs, node)
	}
	for i := range node.Plans {
		refs = append(refs, findCTEReferences(&node.Plans[i], name)...)
	}
	return refs
}
