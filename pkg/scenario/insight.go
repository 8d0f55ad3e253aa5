package scenario

import "strings"

// Insight is a coarse reading of which access path a plan chose.
type Insight string

const (
	InsightIndexScan Insight = "index_scan"
	InsightTableScan Insight = "table_scan"
	InsightUnknown   Insight = "unknown"
)

// ClassifyPlan inspects plan text. Any mention of an index wins, since
// engines describe index lookups as scans or searches "using index".
func ClassifyPlan(plan string) Insight {
	lower := strings.ToLower(plan)
	switch {
	case strings.Contains(lower, "index"):
		return InsightIndexScan
	case strings.Contains(lower, "scan"):
		return InsightTableScan
	default:
		return InsightUnknown
	}
}
