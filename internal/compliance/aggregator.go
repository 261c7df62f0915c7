package compliance

import (
	"sort"

	"github.com/grcops/pr-compliance/internal/domain"
)

// Thresholds are the pass criteria for a whole batch.
type Thresholds struct {
	// MinComplianceRate is the lowest acceptable compliant/total ratio.
	MinComplianceRate float64
	// MaxHighRiskProportion bounds (High+Critical)/total; the batch fails
	// when the proportion reaches this value.
	MaxHighRiskProportion float64
}

// Aggregate folds a batch of verdicts into population metrics and evaluates
// them against the thresholds.
//
// An empty batch is vacuously compliant: the rate is defined as 1.0 rather
// than special-casing the division, on the grounds that zero merged PRs means
// zero control violations. The high-risk proportion of an empty batch is 0.
func Aggregate(verdicts []domain.ComplianceVerdict, thresholds Thresholds) domain.ComplianceMetrics {
	metrics := domain.ComplianceMetrics{
		Total: len(verdicts),
		RiskDistribution: map[string]int{
			domain.TierLow.String():      0,
			domain.TierMedium.String():   0,
			domain.TierHigh.String():     0,
			domain.TierCritical.String(): 0,
		},
	}

	highRisk := 0

	for _, verdict := range verdicts {
		metrics.RiskDistribution[verdict.Assessment.Tier.String()]++

		if verdict.Assessment.Tier >= domain.TierHigh {
			highRisk++
		}

		if verdict.Compliant {
			metrics.Compliant++
		} else {
			metrics.NonCompliantIDs = append(metrics.NonCompliantIDs, verdict.Number)
		}
	}

	rate := 1.0
	proportion := 0.0

	if metrics.Total > 0 {
		rate = float64(metrics.Compliant) / float64(metrics.Total)
		proportion = float64(highRisk) / float64(metrics.Total)
	}

	metrics.ComplianceRate = rate
	metrics.Passed = rate >= thresholds.MinComplianceRate && proportion < thresholds.MaxHighRiskProportion

	return metrics
}

// ReviewPatterns counts approvals per reviewer across the batch, the raw
// material for spotting rubber-stamp reviewers and approval concentration.
func ReviewPatterns(records []domain.PullRequestRecord) map[string]int {
	patterns := make(map[string]int)

	for _, record := range records {
		for _, approver := range record.Approvers {
			patterns[approver]++
		}
	}

	return patterns
}

// TimeStatistics computes review latency statistics in hours over the batch.
// Records with no review activity are excluded from the first-review series.
// Returns nil for an empty batch.
func TimeStatistics(records []domain.PullRequestRecord) *domain.ReviewTimeStats {
	if len(records) == 0 {
		return nil
	}

	var firstReview, merge []float64

	for _, record := range records {
		if record.TimeToFirstReview > 0 {
			firstReview = append(firstReview, record.TimeToFirstReview.Hours())
		}
		merge = append(merge, record.TimeToMerge.Hours())
	}

	return &domain.ReviewTimeStats{
		MedianTimeToFirstReview: median(firstReview),
		AvgTimeToFirstReview:    mean(firstReview),
		MedianTimeToMerge:       median(merge),
		AvgTimeToMerge:          mean(merge),
	}
}

// Trend compares the latest compliance rate against the mean of earlier
// evidence. Movements within epsilon count as stable.
func Trend(history []domain.ComplianceMetrics, epsilon float64) domain.TrendDirection {
	if len(history) < 2 {
		return domain.TrendStable
	}

	latest := history[len(history)-1].ComplianceRate

	var earlier []float64
	for _, metrics := range history[:len(history)-1] {
		earlier = append(earlier, metrics.ComplianceRate)
	}

	baseline := mean(earlier)

	switch {
	case latest > baseline+epsilon:
		return domain.TrendImproving
	case latest < baseline-epsilon:
		return domain.TrendDeclining
	default:
		return domain.TrendStable
	}
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}

	sum := 0.0
	for _, v := range values {
		sum += v
	}

	return sum / float64(len(values))
}

func median(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}

	sorted := append([]float64{}, values...)
	sort.Float64s(sorted)

	mid := len(sorted) / 2
	if len(sorted)%2 == 0 {
		return (sorted[mid-1] + sorted[mid]) / 2
	}

	return sorted[mid]
}
