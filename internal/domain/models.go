// package domain holds the core data types of the compliance analyzer.
// All of them are immutable value types: created once, never mutated.
package domain

import "time"

// RiskTier is the ordered classification of how much scrutiny a change
// warrants. The zero value is TierLow.
type RiskTier int

const (
	TierLow RiskTier = iota
	TierMedium
	TierHigh
	TierCritical
)

func (t RiskTier) String() string {
	switch t {
	case TierLow:
		return "low"
	case TierMedium:
		return "medium"
	case TierHigh:
		return "high"
	case TierCritical:
		return "critical"
	default:
		return "unknown"
	}
}

// MarshalText makes tiers render as their names in JSON payloads.
func (t RiskTier) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// PullRequestRecord is an immutable snapshot of one merged pull request at
// fetch time. It is superseded by a fresh fetch on the next run, never
// updated incrementally.
type PullRequestRecord struct {
	Number            int           `json:"number"`
	Title             string        `json:"title"`
	Author            string        `json:"author"`
	Approvers         []string      `json:"approvers"` // in approval order; may be empty
	MergedAt          time.Time     `json:"merged_at"`
	ChangedFiles      []string      `json:"changed_files"`
	Additions         int           `json:"additions"`
	Deletions         int           `json:"deletions"`
	Diff              string        `json:"diff,omitempty"` // unified diff text; may be empty
	ReviewComments    int           `json:"review_comments"`
	TimeToFirstReview time.Duration `json:"time_to_first_review"` // zero when no review was submitted
	TimeToMerge       time.Duration `json:"time_to_merge"`
	URL               string        `json:"url,omitempty"`
}

// RiskAssessment is the classifier's verdict for a single pull request. The
// tier is a deterministic function of the score via fixed thresholds.
type RiskAssessment struct {
	Tier    RiskTier `json:"tier"`
	Score   int      `json:"score"`
	Reasons []string `json:"reasons,omitempty"` // ordered by signal evaluation order
}

// ComplianceVerdict is the per-PR outcome. Compliant is false exactly when
// Violations is non-empty.
type ComplianceVerdict struct {
	Number     int            `json:"number"`
	Compliant  bool           `json:"compliant"`
	Assessment RiskAssessment `json:"assessment"`
	Violations []string       `json:"violations,omitempty"`
}

// ComplianceMetrics aggregates a batch of verdicts into the population-level
// numbers that become the evidence payload.
type ComplianceMetrics struct {
	Total            int              `json:"total"`
	Compliant        int              `json:"compliant"`
	ComplianceRate   float64          `json:"complianceRate"`
	RiskDistribution map[string]int   `json:"riskDistribution"`
	NonCompliantIDs  []int            `json:"nonCompliantIds"`
	Passed           bool             `json:"passed"`
	ReviewPatterns   map[string]int   `json:"reviewPatterns,omitempty"` // approvals per reviewer
	TimeStats        *ReviewTimeStats `json:"timeStats,omitempty"`
}

// ReviewTimeStats carries review latency statistics over the analyzed batch,
// in hours.
type ReviewTimeStats struct {
	MedianTimeToFirstReview float64 `json:"medianTimeToFirstReview"`
	AvgTimeToFirstReview    float64 `json:"avgTimeToFirstReview"`
	MedianTimeToMerge       float64 `json:"medianTimeToMerge"`
	AvgTimeToMerge          float64 `json:"avgTimeToMerge"`
}

// Evidence is a persisted, timestamped compliance record suitable for audit.
type Evidence struct {
	ID          string            `json:"id" db:"id"`
	ControlID   int               `json:"control_id" db:"control_id"`
	CreatedAt   time.Time         `json:"created_at" db:"created_at"`
	Status      string            `json:"status" db:"status"` // "pass" or "fail"
	Description string            `json:"description" db:"description"`
	Metrics     ComplianceMetrics `json:"metrics"`
}

// Evidence.Status values.
const (
	EvidencePass = "pass"
	EvidenceFail = "fail"
)

// TrendDirection describes how compliance evolved across evidence history.
type TrendDirection string

const (
	TrendImproving TrendDirection = "improving"
	TrendDeclining TrendDirection = "declining"
	TrendStable    TrendDirection = "stable"
)
