// package compliance implements the review control checks: per-PR verdicts
// over approval metadata and the population-level aggregation that becomes
// the evidence payload. Everything in this package is a pure function of its
// arguments.
package compliance

import (
	"fmt"
	"strings"

	"github.com/grcops/pr-compliance/internal/domain"
)

const (
	violationNoIndependentApprover = "no independent approver"
	violationSelfApproved          = "self-approved"
	violationNoReviewComments      = "no review comments on elevated-risk change"
)

// Evaluator checks a single pull request against the review control rules.
type Evaluator struct {
	requireReviewComments bool
}

func NewEvaluator(requireReviewComments bool) *Evaluator {
	return &Evaluator{requireReviewComments: requireReviewComments}
}

// Evaluate applies the control rules in order, each rule independently
// appending a violation when it fails. The verdict embeds the assessment
// unchanged; the evaluator never recomputes risk.
//
// Rules:
//  1. at least one approver other than the author (case-insensitive match)
//  2. Critical tier needs two distinct independent approvers, High needs one
//  3. optionally, High and Critical changes need at least one review comment
func (e *Evaluator) Evaluate(record domain.PullRequestRecord, assessment domain.RiskAssessment) domain.ComplianceVerdict {
	var violations []string

	independent := independentApprovers(record.Author, record.Approvers)

	switch {
	case len(record.Approvers) == 0:
		violations = append(violations, violationNoIndependentApprover)
	case len(independent) == 0:
		violations = append(violations, violationSelfApproved)
	}

	required := requiredApprovers(assessment.Tier)
	if len(independent) < required {
		violations = append(violations, fmt.Sprintf(
			"risk tier %s requires at least %d independent approver(s), got %d",
			assessment.Tier, required, len(independent),
		))
	}

	if e.requireReviewComments && assessment.Tier >= domain.TierHigh && record.ReviewComments == 0 {
		violations = append(violations, violationNoReviewComments)
	}

	return domain.ComplianceVerdict{
		Number:     record.Number,
		Compliant:  len(violations) == 0,
		Assessment: assessment,
		Violations: violations,
	}
}

func requiredApprovers(tier domain.RiskTier) int {
	switch tier {
	case domain.TierCritical:
		return 2
	case domain.TierHigh:
		return 1
	default:
		return 0
	}
}

// independentApprovers returns the distinct approvers that are not the
// author. Handles are compared case-insensitively, so "Alice" and "alice"
// are one approver and "BOB" cannot approve bob's own change.
func independentApprovers(author string, approvers []string) []string {
	authorKey := strings.ToLower(author)
	seen := make(map[string]struct{}, len(approvers))

	var independent []string

	for _, approver := range approvers {
		key := strings.ToLower(approver)
		if key == authorKey {
			continue
		}

		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}

		independent = append(independent, approver)
	}

	return independent
}
