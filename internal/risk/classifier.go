// package risk turns a pull request snapshot into a risk assessment via
// weighted, additive scoring over four signal groups: change complexity,
// sensitive content patterns, risk-relevant file categories, and review
// anomalies. Classification is deterministic: the same record and config
// always yield the same assessment.
package risk

import (
	"fmt"
	"path"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/grcops/pr-compliance/internal/domain"
	"github.com/sourcegraph/go-diff/diff"
)

type Classifier struct {
	cfg Config
}

func NewClassifier(cfg Config) *Classifier {
	return &Classifier{cfg: cfg}
}

// Classify scores a single pull request record. A record with no changed
// files scores zero with no reasons. Missing or undecodable diff text
// degrades to path-only scanning; it never fails classification.
func (c *Classifier) Classify(record domain.PullRequestRecord) domain.RiskAssessment {
	score := 0

	var reasons []string

	addSignal := func(weight int, reason string) {
		score += weight
		reasons = append(reasons, reason)
	}

	c.scoreComplexity(record, addSignal)
	c.scoreSensitivePatterns(record, addSignal)
	c.scoreFileCategories(record, addSignal)
	c.scoreReviewPatterns(record, addSignal)

	return domain.RiskAssessment{
		Tier:    c.tierFor(score),
		Score:   score,
		Reasons: reasons,
	}
}

// tierFor maps a score onto a tier through the configured fixed thresholds.
// The mapping is monotone: a higher score never yields a lower tier.
func (c *Classifier) tierFor(score int) domain.RiskTier {
	switch {
	case score >= c.cfg.CriticalScore:
		return domain.TierCritical
	case score >= c.cfg.HighScore:
		return domain.TierHigh
	case score >= c.cfg.MediumScore:
		return domain.TierMedium
	default:
		return domain.TierLow
	}
}

func (c *Classifier) scoreComplexity(record domain.PullRequestRecord, addSignal func(int, string)) {
	lines := record.Additions + record.Deletions

	if lines > c.cfg.MediumChangeLines {
		addSignal(c.cfg.MediumLinesWeight, fmt.Sprintf("change exceeds %d changed lines (%d)", c.cfg.MediumChangeLines, lines))
	}
	if lines > c.cfg.LargeChangeLines {
		addSignal(c.cfg.LargeLinesWeight, fmt.Sprintf("high complexity: %d lines changed", lines))
	}

	files := len(record.ChangedFiles)

	if files > c.cfg.MediumChangeFiles {
		addSignal(c.cfg.MediumFilesWeight, fmt.Sprintf("change touches %d files", files))
	}
	if files > c.cfg.LargeChangeFiles {
		addSignal(c.cfg.LargeFilesWeight, fmt.Sprintf("high complexity: %d files changed", files))
	}
}

// scoreSensitivePatterns scans file paths and decoded diff text against the
// configured keyword groups. Each group counts once, no matter how many of
// its patterns match or where.
func (c *Classifier) scoreSensitivePatterns(record domain.PullRequestRecord, addSignal func(int, string)) {
	haystack := strings.ToLower(strings.Join(record.ChangedFiles, "\n"))

	if text := decodedDiffText(record.Diff); text != "" {
		haystack += "\n" + strings.ToLower(text)
	}

	if haystack == "" {
		return
	}

	for _, group := range c.cfg.PatternGroups {
		for _, pattern := range group.Patterns {
			if strings.Contains(haystack, strings.ToLower(pattern)) {
				addSignal(c.cfg.SensitiveWeight, "sensitive pattern: "+group.Name)
				break
			}
		}
	}
}

func (c *Classifier) scoreFileCategories(record domain.PullRequestRecord, addSignal func(int, string)) {
	for _, category := range c.cfg.FileCategories {
		if matched, file := matchCategory(category, record.ChangedFiles); matched {
			addSignal(c.cfg.CategoryWeight, fmt.Sprintf("%s file: %s", category.Name, file))
		}
	}
}

// scoreReviewPatterns flags anomalous review latency. These signals are only
// meaningful for non-empty changes; an empty PR stays at score zero.
func (c *Classifier) scoreReviewPatterns(record domain.PullRequestRecord, addSignal func(int, string)) {
	if len(record.ChangedFiles) == 0 {
		return
	}

	if record.ReviewComments == 0 {
		addSignal(c.cfg.ZeroCommentsWeight, "merged with zero review comments")
	}

	quickMerge := time.Duration(c.cfg.QuickMergeThresholdMinutes) * time.Minute
	if record.TimeToMerge > 0 && record.TimeToMerge < quickMerge {
		addSignal(c.cfg.QuickMergeWeight, fmt.Sprintf("merged %s after opening", record.TimeToMerge.Round(time.Second)))
	}
}

// matchCategory reports whether any changed file falls into the category,
// returning the first matching path for the reason string.
func matchCategory(category FileCategory, files []string) (bool, string) {
	for _, file := range files {
		for _, pattern := range category.Patterns {
			if matchPath(pattern, file) {
				return true, file
			}
		}
	}

	return false, ""
}

func matchPath(pattern, file string) bool {
	switch {
	case strings.HasPrefix(pattern, "."):
		return strings.HasSuffix(file, pattern)
	case strings.Contains(pattern, "/"):
		return strings.Contains(file, pattern)
	default:
		return path.Base(file) == pattern
	}
}

// decodedDiffText returns diff content suitable for keyword scanning. It
// prefers parsed hunk bodies so binary or undecodable fragments are skipped;
// a parse failure falls back to the raw text when that text is valid UTF-8.
// Undecodable content is treated as absent rather than failing the
// classification.
func decodedDiffText(rawDiff string) string {
	if rawDiff == "" {
		return ""
	}

	fileDiffs, err := diff.ParseMultiFileDiff([]byte(rawDiff))
	if err != nil || len(fileDiffs) == 0 {
		if utf8.ValidString(rawDiff) {
			return rawDiff
		}

		return ""
	}

	var sb strings.Builder

	for _, fileDiff := range fileDiffs {
		for _, hunk := range fileDiff.Hunks {
			if utf8.Valid(hunk.Body) {
				sb.Write(hunk.Body)
				sb.WriteByte('\n')
			}
		}
	}

	return sb.String()
}
