package risk

// PatternGroup names a family of sensitive keywords. A group contributes its
// weight at most once per pull request, however many of its patterns match.
type PatternGroup struct {
	Name     string
	Patterns []string // case-insensitive substrings, matched in paths and diff text
}

// FileCategory names a risk-relevant class of file paths.
//
// Pattern matching rules: a pattern starting with '.' matches as a path
// suffix, a pattern containing '/' matches as a substring, anything else
// matches the file's base name exactly.
type FileCategory struct {
	Name     string
	Patterns []string
}

// Config holds every weight, breakpoint, and pattern list used by the
// classifier. All values are overridable; DefaultConfig documents the
// defaults. The classifier itself is a pure function of (record, config).
type Config struct {
	// Complexity breakpoints over added+removed lines and changed file
	// count. Every breakpoint crossed contributes its weight, so a large
	// change also carries the medium-change contribution.
	MediumChangeLines int
	LargeChangeLines  int
	MediumChangeFiles int
	LargeChangeFiles  int

	MediumLinesWeight int
	LargeLinesWeight  int
	MediumFilesWeight int
	LargeFilesWeight  int

	// SensitiveWeight is added once per matched pattern group.
	SensitiveWeight int
	PatternGroups   []PatternGroup

	// CategoryWeight is added once per matched file category.
	CategoryWeight int
	FileCategories []FileCategory

	// Review anomaly signals. QuickMergeWeight applies when the PR merged
	// faster than QuickMergeThresholdMinutes after opening;
	// ZeroCommentsWeight applies when a non-empty change merged with no
	// review comments.
	ZeroCommentsWeight         int
	QuickMergeWeight           int
	QuickMergeThresholdMinutes int

	// Tier thresholds over the total score: score < MediumScore is Low,
	// then Medium, High, and Critical at and above CriticalScore.
	MediumScore   int
	HighScore     int
	CriticalScore int
}

// DefaultConfig returns the documented default scoring parameters.
func DefaultConfig() Config {
	return Config{
		MediumChangeLines: 100,
		LargeChangeLines:  300,
		MediumChangeFiles: 8,
		LargeChangeFiles:  15,

		MediumLinesWeight: 15,
		LargeLinesWeight:  30,
		MediumFilesWeight: 10,
		LargeFilesWeight:  20,

		SensitiveWeight: 25,
		PatternGroups: []PatternGroup{
			{Name: "auth", Patterns: []string{"auth", "login", "session", "oauth", "sso"}},
			{Name: "secrets", Patterns: []string{"secret", "password", "credential", "api_key", "api-key", "token"}},
			{Name: "crypto", Patterns: []string{"crypt", "cipher", "tls", "certificate", "private_key"}},
			{Name: "access-control", Patterns: []string{"permission", "privilege", "role", "acl", "rbac"}},
			{Name: "payment", Patterns: []string{"payment", "transaction", "transfer", "withdraw", "billing"}},
		},

		CategoryWeight: 15,
		FileCategories: []FileCategory{
			{Name: "infrastructure", Patterns: []string{"Dockerfile", "docker-compose.yml", ".tf", ".tfvars", "deploy/", "k8s/", "kubernetes/", "helm/"}},
			{Name: "ci-cd", Patterns: []string{".github/workflows/", ".gitlab-ci.yml", "Jenkinsfile", ".circleci/"}},
			{Name: "dependency-manifest", Patterns: []string{"go.mod", "go.sum", "package.json", "package-lock.json", "yarn.lock", "requirements.txt", "Pipfile", "pom.xml", "Gemfile"}},
			{Name: "security-policy", Patterns: []string{"CODEOWNERS", "SECURITY.md", ".pem", ".key", ".env"}},
		},

		ZeroCommentsWeight:         10,
		QuickMergeWeight:           15,
		QuickMergeThresholdMinutes: 10,

		MediumScore:   25,
		HighScore:     50,
		CriticalScore: 75,
	}
}
