package analyzer

import (
	"fmt"
	"sort"
	"time"

	"github.com/passkeep/passkeep/pkg/vault"
)

// Report is the overall security assessment of a vault.
type Report struct {
	// Overall is the total score (0-100).
	Overall int `json:"overall"`
	// Components breaks down the score into categories.
	Components ReportComponents `json:"components"`
	// Issues contains the detected problems, worst first.
	Issues []Issue `json:"issues"`
	// Suggestions provides actionable recommendations.
	Suggestions []string `json:"suggestions"`
	// RecordCount is the number of records analyzed.
	RecordCount int `json:"record_count"`
}

// ReportComponents breaks down the report score. Strength contributes
// up to 40 points, uniqueness and freshness up to 30 each.
type ReportComponents struct {
	// Strength reflects the average per-password score (0-40).
	Strength int `json:"strength"`
	// Uniqueness reflects the share of non-reused passwords (0-30).
	Uniqueness int `json:"uniqueness"`
	// Freshness reflects the share of recently rotated passwords (0-30).
	Freshness int `json:"freshness"`
}

// IssueType identifies the category of a detected problem.
type IssueType string

const (
	// IssueWeakPassword marks a password scoring below the weak threshold.
	IssueWeakPassword IssueType = "weak"
	// IssueDuplicatePassword marks a password reused across records.
	IssueDuplicatePassword IssueType = "duplicate"
	// IssueStalePassword marks a password not rotated within the stale window.
	IssueStalePassword IssueType = "stale"
)

// Severity indicates the urgency of an issue.
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityWarning  Severity = "warning"
	SeverityInfo     Severity = "info"
)

// Issue is one detected security problem.
type Issue struct {
	Type     IssueType `json:"type"`
	Severity Severity  `json:"severity"`
	// Title names the affected record.
	Title string `json:"title,omitempty"`
	// Titles is used for duplicate issues spanning several records.
	Titles      []string `json:"titles,omitempty"`
	Description string   `json:"description"`
	Suggestion  string   `json:"suggestion,omitempty"`
}

// Calculator computes security reports over exported vault records.
type Calculator struct {
	hmacKey   []byte
	staleDays int
	now       func() time.Time
}

// DefaultStaleDays is the rotation window after which a password is
// flagged as stale.
const DefaultStaleDays = 180

// NewCalculator returns a calculator with the default stale window.
func NewCalculator() *Calculator {
	return &Calculator{staleDays: DefaultStaleDays, now: time.Now}
}

// WithStaleDays overrides the rotation window. Days of zero or less
// disables staleness checks.
func (c *Calculator) WithStaleDays(days int) *Calculator {
	c.staleDays = days
	return c
}

// Analyze computes the full report for the given records. Records must
// carry their secrets, as produced by the vault export path.
func (c *Calculator) Analyze(records []vault.Record) (*Report, error) {
	// Empty vault: nothing to flag.
	if len(records) == 0 {
		return &Report{
			Overall:     100,
			Components:  ReportComponents{Strength: 40, Uniqueness: 30, Freshness: 30},
			Issues:      []Issue{},
			Suggestions: []string{},
		}, nil
	}

	strength, weakIssues := c.strengthComponent(records)
	uniqueness, dupIssues, err := c.uniquenessComponent(records)
	if err != nil {
		return nil, err
	}
	freshness, staleIssues := c.freshnessComponent(records)

	issues := make([]Issue, 0, len(weakIssues)+len(dupIssues)+len(staleIssues))
	issues = append(issues, weakIssues...)
	issues = append(issues, dupIssues...)
	issues = append(issues, staleIssues...)
	sortIssues(issues)

	return &Report{
		Overall:     strength + uniqueness + freshness,
		Components:  ReportComponents{Strength: strength, Uniqueness: uniqueness, Freshness: freshness},
		Issues:      issues,
		Suggestions: suggestions(issues),
		RecordCount: len(records),
	}, nil
}

// strengthComponent averages per-password scores and scales to 0-40.
// Passwords scoring below 40 are reported as weak.
func (c *Calculator) strengthComponent(records []vault.Record) (int, []Issue) {
	var issues []Issue
	total := 0
	for _, rec := range records {
		a := Assess(rec.Password)
		total += a.Score
		if a.Level == LevelWeak {
			severity := SeverityWarning
			if a.Score < 20 {
				severity = SeverityCritical
			}
			issues = append(issues, Issue{
				Type:        IssueWeakPassword,
				Severity:    severity,
				Title:       rec.Title,
				Description: fmt.Sprintf("password scores %d/100", a.Score),
				Suggestion:  "generate a longer password with mixed character classes",
			})
		}
	}
	avg := float64(total) / float64(len(records))
	return int(avg * 40 / 100), issues
}

// uniquenessComponent scales the share of non-reused passwords to 0-30.
func (c *Calculator) uniquenessComponent(records []vault.Record) (int, []Issue, error) {
	groups, err := c.FindDuplicates(records)
	if err != nil {
		return 0, nil, err
	}
	reused := 0
	var issues []Issue
	for _, g := range groups {
		reused += g.Count
		issues = append(issues, Issue{
			Type:        IssueDuplicatePassword,
			Severity:    SeverityWarning,
			Titles:      g.Titles,
			Description: fmt.Sprintf("password shared by %d records", g.Count),
			Suggestion:  "use a unique password for each account",
		})
	}
	unique := len(records) - reused
	return int(30 * float64(unique) / float64(len(records))), issues, nil
}

// freshnessComponent scales the share of recently updated passwords to
// 0-30. A record is stale when its last update is older than the
// configured window.
func (c *Calculator) freshnessComponent(records []vault.Record) (int, []Issue) {
	if c.staleDays <= 0 {
		return 30, nil
	}
	cutoff := c.now().AddDate(0, 0, -c.staleDays)
	fresh := 0
	var issues []Issue
	for _, rec := range records {
		if rec.UpdatedAt.After(cutoff) {
			fresh++
			continue
		}
		issues = append(issues, Issue{
			Type:        IssueStalePassword,
			Severity:    SeverityInfo,
			Title:       rec.Title,
			Description: fmt.Sprintf("password not changed since %s", rec.UpdatedAt.Format("2006-01-02")),
			Suggestion:  fmt.Sprintf("rotate passwords older than %d days", c.staleDays),
		})
	}
	return int(30 * float64(fresh) / float64(len(records))), issues
}

var severityRank = map[Severity]int{
	SeverityCritical: 0,
	SeverityWarning:  1,
	SeverityInfo:     2,
}

func sortIssues(issues []Issue) {
	sort.SliceStable(issues, func(i, j int) bool {
		return severityRank[issues[i].Severity] < severityRank[issues[j].Severity]
	})
}

// suggestions derives one deduplicated recommendation per issue type.
func suggestions(issues []Issue) []string {
	seen := make(map[IssueType]bool)
	var out []string
	for _, issue := range issues {
		if issue.Suggestion == "" || seen[issue.Type] {
			continue
		}
		seen[issue.Type] = true
		out = append(out, issue.Suggestion)
	}
	if out == nil {
		out = []string{}
	}
	return out
}
