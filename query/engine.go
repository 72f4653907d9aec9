// Package query derives the views shown to users from a snapshot of the
// issues collection. Every function here is pure and never modifies the
// snapshot it is given.
package query

import (
	"bytes"
	"math"
	"slices"
	"sort"
	"strings"

	"civic-issues/models"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/samber/lo"
)

// All disables a filter field.
const All = "all"

// Filter narrows a snapshot. Empty fields and All match everything.
type Filter struct {
	Category   string `form:"category" json:"category,omitempty"`
	Status     string `form:"status" json:"status,omitempty"`
	Severity   string `form:"severity" json:"severity,omitempty"`
	Location   string `form:"location" json:"location,omitempty"`
	ReporterID string `form:"-" json:"reporterId,omitempty"`
}

type Summary struct {
	Total          int `json:"total"`
	Resolved       int `json:"resolved"`
	ResolutionRate int `json:"resolutionRate"`
}

// Views is everything a dashboard needs for one filter.
type Views struct {
	Categories []string       `json:"categories"`
	Issues     []models.Issue `json:"issues"`
	Summary    Summary        `json:"summary"`
}

// CategoryIndex returns "all" followed by the distinct categories present, sorted.
func CategoryIndex(snapshot []models.Issue) []string {
	distinct := mapset.NewThreadUnsafeSet[string]()
	for _, issue := range snapshot {
		distinct.Add(string(issue.Category))
	}

	categories := distinct.ToSlice()
	sort.Strings(categories)

	return append([]string{All}, categories...)
}

func matches(want, got string) bool {
	return want == "" || want == All || want == got
}

func (f Filter) Match(issue models.Issue) bool {
	if !matches(f.Category, string(issue.Category)) {
		return false
	}
	if !matches(f.Status, string(issue.Status)) {
		return false
	}
	if !matches(f.Severity, string(issue.Severity)) {
		return false
	}
	if f.ReporterID != "" && f.ReporterID != issue.ReporterID {
		return false
	}
	if loc := strings.TrimSpace(f.Location); loc != "" {
		return strings.Contains(strings.ToLower(issue.Location), strings.ToLower(loc))
	}
	return true
}

// Apply keeps the issues matching every filter field, newest first.
// Issues created at the same instant are ordered by id, highest first.
func Apply(snapshot []models.Issue, filter Filter) []models.Issue {
	out := lo.Filter(snapshot, func(issue models.Issue, _ int) bool {
		return filter.Match(issue)
	})

	slices.SortStableFunc(out, func(a, b models.Issue) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return bytes.Compare(b.ID[:], a.ID[:])
	})

	return out
}

// Summarize counts over the whole snapshot; filters never apply here.
func Summarize(snapshot []models.Issue) Summary {
	total := len(snapshot)
	resolved := lo.CountBy(snapshot, func(issue models.Issue) bool {
		return issue.Status == models.Resolved
	})

	rate := 0
	if total > 0 {
		rate = int(math.Round(float64(resolved) / float64(total) * 100))
	}

	return Summary{Total: total, Resolved: resolved, ResolutionRate: rate}
}

func Derive(snapshot []models.Issue, filter Filter) Views {
	return Views{
		Categories: CategoryIndex(snapshot),
		Issues:     Apply(snapshot, filter),
		Summary:    Summarize(snapshot),
	}
}
