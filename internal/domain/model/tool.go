// Package model contains the read-only inputs the ranking engine consumes.
package model

import (
	"math"
	"strings"
	"time"
)

// PricingTier is the declared commercial model of a tool.
type PricingTier string

const (
	PricingFree       PricingTier = "free"
	PricingFreemium   PricingTier = "freemium"
	PricingPaid       PricingTier = "paid"
	PricingEnterprise PricingTier = "enterprise"
	PricingUnknown    PricingTier = ""
)

// Ordinal ranks pricing for tiebreaking; lower is more accessible.
func (p PricingTier) Ordinal() int {
	switch p {
	case PricingFree:
		return 0
	case PricingFreemium:
		return 1
	case PricingPaid:
		return 2
	case PricingEnterprise:
		return 3
	default:
		return 4
	}
}

// Known reports whether p is one of the declared tiers.
func (p PricingTier) Known() bool {
	return p.Ordinal() < 4
}

// Signals is the bag of raw numeric and boolean signals for one tool.
// A zero value means "not reported" and contributes nothing.
type Signals struct {
	Users               float64 `json:"users,omitempty" yaml:"users"`
	GitHubStars         float64 `json:"github_stars,omitempty" yaml:"github_stars"`
	MonthlyDownloads    float64 `json:"monthly_downloads,omitempty" yaml:"monthly_downloads"`
	FundingUSD          float64 `json:"funding_usd,omitempty" yaml:"funding_usd"`
	ValuationUSD        float64 `json:"valuation_usd,omitempty" yaml:"valuation_usd"`
	AnnualRevenueUSD    float64 `json:"annual_revenue_usd,omitempty" yaml:"annual_revenue_usd"`
	SWEBenchScore       float64 `json:"swe_bench_score,omitempty" yaml:"swe_bench_score"`
	HumanEvalScore      float64 `json:"human_eval_score,omitempty" yaml:"human_eval_score"`
	ContextWindowTokens float64 `json:"context_window_tokens,omitempty" yaml:"context_window_tokens"`
	ReleasesLast90Days  float64 `json:"releases_last_90_days,omitempty" yaml:"releases_last_90_days"`
	CommitsLast30Days   float64 `json:"commits_last_30_days,omitempty" yaml:"commits_last_30_days"`
	UptimePercent       float64 `json:"uptime_percent,omitempty" yaml:"uptime_percent"`
	IntegrationCount    float64 `json:"integration_count,omitempty" yaml:"integration_count"`
	// Sentiment is in [-1,1]; nil means no signal.
	Sentiment *float64 `json:"sentiment,omitempty" yaml:"sentiment"`

	LastReleaseAt time.Time `json:"last_release_at,omitempty" yaml:"last_release_at"`

	OpenSource        bool `json:"open_source,omitempty" yaml:"open_source"`
	SelfHostable      bool `json:"self_hostable,omitempty" yaml:"self_hostable"`
	MultiModelSupport bool `json:"multi_model_support,omitempty" yaml:"multi_model_support"`
	Multimodal        bool `json:"multimodal,omitempty" yaml:"multimodal"`
}

// ToolMetrics is an immutable per-pass snapshot of one tool.
type ToolMetrics struct {
	ID          string      `json:"id" yaml:"id"`
	Name        string      `json:"name" yaml:"name"`
	Category    string      `json:"category" yaml:"category"`
	Description string      `json:"description,omitempty" yaml:"description"`
	Features    []string    `json:"features,omitempty" yaml:"features"`
	LaunchYear  int         `json:"launch_year,omitempty" yaml:"launch_year"`
	PricingTier PricingTier `json:"pricing_tier,omitempty" yaml:"pricing_tier"`
	Signals     Signals     `json:"signals" yaml:"signals"`
}

// FeatureCount returns the number of non-blank declared features.
func (m *ToolMetrics) FeatureCount() int {
	n := 0
	for _, f := range m.Features {
		if strings.TrimSpace(f) != "" {
			n++
		}
	}
	return n
}

// SearchText is the lower-cased description plus features, used for keyword detection.
func (m *ToolMetrics) SearchText() string {
	var b strings.Builder
	b.WriteString(strings.ToLower(m.Description))
	for _, f := range m.Features {
		b.WriteByte(' ')
		b.WriteString(strings.ToLower(f))
	}
	return b.String()
}

// DisplayName falls back to the id when the name is blank.
func (m *ToolMetrics) DisplayName() string {
	if n := strings.TrimSpace(m.Name); n != "" {
		return n
	}
	return m.ID
}

// Issue is one data-quality finding.
type Issue struct {
	Kind   string `json:"kind"`
	Field  string `json:"field"`
	Detail string `json:"detail,omitempty"`
}

// Issue kinds.
const (
	IssueMissing        = "missing"
	IssueInvalidNumber  = "invalid_number"
	IssueUnknownPricing = "unknown_pricing"
	IssueFutureLaunch   = "future_launch"
)

// Issues reports data-quality findings relative to asOf. It never fails;
// evaluators treat every flagged value as a zero contribution.
func (m *ToolMetrics) Issues(asOf time.Time) []Issue {
	var out []Issue
	if strings.TrimSpace(m.Name) == "" {
		out = append(out, Issue{Kind: IssueMissing, Field: "name"})
	}
	if strings.TrimSpace(m.Category) == "" {
		out = append(out, Issue{Kind: IssueMissing, Field: "category"})
	}
	if strings.TrimSpace(m.Description) == "" {
		out = append(out, Issue{Kind: IssueMissing, Field: "description"})
	}
	if !m.PricingTier.Known() {
		out = append(out, Issue{Kind: IssueUnknownPricing, Field: "pricing_tier", Detail: string(m.PricingTier)})
	}
	if m.LaunchYear > asOf.Year() {
		out = append(out, Issue{Kind: IssueFutureLaunch, Field: "launch_year"})
	}
	s := m.Signals
	numbers := []struct {
		field string
		v     float64
	}{
		{"users", s.Users},
		{"github_stars", s.GitHubStars},
		{"monthly_downloads", s.MonthlyDownloads},
		{"funding_usd", s.FundingUSD},
		{"valuation_usd", s.ValuationUSD},
		{"annual_revenue_usd", s.AnnualRevenueUSD},
		{"swe_bench_score", s.SWEBenchScore},
		{"human_eval_score", s.HumanEvalScore},
		{"context_window_tokens", s.ContextWindowTokens},
		{"releases_last_90_days", s.ReleasesLast90Days},
		{"commits_last_30_days", s.CommitsLast30Days},
		{"uptime_percent", s.UptimePercent},
		{"integration_count", s.IntegrationCount},
	}
	for _, n := range numbers {
		if math.IsNaN(n.v) || math.IsInf(n.v, 0) || n.v < 0 {
			out = append(out, Issue{Kind: IssueInvalidNumber, Field: n.field})
		}
	}
	if s.Sentiment != nil {
		v := *s.Sentiment
		if math.IsNaN(v) || v < -1 || v > 1 {
			out = append(out, Issue{Kind: IssueInvalidNumber, Field: "sentiment"})
		}
	}
	return out
}
