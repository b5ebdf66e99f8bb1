package service_test

import (
	"time"

	"github.com/okian/toolrank/internal/adapters/snapshot"
	"github.com/okian/toolrank/internal/domain/model"
	"github.com/okian/toolrank/pkg/logger"
)

func init() {
	if err := logger.Init(); err != nil {
		panic(err)
	}
}

var now = time.Date(2026, 10, 12, 12, 0, 0, 0, time.UTC)

func clock() time.Time { return now }

func fixtures() *snapshot.File {
	sentiment := 0.6
	return &snapshot.File{
		Tools: []model.ToolMetrics{
			{
				ID:          "alpha",
				Name:        "Alpha",
				Category:    "agent",
				Description: "Autonomous multi-file coding agent with terminal access and planning.",
				Features:    []string{"autonomous agent", "multi-file edits", "terminal", "planning", "tool use"},
				LaunchYear:  2023,
				PricingTier: model.PricingPaid,
				Signals: model.Signals{
					Users:               2_000_000,
					GitHubStars:         40_000,
					FundingUSD:          500_000_000,
					AnnualRevenueUSD:    100_000_000,
					SWEBenchScore:       65,
					HumanEvalScore:      90,
					ContextWindowTokens: 200_000,
					ReleasesLast90Days:  6,
					UptimePercent:       99.9,
					IntegrationCount:    30,
					Sentiment:           &sentiment,
				},
			},
			{
				ID:          "beta",
				Name:        "Beta",
				Category:    "ide",
				Description: "Editor plugin for code completion.",
				Features:    []string{"completion", "chat"},
				LaunchYear:  2022,
				PricingTier: model.PricingFreemium,
				Signals: model.Signals{
					Users:              300_000,
					GitHubStars:        5_000,
					SWEBenchScore:      30,
					ReleasesLast90Days: 2,
					UptimePercent:      99,
				},
			},
			{
				ID:          "gamma",
				Name:        "Gamma",
				Description: "Small CLI helper.",
				LaunchYear:  2025,
				PricingTier: model.PricingFree,
			},
		},
	}
}

func fundingEvent(id string) model.Event {
	return model.Event{
		ID:            id,
		ToolID:        "gamma",
		Type:          model.EventFunding,
		RawImportance: 40,
		Timestamp:     now.Add(-24 * time.Hour),
		Title:         "Gamma raises a seed round",
	}
}

// eventually polls cond until it holds or a few seconds pass.
func eventually(cond func() bool) bool {
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(10 * time.Millisecond)
	}
	return cond()
}
