package service

import (
	"fmt"
	"time"
)

// Period granularities.
const (
	GranularityWeek  = "week"
	GranularityMonth = "month"
)

// PeriodID names the period containing asOf: "2025-W07" (ISO week) or
// "2025-02".
func PeriodID(asOf time.Time, granularity string) string {
	asOf = asOf.UTC()
	if granularity == GranularityMonth {
		return asOf.Format("2006-01")
	}
	year, week := asOf.ISOWeek()
	return fmt.Sprintf("%04d-W%02d", year, week)
}
