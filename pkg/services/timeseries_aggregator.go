package services

import (
	"fmt"
	"sort"
	"time"

	"order-forecast-api/pkg/models"
)

// AggregateDemand sums the quantities of productKey's lines per calendar date.
// The result is date-ascending with one entry per date that has at least one
// line; days without orders are not filled. Lines whose date is missing or
// malformed are skipped and reported.
func AggregateDemand(lines []models.OrderLineRecord, productKey string) ([]models.DemandObservation, []models.Warning) {
	totals := make(map[int64]int)
	var warnings []models.Warning

	for _, line := range lines {
		if line.ProductKey != productKey {
			continue
		}
		if line.OccurredOn.IsZero() {
			msg := "order line has no date"
			if line.RawDate != "" {
				msg = fmt.Sprintf("cannot parse date %q", line.RawDate)
			}
			warnings = append(warnings, models.Warning{
				Kind:     models.WarningMalformedDate,
				RecordID: line.ID,
				Field:    "date",
				Message:  msg,
			})
			continue
		}
		totals[day(line.OccurredOn).Unix()] += line.Quantity
	}

	keys := make([]int64, 0, len(totals))
	for k := range totals {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })

	series := make([]models.DemandObservation, 0, len(keys))
	for _, k := range keys {
		series = append(series, models.DemandObservation{
			ProductKey: productKey,
			Date:       unixDay(k),
			Quantity:   totals[k],
		})
	}
	return series, warnings
}

// ProductKeys lists the distinct product keys present in lines, sorted.
func ProductKeys(lines []models.OrderLineRecord) []string {
	set := make(map[string]struct{})
	for _, line := range lines {
		if line.ProductKey != "" {
			set[line.ProductKey] = struct{}{}
		}
	}
	return sortedKeys(set)
}

// ObservationsBetween returns the observations with from <= date <= to.
func ObservationsBetween(series []models.DemandObservation, from, to time.Time) []models.DemandObservation {
	var out []models.DemandObservation
	for _, obs := range series {
		if !obs.Date.Before(from) && !obs.Date.After(to) {
			out = append(out, obs)
		}
	}
	return out
}

func unixDay(sec int64) time.Time { return time.Unix(sec, 0).UTC() }
