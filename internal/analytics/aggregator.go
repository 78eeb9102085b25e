// Package analytics reduces visit history into dimensioned counts and a
// daily time series.
package analytics

import (
	"sort"

	"github.com/pulselabs/linkpulse/internal/models"
)

const dayFormat = "2006-01-02"

// Summarize reduces a link's visit history into an analytics summary.
// The total comes from the link's click counter, which is authoritative;
// history may lag behind it under queued recording. An empty history
// yields empty collections, never an error.
func Summarize(link *models.Link, history []models.VisitEvent) *models.AnalyticsSummary {
	return &models.AnalyticsSummary{
		TotalClicks:      link.ClickCount,
		Countries:        groupCount(history, models.DimensionCountry),
		OperatingSystems: groupCount(history, models.DimensionOperatingSystem),
		Browsers:         groupCount(history, models.DimensionBrowser),
		Timeline:         timeline(history),
	}
}

// groupCount tallies events per distinct value of the dimension, most
// frequent first, ties broken by name.
func groupCount(history []models.VisitEvent, dim models.Dimension) []models.DimensionCount {
	counts := make(map[string]int64)
	for _, ev := range history {
		counts[dim.Value(ev)]++
	}

	out := make([]models.DimensionCount, 0, len(counts))
	for name, count := range counts {
		out = append(out, models.DimensionCount{Name: name, Count: count})
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Name < out[j].Name
	})

	return out
}

// timeline buckets events by UTC calendar day, ascending. Days with no
// events are omitted.
func timeline(history []models.VisitEvent) []models.TimelinePoint {
	counts := make(map[string]int64)
	for _, ev := range history {
		counts[ev.Timestamp.UTC().Format(dayFormat)]++
	}

	out := make([]models.TimelinePoint, 0, len(counts))
	for day, count := range counts {
		out = append(out, models.TimelinePoint{Day: day, Count: count})
	}

	sort.Slice(out, func(i, j int) bool {
		return out[i].Day < out[j].Day
	})

	return out
}
