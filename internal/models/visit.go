package models

import "time"

// Values reported when a lookup collaborator cannot classify a visit.
const (
	UnknownValue = "Unknown"

	DeviceDesktop = "Desktop"
	DeviceMobile  = "Mobile"
	DeviceTablet  = "Tablet"
)

// VisitEvent is one immutable analytics record of a granted resolution.
type VisitEvent struct {
	// Timestamp is the instant the resolution was granted.
	Timestamp time.Time
	// SourceIP is the normalized client address the request arrived from.
	SourceIP string
	// Country and City come from the geo lookup, "Unknown" on a miss.
	Country string
	City    string
	// OperatingSystem and Browser come from user agent classification.
	OperatingSystem string
	Browser         string
	// DeviceClass is one of Desktop, Mobile or Tablet.
	DeviceClass string
}

// Dimension identifies a visit attribute the aggregator can group by.
type Dimension int

const (
	DimensionCountry Dimension = iota
	DimensionOperatingSystem
	DimensionBrowser
)

// Value returns the event's attribute for the dimension.
func (d Dimension) Value(ev VisitEvent) string {
	switch d {
	case DimensionCountry:
		return ev.Country
	case DimensionOperatingSystem:
		return ev.OperatingSystem
	case DimensionBrowser:
		return ev.Browser
	default:
		return UnknownValue
	}
}

// DimensionCount is one grouped value with the number of visits that share it.
type DimensionCount struct {
	Name  string `json:"name"`
	Count int64  `json:"count"`
}

// TimelinePoint is the number of visits recorded on one UTC calendar day.
type TimelinePoint struct {
	Day   string `json:"day"`
	Count int64  `json:"count"`
}

// AnalyticsSummary is the read-side reduction of a link's visit history.
type AnalyticsSummary struct {
	// TotalClicks mirrors the link's click counter, not the history length.
	TotalClicks      int64            `json:"total_clicks"`
	Countries        []DimensionCount `json:"countries"`
	OperatingSystems []DimensionCount `json:"operating_systems"`
	Browsers         []DimensionCount `json:"browsers"`
	// Timeline is sparse: days without visits are omitted.
	Timeline []TimelinePoint `json:"timeline"`
}
