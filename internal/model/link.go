// Package model defines the data structures used throughout the application.
//
// Everything here mirrors the shape of the records in the realtime database:
// field names in the struct tags are the literal node names, so a record
// written by this server is byte-compatible with what the panel frontend
// reads. Don't rename a tag without a data migration.
package model

import (
	"fmt"
	"time"
)

// LinkType is the category a shortened link belongs to. It decides the
// path prefix of the generated URL.
type LinkType string

const (
	LinkTypeMovie  LinkType = "movie"
	LinkTypeAdult  LinkType = "adult"
	LinkTypeRandom LinkType = "random"
)

// Valid reports whether t is one of the three known categories.
func (t LinkType) Valid() bool {
	switch t {
	case LinkTypeMovie, LinkTypeAdult, LinkTypeRandom:
		return true
	}
	return false
}

// URLPrefix returns the short path segment used in generated URLs:
// movie → "m", adult → "a", random → "al".
func (t LinkType) URLPrefix() string {
	switch t {
	case LinkTypeMovie:
		return "m"
	case LinkTypeAdult:
		return "a"
	default:
		return "al"
	}
}

// DashboardDays is the size of the rolling per-link dashboard window.
const DashboardDays = 5

// DayMetrics holds the view/click counters for one dashboard day.
type DayMetrics struct {
	Views  int `json:"views"`
	Clicks int `json:"clicks"`
}

// Link is a shortened link owned by a user.
//
// Code is a 6-character alphanumeric string, unique across ALL users (the
// global all_links registry enforces this, not the per-user collection).
// Dashboard5Days is keyed day1..day5; it is seeded to zero at creation and
// advanced by an external rotation job, never by this server.
type Link struct {
	URL            string                `json:"url"`
	Type           LinkType              `json:"type"`
	Code           string                `json:"code"`
	Dashboard5Days map[string]DayMetrics `json:"dashboard5Days"`
	CreatedBy      string                `json:"createdBy"`
	DateCreated    time.Time             `json:"dateCreated"`
}

// NewDashboard5Days returns a zeroed day1..day5 metrics map for a fresh link.
func NewDashboard5Days() map[string]DayMetrics {
	days := make(map[string]DayMetrics, DashboardDays)
	for i := 1; i <= DashboardDays; i++ {
		days[fmt.Sprintf("day%d", i)] = DayMetrics{}
	}
	return days
}

// DashboardRow is one row of the rendered 5-day dashboard.
type DashboardRow struct {
	Day    string `json:"day"`
	Views  int    `json:"views"`
	Clicks int    `json:"clicks"`
}

// DashboardRows projects Dashboard5Days into day1..day5 order.
// Map iteration order is random in Go, so the projection walks the keys
// explicitly. Missing days render as zeroes rather than being skipped —
// the dashboard always shows five rows.
func (l *Link) DashboardRows() []DashboardRow {
	rows := make([]DashboardRow, 0, DashboardDays)
	for i := 1; i <= DashboardDays; i++ {
		key := fmt.Sprintf("day%d", i)
		m := l.Dashboard5Days[key]
		rows = append(rows, DashboardRow{Day: key, Views: m.Views, Clicks: m.Clicks})
	}
	return rows
}

// RegistryEntry is the denormalized copy of a Link stored in the global
// all_links registry, keyed by code. It exists so code-uniqueness checks and
// reverse lookups are a single read instead of a scan over every user.
type RegistryEntry struct {
	Link
	UserKey   string `json:"userKey"`   // positional key in the owner's collection, e.g. "link3"
	UserEmail string `json:"userEmail"` // owner's email address
}
