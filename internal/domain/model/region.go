package model

import (
	"fmt"
	"strings"
	"time"
)

// Region is one of the fixed geographic cohorts.
type Region string

// The closed set of regions.
const (
	RegionEMEA Region = "EMEA"
	RegionAMRS Region = "AMRS"
	RegionAPAC Region = "APAC"
)

// Regions lists every valid region in display order.
func Regions() []Region {
	return []Region{RegionEMEA, RegionAMRS, RegionAPAC}
}

// Valid reports whether r is in the closed set.
func (r Region) Valid() bool {
	switch r {
	case RegionEMEA, RegionAMRS, RegionAPAC:
		return true
	}
	return false
}

// ParseRegion validates s exactly (regions are case-sensitive codes).
func ParseRegion(s string) (Region, error) {
	r := Region(strings.TrimSpace(s))
	if !r.Valid() {
		return "", fmt.Errorf("%w: %q (must be one of %v)", ErrInvalidRegion, s, Regions())
	}
	return r, nil
}

// RegionSchedule maps a region to the instant its challenge opens.
// A nil schedule, or a region without an entry, means always open.
type RegionSchedule map[Region]time.Time

// OpensAt returns the configured opening instant for r, if any.
func (s RegionSchedule) OpensAt(r Region) (time.Time, bool) {
	if s == nil {
		return time.Time{}, false
	}
	t, ok := s[r]
	return t, ok
}
