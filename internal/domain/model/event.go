// Package model contains domain models passed between layers.
package model

import "time"

// RecomputeEvent asks for a full rank pass. Events carry the write that
// caused them for logging only; every pass covers all teams.
type RecomputeEvent struct {
	EventID string    // unique id, used for tracing
	Scope   string    // pending-pass key; passes with the same scope coalesce
	Reason  string    // e.g. "unlock", "team_created", "startup"
	Team    string    // team whose write triggered the pass, if any
	Region  Region    // region of that team, if any
	TS      time.Time // trigger instant
}

// ScopeAll is the only pass scope: a pass always recomputes global and
// every regional ranking together.
const ScopeAll = "all"
