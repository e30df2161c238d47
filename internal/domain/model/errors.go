package model

import "errors"

// Core error kinds. Every one is permanent for the request that produced it
// and none leave a team record partially updated.
var (
	ErrMalformedToken   = errors.New("malformed token")
	ErrUnknownStage     = errors.New("unknown stage")
	ErrSkipAhead        = errors.New("stage is more than one ahead of progress")
	ErrNameTaken        = errors.New("team name already exists")
	ErrInvalidRegion    = errors.New("invalid region")
	ErrNotFound         = errors.New("team not found")
	ErrBadCredential    = errors.New("invalid team credentials")
	ErrStagesIncomplete = errors.New("all gated stages must be unlocked first")
	ErrRegionClosed     = errors.New("challenge not yet open in region")
	ErrInvalidInput     = errors.New("invalid input")
)
