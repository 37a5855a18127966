package stream

import (
	"errors"
	"fmt"
)

var (
	// ErrNotInSession means the schedule feed listed no floor proceedings.
	ErrNotInSession = errors.New("senate is not in session")
	// ErrNoStreamURL means the session entry carried no stream page URL.
	ErrNoStreamURL = errors.New("session has no stream page URL")
	// ErrInvalidURLFormat means the stream page URL is not a live stream link.
	ErrInvalidURLFormat = errors.New("stream page URL is missing type=live marker")
	// ErrAllCandidatesUnreachable means every playlist candidate failed its probe.
	ErrAllCandidatesUnreachable = errors.New("no stream URL candidate is reachable")
)

// FeedError reports a schedule feed fetch or decode failure.
type FeedError struct {
	Status int
	Err    error
}

func (e *FeedError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("schedule feed returned HTTP %d", e.Status)
	}
	return fmt.Sprintf("schedule feed: %v", e.Err)
}

func (e *FeedError) Unwrap() error { return e.Err }

// MissingParamError reports a stream page URL without a required query parameter.
type MissingParamError struct {
	Param string
}

func (e *MissingParamError) Error() string {
	return fmt.Sprintf("stream page URL is missing %q parameter", e.Param)
}
