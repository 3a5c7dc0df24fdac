package rss

import "errors"

var (
	ErrInvalidParameter  = errors.New("rss: invalid parameter")
	ErrMalformedBlob     = errors.New("rss: malformed key or tag blob")
	ErrMalformedArtifact = errors.New("rss: malformed artifact")
	ErrPartyNotFound     = errors.New("rss: party number not found")
	ErrPartyOutOfRange   = errors.New("rss: party missing or out of range")
	ErrBelowThreshold    = errors.New("rss: too few shares accepted")
)
