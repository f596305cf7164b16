package playback

import "github.com/tphakala/syncplayer/internal/drift"

// PlaybackState re-exports drift.PlaybackState. It is defined in the drift
// package to keep the playback → drift dependency one-directional (the
// corrector gates its re-anchor branch on this state without importing
// playback).
type PlaybackState = drift.PlaybackState

const (
	Initializing    = drift.Initializing
	WaitingForStart = drift.WaitingForStart
	Playing         = drift.Playing
	Reanchoring     = drift.Reanchoring
	Stopped         = drift.Stopped
)
