// Package playback implements the time-synchronized audio callback and the
// event-thread ingress path that feeds it.
//
// Two threads touch a *Player: the event thread calls SetFormat, Submit,
// SetVolume, Clear and Stop; the audio backend's realtime thread calls
// Callback once per buffer. Only Callback runs on the realtime thread, and
// it must never block or allocate heavily. Cross-thread state is confined
// to the fields documented in player.go: atomics for single scalars, and a
// mutex-guarded queue for the chunk FIFO. Everything else belongs to
// exactly one thread and is never touched by the other.
package playback
