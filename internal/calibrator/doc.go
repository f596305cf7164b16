// Package calibrator implements the optional cross-correlation calibrator
// (spec §4.6): it compares the reference audio the server told this client
// to play against what a microphone actually captured, and estimates the
// acoustic offset between the two via GCC-PHAT. Its timing discipline
// mirrors the playback core's (same TimeSync collaborator, same
// microsecond source timeline) but it is otherwise independent: loss of
// the calibrator never affects playback.
package calibrator
