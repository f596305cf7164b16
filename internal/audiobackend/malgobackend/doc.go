// Package malgobackend implements audiobackend.Backend and
// audiobackend.Enumerator on top of gen2brain/malgo, the cross-platform
// miniaudio binding. It is grounded on the teacher's
// internal/audiocore/sources/malgo package: same backend-per-OS selection,
// same device-enumeration logic (without its name-based device matching;
// device IDs are used as given), same errors-builder-pattern error
// reporting, adapted from a capture-only
// analysis source into a symmetric playback+capture pair driven by the
// sync playback core's own Callback methods instead of a channel-fed
// analyzer pipeline.
package malgobackend
