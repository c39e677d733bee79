// Package pond manages the owner resources: ponds and the feed
// description of the feeder serving each pond.
//
// Each pond names the feeder device serving it via Source. Deleting a
// pond cascades: its feeder info row goes with it (schema-level), and
// the service layer removes every schedule owned by the pond's source
// so orphaned schedule facts cannot survive their owner.
package pond
