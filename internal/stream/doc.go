// Package stream runs the telemetry loops: group streaming, where every
// addressed unit sends pages on its own receive channel, and the raw page
// stream of a single unit.
//
// Both loops run until their context is cancelled and hand each decoded
// page to a Sink. Frames that are not exactly one telemetry page are
// counted and dropped.
package stream
