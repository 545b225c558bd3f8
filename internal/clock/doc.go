// Package clock provides injectable time and id sources.
//
// Production code uses System and RandomSuffix. Tests use Fake, Sequence
// and Fixed to make durations and correlation ids deterministic.
package clock
