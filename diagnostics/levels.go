package diagnostics

import "math"

// Level is an informal severity for a diagnostic message. Higher is
// more important. The only levels with special meaning to this
// package are LevelWarning and LevelError; everything else is left to
// producers and subscribers to agree on by convention.
type Level uint

const (
	// LevelFloor is the lowest level any message can be published at.
	LevelFloor Level = 0
	// LevelWarning marks a message as a warning.
	LevelWarning Level = 5
	// LevelError marks a message as an error.
	LevelError Level = 10

	// levelInfinity is returned by MinLevel when there are no
	// subscribers: it is the largest Level, above any level a message
	// is normally published at, so a producer can treat it as "nobody
	// is listening".
	levelInfinity Level = math.MaxUint
)
