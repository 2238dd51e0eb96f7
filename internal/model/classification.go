package model

// Classification is the verdict for one probe.
type Classification int

const (
	// NoMatch means the response matches the not-found baseline.
	NoMatch Classification = iota

	// Match means the response differs from the baseline: a real resource.
	Match

	// Blocked means the prober is being challenged or rate limited.
	// A blocked response is never reported as a match.
	Blocked
)

// String returns the lowercase name of the classification.
func (c Classification) String() string {
	switch c {
	case NoMatch:
		return "no_match"
	case Match:
		return "match"
	case Blocked:
		return "blocked"
	default:
		return "unknown"
	}
}
