package compliance

import (
	"strings"

	"zeus/internal/config"
	"zeus/internal/services"
)

// Level names an accessibility profile a transcript can be validated against.
type Level string

const (
	LevelWCAGAA     Level = "wcag_aa"
	LevelEAA        Level = "eaa"
	LevelSection508 Level = "section_508"
)

// Levels lists the supported profiles in display order.
func Levels() []Level {
	return []Level{LevelWCAGAA, LevelEAA, LevelSection508}
}

// ParseLevel normalizes and validates a profile name.
func ParseLevel(value string) (Level, error) {
	normalized := Level(strings.ToLower(strings.TrimSpace(value)))
	switch normalized {
	case LevelWCAGAA, LevelEAA, LevelSection508:
		return normalized, nil
	default:
		return "", services.Wrap(services.ErrValidation, "validating", "profile", "unknown compliance level "+string(value), nil)
	}
}

// Profile carries the concrete thresholds one accessibility level enforces.
type Profile struct {
	Level             Level
	TargetWPM         int
	MinSegmentSeconds float64
	MaxSegmentSeconds float64
	MaxSegmentChars   int
	MaxGapSeconds     float64
}

// charsPerWord is the captioning convention for converting a words-per-minute
// target into a character budget (five letters plus a space).
const charsPerWord = 6.0

// MaxCharsPerSecond derives the reading-speed ceiling from the WPM target.
func (p Profile) MaxCharsPerSecond() float64 {
	return float64(p.TargetWPM) * charsPerWord / 60.0
}

// ProfileFor resolves the thresholds for a level, starting from configured
// defaults. WCAG 2.1 AA allows a faster reading speed; Section 508 caption
// style keeps lines shorter.
func ProfileFor(level Level, cfg config.Compliance) Profile {
	profile := Profile{
		Level:             level,
		TargetWPM:         cfg.TargetWPM,
		MinSegmentSeconds: cfg.MinSegmentSeconds,
		MaxSegmentSeconds: cfg.MaxSegmentSeconds,
		MaxSegmentChars:   cfg.MaxSegmentChars,
		MaxGapSeconds:     2.0,
	}
	switch level {
	case LevelWCAGAA:
		profile.TargetWPM = maxInt(profile.TargetWPM, 180)
	case LevelSection508:
		profile.MaxSegmentChars = minInt(profile.MaxSegmentChars, 74)
	}
	return profile
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
