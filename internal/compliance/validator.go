package compliance

import (
	"fmt"
	"unicode/utf8"

	"zeus/internal/config"
	"zeus/internal/transcript"
)

// Report is the immutable outcome of validating one consolidated transcript.
type Report struct {
	Level     Level    `json:"level"`
	Score     int      `json:"score"`
	Compliant bool     `json:"compliant"`
	Issues    []string `json:"issues"`
	Warnings  []string `json:"warnings"`
}

// compliantFloor is the minimum score for a transcript to count as compliant.
const compliantFloor = 90

// Validator scores consolidated transcripts against accessibility profiles.
type Validator struct {
	cfg config.Compliance
}

// NewValidator builds a validator using configured rule defaults.
func NewValidator(cfg config.Compliance) *Validator {
	return &Validator{cfg: cfg}
}

// Validate scores segments against the requested level. Scoring is
// deterministic for identical input: rules run in segment order and every
// finding carries a fixed penalty, floored at zero.
func (v *Validator) Validate(level Level, segments []transcript.ConsolidatedSegment) Report {
	profile := ProfileFor(level, v.cfg)
	report := Report{Level: level}

	if len(segments) == 0 {
		report.Issues = append(report.Issues, "no transcript segments found")
		report.Score = 0
		return report
	}

	for _, segment := range segments {
		v.checkReadingSpeed(&report, profile, segment)
		v.checkDuration(&report, profile, segment)
		v.checkLength(&report, profile, segment)
	}
	v.checkGaps(&report, profile, segments)

	penalty := len(report.Issues)*v.cfg.IssuePenalty + len(report.Warnings)*v.cfg.WarningPenalty
	report.Score = 100 - penalty
	if report.Score < 0 {
		report.Score = 0
	}
	report.Compliant = report.Score >= compliantFloor && len(report.Issues) == 0
	return report
}

// checkReadingSpeed compares the segment's characters-per-second rate against
// the profile's WPM-derived ceiling. More than 20% over is an issue; anything
// over is at least a warning.
func (v *Validator) checkReadingSpeed(report *Report, profile Profile, segment transcript.ConsolidatedSegment) {
	duration := segment.Duration()
	if duration <= 0 {
		return
	}
	rate := float64(utf8.RuneCountInString(segment.Text)) / duration
	ceiling := profile.MaxCharsPerSecond()
	if rate <= ceiling {
		return
	}
	over := rate/ceiling - 1
	message := fmt.Sprintf("segment at %.1fs reads at %.1f chars/s (ceiling %.1f)", segment.Start, rate, ceiling)
	if over > 0.2 {
		report.Issues = append(report.Issues, message)
	} else {
		report.Warnings = append(report.Warnings, message)
	}
}

func (v *Validator) checkDuration(report *Report, profile Profile, segment transcript.ConsolidatedSegment) {
	duration := segment.Duration()
	switch {
	case duration < profile.MinSegmentSeconds:
		report.Issues = append(report.Issues,
			fmt.Sprintf("segment at %.1fs is too short: %.2fs", segment.Start, duration))
	case duration > profile.MaxSegmentSeconds:
		report.Issues = append(report.Issues,
			fmt.Sprintf("segment at %.1fs is too long: %.2fs", segment.Start, duration))
	}
}

// checkLength caps segment length in characters, not bytes, so multibyte
// text is not over-counted.
func (v *Validator) checkLength(report *Report, profile Profile, segment transcript.ConsolidatedSegment) {
	chars := utf8.RuneCountInString(segment.Text)
	if chars > profile.MaxSegmentChars {
		report.Issues = append(report.Issues,
			fmt.Sprintf("segment at %.1fs exceeds %d chars: %d", segment.Start, profile.MaxSegmentChars, chars))
	}
}

// checkGaps flags long stretches without captions between adjacent segments.
func (v *Validator) checkGaps(report *Report, profile Profile, segments []transcript.ConsolidatedSegment) {
	for i := 1; i < len(segments); i++ {
		gap := segments[i].Start - segments[i-1].End
		if gap > profile.MaxGapSeconds {
			report.Warnings = append(report.Warnings,
				fmt.Sprintf("gap of %.1fs between segments at %.1fs", gap, segments[i-1].End))
		}
	}
}
