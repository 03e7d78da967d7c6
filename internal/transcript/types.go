package transcript

// PassStatus describes the terminal outcome of a single transcription pass.
type PassStatus string

const (
	PassPending   PassStatus = "pending"
	PassSucceeded PassStatus = "succeeded"
	PassFailed    PassStatus = "failed"
)

// Segment is one timed caption produced by a transcription pass.
type Segment struct {
	Start      float64 `json:"start_time"`
	End        float64 `json:"end_time"`
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence"`
}

// Duration returns the segment length in seconds.
func (s Segment) Duration() float64 {
	return s.End - s.Start
}

// PassResult captures the outcome of one dispatched transcription pass.
// Temperature records the sampling variation the pass ran with; lower
// temperatures produce more literal output.
type PassResult struct {
	PassIndex     int        `json:"pass_index"`
	Temperature   float64    `json:"temperature"`
	Status        PassStatus `json:"status"`
	Segments      []Segment  `json:"segments,omitempty"`
	FailureReason string     `json:"failure_reason,omitempty"`
}

// ConsolidatedSegment is one caption in the authoritative merged transcript.
type ConsolidatedSegment struct {
	Start        float64 `json:"start_time"`
	End          float64 `json:"end_time"`
	Text         string  `json:"text"`
	Confidence   float64 `json:"confidence"`
	SourcePasses []int   `json:"source_pass_indices"`
}

// Duration returns the segment length in seconds.
func (s ConsolidatedSegment) Duration() float64 {
	return s.End - s.Start
}

// SucceededPasses filters results down to passes that completed with output.
func SucceededPasses(results []PassResult) []PassResult {
	out := make([]PassResult, 0, len(results))
	for _, result := range results {
		if result.Status == PassSucceeded {
			out = append(out, result)
		}
	}
	return out
}
