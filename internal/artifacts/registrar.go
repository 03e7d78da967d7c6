// Package artifacts registers output locations for completed transcripts.
package artifacts

import (
	"strings"

	"zeus/internal/config"
)

// Registrar maps completed jobs to the artifact URIs the export pipeline
// publishes for them.
type Registrar struct {
	baseURL string
	formats []string
}

// NewRegistrar builds a registrar from output configuration. Unknown or
// duplicate formats are dropped.
func NewRegistrar(cfg config.Outputs) *Registrar {
	seen := make(map[string]struct{}, len(cfg.Formats))
	formats := make([]string, 0, len(cfg.Formats))
	for _, format := range cfg.Formats {
		normalized := strings.ToLower(strings.TrimSpace(format))
		if normalized == "" {
			continue
		}
		if _, ok := seen[normalized]; ok {
			continue
		}
		seen[normalized] = struct{}{}
		formats = append(formats, normalized)
	}
	return &Registrar{
		baseURL: strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/"),
		formats: formats,
	}
}

// Register returns the artifact URI per configured format for a request.
func (r *Registrar) Register(requestID string) map[string]string {
	outputs := make(map[string]string, len(r.formats))
	for _, format := range r.formats {
		outputs[format] = r.baseURL + "/" + requestID + "." + format
	}
	return outputs
}

// Formats returns the configured formats in declaration order.
func (r *Registrar) Formats() []string {
	out := make([]string, len(r.formats))
	copy(out, r.formats)
	return out
}
