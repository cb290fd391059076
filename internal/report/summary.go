package report

import (
	"encoding/json"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"

	"github.com/moolen/mergetrace/internal/analyzer"
)

// Format selects the summary encoding.
type Format string

const (
	FormatText Format = "text"
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// ParseFormat validates a --format value.
func ParseFormat(s string) (Format, error) {
	switch f := Format(s); f {
	case FormatText, FormatJSON, FormatYAML:
		return f, nil
	default:
		return "", fmt.Errorf("unknown format %q (expected text, json or yaml)", s)
	}
}

// SummaryFile is the file name of a summary in format f.
func (f Format) SummaryFile() string {
	return "summary." + string(f)
}

// FileSummary is one entry of a summary document.
type FileSummary struct {
	Path   string           `json:"path" yaml:"path"`
	Error  string           `json:"error,omitempty" yaml:"error,omitempty"`
	Cached bool             `json:"cached,omitempty" yaml:"cached,omitempty"`
	Result *analyzer.Result `json:"result,omitempty" yaml:"result,omitempty"`
}

// Summaries converts batch outcomes into summary entries.
func Summaries(outcomes []analyzer.Outcome) []FileSummary {
	out := make([]FileSummary, 0, len(outcomes))
	for _, o := range outcomes {
		s := FileSummary{Path: o.Path, Cached: o.Cached, Result: o.Result}
		if o.Err != nil {
			s.Error = o.Err.Error()
		}
		out = append(out, s)
	}
	return out
}

// WriteSummary encodes summaries to w as JSON or YAML.
func WriteSummary(w io.Writer, f Format, summaries []FileSummary) error {
	switch f {
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(summaries); err != nil {
			return fmt.Errorf("failed to encode JSON summary: %w", err)
		}
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(summaries); err != nil {
			return fmt.Errorf("failed to encode YAML summary: %w", err)
		}
		if err := enc.Close(); err != nil {
			return fmt.Errorf("failed to encode YAML summary: %w", err)
		}
	default:
		return fmt.Errorf("format %q has no summary encoding", f)
	}
	return nil
}
