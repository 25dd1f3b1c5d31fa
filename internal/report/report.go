// Package report renders run reports as text, Markdown, HTML, JSON and Excel workbooks.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"bracketlab/domain/run"
	"bracketlab/internal/errors"
)

// Format is an output format
type Format string

const (
	FormatText     Format = "text"
	FormatMarkdown Format = "markdown"
	FormatHTML     Format = "html"
	FormatJSON     Format = "json"
)

// ParseFormat accepts a format name or common alias
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "text", "txt":
		return FormatText, nil
	case "markdown", "md":
		return FormatMarkdown, nil
	case "html", "htm":
		return FormatHTML, nil
	case "json":
		return FormatJSON, nil
	default:
		return "", errors.InvalidInput(fmt.Sprintf("unknown report format %q", s))
	}
}

// Render writes the report in the given format
func Render(w io.Writer, r *run.Report, format Format) error {
	switch format {
	case FormatText:
		return RenderText(w, r)
	case FormatMarkdown:
		_, err := io.WriteString(w, Markdown(r))
		return err
	case FormatHTML:
		_, err := w.Write(HTML(r))
		return err
	case FormatJSON:
		return RenderJSON(w, r)
	default:
		return errors.InvalidInput(fmt.Sprintf("unknown report format %q", format))
	}
}

// RenderJSON writes the report as indented JSON; undefined metrics become null
func RenderJSON(w io.Writer, r *run.Report) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(r); err != nil {
		return errors.Wrap(err, "failed to encode report")
	}
	return nil
}

func percent(f run.Float) string {
	if !f.Defined() {
		return "n/a"
	}
	return fmt.Sprintf("%.1f%%", float64(f)*100)
}

func date(r *run.Report) string {
	return r.CreatedAt.Format("2006-01-02 15:04 MST")
}

func termList(terms []string) string {
	if len(terms) == 0 {
		return "(intercept only)"
	}
	return strings.Join(terms, ", ")
}

func kindTitle(kind string) string {
	switch kind {
	case run.KindLogistic:
		return "Logistic regression (home win)"
	case run.KindLinear:
		return "Linear regression (score differential)"
	default:
		return kind
	}
}

func setTitle(set string) string {
	return strings.ReplaceAll(set, "_", " ")
}

// comparisonValue formats a compared metric; rates print as percentages
func comparisonValue(metric string, f run.Float) string {
	switch metric {
	case "accuracy", "sensitivity", "specificity", "winner_accuracy", "interval_coverage":
		return percent(f)
	case "terms":
		return f.Format(0)
	default:
		return f.Format(3)
	}
}

// deltaInterval prints the bootstrap bounds of a comparison delta, or nothing
func deltaInterval(c run.Comparison) string {
	if !c.HasInterval() {
		return ""
	}
	return fmt.Sprintf("[%+.3f, %+.3f]", float64(c.DeltaLower), float64(c.DeltaUpper))
}

func stableMark(stable bool) string {
	if stable {
		return " (stable)"
	}
	return ""
}
