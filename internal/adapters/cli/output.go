package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
)

// Output formats.
const (
	FormatTable = "table"
	FormatJSON  = "json"
)

// DefaultFormat is table on a terminal and json when piped.
func DefaultFormat() string {
	if isatty.IsTerminal(os.Stdout.Fd()) || isatty.IsCygwinTerminal(os.Stdout.Fd()) {
		return FormatTable
	}
	return FormatJSON
}

// ParseFormat validates a --format value; empty means DefaultFormat.
func ParseFormat(s string) (string, error) {
	switch f := strings.ToLower(strings.TrimSpace(s)); f {
	case "":
		return DefaultFormat(), nil
	case FormatTable, FormatJSON:
		return f, nil
	default:
		return "", fmt.Errorf("invalid --format %q (want %s or %s)", s, FormatTable, FormatJSON)
	}
}

func writeJSON(out io.Writer, v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(out, string(b))
	return err
}

// statusColor colours run and step outcomes.
func statusColor(status string) string {
	switch status {
	case "success", "published", "validated":
		return color.New(color.FgGreen).Sprint(status)
	case "error":
		return color.New(color.FgRed).Sprint(status)
	case "skipped", "partial", "pending_validation":
		return color.New(color.FgYellow).Sprint(status)
	default:
		return status
	}
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Local().Format("2006-01-02 15:04")
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func intOrDash(v *int) string {
	if v == nil {
		return "-"
	}
	return fmt.Sprintf("%d", *v)
}
