// Package printer formats CLI output: status lines with color, message
// tables, and structured error messages with suggestions.
package printer

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/dyluth/drey/pkg/board"
	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
)

func init() {
	// Force color output even when not connected to TTY
	// Users can disable with NO_COLOR environment variable
	if os.Getenv("NO_COLOR") == "" {
		color.NoColor = false
	}
}

var (
	green  = color.New(color.FgGreen)
	yellow = color.New(color.FgYellow)
	red    = color.New(color.FgRed, color.Bold)
	cyan   = color.New(color.FgCyan)
)

// Success prints a success message in green with a checkmark prefix
func Success(format string, a ...any) {
	green.Printf("✓ "+format, a...)
}

// Info prints an informational message in the default color
func Info(format string, a ...any) {
	fmt.Printf(format, a...)
}

// Warning prints a warning message in yellow
func Warning(format string, a ...any) {
	yellow.Printf("⚠ "+format, a...)
}

// Error creates a formatted error message with title, explanation, and
// suggestions. Prints to stderr with colors and returns a simple error for
// Cobra (which won't re-print it due to SilenceErrors).
func Error(title string, explanation string, suggestions []string) error {
	red.Fprintf(os.Stderr, "%s\n\n", title)

	if explanation != "" {
		fmt.Fprintf(os.Stderr, "%s\n", explanation)
	}

	if len(suggestions) > 0 {
		fmt.Fprintf(os.Stderr, "\n")
		for _, suggestion := range suggestions {
			fmt.Fprintf(os.Stderr, "  %s\n", suggestion)
		}
	}

	return fmt.Errorf("%s", title)
}

// MessageTable renders messages as a table, newest first as provided.
func MessageTable(w io.Writer, messages []*board.Message) {
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"ID", "Type", "Priority", "Status", "Agent", "Title", "Created"})
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetBorder(false)

	for _, m := range messages {
		table.Append([]string{
			m.ID,
			string(m.Type),
			string(m.Priority),
			string(m.Status),
			m.AgentID,
			truncate(m.Title, 40),
			m.CreatedAt.Local().Format(time.RFC3339),
		})
	}

	table.Render()
}

// TaskTable renders pending tasks in pickup order.
func TaskTable(w io.Writer, tasks []*board.Message) {
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"ID", "Priority", "Agent", "Title", "Age"})
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetBorder(false)

	now := time.Now().UTC()
	for _, t := range tasks {
		table.Append([]string{
			t.ID,
			string(t.Priority),
			t.AgentID,
			truncate(t.Title, 40),
			now.Sub(t.CreatedAt).Round(time.Second).String(),
		})
	}

	table.Render()
}

// MessageDetail prints one message in full.
func MessageDetail(w io.Writer, m *board.Message) {
	cyan.Fprintf(w, "%s\n", m.ID)
	fmt.Fprintf(w, "  type:        %s\n", m.Type)
	fmt.Fprintf(w, "  priority:    %s\n", m.Priority)
	if m.IsTask() {
		fmt.Fprintf(w, "  status:      %s\n", m.Status)
	}
	fmt.Fprintf(w, "  agent:       %s\n", m.AgentID)
	fmt.Fprintf(w, "  title:       %s\n", m.Title)
	if m.Description != "" {
		fmt.Fprintf(w, "  description: %s\n", m.Description)
	}
	if m.RefTaskID != "" {
		fmt.Fprintf(w, "  ref task:    %s\n", m.RefTaskID)
	}
	printKV(w, "context", m.Context)
	printKV(w, "result", m.Result)
	if m.ClaimedBy != "" {
		fmt.Fprintf(w, "  claimed by:  %s", m.ClaimedBy)
		if m.ClaimedAt != nil {
			fmt.Fprintf(w, " at %s", m.ClaimedAt.Local().Format(time.RFC3339))
		}
		fmt.Fprintln(w)
	}
	fmt.Fprintf(w, "  created:     %s\n", m.CreatedAt.Local().Format(time.RFC3339))
	fmt.Fprintf(w, "  updated:     %s\n", m.UpdatedAt.Local().Format(time.RFC3339))
}

// printKV renders an opaque key/value payload with stable key order.
func printKV(w io.Writer, label string, kv map[string]any) {
	if len(kv) == 0 {
		return
	}
	keys := make([]string, 0, len(kv))
	for k := range kv {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	fmt.Fprintf(w, "  %s:\n", label)
	for _, k := range keys {
		fmt.Fprintf(w, "    %s: %v\n", k, kv[k])
	}
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return strings.TrimSpace(s[:max-1]) + "…"
}
