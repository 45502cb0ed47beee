// Package ui holds the console side of relic: styled messages, the process
// output sink, the console dialog and the system opener.
package ui

import (
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/lipgloss"
)

// Styles holds the lipgloss styles of the console UI
type Styles struct {
	Success   lipgloss.Style
	Info      lipgloss.Style
	Warn      lipgloss.Style
	Error     lipgloss.Style
	Timestamp lipgloss.Style
	Source    lipgloss.Style
	Dialog    lipgloss.Style
	Title     lipgloss.Style
	Button    lipgloss.Style
	Dim       lipgloss.Style
}

// NewStyles returns the default color scheme rendered for r
func NewStyles(r *lipgloss.Renderer) *Styles {
	subtle := lipgloss.AdaptiveColor{Light: "#666", Dark: "#999"}
	highlight := lipgloss.AdaptiveColor{Light: "#7D56F4", Dark: "#AD8EE6"}
	success := lipgloss.AdaptiveColor{Light: "#00AA00", Dark: "#00FF00"}
	warning := lipgloss.AdaptiveColor{Light: "#AAAA00", Dark: "#FFFF00"}
	errorColor := lipgloss.AdaptiveColor{Light: "#AA0000", Dark: "#FF0000"}
	info := lipgloss.AdaptiveColor{Light: "#0066CC", Dark: "#00AAFF"}

	return &Styles{
		Success:   r.NewStyle().Bold(true).Foreground(success),
		Info:      r.NewStyle().Foreground(info),
		Warn:      r.NewStyle().Bold(true).Foreground(warning),
		Error:     r.NewStyle().Bold(true).Foreground(errorColor),
		Timestamp: r.NewStyle().Foreground(subtle),
		Source:    r.NewStyle().Bold(true).Foreground(highlight),
		Dialog: r.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(highlight).
			Padding(0, 1),
		Title:  r.NewStyle().Bold(true).Foreground(highlight),
		Button: r.NewStyle().Bold(true).Foreground(info),
		Dim:    r.NewStyle().Foreground(subtle),
	}
}

// Printer writes styled one-line messages
type Printer struct {
	w      io.Writer
	styles *Styles
}

// NewPrinter creates a Printer for w
func NewPrinter(w io.Writer) *Printer {
	return &Printer{w: w, styles: NewStyles(lipgloss.NewRenderer(w))}
}

var stdout = NewPrinter(os.Stdout)

func (p *Printer) Success(msg string) { fmt.Fprintln(p.w, p.styles.Success.Render("✅"), msg) }
func (p *Printer) Info(msg string)    { fmt.Fprintln(p.w, p.styles.Info.Render("ℹ️"), msg) }
func (p *Printer) Warn(msg string)    { fmt.Fprintln(p.w, p.styles.Warn.Render("⚠️"), msg) }
func (p *Printer) Error(msg string)   { fmt.Fprintln(p.w, p.styles.Error.Render("❌"), msg) }

// Success prints msg to stdout as a success
func Success(msg string) { stdout.Success(msg) }

// Info prints msg to stdout
func Info(msg string) { stdout.Info(msg) }

// Warn prints msg to stdout as a warning
func Warn(msg string) { stdout.Warn(msg) }

// Error prints msg to stdout as an error
func Error(msg string) { stdout.Error(msg) }
