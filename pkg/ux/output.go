// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package ux provides terminal output styling for the affected-tests CLI.
//
// Output goes through a Printer bound to one writer. Colors follow the
// writer: a terminal gets the teal palette, a pipe or CI log gets plain
// text. ModeMachine drops icons and styling entirely and prefixes status
// lines with OK/WARN/ERROR for grep-friendly logs.
package ux

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// =============================================================================
// Colors
// =============================================================================

var (
	ColorTealBright  = lipgloss.Color("#2CD7C7") // highlights, success
	ColorTealPrimary = lipgloss.Color("#20B9B4") // titles
	ColorTealDeep    = lipgloss.Color("#16858E") // borders
	ColorSlate       = lipgloss.Color("#2C4A54") // muted text

	ColorWarning = lipgloss.Color("#F4D03F")
	ColorError   = lipgloss.Color("#E74C3C")
)

// =============================================================================
// Modes
// =============================================================================

// Mode controls how much decoration output carries.
type Mode string

const (
	// ModeStandard uses icons and, on terminals, colors.
	ModeStandard Mode = "standard"

	// ModeMachine prints plain "KEY: value" lines with no icons.
	ModeMachine Mode = "machine"
)

// ParseMode converts a mode name. Unknown names are an error.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "standard", "std":
		return ModeStandard, nil
	case "machine", "plain":
		return ModeMachine, nil
	default:
		return ModeStandard, fmt.Errorf("unknown output mode %q", s)
	}
}

// =============================================================================
// Icons
// =============================================================================

// Icon is a single-glyph status marker.
type Icon string

const (
	IconSuccess Icon = "✓"
	IconWarning Icon = "⚠"
	IconError   Icon = "✗"
	IconPending Icon = "○"
	IconArrow   Icon = "→"
	IconBullet  Icon = "•"
)

// =============================================================================
// Printer
// =============================================================================

type styles struct {
	title   lipgloss.Style
	label   lipgloss.Style
	muted   lipgloss.Style
	success lipgloss.Style
	warning lipgloss.Style
	err     lipgloss.Style
	box     lipgloss.Style
}

func newStyles(r *lipgloss.Renderer) styles {
	return styles{
		title:   r.NewStyle().Bold(true).Foreground(ColorTealBright),
		label:   r.NewStyle().Bold(true),
		muted:   r.NewStyle().Foreground(ColorSlate),
		success: r.NewStyle().Foreground(ColorTealBright),
		warning: r.NewStyle().Foreground(ColorWarning),
		err:     r.NewStyle().Foreground(ColorError),
		box: r.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(ColorTealDeep).
			Padding(0, 1),
	}
}

// Printer writes styled lines to one writer.
//
// # Thread Safety
//
// Not safe for concurrent use; each line is a separate write.
type Printer struct {
	w      io.Writer
	mode   Mode
	styles styles
}

// NewPrinter creates a Printer. The color profile is detected from w, so
// a bytes.Buffer or pipe always receives plain text.
func NewPrinter(w io.Writer, mode Mode) *Printer {
	return &Printer{
		w:      w,
		mode:   mode,
		styles: newStyles(lipgloss.NewRenderer(w)),
	}
}

// Mode returns the printer's mode.
func (p *Printer) Mode() Mode {
	return p.mode
}

// Title prints a heading. Machine mode omits it.
func (p *Printer) Title(text string) {
	if p.mode == ModeMachine {
		return
	}
	fmt.Fprintln(p.w, p.styles.title.Render(text))
}

// Field prints "label: value".
func (p *Printer) Field(label, value string) {
	if p.mode == ModeMachine {
		fmt.Fprintf(p.w, "%s: %s\n", label, value)
		return
	}
	fmt.Fprintf(p.w, "%s %s\n", p.styles.label.Render(label+":"), value)
}

// Success prints a success line.
func (p *Printer) Success(text string) {
	p.status("OK", IconSuccess, p.styles.success, text)
}

// Warning prints a warning line.
func (p *Printer) Warning(text string) {
	p.status("WARN", IconWarning, p.styles.warning, text)
}

// Error prints an error line.
func (p *Printer) Error(text string) {
	p.status("ERROR", IconError, p.styles.err, text)
}

func (p *Printer) status(prefix string, icon Icon, style lipgloss.Style, text string) {
	if p.mode == ModeMachine {
		fmt.Fprintf(p.w, "%s: %s\n", prefix, text)
		return
	}
	fmt.Fprintf(p.w, "%s %s\n", style.Render(string(icon)), style.Render(text))
}

// List prints items indented by two spaces, one per line.
func (p *Printer) List(items []string) {
	for _, item := range items {
		fmt.Fprintf(p.w, "  %s\n", item)
	}
}

// Muted prints de-emphasized text.
func (p *Printer) Muted(text string) {
	if p.mode == ModeMachine {
		fmt.Fprintln(p.w, text)
		return
	}
	fmt.Fprintln(p.w, p.styles.muted.Render(text))
}

// Box prints lines inside a rounded border. Machine mode prints the lines
// unframed.
func (p *Printer) Box(lines ...string) {
	if p.mode == ModeMachine {
		for _, l := range lines {
			fmt.Fprintln(p.w, l)
		}
		return
	}
	fmt.Fprintln(p.w, p.styles.box.Render(strings.Join(lines, "\n")))
}

// Blank prints an empty line.
func (p *Printer) Blank() {
	fmt.Fprintln(p.w)
}
