// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package ux provides styled terminal output for the coderag CLI.
//
// Styles are bound to the destination writer, so output written to a pipe
// or a buffer carries no ANSI sequences.
package ux

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
)

// Palette: deep ocean teals with standard semantic colors.
var (
	ColorTealBright  = lipgloss.Color("#2CD7C7") // highlights, success
	ColorTealPrimary = lipgloss.Color("#20B9B4") // main brand color
	ColorTealDeep    = lipgloss.Color("#16858E") // borders
	ColorSlate       = lipgloss.Color("#2C4A54") // muted text

	ColorWarning = lipgloss.Color("#F4D03F")
	ColorError   = lipgloss.Color("#E74C3C")
)

// Icon is a status glyph.
type Icon string

const (
	IconSuccess Icon = "✓"
	IconWarning Icon = "⚠"
	IconError   Icon = "✗"
	IconBullet  Icon = "•"
)

// Styles holds the styles a Printer renders with.
type Styles struct {
	Title    lipgloss.Style
	Subtitle lipgloss.Style
	Bold     lipgloss.Style
	Muted    lipgloss.Style
	Success  lipgloss.Style
	Warning  lipgloss.Style
	Error    lipgloss.Style
	Box      lipgloss.Style
	Border   lipgloss.Style
	Header   lipgloss.Style
	Cell     lipgloss.Style
}

func newStyles(r *lipgloss.Renderer) Styles {
	return Styles{
		Title:    r.NewStyle().Bold(true).Foreground(ColorTealBright),
		Subtitle: r.NewStyle().Foreground(ColorTealPrimary),
		Bold:     r.NewStyle().Bold(true),
		Muted:    r.NewStyle().Foreground(ColorSlate),
		Success:  r.NewStyle().Foreground(ColorTealBright),
		Warning:  r.NewStyle().Foreground(ColorWarning),
		Error:    r.NewStyle().Foreground(ColorError),
		Box: r.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(ColorTealDeep).
			Padding(0, 1),
		Border: r.NewStyle().Foreground(ColorTealDeep),
		Header: r.NewStyle().Bold(true).Foreground(ColorTealPrimary).Padding(0, 1),
		Cell:   r.NewStyle().Padding(0, 1),
	}
}

// Printer writes styled output to one writer.
type Printer struct {
	out    io.Writer
	styles Styles
}

// NewPrinter creates a Printer whose color profile follows w.
func NewPrinter(w io.Writer) *Printer {
	return &Printer{out: w, styles: newStyles(lipgloss.NewRenderer(w))}
}

// Styles exposes the printer's styles for custom layouts.
func (p *Printer) Styles() Styles {
	return p.styles
}

// Title prints a heading.
func (p *Printer) Title(text string) {
	fmt.Fprintln(p.out, p.styles.Title.Render(text))
}

// Success prints text behind a check mark.
func (p *Printer) Success(text string) {
	fmt.Fprintf(p.out, "%s %s\n", p.styles.Success.Render(string(IconSuccess)), p.styles.Success.Render(text))
}

// Warning prints text behind a warning sign.
func (p *Printer) Warning(text string) {
	fmt.Fprintf(p.out, "%s %s\n", p.styles.Warning.Render(string(IconWarning)), p.styles.Warning.Render(text))
}

// Error prints text behind a cross.
func (p *Printer) Error(text string) {
	fmt.Fprintf(p.out, "%s %s\n", p.styles.Error.Render(string(IconError)), p.styles.Error.Render(text))
}

// Muted prints secondary text.
func (p *Printer) Muted(text string) {
	fmt.Fprintln(p.out, p.styles.Muted.Render(text))
}

// Bullet prints one list item.
func (p *Printer) Bullet(text string) {
	fmt.Fprintf(p.out, "%s %s\n", p.styles.Muted.Render(string(IconBullet)), text)
}

// Box prints content in a rounded box under a title.
func (p *Printer) Box(title, content string) {
	fmt.Fprintln(p.out, p.styles.Box.Render(p.styles.Title.Render(title)+"\n"+content))
}

// KeyValues prints aligned "key  value" lines. pairs alternates keys and
// values; a trailing key without a value is ignored.
func (p *Printer) KeyValues(pairs ...string) {
	width := 0
	for i := 0; i+1 < len(pairs); i += 2 {
		width = max(width, lipgloss.Width(pairs[i]))
	}
	for i := 0; i+1 < len(pairs); i += 2 {
		key := pairs[i] + strings.Repeat(" ", width-lipgloss.Width(pairs[i]))
		fmt.Fprintf(p.out, "  %s  %s\n", p.styles.Muted.Render(key), pairs[i+1])
	}
}

// Table prints rows under headers with a rounded border.
func (p *Printer) Table(headers []string, rows [][]string) {
	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(p.styles.Border).
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == table.HeaderRow {
				return p.styles.Header
			}
			return p.styles.Cell
		}).
		Headers(headers...).
		Rows(rows...)
	fmt.Fprintln(p.out, t.String())
}

// Summary prints "n label" pairs on one line, e.g. "3 created  1 skipped".
func (p *Printer) Summary(counts []int, labels []string) {
	parts := make([]string, 0, len(counts))
	for i, n := range counts {
		if i >= len(labels) {
			break
		}
		parts = append(parts, p.styles.Bold.Render(fmt.Sprintf("%d", n))+" "+p.styles.Muted.Render(labels[i]))
	}
	fmt.Fprintln(p.out, strings.Join(parts, "  "))
}
