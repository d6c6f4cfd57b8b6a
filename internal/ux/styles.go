// Package ux holds the terminal presentation layer: lipgloss styles for
// wizard output and a small table renderer for the list and history
// commands.
package ux

import (
	"fmt"
	"io"

	"github.com/charmbracelet/lipgloss"
)

var (
	Title   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("6"))
	Accent  = lipgloss.NewStyle().Foreground(lipgloss.Color("4"))
	Success = lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
	Warning = lipgloss.NewStyle().Foreground(lipgloss.Color("3"))
	Error   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("1"))
	Dim     = lipgloss.NewStyle().Faint(true)
)

func Titlef(w io.Writer, format string, args ...any) {
	fmt.Fprintln(w, Title.Render(fmt.Sprintf(format, args...)))
}

func Successf(w io.Writer, format string, args ...any) {
	fmt.Fprintln(w, Success.Render("✓ "+fmt.Sprintf(format, args...)))
}

func Warningf(w io.Writer, format string, args ...any) {
	fmt.Fprintln(w, Warning.Render("! "+fmt.Sprintf(format, args...)))
}

func Errorf(w io.Writer, format string, args ...any) {
	fmt.Fprintln(w, Error.Render("✗ "+fmt.Sprintf(format, args...)))
}

func Dimf(w io.Writer, format string, args ...any) {
	fmt.Fprintln(w, Dim.Render(fmt.Sprintf(format, args...)))
}
