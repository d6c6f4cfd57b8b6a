// Package wizard drives the interactive setup flow: it collects the
// user's choices through a prompter, then scaffolds the project with
// rollback protection around every side-effecting step.
package wizard

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"typysetup/internal/ux"
)

// ErrCancelled reports that the user backed out of the flow. It is not
// a failure: no alarm is raised and no history is recorded for it.
var ErrCancelled = errors.New("setup cancelled")

// Option is one selectable entry in a prompt.
type Option struct {
	Label  string
	Detail string
	// Locked options are always part of a multi-select result.
	Locked bool
	// Default options are selected when the user just presses enter.
	Default bool
}

// Prompter is the wizard's question-asking surface. Implementations
// return ErrCancelled when the user backs out.
type Prompter interface {
	Select(prompt string, options []Option, defaultIndex int) (int, error)
	MultiSelect(prompt string, options []Option) ([]int, error)
	Confirm(prompt string, defaultYes bool) (bool, error)
	Input(prompt, defaultValue string, validate func(string) error) (string, error)
}

// maxAttempts bounds re-prompting on invalid input before giving up.
const maxAttempts = 3

// TerminalPrompter asks questions over a line-oriented reader and
// writer, normally stdin and stdout. Entering "q" at any prompt cancels.
type TerminalPrompter struct {
	in  *bufio.Reader
	out io.Writer
}

func NewTerminalPrompter(in io.Reader, out io.Writer) *TerminalPrompter {
	return &TerminalPrompter{in: bufio.NewReader(in), out: out}
}

func (p *TerminalPrompter) readLine() (string, error) {
	line, err := p.in.ReadString('\n')
	if err != nil && line == "" {
		return "", ErrCancelled
	}
	line = strings.TrimSpace(line)
	if strings.EqualFold(line, "q") {
		return "", ErrCancelled
	}
	return line, nil
}

func (p *TerminalPrompter) Select(prompt string, options []Option, defaultIndex int) (int, error) {
	fmt.Fprintln(p.out)
	ux.Titlef(p.out, "%s", prompt)
	for i, opt := range options {
		marker := " "
		if i == defaultIndex {
			marker = "*"
		}
		line := fmt.Sprintf("%s %2d) %s", marker, i+1, opt.Label)
		if opt.Detail != "" {
			line += "  " + ux.Dim.Render(opt.Detail)
		}
		fmt.Fprintln(p.out, line)
	}

	for attempt := 0; attempt < maxAttempts; attempt++ {
		fmt.Fprintf(p.out, "Choice [%d] (q to quit): ", defaultIndex+1)
		line, err := p.readLine()
		if err != nil {
			return 0, err
		}
		if line == "" {
			return defaultIndex, nil
		}
		n, err := strconv.Atoi(line)
		if err != nil || n < 1 || n > len(options) {
			ux.Warningf(p.out, "enter a number between 1 and %d", len(options))
			continue
		}
		return n - 1, nil
	}
	return 0, fmt.Errorf("no valid selection after %d attempts", maxAttempts)
}

func (p *TerminalPrompter) MultiSelect(prompt string, options []Option) ([]int, error) {
	fmt.Fprintln(p.out)
	ux.Titlef(p.out, "%s", prompt)
	for i, opt := range options {
		marker := " "
		if opt.Locked {
			marker = "+"
		} else if opt.Default {
			marker = "*"
		}
		line := fmt.Sprintf("%s %2d) %s", marker, i+1, opt.Label)
		if opt.Detail != "" {
			line += "  " + ux.Dim.Render(opt.Detail)
		}
		fmt.Fprintln(p.out, line)
	}
	ux.Dimf(p.out, "comma-separated numbers, 'a' for all, enter for defaults, 'n' for none")

	for attempt := 0; attempt < maxAttempts; attempt++ {
		fmt.Fprint(p.out, "Selection (q to quit): ")
		line, err := p.readLine()
		if err != nil {
			return nil, err
		}
		picked, ok := parseMultiSelection(line, options)
		if !ok {
			ux.Warningf(p.out, "enter numbers between 1 and %d", len(options))
			continue
		}
		return picked, nil
	}
	return nil, fmt.Errorf("no valid selection after %d attempts", maxAttempts)
}

func parseMultiSelection(line string, options []Option) ([]int, bool) {
	selected := map[int]bool{}
	for i, opt := range options {
		if opt.Locked {
			selected[i] = true
		}
	}
	switch strings.ToLower(line) {
	case "":
		for i, opt := range options {
			if opt.Default {
				selected[i] = true
			}
		}
	case "a":
		for i := range options {
			selected[i] = true
		}
	case "n":
		// locked entries only
	default:
		for _, part := range strings.Split(line, ",") {
			n, err := strconv.Atoi(strings.TrimSpace(part))
			if err != nil || n < 1 || n > len(options) {
				return nil, false
			}
			selected[n-1] = true
		}
	}
	picked := make([]int, 0, len(selected))
	for i := range options {
		if selected[i] {
			picked = append(picked, i)
		}
	}
	return picked, true
}

func (p *TerminalPrompter) Confirm(prompt string, defaultYes bool) (bool, error) {
	hint := "[Y/n]"
	if !defaultYes {
		hint = "[y/N]"
	}
	for attempt := 0; attempt < maxAttempts; attempt++ {
		fmt.Fprintf(p.out, "%s %s: ", prompt, hint)
		line, err := p.readLine()
		if err != nil {
			return false, err
		}
		switch strings.ToLower(line) {
		case "":
			return defaultYes, nil
		case "y", "yes":
			return true, nil
		case "n", "no":
			return false, nil
		}
		ux.Warningf(p.out, "answer y or n")
	}
	return false, fmt.Errorf("no valid answer after %d attempts", maxAttempts)
}

func (p *TerminalPrompter) Input(prompt, defaultValue string, validate func(string) error) (string, error) {
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if defaultValue != "" {
			fmt.Fprintf(p.out, "%s [%s]: ", prompt, defaultValue)
		} else {
			fmt.Fprintf(p.out, "%s: ", prompt)
		}
		line, err := p.readLine()
		if err != nil {
			return "", err
		}
		if line == "" {
			line = defaultValue
		}
		if validate != nil {
			if err := validate(line); err != nil {
				ux.Warningf(p.out, "%v", err)
				continue
			}
		}
		return line, nil
	}
	return "", fmt.Errorf("no valid input after %d attempts", maxAttempts)
}
