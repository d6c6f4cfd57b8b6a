package wizard

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newPrompter(input string) *TerminalPrompter {
	return NewTerminalPrompter(strings.NewReader(input), &strings.Builder{})
}

func TestSelectByNumber(t *testing.T) {
	p := newPrompter("2\n")
	idx, err := p.Select("pick", []Option{{Label: "a"}, {Label: "b"}}, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, idx)
}

func TestSelectEmptyTakesDefault(t *testing.T) {
	p := newPrompter("\n")
	idx, err := p.Select("pick", []Option{{Label: "a"}, {Label: "b"}}, 1)
	require.NoError(t, err)
	assert.Equal(t, 1, idx)
}

func TestSelectRetriesThenGivesUp(t *testing.T) {
	p := newPrompter("x\n9\n0\n")
	_, err := p.Select("pick", []Option{{Label: "a"}}, 0)
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrCancelled)
}

func TestSelectQuitCancels(t *testing.T) {
	p := newPrompter("q\n")
	_, err := p.Select("pick", []Option{{Label: "a"}}, 0)
	assert.True(t, errors.Is(err, ErrCancelled))
}

func TestSelectEOFCancels(t *testing.T) {
	p := newPrompter("")
	_, err := p.Select("pick", []Option{{Label: "a"}}, 0)
	assert.True(t, errors.Is(err, ErrCancelled))
}

func TestMultiSelectKeepsLockedAndParsesNumbers(t *testing.T) {
	opts := []Option{{Label: "core", Locked: true}, {Label: "dev"}, {Label: "docs"}}
	p := newPrompter("3\n")
	picked, err := p.MultiSelect("groups", opts)
	require.NoError(t, err)
	assert.Equal(t, []int{0, 2}, picked, "locked option always included")
}

func TestMultiSelectEmptyTakesDefaults(t *testing.T) {
	opts := []Option{{Label: "core", Locked: true}, {Label: "dev", Default: true}, {Label: "optional"}}
	p := newPrompter("\n")
	picked, err := p.MultiSelect("groups", opts)
	require.NoError(t, err)
	assert.Equal(t, []int{0, 1}, picked)
}

func TestMultiSelectAllAndNone(t *testing.T) {
	opts := []Option{{Label: "core", Locked: true}, {Label: "dev"}}

	p := newPrompter("a\n")
	picked, err := p.MultiSelect("groups", opts)
	require.NoError(t, err)
	assert.Equal(t, []int{0, 1}, picked)

	p = newPrompter("n\n")
	picked, err = p.MultiSelect("groups", opts)
	require.NoError(t, err)
	assert.Equal(t, []int{0}, picked, "'n' still keeps locked options")
}

func TestConfirm(t *testing.T) {
	p := newPrompter("\n")
	ok, err := p.Confirm("go?", true)
	require.NoError(t, err)
	assert.True(t, ok)

	p = newPrompter("n\n")
	ok, err = p.Confirm("go?", true)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestInputValidatesAndRetries(t *testing.T) {
	calls := 0
	validate := func(s string) error {
		calls++
		if strings.Contains(s, " ") {
			return errors.New("no spaces")
		}
		return nil
	}
	p := newPrompter("bad name\ngood-name\n")
	got, err := p.Input("name", "", validate)
	require.NoError(t, err)
	assert.Equal(t, "good-name", got)
	assert.Equal(t, 2, calls)
}

func TestInputEmptyTakesDefault(t *testing.T) {
	p := newPrompter("\n")
	got, err := p.Input("name", "fallback", nil)
	require.NoError(t, err)
	assert.Equal(t, "fallback", got)
}
