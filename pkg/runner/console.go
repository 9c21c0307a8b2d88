package runner

import (
	"fmt"
	"io"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"

	"github.com/ormasoftchile/tent/pkg/report"
)

// Status glyphs convey meaning without relying on colour alone.
const (
	GlyphPassed  = "✓"
	GlyphFailed  = "✗"
	GlyphErrored = "!"
)

const defaultTitleWidth = 60

// console renders progress lines. Styles come from a renderer bound to the
// destination, so plain writers get plain text.
type console struct {
	w     io.Writer
	width int

	passed, failed, errored, dim, header lipgloss.Style
}

func newConsole(w io.Writer, width int) *console {
	if width <= 0 {
		width = defaultTitleWidth
	}
	re := lipgloss.NewRenderer(w)
	return &console{
		w:       w,
		width:   width,
		passed:  re.NewStyle().Foreground(lipgloss.Color("42")),
		failed:  re.NewStyle().Foreground(lipgloss.Color("196")),
		errored: re.NewStyle().Foreground(lipgloss.Color("214")).Bold(true),
		dim:     re.NewStyle().Foreground(lipgloss.Color("240")),
		header:  re.NewStyle().Bold(true).Foreground(lipgloss.Color("51")),
	}
}

func (c *console) style(s report.Status) (lipgloss.Style, string) {
	switch s {
	case report.StatusPassed:
		return c.passed, GlyphPassed
	case report.StatusFailed:
		return c.failed, GlyphFailed
	}
	return c.errored, GlyphErrored
}

func (c *console) start(name string) {
	fmt.Fprintln(c.w, c.header.Render(fmt.Sprintf("Running tests from `%s`", name)))
}

// caseLine writes one progress line, plus the failing steps of a case that
// did not pass.
func (c *console) caseLine(i int, o report.TestCaseOutcome) {
	st, glyph := c.style(o.Status)
	title := runewidth.FillRight(runewidth.Truncate(o.Title, c.width, "…"), c.width)
	fmt.Fprintf(c.w, "%s [%2d] %s %s\n",
		st.Render(glyph), i, title, c.dim.Render(o.Duration.Round(time.Millisecond).String()))

	if o.Status == report.StatusPassed {
		return
	}
	for _, s := range o.Steps {
		if s.Failure == nil {
			continue
		}
		sst, _ := c.style(s.Status)
		fmt.Fprintf(c.w, "       %d. %s %s: %s\n", s.Index, sst.Render(s.Status.Label()), s.Ref, s.Failure)
	}
}

func (c *console) summary(r *report.SuiteReport, elapsed time.Duration) {
	s := r.Summary()
	st, _ := c.style(report.StatusPassed)
	switch {
	case s.Errored > 0:
		st, _ = c.style(report.StatusErrored)
	case s.Failed > 0:
		st, _ = c.style(report.StatusFailed)
	}
	fmt.Fprintf(c.w, "%s %s\n", st.Render(s.String()), c.dim.Render("in "+elapsed.Round(time.Millisecond).String()))
}
