package logging

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"
)

// Console prints human-facing CLI output. Styling is dropped when the
// destination is not a terminal.
type Console struct {
	w      io.Writer
	styled bool
	styles consoleStyles
}

type consoleStyles struct {
	success lipgloss.Style
	warning lipgloss.Style
	err     lipgloss.Style
	header  lipgloss.Style
	key     lipgloss.Style
	value   lipgloss.Style
	path    lipgloss.Style
}

func defaultConsoleStyles() consoleStyles {
	return consoleStyles{
		success: lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Bold(true),
		warning: lipgloss.NewStyle().Foreground(lipgloss.Color("11")),
		err:     lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true),
		header:  lipgloss.NewStyle().Foreground(lipgloss.Color("12")).Bold(true),
		key:     lipgloss.NewStyle().Foreground(lipgloss.Color("8")),
		value:   lipgloss.NewStyle().Foreground(lipgloss.Color("14")),
		path:    lipgloss.NewStyle().Foreground(lipgloss.Color("6")).Italic(true),
	}
}

// NewConsole writes to w. A nil w means stdout.
func NewConsole(w io.Writer) *Console {
	if w == nil {
		w = os.Stdout
	}
	styled := false
	if f, ok := w.(*os.File); ok {
		styled = isatty.IsTerminal(f.Fd())
	}
	return &Console{w: w, styled: styled, styles: defaultConsoleStyles()}
}

func (c *Console) render(s lipgloss.Style, text string) string {
	if !c.styled {
		return text
	}
	return s.Render(text)
}

func (c *Console) Success(message string) {
	fmt.Fprintf(c.w, "%s %s\n", c.render(c.styles.success, "✓"), message)
}

func (c *Console) Warn(message string) {
	fmt.Fprintf(c.w, "%s %s\n", c.render(c.styles.warning, "!"), c.render(c.styles.warning, message))
}

func (c *Console) Error(message string, err error) {
	line := message
	if err != nil {
		line += ": " + err.Error()
	}
	fmt.Fprintf(c.w, "%s %s\n", c.render(c.styles.err, "✗"), c.render(c.styles.err, line))
}

// Header prints a section title followed by an underline.
func (c *Console) Header(title string) {
	fmt.Fprintln(c.w, c.render(c.styles.header, title))
	fmt.Fprintln(c.w, c.render(c.styles.key, strings.Repeat("─", len([]rune(title)))))
}

// Field prints "key: value" with the key padded to width.
func (c *Console) Field(key string, value interface{}) {
	fmt.Fprintf(c.w, "%s %s\n", c.render(c.styles.key, fmt.Sprintf("%-14s", key+":")), c.render(c.styles.value, fmt.Sprint(value)))
}

func (c *Console) Path(label, path string) {
	fmt.Fprintf(c.w, "%s %s\n", c.render(c.styles.key, fmt.Sprintf("%-14s", label+":")), c.render(c.styles.path, path))
}

// Line prints an unstyled line.
func (c *Console) Line(format string, args ...interface{}) {
	fmt.Fprintf(c.w, format+"\n", args...)
}
