package cli

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

const helpWidth = 60

// helpStyles is the palette of the styled help output.
type helpStyles struct {
	title   lipgloss.Style
	section lipgloss.Style
	command lipgloss.Style
	flag    lipgloss.Style
	muted   lipgloss.Style
	italic  lipgloss.Style
}

func newHelpStyles() helpStyles {
	return helpStyles{
		title:   lipgloss.NewStyle().Bold(true).Foreground(lipgloss.AdaptiveColor{Light: "#b35b00", Dark: "#ffa066"}),
		section: lipgloss.NewStyle().Italic(true).Foreground(lipgloss.AdaptiveColor{Light: "#b35b00", Dark: "#ffa066"}),
		command: lipgloss.NewStyle().Bold(true).Foreground(lipgloss.AdaptiveColor{Light: "#2a5d9f", Dark: "#7e9cd8"}),
		flag:    lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "#6a4c9c", Dark: "#957fb8"}),
		muted:   lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "#7a7a7a", Dark: "#727169"}),
		italic:  lipgloss.NewStyle().Italic(true),
	}
}

// helpPrinter renders styled text, or plain text when w is not a terminal.
type helpPrinter struct {
	w      io.Writer
	styled bool
	s      helpStyles
}

func newHelpPrinter(w io.Writer) *helpPrinter {
	styled := false
	if f, ok := w.(*os.File); ok {
		styled = isatty.IsTerminal(f.Fd())
	}
	return &helpPrinter{w: w, styled: styled, s: newHelpStyles()}
}

func (p *helpPrinter) render(s lipgloss.Style, text string) string {
	if !p.styled {
		return text
	}
	return s.Render(text)
}

func (p *helpPrinter) println(a ...interface{}) {
	fmt.Fprintln(p.w, a...)
}

// wrapText wraps text to the specified width, preserving existing line breaks.
func wrapText(text string, width int) string {
	var result []string
	for _, paragraph := range strings.Split(text, "\n") {
		if len(paragraph) <= width {
			result = append(result, paragraph)
			continue
		}
		var line string
		for _, word := range strings.Fields(paragraph) {
			if line == "" {
				line = word
			} else if len(line)+1+len(word) <= width {
				line += " " + word
			} else {
				result = append(result, line)
				line = word
			}
		}
		if line != "" {
			result = append(result, line)
		}
	}
	return strings.Join(result, "\n")
}

// SetStyledHelp applies the styled help output to a command.
func SetStyledHelp(cmd *cobra.Command) {
	cmd.SetHelpFunc(styledHelpFunc)
}

// ApplyStyledHelpRecursive applies styled help to a command and all its subcommands.
// Call this after all subcommands have been added, before Execute().
func ApplyStyledHelpRecursive(cmd *cobra.Command) {
	cmd.SetHelpFunc(styledHelpFunc)
	for _, sub := range cmd.Commands() {
		ApplyStyledHelpRecursive(sub)
	}
}

// parseDescription splits a command's long description into main text and examples.
func parseDescription(long string) (description string, examples string) {
	for _, marker := range []string{"\nExamples:\n", "\nExample:\n"} {
		if idx := strings.Index(long, marker); idx != -1 {
			return strings.TrimSpace(long[:idx]), strings.TrimSpace(long[idx+len(marker):])
		}
	}
	return long, ""
}

func styledHelpFunc(cmd *cobra.Command, args []string) {
	p := newHelpPrinter(cmd.OutOrStdout())
	width := helpWidth - 2

	p.println(" " + p.render(p.s.title, strings.ToUpper(cmd.CommandPath())))

	description, examples := parseDescription(cmd.Long)
	if cmd.Short != "" {
		for _, line := range strings.Split(wrapText(cmd.Short, width), "\n") {
			p.println(" " + p.render(p.s.italic, line))
		}
	}
	if description != "" && description != cmd.Short {
		p.println()
		for _, line := range strings.Split(wrapText(description, width), "\n") {
			p.println(" " + line)
		}
	}

	if cmd.Runnable() || cmd.HasSubCommands() {
		p.println("\n " + p.render(p.s.section, "USAGE"))
		if cmd.Runnable() {
			p.println(" " + cmd.UseLine())
		}
		if cmd.HasSubCommands() {
			p.println(" " + cmd.CommandPath() + " [command]")
		}
	}

	if cmd.HasAvailableSubCommands() {
		maxLen := 0
		for _, sub := range cmd.Commands() {
			if sub.IsAvailableCommand() && len(sub.Name()) > maxLen {
				maxLen = len(sub.Name())
			}
		}
		p.println("\n " + p.render(p.s.section, "COMMANDS"))
		for _, sub := range cmd.Commands() {
			if sub.IsAvailableCommand() {
				padding := strings.Repeat(" ", maxLen-len(sub.Name()))
				p.println(fmt.Sprintf(" %s%s  %s", p.render(p.s.command, sub.Name()), padding, sub.Short))
			}
		}
	}

	var visibleFlags []*pflag.Flag
	cmd.LocalFlags().VisitAll(func(f *pflag.Flag) {
		if !f.Hidden {
			visibleFlags = append(visibleFlags, f)
		}
	})
	if len(visibleFlags) > 0 {
		p.println("\n " + p.render(p.s.section, "FLAGS"))
		maxFlagLen := 0
		for _, f := range visibleFlags {
			if n := len(formatFlagName(f)); n > maxFlagLen {
				maxFlagLen = n
			}
		}
		for _, f := range visibleFlags {
			name := formatFlagName(f)
			usage := f.Usage
			if f.DefValue != "" && f.DefValue != "false" && f.DefValue != "[]" {
				usage += p.render(p.s.muted, fmt.Sprintf(" (default: %s)", f.DefValue))
			}
			p.println(fmt.Sprintf(" %s%s  %s", p.render(p.s.flag, name), strings.Repeat(" ", maxFlagLen-len(name)), usage))
		}
	}

	exampleText := cmd.Example
	if exampleText == "" {
		exampleText = examples
	}
	if exampleText != "" {
		p.println("\n " + p.render(p.s.section, "EXAMPLES"))
		for _, line := range strings.Split(exampleText, "\n") {
			trimmed := strings.TrimSpace(line)
			switch {
			case trimmed == "":
				p.println()
			case strings.HasPrefix(trimmed, "#"):
				p.println(" " + p.render(p.s.muted, trimmed))
			default:
				p.println("   " + trimmed)
			}
		}
	}

	if cmd.HasSubCommands() {
		p.println(fmt.Sprintf("\n Use \"%s [command] --help\" for more information.", cmd.CommandPath()))
	}
}

// formatFlagName returns a formatted flag string like "-f, --flag" or "--flag".
func formatFlagName(f *pflag.Flag) string {
	if f.Shorthand != "" {
		return fmt.Sprintf("-%s, --%s", f.Shorthand, f.Name)
	}
	return fmt.Sprintf("    --%s", f.Name)
}
