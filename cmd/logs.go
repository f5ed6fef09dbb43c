package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	stdlog "log"
	"os"
	"os/signal"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/hpcloud/tail"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/grovetools/launcher/cli"
	"github.com/grovetools/launcher/logging"
	"github.com/grovetools/launcher/pkg/logging/logutil"
)

// NewLogsCmd creates the `logs` command.
func NewLogsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Show the daemon's log file",
		Long: `Prints the daemon's log file, optionally following it across rotations.

Examples:
  # Follow the daemon log
  launcher logs -f

  # Last 100 lines as JSON Lines
  launcher logs --tail 100 --json

  # Only the loader and reconciler
  launcher logs -f --component launcher`,
		RunE: runLogsE,
	}

	cmd.Flags().BoolP("follow", "f", false, "Follow log output")
	cmd.Flags().Int("tail", -1, "Number of lines to show from the end of the log (default: all)")
	cmd.Flags().StringSlice("component", nil, "Only show entries of these components")

	return cmd
}

func runLogsE(cmd *cobra.Command, args []string) error {
	opts := cli.GetOptions(cmd)
	cfg, err := cli.LoadConfig(opts)
	if err != nil {
		return err
	}
	logCfg, err := logging.FromConfig(cfg)
	if err != nil {
		return err
	}
	logging.Configure(logCfg.WithFileDefault())

	path, err := logutil.FindLogFile(logging.LogFilePath())
	if err != nil {
		return err
	}

	follow, _ := cmd.Flags().GetBool("follow")
	tailLines, _ := cmd.Flags().GetInt("tail")
	components, _ := cmd.Flags().GetStringSlice("component")

	p := newLogPrinter(cmd.OutOrStdout(), opts.JSONOutput, components)

	start, err := tailOffset(path, tailLines)
	if err != nil {
		return err
	}
	t, err := tail.TailFile(path, tail.Config{
		Follow:    follow,
		ReOpen:    follow,
		MustExist: true,
		Location:  &tail.SeekInfo{Offset: start, Whence: io.SeekStart},
		Logger:    stdlog.New(io.Discard, "", 0),
	})
	if err != nil {
		return fmt.Errorf("cannot tail %s: %w", path, err)
	}
	defer t.Cleanup()

	if follow {
		interrupt := make(chan os.Signal, 1)
		signal.Notify(interrupt, os.Interrupt)
		defer signal.Stop(interrupt)
		go func() {
			<-interrupt
			_ = t.Stop()
		}()
	}

	for line := range t.Lines {
		if line.Err != nil {
			continue
		}
		p.print(line.Text)
	}
	return nil
}

// tailOffset returns the byte offset of the last n lines of path; a
// negative n means the whole file.
func tailOffset(path string, n int) (int64, error) {
	if n < 0 {
		return 0, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	if n == 0 {
		return int64(len(data)), nil
	}
	end := len(data)
	if end > 0 && data[end-1] == '\n' {
		end--
	}
	seen := 0
	for i := end - 1; i >= 0; i-- {
		if data[i] == '\n' {
			seen++
			if seen == n {
				return int64(i + 1), nil
			}
		}
	}
	return 0, nil
}

// logPrinter renders one log line. JSON entries are pretty-printed; text
// lines from the file formatter pass through.
type logPrinter struct {
	w          io.Writer
	jsonOut    bool
	components map[string]bool
	styled     bool
	levels     map[string]lipgloss.Style
	muted      lipgloss.Style
}

func newLogPrinter(w io.Writer, jsonOut bool, components []string) *logPrinter {
	p := &logPrinter{
		w:       w,
		jsonOut: jsonOut,
		muted:   lipgloss.NewStyle().Foreground(lipgloss.Color("8")),
		levels: map[string]lipgloss.Style{
			"error":   lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true),
			"fatal":   lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true),
			"panic":   lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true),
			"warning": lipgloss.NewStyle().Foreground(lipgloss.Color("11")),
			"info":    lipgloss.NewStyle().Foreground(lipgloss.Color("12")),
		},
	}
	if f, ok := w.(*os.File); ok {
		p.styled = isatty.IsTerminal(f.Fd())
	}
	if len(components) > 0 {
		p.components = make(map[string]bool, len(components))
		for _, c := range components {
			p.components[c] = true
		}
	}
	return p
}

func (p *logPrinter) render(s lipgloss.Style, text string) string {
	if !p.styled {
		return text
	}
	return s.Render(text)
}

func (p *logPrinter) print(line string) {
	var entry map[string]interface{}
	if err := json.Unmarshal([]byte(line), &entry); err != nil {
		if p.components != nil && !p.textHasComponent(line) {
			return
		}
		if p.jsonOut {
			data, _ := json.Marshal(map[string]string{"raw_line": line})
			fmt.Fprintln(p.w, string(data))
			return
		}
		fmt.Fprintln(p.w, line)
		return
	}

	component, _ := entry["component"].(string)
	if p.components != nil && !p.components[component] {
		return
	}
	if p.jsonOut {
		fmt.Fprintln(p.w, line)
		return
	}

	ts, _ := entry["time"].(string)
	level, _ := entry["level"].(string)
	msg, _ := entry["msg"].(string)

	timeStr := ts
	if parsed, err := time.Parse(time.RFC3339Nano, ts); err == nil {
		timeStr = parsed.Format("15:04:05")
	}
	levelStr := strings.ToUpper(level)
	if s, ok := p.levels[strings.ToLower(level)]; ok {
		levelStr = p.render(s, levelStr)
	} else {
		levelStr = p.render(p.muted, levelStr)
	}

	var keys []string
	for k := range entry {
		if k != "time" && k != "level" && k != "msg" && k != "component" {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	fields := make([]string, 0, len(keys))
	for _, k := range keys {
		fields = append(fields, fmt.Sprintf("%s=%v", p.render(p.muted, k), entry[k]))
	}

	fmt.Fprintf(p.w, "%s %s [%s] %s %s\n", timeStr, levelStr, p.render(p.muted, component), msg, strings.Join(fields, " "))
}

// textHasComponent matches the "[component]" tag of the text formatter.
func (p *logPrinter) textHasComponent(line string) bool {
	for c := range p.components {
		if strings.Contains(line, "["+c+"]") {
			return true
		}
	}
	return false
}
