package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/kalambet/christopher/internal/task"
)

var menuCmd = &cobra.Command{
	Use:   "menu",
	Short: "Interactive numbered menu (default command)",
	RunE: func(cmd *cobra.Command, args []string) error {
		skip, _ := cmd.Flags().GetBool("skip-check")
		return runMenu(cmd, skip)
	},
}

func init() {
	menuCmd.Flags().Bool("skip-check", false, "skip the Ollama readiness check")
}

// streamRunner runs a task while forwarding response fragments.
type streamRunner interface {
	RunStream(ctx context.Context, req task.Request, onFragment func(string)) (task.Result, error)
}

func runMenu(cmd *cobra.Command, skipCheck bool) error {
	cfg, logger, err := setup()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := newApp(cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	if !skipCheck {
		if err := a.ensureReady(ctx, os.Stderr); err != nil {
			printWarning("%v", err)
		}
	}

	m := &menu{in: bufio.NewReader(cmd.InOrStdin()), out: cmd.OutOrStdout(), runner: a.assistant}
	return m.loop(ctx)
}

type menu struct {
	in     *bufio.Reader
	out    io.Writer
	runner streamRunner
}

var menuLabels = map[task.Type]string{
	task.GenerateFromDescription: "Generate code from a description",
	task.Explain:                 "Analyse and explain code",
	task.Complete:                "Complete partial code",
	task.Debug:                   "Debug code",
}

var busyLabels = map[task.Type]string{
	task.GenerateFromDescription: "Generating code...",
	task.Explain:                 "Analysing and explaining the code...",
	task.Complete:                "Completing the code...",
	task.Debug:                   "Debugging the code...",
}

func (m *menu) banner() {
	line := strings.Repeat("=", 45)
	fmt.Fprintln(m.out, line)
	fmt.Fprintln(m.out, "Welcome to Christopher, the offline coding assistant 🤖")
	fmt.Fprintln(m.out, line)
}

// loop shows the menu until the user exits, input ends or ctx is cancelled.
func (m *menu) loop(ctx context.Context) error {
	m.banner()
	for {
		if ctx.Err() != nil {
			return nil
		}

		fmt.Fprintln(m.out)
		fmt.Fprintln(m.out, colorize(colorBold, "What should I do?"))
		for i, t := range task.All {
			fmt.Fprintf(m.out, "%d. %s\n", i+1, menuLabels[t])
		}
		fmt.Fprintf(m.out, "%d. Exit\n", len(task.All)+1)

		choice, err := m.readLine("👉 Choice (1-5): ")
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}

		if choice == "5" {
			fmt.Fprintln(m.out, "✅")
			return nil
		}

		typ, err := task.ParseType(choice)
		if err != nil {
			fmt.Fprintln(m.out, colorize(colorRed, "❌ Invalid option. Enter a number between 1 and 5."))
			continue
		}

		if err := m.runOnce(ctx, typ); err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			fmt.Fprintln(m.out, colorize(colorRed, "❌ "+err.Error()))
		}
	}
}

func (m *menu) runOnce(ctx context.Context, typ task.Type) error {
	fmt.Fprintf(m.out, "\n📝 Enter your description or code (finish with a line containing only %q):\n", blockEnd)
	input, err := m.readBlock()
	if err != nil {
		return err
	}

	language, err := m.readLine("🌐 Programming language (e.g. python, c, java): ")
	if err != nil {
		return err
	}

	req := task.Request{Type: typ, Input: input, Language: language}
	if typ == task.Explain {
		req.ExplanationLanguage, err = m.readLine("🌐 Explanation language (e.g. English, Persian): ")
		if err != nil {
			return err
		}
	}
	if err := req.Validate(); err != nil {
		return err
	}

	fmt.Fprintln(m.out, "⏳ "+busyLabels[typ])
	fmt.Fprintln(m.out, "\n📤 Model response:")
	fmt.Fprintln(m.out)

	fp := &fragmentPrinter{w: m.out}
	res, err := m.runner.RunStream(ctx, req, fp.write)
	if err != nil {
		return err
	}
	fp.finish(res)

	printDegraded(res)
	return nil
}

// readLine prints label and returns one trimmed line.
func (m *menu) readLine(label string) (string, error) {
	fmt.Fprint(m.out, label)
	line, err := m.in.ReadString('\n')
	if err != nil && (line == "" || !errors.Is(err, io.EOF)) {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

// blockEnd is the line that ends multi-line input.
const blockEnd = "."

// readBlock reads lines until a line holding only blockEnd or end of input.
// Blank lines inside the block are kept.
func (m *menu) readBlock() (string, error) {
	var lines []string
	for {
		line, err := m.in.ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return "", err
		}
		trimmed := strings.TrimRight(line, "\r\n")
		if strings.TrimSpace(trimmed) == blockEnd {
			break
		}
		if err == nil || trimmed != "" {
			lines = append(lines, trimmed)
		}
		if err != nil {
			if len(lines) == 0 {
				return "", io.EOF
			}
			break
		}
	}
	return strings.Trim(strings.Join(lines, "\n"), "\n"), nil
}
