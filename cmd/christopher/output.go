package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/kalambet/christopher/internal/task"
)

const (
	colorReset  = "\033[0m"
	colorRed    = "\033[31m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorCyan   = "\033[36m"
	colorBold   = "\033[1m"
)

func colorize(color, text string) string {
	if noColor {
		return text
	}
	return color + text + colorReset
}

func printSuccess(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	fmt.Fprintln(os.Stderr, colorize(colorGreen, "✅ "+msg))
}

func printError(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	fmt.Fprintln(os.Stderr, colorize(colorRed, "❌ "+msg))
}

func printWarning(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	fmt.Fprintln(os.Stderr, colorize(colorYellow, "⚠️ "+msg))
}

func printStatus(label string, format string, args ...any) {
	val := fmt.Sprintf(format, args...)
	l := colorize(colorBold, label+":")
	fmt.Fprintf(os.Stderr, "  %s %s\n", l, val)
}

// printDegraded warns about stages that fell back to a substitute value.
func printDegraded(res task.Result) {
	if len(res.Degraded) == 0 {
		return
	}
	printWarning("degraded stages: %s", strings.Join(res.Degraded, ", "))
}

// fragmentPrinter writes response fragments as they arrive.
type fragmentPrinter struct {
	w       io.Writer
	visible bool
}

func (p *fragmentPrinter) write(f string) {
	if strings.TrimSpace(f) != "" {
		p.visible = true
	}
	fmt.Fprint(p.w, f)
}

// finish prints the final response when no visible text was streamed or the
// run ended on a placeholder, then ends the line.
func (p *fragmentPrinter) finish(res task.Result) {
	if !p.visible || task.IsSentinel(res.Response) {
		fmt.Fprint(p.w, res.Response)
	}
	fmt.Fprintln(p.w)
}
