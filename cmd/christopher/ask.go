package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/kalambet/christopher/internal/input"
	"github.com/kalambet/christopher/internal/task"
)

var askCmd = &cobra.Command{
	Use:   "ask <generate|explain|complete|debug> [text...]",
	Short: "Run a single task and print the answer",
	Long: `Run a single task and print the answer.

Input is taken from --file, the remaining arguments, or standard input.

Examples:
  christopher ask generate --lang go "a function that reverses a string"
  christopher ask explain --explain-lang German --file main.py
  christopher ask debug --lang c --file broken.c
  cat snippet.js | christopher ask complete --lang javascript`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		typ, err := task.ParseType(args[0])
		if err != nil {
			return err
		}
		lang, _ := cmd.Flags().GetString("lang")
		explainLang, _ := cmd.Flags().GetString("explain-lang")
		file, _ := cmd.Flags().GetString("file")
		skip, _ := cmd.Flags().GetBool("skip-check")
		asJSON, _ := cmd.Flags().GetBool("json")

		text, err := resolveInput(file, args[1:], cmd.InOrStdin())
		if err != nil {
			return err
		}
		req := task.Request{Type: typ, Input: text, Language: lang, ExplanationLanguage: explainLang}
		if err := req.Validate(); err != nil {
			return err
		}

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

		if !skip {
			if err := a.ensureReady(ctx, os.Stderr); err != nil {
				printWarning("%v", err)
			}
		}

		out := cmd.OutOrStdout()
		fp := &fragmentPrinter{w: out}
		var onFragment func(string)
		if !asJSON {
			onFragment = fp.write
		}

		res, err := a.assistant.RunStream(ctx, req, onFragment)
		if err != nil {
			return err
		}

		if asJSON {
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			return enc.Encode(res)
		}
		fp.finish(res)
		printDegraded(res)
		return nil
	},
}

func init() {
	askCmd.Flags().String("lang", "", "programming language, e.g. python, go, c")
	askCmd.Flags().String("explain-lang", "", "natural language of the explanation (explain only)")
	askCmd.Flags().String("file", "", "read input from a file (.pdf files are converted to text)")
	askCmd.Flags().Bool("skip-check", false, "skip the Ollama readiness check")
	askCmd.Flags().Bool("json", false, "print the full result as JSON")
}

// resolveInput picks the task input: a file, the joined arguments, or stdin.
func resolveInput(file string, args []string, stdin io.Reader) (string, error) {
	switch {
	case file != "" && len(args) > 0:
		return "", fmt.Errorf("use either --file or text arguments, not both")
	case file != "":
		return input.ReadFile(file)
	case len(args) > 0:
		return strings.Join(args, " "), nil
	}
	data, err := io.ReadAll(io.LimitReader(stdin, input.MaxFileSize))
	if err != nil {
		return "", fmt.Errorf("reading stdin: %w", err)
	}
	return string(data), nil
}
