package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/spf13/cobra"

	"github.com/kalambet/christopher/internal/config"
	"github.com/kalambet/christopher/internal/ollama"
	"github.com/kalambet/christopher/internal/storage"
)

// openStore opens the configured database for read-only inspection commands.
func openStore() (*storage.Store, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	return storage.Open(cfg.Storage.DataDir)
}

// --- history ---

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Inspect the interaction log",
}

var historyListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recent interactions",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")
		offset, _ := cmd.Flags().GetInt("offset")

		store, err := openStore()
		if err != nil {
			return err
		}
		defer store.Close()

		return listHistory(cmd.Context(), store, cmd.OutOrStdout(), limit, offset)
	},
}

var historyShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show a single interaction",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openStore()
		if err != nil {
			return err
		}
		defer store.Close()

		ix, err := store.GetInteraction(cmd.Context(), args[0])
		if err != nil {
			return fmt.Errorf("interaction %s: %w", args[0], err)
		}

		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(ix)
	},
}

func init() {
	historyListCmd.Flags().Int("limit", 20, "maximum number of interactions to list")
	historyListCmd.Flags().Int("offset", 0, "number of interactions to skip")
	historyCmd.AddCommand(historyListCmd)
	historyCmd.AddCommand(historyShowCmd)
}

func listHistory(ctx context.Context, store *storage.Store, w io.Writer, limit, offset int) error {
	interactions, err := store.ListInteractions(ctx, limit, offset)
	if err != nil {
		return err
	}

	if len(interactions) == 0 {
		fmt.Fprintln(w, "No interactions found.")
		return nil
	}

	for _, ix := range interactions {
		fmt.Fprintf(w, "%s  %s  %-8s  %s\n",
			colorize(colorCyan, ix.ID),
			ix.CreatedAt.Local().Format(time.DateTime),
			ix.TaskType,
			truncate(oneLine(ix.UserInput), 60),
		)
	}
	return nil
}

func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n]) + "..."
}

// --- memory ---

var memoryCmd = &cobra.Command{
	Use:   "memory",
	Short: "Inspect long-term memory",
}

var memoryStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show memory entry counts and embedding sizes",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openStore()
		if err != nil {
			return err
		}
		defer store.Close()

		st, err := store.MemoryStats(cmd.Context())
		if err != nil {
			return err
		}
		printStatus("Entries", "%d", st.Entries)
		printStatus("Zero embeddings", "%d", st.Degraded)
		printStatus("Blob sizes", "%v bytes", st.BlobBytes)
		return nil
	},
}

var memoryExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export memory entries as JSONL",
	RunE: func(cmd *cobra.Command, args []string) error {
		output, _ := cmd.Flags().GetString("output")

		store, err := openStore()
		if err != nil {
			return err
		}
		defer store.Close()

		w := cmd.OutOrStdout()
		if output != "" {
			f, err := os.Create(output)
			if err != nil {
				return fmt.Errorf("creating output file: %w", err)
			}
			defer f.Close()
			w = f
		}

		n, err := exportMemory(cmd.Context(), store, w)
		if err != nil {
			return err
		}
		if output != "" {
			printSuccess("Exported %d memory entries to %s", n, output)
		}
		return nil
	},
}

func init() {
	memoryExportCmd.Flags().String("output", "", "write to file instead of stdout")
	memoryCmd.AddCommand(memoryStatsCmd)
	memoryCmd.AddCommand(memoryExportCmd)
}

// exportMemory writes every memory entry as one JSON object per line.
func exportMemory(ctx context.Context, store *storage.Store, w io.Writer) (int, error) {
	const page = 100
	enc := json.NewEncoder(w)
	total := 0
	for offset := 0; ; offset += page {
		entries, err := store.ListMemory(ctx, page, offset)
		if err != nil {
			return total, err
		}
		for _, e := range entries {
			if err := enc.Encode(e); err != nil {
				return total, err
			}
			total++
		}
		if len(entries) < page {
			return total, nil
		}
	}
}

// --- config ---

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or update configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		for _, k := range config.ShowAll(cfg) {
			fmt.Fprintf(cmd.OutOrStdout(), "  %s = %s\n", colorize(colorBold, k.Key), k.Value)
		}
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, value := args[0], args[1]

		if err := config.SetKey(key, value); err != nil {
			return fmt.Errorf("%w\nvalid keys: %s", err, strings.Join(config.ValidKeys(), ", "))
		}

		printSuccess("Set %s = %s", key, value)
		return nil
	},
}

var configUnsetCmd = &cobra.Command{
	Use:   "unset <key>",
	Short: "Remove a configuration value so its default applies",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := config.UnsetKey(args[0]); err != nil {
			return err
		}
		printSuccess("Unset %s", args[0])
		return nil
	},
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
	configCmd.AddCommand(configUnsetCmd)
}

// --- status ---

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show christopher system status",
	RunE: func(cmd *cobra.Command, args []string) error {
		return showStatus(cmd.Context())
	},
}

func showStatus(ctx context.Context) error {
	cfg, err := loadConfig()
	if err != nil {
		// Still show partial status even if config fails.
		printError("config error: %v", err)
		return nil
	}

	client := ollama.New(cfg.Ollama.BaseURL, nil)
	if client.IsRunning(ctx) {
		printStatus("Ollama", "running at %s", cfg.Ollama.BaseURL)
		for _, m := range []struct{ label, name string }{
			{"Code model", cfg.Ollama.CodeModel},
			{"Aux model", cfg.Ollama.AuxModel},
			{"Embed model", cfg.Ollama.EmbedModel},
		} {
			state := colorize(colorGreen, "available")
			if !client.HasModel(ctx, m.name) {
				state = colorize(colorYellow, "missing")
			}
			printStatus(m.label, "%s (%s)", m.name, state)
		}
	} else {
		printStatus("Ollama", "not running at %s", cfg.Ollama.BaseURL)
	}

	httpClient := &http.Client{Timeout: 2 * time.Second}
	if resp, err := httpClient.Get(fmt.Sprintf("http://127.0.0.1:%d/health", cfg.Server.Port)); err == nil {
		resp.Body.Close()
		printStatus("Server", "running on port %d", cfg.Server.Port)
	} else {
		printStatus("Server", "stopped")
	}

	store, err := storage.Open(cfg.Storage.DataDir)
	if err == nil {
		defer store.Close()
		if versions, err := store.AppliedMigrations(); err == nil && len(versions) > 0 {
			printStatus("Schema", "version %d", versions[len(versions)-1])
		}
		if n, err := store.CountInteractions(ctx); err == nil {
			printStatus("Interactions", "%d", n)
		}
		if n, err := store.CountMemory(ctx); err == nil {
			printStatus("Memory entries", "%d (%d dims)", n, cfg.Memory.Dimension)
		}
	}

	printStatus("Data dir", "%s", cfg.Storage.DataDir)
	printStatus("Config file", "%s", config.FilePath())
	return nil
}
