package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"
	"golang.org/x/net/netutil"
	"golang.org/x/sync/errgroup"

	"github.com/kalambet/christopher/internal/api"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the local HTTP API (and optionally MCP over stdio)",
	RunE: func(cmd *cobra.Command, args []string) error {
		port, _ := cmd.Flags().GetInt("port")
		withMCP, _ := cmd.Flags().GetBool("mcp")
		skip, _ := cmd.Flags().GetBool("skip-check")
		return runServe(cmd.Context(), port, withMCP, skip)
	},
}

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Serve the assistant tools over MCP (stdio)",
	RunE: func(cmd *cobra.Command, args []string) error {
		skip, _ := cmd.Flags().GetBool("skip-check")
		return runMCP(cmd.Context(), skip)
	},
}

func init() {
	serveCmd.Flags().Int("port", 0, "override server.port")
	serveCmd.Flags().Bool("mcp", false, "also serve MCP on stdin/stdout")
	serveCmd.Flags().Bool("skip-check", false, "skip the Ollama readiness check")
	mcpCmd.Flags().Bool("skip-check", false, "skip the Ollama readiness check")
}

func runServe(parent context.Context, port int, withMCP, skipCheck bool) error {
	fmt.Fprintf(os.Stderr, "christopher version %s\n", version)

	cfg, logger, err := setup()
	if err != nil {
		return err
	}
	if port != 0 {
		cfg.Server.Port = port
	}

	addr := fmt.Sprintf("127.0.0.1:%d", cfg.Server.Port)
	healthClient := &http.Client{Timeout: 2 * time.Second}
	if resp, err := healthClient.Get("http://" + addr + "/health"); err == nil {
		resp.Body.Close()
		return fmt.Errorf("server already running on port %d", cfg.Server.Port)
	}

	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := newApp(cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	if !skipCheck {
		if err := a.ensureReady(ctx, os.Stderr); err != nil {
			return err
		}
	}

	deps := api.Deps{Assistant: a.assistant, Store: a.store}

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", addr, err)
	}
	ln = netutil.LimitListener(ln, cfg.Server.MaxConns)

	srv := &http.Server{
		Handler: api.NewHandler(deps),
		BaseContext: func(_ net.Listener) context.Context {
			return ctx
		},
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("christopher listening", "addr", addr, "max_conns", cfg.Server.MaxConns)
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	if withMCP {
		g.Go(func() error {
			return serveStdio(gctx, deps)
		})
	}

	return g.Wait()
}

func runMCP(parent context.Context, skipCheck bool) error {
	cfg, logger, err := setup()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := newApp(cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	if !skipCheck {
		// stdout carries the MCP protocol; progress goes to stderr.
		if err := a.ensureReady(ctx, os.Stderr); err != nil {
			logger.Warn("ollama not ready", "error", err)
		}
	}

	return serveStdio(ctx, api.Deps{Assistant: a.assistant, Store: a.store})
}

func serveStdio(ctx context.Context, deps api.Deps) error {
	stdioSrv := server.NewStdioServer(api.NewMCPServer(deps))
	if err := stdioSrv.Listen(ctx, os.Stdin, os.Stdout); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("MCP stdio server: %w", err)
	}
	return nil
}
