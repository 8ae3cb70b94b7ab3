// Package main provides the semplan binary entry point.
// Semplan keeps workflow plans as structured documents and exposes the
// operations that create and advance them as tools over MCP stdio or NATS.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"runtime"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/c360studio/semplan/config"
	"github.com/c360studio/semplan/server"
	"github.com/c360studio/semplan/tools"
)

const (
	Version   = "0.1.0"
	BuildTime = "dev"
	appName   = "semplan"

	shutdownTimeout = 10 * time.Second
)

// StdioStreams are the streams the MCP transport reads and writes.
type StdioStreams struct {
	In  io.Reader
	Out io.Writer
}

// rootOptions holds the persistent flags shared by every subcommand.
type rootOptions struct {
	configPath string
	logLevel   string
}

func main() {
	defer func() {
		if r := recover(); r != nil {
			buf := make([]byte, 4096)
			n := runtime.Stack(buf, false)
			_, _ = fmt.Fprintf(os.Stderr, "PANIC: %v\nStack trace:\n%s\n", r, string(buf[:n]))
			os.Exit(2)
		}
	}()

	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	opts := &rootOptions{}

	server.Version = Version

	cmd := &cobra.Command{
		Use:   appName,
		Short: "Workflow plan state machine",
		Long: `Semplan keeps workflow plans as YAML documents and advances them
through the stages of a configurable workflow.

It provides:
- A workflow catalog with built-in and project-defined workflows
- Plan creation, stage updates, checklists and subtasks
- The same operations as tools over MCP stdio or NATS request/reply`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "Config file path (YAML)")
	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "info", "Log level (debug, info, warn, error)")

	cmd.AddCommand(
		serveCmd(opts),
		callCmd(opts),
		toolsCmd(opts),
		workflowsCmd(opts),
		configCmd(opts),
		&cobra.Command{
			Use:   "version",
			Short: "Print version information",
			Run: func(cmd *cobra.Command, args []string) {
				fmt.Fprintf(cmd.OutOrStdout(), "%s version %s (build: %s)\n", appName, Version, BuildTime)
			},
		},
	)

	return cmd
}

// setupLogging installs a text logger on stderr. stdout is reserved for
// the MCP transport and command output.
func setupLogging(logLevel string, w io.Writer) *slog.Logger {
	level := slog.LevelInfo
	switch strings.ToLower(logLevel) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	logger := slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
	return logger
}

// startApp loads configuration and starts the application. adjust may
// override the loaded config before validation.
func startApp(ctx context.Context, cmd *cobra.Command, opts *rootOptions, adjust func(*config.Config)) (*App, error) {
	logger := setupLogging(opts.logLevel, cmd.ErrOrStderr())

	cfg, err := config.NewLoader(logger).Load(opts.configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if adjust != nil {
		adjust(cfg)
	}

	app, err := NewApp(cfg, logger)
	if err != nil {
		return nil, err
	}
	if err := app.Start(ctx); err != nil {
		_ = app.Shutdown(shutdownTimeout)
		return nil, err
	}
	return app, nil
}

func serveCmd(opts *rootOptions) *cobra.Command {
	var transport string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve plan tools over MCP stdio or NATS",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			app, err := startApp(ctx, cmd, opts, func(cfg *config.Config) {
				if transport != "" {
					cfg.Server.Transport = transport
				}
			})
			if err != nil {
				return err
			}
			defer func() {
				if err := app.Shutdown(shutdownTimeout); err != nil {
					slog.Warn("Shutdown completed with errors", "error", err)
				}
			}()

			if err := app.StartMetrics(); err != nil {
				return err
			}

			err = app.Serve(ctx, StdioStreams{In: cmd.InOrStdin(), Out: cmd.OutOrStdout()})
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		},
	}

	cmd.Flags().StringVar(&transport, "transport", "", "Override server.transport (stdio, nats)")
	return cmd
}

func callCmd(opts *rootOptions) *cobra.Command {
	var remote bool

	cmd := &cobra.Command{
		Use:   "call <tool> [json-arguments]",
		Short: "Invoke one plan tool and print its result",
		Example: `  semplan call create_plan '{"task":"Add OAuth login","workflow_type":"small"}'
  semplan call update_plan '{"plan":"add-oauth-login","stage":"implementation"}'
  semplan call list_plans`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			call := tools.ToolCall{Name: args[0]}
			if len(args) == 2 {
				if err := json.Unmarshal([]byte(args[1]), &call.Arguments); err != nil {
					return fmt.Errorf("parse arguments: %w", err)
				}
			}

			app, err := startApp(cmd.Context(), cmd, opts, func(cfg *config.Config) {
				if remote {
					cfg.Server.Transport = config.TransportNATS
					if cfg.NATS.URL != "" {
						cfg.NATS.Embedded = false
					}
				}
			})
			if err != nil {
				return err
			}
			defer func() { _ = app.Shutdown(shutdownTimeout) }()

			exec := app.Executor()
			if remote {
				if exec, err = app.RemoteExecutor(); err != nil {
					return err
				}
			}
			return runCall(cmd.Context(), exec, call, cmd.OutOrStdout(), cmd.ErrOrStderr())
		},
	}

	cmd.Flags().BoolVar(&remote, "remote", false, "Send the call to a running server over NATS")
	return cmd
}

// runCall executes call and prints the content to out and any warnings to
// errOut. A tool-level error is returned as an error.
func runCall(ctx context.Context, exec tools.Executor, call tools.ToolCall, out, errOut io.Writer) error {
	result, err := exec.Execute(ctx, call)
	for _, w := range result.Warnings {
		fmt.Fprintf(errOut, "warning: %s\n", w)
	}
	if result.IsError() {
		return errors.New(result.Error)
	}
	if err != nil {
		return err
	}
	fmt.Fprintln(out, result.Content)
	return nil
}

func toolsCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "tools",
		Short: "List the available plan tools",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := startApp(cmd.Context(), cmd, opts, nil)
			if err != nil {
				return err
			}
			defer func() { _ = app.Shutdown(shutdownTimeout) }()

			printTools(cmd.OutOrStdout(), app.Executor().ListTools())
			return nil
		},
	}
}

func printTools(w io.Writer, defs []tools.ToolDefinition) {
	for _, d := range defs {
		fmt.Fprintf(w, "%-26s %s\n", d.Name, d.Description)
	}
}

func workflowsCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "workflows",
		Short: "Manage the workflow catalog",
	}

	var force bool
	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Write the default workflow catalog file",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTool(cmd, opts, tools.ToolCreateWorkflowsFile, map[string]any{"force": force})
		},
	}
	initCmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing catalog file")

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List available workflows and their stages",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTool(cmd, opts, tools.ToolListWorkflows, nil)
		},
	}

	cmd.AddCommand(initCmd, listCmd)
	return cmd
}

// runTool starts a local app and runs a single tool call against it.
func runTool(cmd *cobra.Command, opts *rootOptions, name string, args map[string]any) error {
	app, err := startApp(cmd.Context(), cmd, opts, func(cfg *config.Config) {
		f := false
		cfg.Workflows.Watch = &f
	})
	if err != nil {
		return err
	}
	defer func() { _ = app.Shutdown(shutdownTimeout) }()

	call := tools.ToolCall{Name: name, Arguments: args}
	return runCall(cmd.Context(), app.Executor(), call, cmd.OutOrStdout(), cmd.ErrOrStderr())
}

func configCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect and initialize configuration",
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "init",
			Short: "Create the user config file with defaults if missing",
			RunE: func(cmd *cobra.Command, args []string) error {
				logger := setupLogging(opts.logLevel, cmd.ErrOrStderr())
				return config.NewLoader(logger).EnsureUserConfig()
			},
		},
		&cobra.Command{
			Use:   "show",
			Short: "Print the effective configuration",
			RunE: func(cmd *cobra.Command, args []string) error {
				logger := setupLogging(opts.logLevel, cmd.ErrOrStderr())
				cfg, err := config.NewLoader(logger).Load(opts.configPath)
				if err != nil {
					return err
				}
				data, err := cfg.Marshal()
				if err != nil {
					return err
				}
				_, err = cmd.OutOrStdout().Write(data)
				return err
			},
		},
	)
	return cmd
}
