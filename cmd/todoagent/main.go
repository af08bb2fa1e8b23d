// Command todoagent is a console to-do assistant driven by a language model.
package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/harunnryd/todoagent/pkg/runner"
	"github.com/harunnryd/todoagent/pkg/todoagent"
	"github.com/spf13/cobra"
)

const defaultConfigPath = "todoagent.yaml"

var (
	configPath string
	logLevel   string
	noBanner   bool
)

var rootCmd = &cobra.Command{
	Use:   "todoagent",
	Short: "Manage your todos by chatting with a language model",
	Long: `todoagent keeps a list of todos in a local store and lets you manage it
in plain language. The model answers with JSON envelopes and calls the
getAllTodos, createTodo, searchTodo and deleteById tools on your behalf.

Run without arguments to start the chat. End it with Ctrl+D or Ctrl+C.`,
	SilenceUsage: true,
	RunE:         runChat,
}

var todosCmd = &cobra.Command{
	Use:   "todos",
	Short: "Print every stored todo without calling the model",
	RunE:  runTodos,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the todoagent version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintln(cmd.OutOrStdout(), "todoagent", runner.Version)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", defaultConfigPath, "config file (optional when left at the default)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "override log_level (debug, info, warn, error)")
	rootCmd.Flags().BoolVar(&noBanner, "no-banner", false, "skip the start-up banner")
	rootCmd.AddCommand(todosCmd, versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// loadConfig reads the --config file. The default path may be absent; an
// explicitly requested one may not.
func loadConfig(cmd *cobra.Command) (todoagent.Config, error) {
	path := configPath
	if !cmd.Flags().Changed("config") {
		if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
			path = ""
		}
	}
	cfg, err := todoagent.LoadConfig(path)
	if err != nil {
		return todoagent.Config{}, err
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
		if err := cfg.Validate(); err != nil {
			return todoagent.Config{}, err
		}
	}
	return cfg, nil
}

func runChat(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	engine, err := todoagent.NewEngine(ctx, todoagent.EngineOptions{Config: cfg})
	if err != nil {
		return err
	}

	lr := runner.NewLifecycleRunner(engine.Serve, engine, runner.Hooks{
		OnStop: func() {
			if usage, ok := engine.Usage(); ok {
				slog.Info("session_usage",
					"session_id", usage.SessionID,
					"turns", usage.Turns,
					"total_tokens", usage.TotalTokens)
			}
		},
	}, 10*time.Second)
	if !noBanner {
		lr = lr.WithBanner(cmd.OutOrStdout())
	}
	return lr.Run(ctx)
}

func runTodos(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
	defer cancel()

	records, err := todoagent.ListTodos(ctx, cfg, nil)
	if err != nil {
		return err
	}
	fmt.Fprint(cmd.OutOrStdout(), renderTodos(records))
	return nil
}
