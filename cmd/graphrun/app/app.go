// Package app wires the graphrun CLI's cobra command tree to the graph
// engine and checkpoint store.
package app

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/ardenflow/graphrun/graph"
	"github.com/ardenflow/graphrun/graph/store"
	"github.com/ardenflow/graphrun/internal/config"
)

// Exit codes, per the CLI's documented contract.
const (
	ExitSuccess     = 0
	ExitConfigError = 2
	ExitRunFatal    = 3
	ExitInterrupted = 4
)

type rootFlags struct {
	configFile string
	threadID   string
	inputJSON  string
	decisions  string
	limit      int
}

// Run builds the cobra command tree and executes it against args,
// returning the process exit code.
func Run(args []string) int {
	var flags rootFlags
	exitCode := ExitSuccess

	root := &cobra.Command{
		Use:           "graphrun",
		Short:         "Invoke, resume, and inspect checkpointed graph runs",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	pf := root.PersistentFlags()
	pf.StringVar(&flags.configFile, "config", "./graphrun.yaml", "path to config file")

	root.AddCommand(
		newRunCmd(&flags, &exitCode),
		newResumeCmd(&flags, &exitCode),
		newStateCmd(&flags, &exitCode),
		newHistoryCmd(&flags, &exitCode),
	)

	root.SetArgs(args)
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "graphrun:", err)
		if exitCode == ExitSuccess {
			exitCode = ExitConfigError
		}
	}
	return exitCode
}

func loadConfigOrFail(path string) (*config.Config, *zap.Logger, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return nil, nil, err
	}
	logger, err := buildLogger(cfg.LogLevel)
	if err != nil {
		return nil, nil, err
	}
	return cfg, logger, nil
}

func buildLogger(level string) (*zap.Logger, error) {
	zcfg := zap.NewProductionConfig()
	if err := zcfg.Level.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("log level: %w", err)
	}
	return zcfg.Build()
}

func buildStore(cfg *config.Config) (store.Store, error) {
	switch cfg.Store.Driver {
	case "memory", "":
		return store.NewMemoryStore(), nil
	case "sqlite":
		return store.NewSQLiteStore(cfg.Store.DSN)
	case "mysql":
		return store.NewMySQLStore(cfg.Store.DSN)
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Store.Driver)
	}
}

func durabilityFromString(s string) graph.DurabilityMode {
	switch s {
	case "async":
		return graph.DurabilityAsync
	case "exit":
		return graph.DurabilityExit
	default:
		return graph.DurabilitySync
	}
}

func newRunCmd(flags *rootFlags, exitCode *int) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Invoke the demo graph for a new or existing thread",
		RunE: func(cmd *cobra.Command, args []string) error {
			return doRun(flags, exitCode)
		},
	}
	addThreadFlags(cmd.Flags(), flags, true)
	return cmd
}

func newResumeCmd(flags *rootFlags, exitCode *int) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "resume",
		Short: "Resume an interrupted thread, applying decisions",
		RunE: func(cmd *cobra.Command, args []string) error {
			return doResume(flags, exitCode)
		},
	}
	addThreadFlags(cmd.Flags(), flags, false)
	cmd.Flags().StringVar(&flags.decisions, "decisions", "[]", "JSON array of graph.Decision")
	return cmd
}

func newStateCmd(flags *rootFlags, exitCode *int) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "state",
		Short: "Print the current checkpoint state for a thread",
		RunE: func(cmd *cobra.Command, args []string) error {
			return doState(flags, exitCode)
		},
	}
	cmd.Flags().StringVar(&flags.threadID, "thread", "", "thread id (required)")
	_ = cmd.MarkFlagRequired("thread")
	return cmd
}

func newHistoryCmd(flags *rootFlags, exitCode *int) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List checkpoints recorded for a thread, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			return doHistory(flags, exitCode)
		},
	}
	cmd.Flags().StringVar(&flags.threadID, "thread", "", "thread id (required)")
	cmd.Flags().IntVar(&flags.limit, "limit", 0, "max checkpoints to return (0 = all)")
	_ = cmd.MarkFlagRequired("thread")
	return cmd
}

func addThreadFlags(fs *pflag.FlagSet, flags *rootFlags, withInput bool) {
	usage := "thread id (required)"
	if withInput {
		usage = "thread id (a new one is generated when omitted)"
	}
	fs.StringVar(&flags.threadID, "thread", "", usage)
	if withInput {
		fs.StringVar(&flags.inputJSON, "input", "{}", "JSON object of initial channel writes")
	}
}

func doRun(flags *rootFlags, exitCode *int) error {
	cfg, logger, err := loadConfigOrFail(flags.configFile)
	if err != nil {
		*exitCode = ExitConfigError
		return err
	}
	defer func() { _ = logger.Sync() }()

	st, err := buildStore(cfg)
	if err != nil {
		*exitCode = ExitConfigError
		return err
	}

	if flags.threadID == "" {
		flags.threadID = uuid.New().String()
		logger.Info("generated thread id", zap.String("thread", flags.threadID))
	}

	var input map[string]any
	if err := json.Unmarshal([]byte(flags.inputJSON), &input); err != nil {
		*exitCode = ExitConfigError
		return fmt.Errorf("--input: %w", err)
	}

	eng, err := newDemoEngine(st, cfg)
	if err != nil {
		*exitCode = ExitRunFatal
		return err
	}
	defer eng.Close()

	result := eng.Invoke(context.Background(), graph.RunConfig{ThreadID: flags.threadID, Input: input})
	return reportResult(result, exitCode, logger)
}

func doResume(flags *rootFlags, exitCode *int) error {
	cfg, logger, err := loadConfigOrFail(flags.configFile)
	if err != nil {
		*exitCode = ExitConfigError
		return err
	}
	defer func() { _ = logger.Sync() }()

	st, err := buildStore(cfg)
	if err != nil {
		*exitCode = ExitConfigError
		return err
	}

	var decisions []graph.Decision
	if err := json.Unmarshal([]byte(flags.decisions), &decisions); err != nil {
		*exitCode = ExitConfigError
		return fmt.Errorf("--decisions: %w", err)
	}

	eng, err := newDemoEngine(st, cfg)
	if err != nil {
		*exitCode = ExitRunFatal
		return err
	}
	defer eng.Close()

	result := eng.Resume(context.Background(), flags.threadID, decisions)
	return reportResult(result, exitCode, logger)
}

func reportResult(result graph.RunResult, exitCode *int, logger *zap.Logger) error {
	switch result.Status {
	case graph.StatusCompleted:
		*exitCode = ExitSuccess
		printJSON(result.State.Values)
		return nil
	case graph.StatusInterrupted:
		*exitCode = ExitInterrupted
		printJSON(map[string]any{"interrupt": result.Interrupt, "checkpoint_id": result.CheckpointID})
		return nil
	default:
		*exitCode = ExitRunFatal
		logger.Error("run failed", zap.Error(result.Err))
		return result.Err
	}
}

func doState(flags *rootFlags, exitCode *int) error {
	cfg, _, err := loadConfigOrFail(flags.configFile)
	if err != nil {
		*exitCode = ExitConfigError
		return err
	}
	st, err := buildStore(cfg)
	if err != nil {
		*exitCode = ExitConfigError
		return err
	}
	cp, err := st.Get(context.Background(), flags.threadID, "")
	if err != nil {
		*exitCode = ExitRunFatal
		return err
	}
	printJSON(cp)
	return nil
}

func doHistory(flags *rootFlags, exitCode *int) error {
	cfg, _, err := loadConfigOrFail(flags.configFile)
	if err != nil {
		*exitCode = ExitConfigError
		return err
	}
	st, err := buildStore(cfg)
	if err != nil {
		*exitCode = ExitConfigError
		return err
	}
	history, err := st.List(context.Background(), flags.threadID, flags.limit)
	if err != nil {
		*exitCode = ExitRunFatal
		return err
	}
	printJSON(history)
	return nil
}

func printJSON(v any) {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		fmt.Fprintln(os.Stderr, "graphrun: encode output:", err)
		return
	}
	fmt.Println(string(b))
}
