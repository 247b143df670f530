package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/martinemde/caveagent/agentloop"
	"github.com/martinemde/caveagent/game"
	"github.com/martinemde/caveagent/internal/config"
	"github.com/martinemde/caveagent/internal/logging"
	"github.com/martinemde/caveagent/unifiedllm"
)

// Version is set at build time.
var Version = "dev"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := run(ctx, os.Args[1:], os.Stdin, os.Stdout, os.Stderr)
	stop()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) error {
	a := &app{stdin: stdin, stdout: stdout, stderr: stderr, runID: uuid.New().String()}
	defer func() {
		if closeErr := a.logger.Close(); closeErr != nil {
			fmt.Fprintf(stderr, "failed to close logger: %v\n", closeErr)
		}
	}()

	cmd := newRootCommand(a)
	cmd.SetArgs(args)
	cmd.SetIn(stdin)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)
	return cmd.ExecuteContext(ctx)
}

// app holds what the subcommands share once flags are parsed.
type app struct {
	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer
	runID  string

	configPath string
	flags      runFlags

	cfg    *config.Config
	logger *logging.RuntimeLogger
}

type runFlags struct {
	game          string
	gameArgs      []string
	provider      string
	model         string
	maxTurns      int
	maxRetries    int
	temperature   float64
	loopDetection bool
	contextPolicy string
	maxMessages   int
	logLevel      string
	logDir        string
	script        string
}

func newRootCommand(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:           "caveagent",
		Short:         "Let a language model play Colossal Cave Adventure",
		SilenceUsage:  true,
		SilenceErrors: true,
		Version:       Version,
	}
	root.SetVersionTemplate("{{printf \"%s\\n\" .Version}}")

	root.PersistentFlags().StringVar(&a.configPath, "config", "", "extra config file applied after ~/.caveagent and ./.caveagent")
	root.PersistentFlags().StringVar(&a.flags.logLevel, "log-level", "", "debug, info, warn or error")
	root.PersistentFlags().StringVar(&a.flags.logDir, "log-dir", "", "write JSON logs to a file in this directory")

	root.AddCommand(
		newRunCommand(a),
		newParseCommand(a),
		newVersionCommand(a),
	)

	root.PersistentPreRunE = func(cmd *cobra.Command, _ []string) error {
		switch cmd.Name() {
		case "help", "completion", "version", "parse":
			return nil
		}
		return a.setup(cmd)
	}
	return root
}

// setup loads configuration, applies the flags the user set and starts logging.
func (a *app) setup(cmd *cobra.Command) error {
	cfg, err := config.Load(cmd.Context(), a.configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	cfg.Apply(a.overrides(cmd))
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	a.cfg = cfg

	logger, err := logging.New(cmd.Context(),
		logging.WithRunID(a.runID),
		logging.WithLevel(cfg.LogLevel),
		logging.WithLogDir(cfg.LogDir),
		logging.WithConsole(a.stderr),
	)
	if err != nil {
		return fmt.Errorf("initialize logging: %w", err)
	}
	a.logger = logger
	logger.Logger.With("command", cmd.Name()).Debug("command invocation")
	return nil
}

func (a *app) overrides(cmd *cobra.Command) config.Overrides {
	var o config.Overrides
	f := cmd.Flags()
	if f.Changed("game") {
		o.Game = &a.flags.game
	}
	if f.Changed("game-arg") {
		o.GameArgs = &a.flags.gameArgs
	}
	if f.Changed("provider") {
		o.Provider = &a.flags.provider
	}
	if f.Changed("model") {
		o.Model = &a.flags.model
	}
	if f.Changed("max-turns") {
		o.MaxTurns = &a.flags.maxTurns
	}
	if f.Changed("max-retries") {
		o.MaxRetries = &a.flags.maxRetries
	}
	if f.Changed("temperature") {
		o.Temperature = &a.flags.temperature
	}
	if f.Changed("loop-detection") {
		o.LoopDetect = &a.flags.loopDetection
	}
	if f.Changed("context-policy") {
		o.ContextKind = &a.flags.contextPolicy
	}
	if f.Changed("max-messages") {
		o.MaxMessages = &a.flags.maxMessages
	}
	if f.Changed("log-level") {
		o.LogLevel = &a.flags.logLevel
	}
	if f.Changed("log-dir") {
		o.LogDir = &a.flags.logDir
	}
	return o
}

func newRunCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Start the game and let the player loop run until it exits",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.runGame(cmd.Context())
		},
	}
	f := cmd.Flags()
	f.StringVar(&a.flags.game, "game", "", "game executable (default adventure)")
	f.StringArrayVar(&a.flags.gameArgs, "game-arg", nil, "argument passed to the game; repeatable")
	f.StringVar(&a.flags.provider, "provider", "", "LLM provider (ollama, anthropic, openai, ...)")
	f.StringVar(&a.flags.model, "model", "", "model id or alias")
	f.IntVar(&a.flags.maxTurns, "max-turns", 0, "stop after this many turns; 0 = unlimited")
	f.IntVar(&a.flags.maxRetries, "max-retries", 0, "retries for retryable LLM errors")
	f.Float64Var(&a.flags.temperature, "temperature", 0, "sampling temperature")
	f.BoolVar(&a.flags.loopDetection, "loop-detection", false, "steer the player when it repeats commands")
	f.StringVar(&a.flags.contextPolicy, "context-policy", "", "sliding_window or unbounded")
	f.IntVar(&a.flags.maxMessages, "max-messages", 0, "sliding window size in messages")
	f.StringVar(&a.flags.script, "script", "", "TOML file of scripted player responses used instead of a model")
	return cmd
}

func (a *app) runGame(ctx context.Context) error {
	cfg := a.cfg
	logger := a.logger.Logger

	gen, err := a.newGenerator()
	if err != nil {
		return err
	}
	player, err := agentloop.NewAgent(gen, agentConfig(cfg))
	if err != nil {
		return err
	}

	session, err := game.Open(ctx, game.Options{
		Executable: cfg.Game,
		Args:       cfg.GameArgs,
		Dir:        cfg.GameDir,
		Reader:     game.NewFixedDelayReader(cfg.ReadDelay, cfg.ReadBufferBytes),
	})
	if err != nil {
		return fmt.Errorf("start game: %w", err)
	}
	defer func() {
		if closeErr := session.Close(); closeErr != nil {
			logger.Warn("close game session", "err", closeErr)
		}
	}()
	// A pending pty read only returns once the game writes; closing the
	// session on interrupt releases it.
	stopClose := context.AfterFunc(ctx, func() { _ = session.Close() })
	defer stopClose()
	logger.Info("game started", "game", cfg.Game, "pid", session.PID(), "provider", cfg.Provider, "model", cfg.Model)

	loop := agentloop.NewCommandLoop(session, player, &agentloop.LoopOptions{
		Bootstrap:     cfg.Bootstrap,
		MaxTurns:      cfg.MaxTurns,
		LoopDetection: cfg.LoopDetection,
		RunID:         a.runID,
	})
	loop.Subscribe(newTracePrinter(a.stdout).Handle)
	loop.Subscribe(logging.EventLogger(logger))

	err = loop.Run(ctx)
	switch {
	case ctx.Err() != nil:
		fmt.Fprintln(a.stdout, "Program terminated by user")
		return nil
	case errors.Is(err, agentloop.ErrTurnLimit):
		fmt.Fprintf(a.stdout, "Turn limit of %d reached\n", cfg.MaxTurns)
		return nil
	case err != nil:
		return err
	}

	if code, exited := session.ExitCode(); exited {
		logger.Info("game finished", "exit_code", code, "turns", loop.Turns())
	}
	return nil
}

// newGenerator returns the scripted player when --script is set and the
// configured model otherwise.
func (a *app) newGenerator() (agentloop.Generator, error) {
	if a.flags.script != "" {
		responses, err := loadScript(a.flags.script)
		if err != nil {
			return nil, err
		}
		a.logger.Logger.Info("using scripted player", "script", a.flags.script, "responses", len(responses))
		return agentloop.NewScriptedGenerator(responses...), nil
	}

	client, err := newLLMClient(a.cfg, a.logger)
	if err != nil {
		return nil, err
	}
	retry := unifiedllm.NoRetryPolicy()
	if a.cfg.MaxRetries > 0 {
		retry = unifiedllm.DefaultRetryPolicy()
		retry.MaxRetries = a.cfg.MaxRetries
		logger := a.logger.Logger
		retry.OnRetry = func(err error, attempt int, delay time.Duration) {
			logger.Warn("retrying llm request", "attempt", attempt, "delay", delay, "err", err)
		}
	}
	return agentloop.NewLLMGenerator(client, agentloop.LLMGeneratorOptions{
		Model:       a.cfg.Model,
		Provider:    a.cfg.Provider,
		Temperature: a.cfg.Temperature,
		Retry:       retry,
	}), nil
}

func newLLMClient(cfg *config.Config, logger *logging.RuntimeLogger) (*unifiedllm.Client, error) {
	opts := []unifiedllm.GollmAdapterOption{
		unifiedllm.WithModel(cfg.Model),
		unifiedllm.WithMaxTokens(cfg.MaxNewTokens),
	}
	if cfg.Temperature != nil {
		opts = append(opts, unifiedllm.WithTemperature(*cfg.Temperature))
	}
	adapter, err := unifiedllm.NewGollmAdapter(cfg.Provider, cfg.APIKey(), opts...)
	if err != nil {
		return nil, fmt.Errorf("configure %s provider: %w", cfg.Provider, err)
	}
	return unifiedllm.NewClient(
		unifiedllm.WithProvider(cfg.Provider, adapter),
		unifiedllm.WithMiddleware(logging.LLMMiddleware(logger.Logger)),
	), nil
}

func agentConfig(cfg *config.Config) *agentloop.AgentConfig {
	ac := agentloop.DefaultAgentConfig()
	ac.Instructions = cfg.Instructions
	ac.Context = cfg.Context
	ac.Generation = agentloop.GenerateOptions{
		MaxNewTokens:   cfg.MaxNewTokens,
		ReturnFullText: cfg.ReturnFullText,
	}
	if info := unifiedllm.GetModelInfo(cfg.Model); info != nil {
		ac.ContextWindow = info.ContextWindow
	}
	return &ac
}
