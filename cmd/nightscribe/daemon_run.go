package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"nightscribe/internal/daemon"
	"nightscribe/internal/ipc"
	"nightscribe/internal/logging"
	"nightscribe/internal/preflight"
	"nightscribe/internal/queue"
	"nightscribe/internal/watchfolder"
	"nightscribe/internal/workflow"
)

func newRunCommand(ctx *commandContext) *cobra.Command {
	var skipChecks bool

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the nightscribe daemon in the foreground",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDaemonProcess(cmd.Context(), ctx, cmd, skipChecks)
		},
	}
	cmd.Flags().BoolVar(&skipChecks, "skip-checks", false, "Skip startup environment checks")
	return cmd
}

func runDaemonProcess(cmdCtx context.Context, ctx *commandContext, cmd *cobra.Command, skipChecks bool) error {
	signalCtx, cancel := signal.NotifyContext(cmdCtx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, err := ctx.ensureConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, err := logging.New(logging.Options{
		Level:       cfg.Logging.Level,
		Format:      cfg.Logging.Format,
		OutputPaths: []string{"stdout", cfg.LogFile()},
	})
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}

	if !skipChecks {
		results := preflight.RunAll(cfg)
		stdout := cmd.OutOrStdout()
		colorize := shouldColorize(stdout)
		fmt.Fprintln(stdout, sectionHeader("Startup Checks", colorize))
		for _, result := range results {
			fmt.Fprintln(stdout, renderStatusLine(result.Name, checkResultState(result), result.Detail, colorize))
		}
		if failures := preflight.RequiredFailures(results); len(failures) > 0 {
			return fmt.Errorf("%d required startup check(s) failed; fix them or pass --skip-checks", len(failures))
		}
	}

	store, err := queue.Open(cfg, logger)
	if err != nil {
		logger.Error("open queue store", logging.Error(err))
		return err
	}

	pipeline := workflow.NewTranscriptionPipeline(cfg, logger)
	manager := workflow.NewManager(cfg, store, logger, pipeline)

	d, err := daemon.New(cfg, store, logger, manager, nil)
	if err != nil {
		return fmt.Errorf("create daemon: %w", err)
	}
	if cfg.Paths.WatchFolder != "" {
		scanner := watchfolder.NewScanner(cfg, store, d, logger, manager.Wake)
		d, err = daemon.New(cfg, store, logger, manager, scanner)
		if err != nil {
			return fmt.Errorf("create daemon: %w", err)
		}
	}

	// Acquire the instance lock before binding the socket. A second daemon
	// must fail here without unlinking the live daemon's socket file.
	if err := d.Start(signalCtx); err != nil {
		return err
	}
	defer d.Stop()

	ipcServer, err := ipc.NewServer(signalCtx, ctx.socketPath(), d, logger, cancel)
	if err != nil {
		return fmt.Errorf("start IPC server: %w", err)
	}
	defer ipcServer.Close()
	ipcServer.Serve()

	logger.Info("nightscribe daemon ready",
		logging.String("socket", ctx.socketPath()),
		logging.Int("pid", os.Getpid()))

	<-signalCtx.Done()
	logger.Info("nightscribe daemon shutting down")
	return nil
}

func checkResultState(result preflight.Result) checkState {
	switch {
	case result.Passed:
		return stateOK
	case result.Optional:
		return stateWarn
	default:
		return stateFail
	}
}
