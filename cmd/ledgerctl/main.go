package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"path"

	"github.com/google/subcommands"

	"ledger/internal/cli"
	"ledger/internal/config"
	"ledger/internal/log"
)

func main() {
	cli.LoadEnvFile()
	cfg := config.Load()

	logger := log.NewText(os.Stderr, log.ParseLevel(cfg.LogLevel), log.ComponentCLI)
	log.SetDefault(logger)

	commander := subcommands.NewCommander(flag.CommandLine, path.Base(os.Args[0]))
	commander.Register(commander.HelpCommand(), "")
	commander.Register(commander.FlagsCommand(), "")
	commander.Register(commander.CommandsCommand(), "")

	cli.NewApp(cfg, logger, os.Stdout, os.Stderr).Register(commander)

	flag.Parse()
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", log.FieldError, err)
		os.Exit(int(subcommands.ExitUsageError))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	os.Exit(int(commander.Execute(ctx)))
}
