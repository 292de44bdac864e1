package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"creatorpulse/internal/app"
	"creatorpulse/internal/config"
	"creatorpulse/internal/domain"
	"creatorpulse/internal/logging"
)

func main() {
	var (
		runUser    string
		seedUser   string
		addFeed    string
		addHandle  string
		addStyle   string
		sourceName string
	)
	flag.StringVar(&runUser, "run-user", "", "execute one pipeline run for the given user and exit")
	flag.StringVar(&seedUser, "user", "", "user id for -add-feed, -add-handle and -add-style")
	flag.StringVar(&addFeed, "add-feed", "", "register a feed URL for -user and exit")
	flag.StringVar(&addHandle, "add-handle", "", "register a social handle for -user and exit")
	flag.StringVar(&addStyle, "add-style", "", "store a style example text for -user and exit")
	flag.StringVar(&sourceName, "source-name", "", "display name used with -add-feed / -add-handle")
	flag.Parse()

	cfg := config.Load()
	logger := logging.New(cfg.Logging.Level)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	application, err := app.New(cfg, logger)
	if err != nil {
		logger.Error("startup failed", "error", err)
		os.Exit(1)
	}

	if addFeed != "" || addHandle != "" || addStyle != "" {
		closeAndExit(application, logger, seed(ctx, application, seedUser, addFeed, addHandle, addStyle, sourceName))
		return
	}

	if runUser != "" {
		closeAndExit(application, logger, application.RunOnce(ctx, runUser))
		return
	}

	if err := application.Run(ctx); err != nil {
		logger.Error("application stopped", "error", err)
		os.Exit(1)
	}
}

func seed(ctx context.Context, application *app.Application, userID, feed, handle, style, name string) error {
	if userID == "" {
		return errors.New("-user is required with -add-feed, -add-handle or -add-style")
	}
	if feed != "" {
		if _, err := application.AddSource(ctx, userID, domain.KindFeed, name, feed); err != nil {
			return err
		}
	}
	if handle != "" {
		if _, err := application.AddSource(ctx, userID, domain.KindSocialHandle, name, handle); err != nil {
			return err
		}
	}
	if style != "" {
		if _, err := application.AddStyleExample(ctx, userID, style); err != nil {
			return err
		}
	}
	return nil
}

func closeAndExit(application *app.Application, logger *slog.Logger, err error) {
	if cerr := application.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		logger.Error("command failed", "error", err)
		os.Exit(1)
	}
}
