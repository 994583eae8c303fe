// Billcall - Real-time Bill Request Notifications for Restaurant Staff
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/billcall

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/tomtom215/billcall/internal/billrequest"
	"github.com/tomtom215/billcall/internal/config"
	"github.com/tomtom215/billcall/internal/logging"
	"github.com/tomtom215/billcall/internal/models"
	"github.com/tomtom215/billcall/internal/session"
)

// defaultTUILogFile receives logs while the terminal dashboard owns the
// screen and logging.file is unset.
const defaultTUILogFile = "billcall.log"

type flags struct {
	configPath  string
	requestBill bool
	table       int
	tableID     string
	hash        string
	restaurant  string
}

func parseFlags(args []string) (flags, error) {
	var f flags
	fs := flag.NewFlagSet("billcall", flag.ContinueOnError)
	fs.StringVar(&f.configPath, "config", "", "path to config.yaml (overrides CONFIG_PATH)")
	fs.BoolVar(&f.requestBill, "request-bill", false, "submit one bill request as a table would, then exit")
	fs.IntVar(&f.table, "table", 0, "table number for -request-bill")
	fs.StringVar(&f.tableID, "table-id", "", "table id for -request-bill")
	fs.StringVar(&f.hash, "hash", "", "table QR hash for -request-bill")
	fs.StringVar(&f.restaurant, "restaurant", "", "restaurant id for -request-bill (defaults to session.restaurant_id)")
	if err := fs.Parse(args); err != nil {
		return flags{}, err
	}
	return f, nil
}

func main() {
	f, err := parseFlags(os.Args[1:])
	if err != nil {
		os.Exit(2)
	}
	if f.configPath != "" {
		if err := os.Setenv(config.ConfigPathEnvVar, f.configPath); err != nil {
			logging.Fatal().Err(err).Msg("Failed to set config path")
		}
	}

	cfg, err := config.LoadWithKoanf()
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logOut, closeLog, err := logOutput(cfg)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to open log file")
	}
	defer closeLog()

	logging.Init(logging.Config{
		Level:     cfg.Logging.Level,
		Format:    cfg.Logging.Format,
		Caller:    cfg.Logging.Caller,
		Timestamp: true,
		Output:    logOut,
	})

	if f.requestBill {
		if err := requestBill(cfg, f); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		return
	}

	logging.Info().
		Str("api_url", cfg.API.BaseURL).
		Bool("credentials", cfg.HasCredentials()).
		Bool("tui", cfg.TUI.Enabled).
		Bool("telegram", cfg.Telegram.Enabled).
		Msg("Starting billcall with supervisor tree")

	a := newApp(cfg, nil)
	defer a.close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	tree, err := a.tree(cancel)
	if err != nil {
		logging.Error().Err(err).Msg("Failed to build supervisor tree")
		return
	}

	if path := config.FindConfigFile(); path != "" {
		if err := config.WatchConfigFile(path, func() { reloadConfig(a) }); err != nil {
			logging.Warn().Err(err).Str("path", path).Msg("Config file watch disabled")
		}
	}

	// === START SUPERVISOR TREE ===

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		select {
		case sig := <-sigCh:
			logging.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
			cancel()
		case <-ctx.Done():
		}
	}()

	logging.Info().Msg("Starting supervisor tree...")
	errCh := tree.ServeBackground(ctx)
	a.start()

	select {
	case <-ctx.Done():
		logging.Info().Msg("Context canceled, waiting for supervisor to finish...")
	case err := <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor tree error")
		}
	}

	for err := range errCh {
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor shutdown error")
		}
	}

	unstopped, _ := tree.UnstoppedServiceReport()
	if len(unstopped) > 0 {
		logging.Warn().Int("count", len(unstopped)).Msg("Services failed to stop within timeout")
		for _, svc := range unstopped {
			logging.Warn().Str("service", svc.Name).Msg("Service failed to stop")
		}
	}

	logging.Info().Msg("Application stopped gracefully")
}

// logOutput picks the log destination. The terminal dashboard needs the
// screen, so logs go to a file while it runs.
func logOutput(cfg *config.Config) (io.Writer, func(), error) {
	path := cfg.Logging.File
	if path == "" && cfg.TUI.Enabled {
		path = defaultTUILogFile
	}
	if path == "" {
		return os.Stderr, func() {}, nil
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o640)
	if err != nil {
		return nil, nil, err
	}
	return f, func() { _ = f.Close() }, nil
}

// reloadConfig applies the settings that can change without a restart:
// log level and session credentials. A session change resubscribes the
// stream and refreshes the pending list.
func reloadConfig(a *app) {
	cfg, err := config.LoadWithKoanf()
	if err != nil {
		logging.Warn().Err(err).Msg("Ignoring invalid config change")
		return
	}
	logging.SetLevelString(cfg.Logging.Level)

	next := session.Credentials{RestaurantID: cfg.Session.RestaurantID, Token: cfg.Session.Token}
	if next != a.session.Get() {
		logging.Info().Str("session", next.Redacted()).Msg("Session credentials changed")
		a.session.Set(next)
	}
}

// requestBill submits one bill request through the public endpoint.
func requestBill(cfg *config.Config, f flags) error {
	restaurant := f.restaurant
	if restaurant == "" {
		restaurant = cfg.Session.RestaurantID
	}
	client := billrequest.NewClient(billrequest.Config{
		BaseURL:        cfg.API.BaseURL,
		Timeout:        cfg.API.Timeout,
		RateLimitRPS:   cfg.API.RateLimitRPS,
		RateLimitBurst: cfg.API.RateLimitBurst,
	}, session.NewHolder(session.Credentials{}))

	ctx, cancel := context.WithTimeout(context.Background(), cfg.API.Timeout+5*time.Second)
	defer cancel()

	created, err := client.Create(ctx, models.CreateBillRequest{
		RestaurantID: restaurant,
		TableID:      f.tableID,
		TableNumber:  f.table,
		Hash:         f.hash,
	})
	if err != nil {
		logging.Error().Err(err).Int("table", f.table).Msg("Bill request failed")
		return errors.New(billrequest.FriendlyMessage(err, billrequest.OpCreateBillRequest))
	}
	if created == nil {
		fmt.Printf("Bill requested for table %d\n", f.table)
		return nil
	}
	fmt.Printf("Bill requested for table %d (request %s, %s)\n", created.TableNumber, created.ID, created.Status)
	return nil
}
