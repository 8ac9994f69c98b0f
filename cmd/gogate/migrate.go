package main

import (
	"context"
	"errors"
	"flag"

	goGate "github.com/MrEthical07/goGate"
	"github.com/MrEthical07/goGate/credentials"
)

func runMigrate(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("migrate", flag.ContinueOnError)
	cfgPath := configFlag(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}
	cfg, err := goGate.LoadConfig(*cfgPath)
	if err != nil {
		return err
	}
	logger := newLogger(cfg.Log, nil)

	dsn := cfg.Database.DSN()
	if dsn == "" {
		return errors.New("database.name is not configured")
	}
	db, err := credentials.OpenPostgres(ctx, dsn)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := credentials.RunMigrations(ctx, db); err != nil {
		return err
	}
	logger.Info().Str("database", cfg.Database.Name).Msg("migrations applied")
	return nil
}
