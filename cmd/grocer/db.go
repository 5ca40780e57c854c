package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"

	"github.com/flicky/grocer/internal/config"
	"github.com/flicky/grocer/internal/repository"
	"github.com/flicky/grocer/internal/seed"
)

// connectDB opens and pings the PostgreSQL pool.
func connectDB(ctx context.Context, cfg config.DBConfig) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("parse db config: %w", err)
	}
	poolCfg.MaxConns = cfg.MaxConns

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return pool, nil
}

func migrate(ctx context.Context, pool *pgxpool.Pool, log *slog.Logger) error {
	applied, err := repository.Migrate(ctx, pool)
	if err != nil {
		return err
	}
	if len(applied) == 0 {
		log.Info("schema up to date")
		return nil
	}
	log.Info("applied migrations", "versions", applied)
	return nil
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending database migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, log, err := boot()
		if err != nil {
			return err
		}
		pool, err := connectDB(cmd.Context(), cfg.DB)
		if err != nil {
			return err
		}
		defer pool.Close()
		return migrate(cmd.Context(), pool, log)
	},
}

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Migrate and load the sample catalog into an empty database",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, log, err := boot()
		if err != nil {
			return err
		}
		pool, err := connectDB(cmd.Context(), cfg.DB)
		if err != nil {
			return err
		}
		defer pool.Close()

		if err := migrate(cmd.Context(), pool, log); err != nil {
			return err
		}
		_, err = seed.Products(cmd.Context(), repository.NewProductRepository(pool), log)
		return err
	},
}
