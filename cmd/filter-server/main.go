package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"

	engine "github.com/PhucNguyen204/scenefilter/filterengine"
	"github.com/PhucNguyen204/scenefilter/internal/schemas"
	srv "github.com/PhucNguyen204/scenefilter/internal/server"
)

func main() {
	app := &cli.App{
		Name:  "filter-server",
		Usage: "Match JSON documents against typed filter expressions over HTTP",
		Description: `Loads YAML field schemas, then serves:

  GET  /api/v1/schema   registered fields and their operators
  POST /api/v1/match    {"filter": ..., "document": {...}}
  POST /api/v1/filter   {"filter": ..., "documents": [...]}

Without --db-dsn, cached field outcomes are kept in memory.`,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "addr",
				Usage:   "HTTP listen address",
				EnvVars: []string{"FILTER_ADDR"},
				Value:   ":8080",
			},
			&cli.StringFlag{
				Name:    "db-dsn",
				Usage:   "Postgres DSN for the shared result cache",
				EnvVars: []string{"FILTER_DB_DSN"},
			},
			&cli.StringFlag{
				Name:    "schema-dir",
				Usage:   "Directory of YAML field schemas",
				EnvVars: []string{"FILTER_SCHEMA_DIR"},
				Value:   "./schemas",
			},
			&cli.StringFlag{
				Name:    "config",
				Usage:   "YAML engine configuration",
				EnvVars: []string{"FILTER_CONFIG"},
			},
			&cli.StringFlag{
				Name:    "migrations",
				Usage:   "SQL migrations applied at startup when a database is configured",
				EnvVars: []string{"FILTER_MIGRATIONS"},
				Value:   "./migrations",
			},
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "panic, fatal, error, warn, info, debug or trace",
				Value: "info",
			},
		},
		Action: run,
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(c *cli.Context) error {
	log := logrus.New()
	level, err := logrus.ParseLevel(c.String("log-level"))
	if err != nil {
		return err
	}
	log.SetLevel(level)

	cfg := engine.ProductionConfig()
	if p := c.String("config"); p != "" {
		if cfg, err = engine.LoadEngineConfig(p); err != nil {
			return err
		}
	}

	sch, err := schemas.LoadCombined(c.String("schema-dir"))
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	var db *sql.DB
	if dsn := c.String("db-dsn"); dsn != "" {
		if db, err = openDB(ctx, dsn); err != nil {
			return err
		}
		defer db.Close()
	}

	filters, err := srv.NewFilterService(sch, db, cfg, log)
	if err != nil {
		return err
	}
	defer filters.Flush()

	server := srv.NewAppServer(db, sch, filters, log)
	if db != nil {
		if err := server.RunMigrations(ctx, c.String("migrations")); err != nil {
			return err
		}
	}

	mux := http.NewServeMux()
	server.RegisterRoutes(mux)
	httpServer := &http.Server{
		Addr:              c.String("addr"),
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		log.WithFields(logrus.Fields{
			"addr":   httpServer.Addr,
			"schema": sch.Name,
			"fields": len(sch.Fields),
		}).Info("filter server listening")
		errc <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errc:
		return errors.Wrap(err, "listen")
	case <-ctx.Done():
	}
	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return httpServer.Shutdown(shutdownCtx)
}

func openDB(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, errors.Wrap(err, "open db")
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "ping db")
	}
	return db, nil
}
