// migrate aplica las migraciones embebidas (goose) contra PostgreSQL.
//
// Uso: go run ./cmd/migrate -cmd up|down|status|version|redo|reset|up-to|down-to [-version N]
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/jhoicas/traslados-api/internal/infrastructure/postgres"
	"github.com/jhoicas/traslados-api/pkg/config"
	"github.com/jhoicas/traslados-api/pkg/logger"
)

func main() {
	cmd := flag.String("cmd", "up", "comando goose: up|down|status|version|redo|reset|up-to|down-to")
	version := flag.String("version", "", "versión destino (YYYYMMDDHHMMSS) para up-to/down-to")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "cargar configuración: %v\n", err)
		os.Exit(1)
	}
	log := logger.New(logger.Config{Env: cfg.App.Env, Level: cfg.App.LogLevel}).Component("migrate")

	var args []string
	switch *cmd {
	case "up", "down", "status", "version", "redo", "reset":
	case "up-to", "down-to":
		if *version == "" {
			fmt.Fprintf(os.Stderr, "falta -version para %s\n", *cmd)
			os.Exit(1)
		}
		args = append(args, *version)
	default:
		fmt.Fprintln(os.Stderr, "valor -cmd desconocido:", *cmd)
		os.Exit(1)
	}

	ctx := context.Background()
	pool, err := postgres.NewPool(ctx, cfg.DB)
	if err != nil {
		log.Fatal().Err(err).Msg("conexión a PostgreSQL")
	}
	defer pool.Close()

	db := postgres.SQLDB(pool)
	defer db.Close()

	log.Info().Str("cmd", *cmd).Msg("ejecutando migraciones")
	if err := postgres.Migrate(ctx, db, *cmd, args...); err != nil {
		log.Error().Err(err).Str("cmd", *cmd).Msg("migración fallida")
		os.Exit(1)
	}
	log.Info().Str("cmd", *cmd).Msg("migraciones aplicadas")
}
