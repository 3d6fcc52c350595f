// seed carga un catálogo JSON (bodegas, productos, lotes y existencias de apertura).
// Las existencias se registran como ajustes de entrada; repetir la carga no las duplica.
//
// Uso: go run ./cmd/seed [ruta/catalogo.json]
// Por defecto usa APP_SEED_FILE o catalog.json en el directorio actual.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/jhoicas/traslados-api/internal/bootstrap"
	"github.com/jhoicas/traslados-api/pkg/config"
	"github.com/jhoicas/traslados-api/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "cargar configuración: %v\n", err)
		os.Exit(1)
	}

	path := cfg.App.SeedFile
	if len(os.Args) > 1 {
		path = os.Args[1]
	}
	if path == "" {
		path = "catalog.json"
	}
	if cfg.App.StoreDriver == config.StoreDriverMemory {
		fmt.Fprintln(os.Stderr, "STORE_DRIVER=memory: la carga no persiste; use APP_SEED_FILE en la API")
		os.Exit(1)
	}

	log := logger.New(logger.Config{Env: cfg.App.Env, Level: cfg.App.LogLevel}).Component("seed")
	if err := run(context.Background(), cfg, path, log); err != nil {
		log.Error().Err(err).Str("file", path).Msg("carga fallida")
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, path string, log *logger.Logger) error {
	container, err := bootstrap.Build(ctx, cfg, log, nil)
	if err != nil {
		return fmt.Errorf("inicializar dependencias: %w", err)
	}
	defer container.Close()
	return container.Seed(ctx, path, log)
}
