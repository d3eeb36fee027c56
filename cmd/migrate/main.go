package main

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"fyp-inbox/internal/config"
	"fyp-inbox/migrations"
)

// Uso: migrate [up|down|version|steps N|force V]
func main() {
	if err := godotenv.Load(); err != nil {
		log.Printf("warning: loading .env: %v", err)
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal(err)
	}

	logger, _ := zap.NewProduction()
	defer logger.Sync()

	source, err := iofs.New(migrations.FS, ".")
	if err != nil {
		logger.Fatal("open embedded migrations", zap.Error(err))
	}
	m, err := migrate.NewWithSourceInstance("iofs", source, cfg.DatabaseURL)
	if err != nil {
		logger.Fatal("init migrate", zap.Error(err))
	}
	defer m.Close()

	cmd := "up"
	if len(os.Args) > 1 {
		cmd = os.Args[1]
	}
	if err := run(m, cmd, os.Args[2:]); err != nil {
		logger.Fatal("migration failed", zap.String("cmd", cmd), zap.Error(err))
	}

	version, dirty, err := m.Version()
	if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		logger.Fatal("read version", zap.Error(err))
	}
	logger.Info("migration done", zap.String("cmd", cmd), zap.Uint("version", version), zap.Bool("dirty", dirty))
}

func run(m *migrate.Migrate, cmd string, args []string) error {
	switch cmd {
	case "up":
		return ignoreNoChange(m.Up())
	case "down":
		return ignoreNoChange(m.Down())
	case "version":
		return nil
	case "steps":
		n, err := intArg(args)
		if err != nil {
			return err
		}
		return ignoreNoChange(m.Steps(n))
	case "force":
		v, err := intArg(args)
		if err != nil {
			return err
		}
		return m.Force(v)
	default:
		return fmt.Errorf("unknown command %q", cmd)
	}
}

func intArg(args []string) (int, error) {
	if len(args) == 0 {
		return 0, errors.New("missing numeric argument")
	}
	return strconv.Atoi(args[0])
}

func ignoreNoChange(err error) error {
	if errors.Is(err, migrate.ErrNoChange) {
		return nil
	}
	return err
}
