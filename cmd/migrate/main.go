// Command migrate manages the stock ledger schema.
package main

import (
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strconv"

	"github.com/erp/stockledger/internal/infrastructure/config"
	"github.com/erp/stockledger/internal/infrastructure/logger"
	"github.com/erp/stockledger/internal/infrastructure/migration"
	_ "github.com/lib/pq"
	"go.uber.org/zap"
)

const defaultMigrationsDir = "migrations"

var errUsage = errors.New("usage")

// schemaCommand runs against an open migrator
type schemaCommand func(m *migration.Migrator, args []string, log *zap.Logger) error

var schemaCommands = map[string]schemaCommand{
	"up":      func(m *migration.Migrator, _ []string, _ *zap.Logger) error { return m.Up() },
	"down":    func(m *migration.Migrator, _ []string, _ *zap.Logger) error { return m.Down() },
	"step":    runStep,
	"goto":    runGoTo,
	"version": runVersion,
	"force":   runForce,
	"drop":    runDrop,
}

func main() {
	dir := flag.String("path", "", "migrations directory; empty uses ./migrations when present, else the embedded set")
	level := flag.String("log-level", "info", "log level (debug, info, warn, error)")
	flag.Usage = printUsage
	flag.Parse()

	if flag.NArg() == 0 {
		printUsage()
		os.Exit(2)
	}

	log, err := logger.New(&logger.Config{
		Level:      *level,
		Format:     "console",
		Output:     "stdout",
		TimeFormat: "2006-01-02 15:04:05",
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "migrate: %v\n", err)
		os.Exit(1)
	}

	if err := run(flag.Args(), *dir, log); err != nil {
		if errors.Is(err, errUsage) {
			log.Error(err.Error())
			printUsage()
			_ = log.Sync()
			os.Exit(2)
		}
		log.Error("Migration command failed", zap.String("command", flag.Arg(0)), zap.Error(err))
		_ = log.Sync()
		os.Exit(1)
	}
	_ = log.Sync()
}

func run(args []string, dir string, log *zap.Logger) error {
	command, rest := args[0], args[1:]
	dir, embedded, err := resolveMigrationsDir(dir)
	if err != nil {
		return err
	}
	log.Debug("Resolved migrations source",
		zap.String("dir", dir),
		zap.Bool("embedded", embedded),
	)

	switch command {
	case "create":
		return runCreate(dir, rest, log)
	case "list":
		return runList(dir, log)
	}

	exec, ok := schemaCommands[command]
	if !ok {
		return fmt.Errorf("%w: unknown command %q", errUsage, command)
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}
	db, err := sql.Open("postgres", cfg.Database.DSN())
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()
	if err := db.Ping(); err != nil {
		return fmt.Errorf("ping database: %w", err)
	}

	var m *migration.Migrator
	if embedded {
		m, err = migration.NewEmbedded(db, log)
	} else {
		m, err = migration.New(db, dir, log)
	}
	if err != nil {
		return err
	}
	defer m.Close()

	return exec(m, rest, log)
}

// resolveMigrationsDir picks the on-disk directory to use. The embedded set is
// used when no directory was given and ./migrations does not exist.
func resolveMigrationsDir(dir string) (string, bool, error) {
	if dir == "" {
		if _, err := os.Stat(defaultMigrationsDir); err != nil {
			return defaultMigrationsDir, true, nil
		}
		dir = defaultMigrationsDir
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", false, fmt.Errorf("resolve migrations path: %w", err)
	}
	return abs, false, nil
}

func runCreate(dir string, args []string, log *zap.Logger) error {
	if len(args) == 0 {
		return fmt.Errorf("%w: create needs a migration name", errUsage)
	}
	description := ""
	if len(args) > 1 {
		description = args[1]
	}
	mf, err := migration.CreateMigration(dir, args[0], description)
	if err != nil {
		return err
	}
	log.Info("Migration created",
		zap.String("version", mf.Version),
		zap.String("up_file", mf.UpPath),
		zap.String("down_file", mf.DownPath),
	)
	return nil
}

func runList(dir string, log *zap.Logger) error {
	names, err := migration.ListMigrations(dir)
	if err != nil {
		return err
	}
	log.Info("Available migrations", zap.Int("count", len(names)))
	for _, name := range names {
		fmt.Println("  -", name)
	}
	return nil
}

func runStep(m *migration.Migrator, args []string, _ *zap.Logger) error {
	if len(args) == 0 {
		return fmt.Errorf("%w: step needs a count", errUsage)
	}
	n, err := strconv.Atoi(args[0])
	if err != nil || n == 0 {
		return fmt.Errorf("%w: invalid step count %q", errUsage, args[0])
	}
	return m.Steps(n)
}

func runGoTo(m *migration.Migrator, args []string, _ *zap.Logger) error {
	if len(args) == 0 {
		return fmt.Errorf("%w: goto needs a version", errUsage)
	}
	v, err := strconv.ParseUint(args[0], 10, 32)
	if err != nil {
		return fmt.Errorf("%w: invalid version %q", errUsage, args[0])
	}
	return m.GoTo(uint(v))
}

func runVersion(m *migration.Migrator, _ []string, log *zap.Logger) error {
	v, dirty, err := m.Version()
	if err != nil {
		return err
	}
	if v == 0 {
		log.Info("No migrations applied")
		return nil
	}
	log.Info("Current schema version", zap.Uint("version", v), zap.Bool("dirty", dirty))
	return nil
}

func runForce(m *migration.Migrator, args []string, log *zap.Logger) error {
	if len(args) == 0 {
		return fmt.Errorf("%w: force needs a version", errUsage)
	}
	v, err := strconv.Atoi(args[0])
	if err != nil {
		return fmt.Errorf("%w: invalid version %q", errUsage, args[0])
	}
	log.Warn("Forcing schema version; only use this to clear a dirty state", zap.Int("version", v))
	return m.Force(v)
}

func runDrop(m *migration.Migrator, args []string, _ *zap.Logger) error {
	if !slices.Contains(args, "-confirm") && !slices.Contains(args, "--confirm") {
		return fmt.Errorf("%w: drop removes every ledger table and needs -confirm", errUsage)
	}
	return m.Drop()
}

func printUsage() {
	fmt.Fprint(os.Stderr, `Stock ledger schema migrations

Usage:
  migrate [flags] <command> [arguments]

Commands:
  up                    apply all pending migrations
  down                  roll back every migration
  step <n>              apply n migrations (negative rolls back)
  goto <version>        migrate to a specific version
  version               print the current version
  force <version>       set the version without running anything
  drop -confirm         drop every table
  create <name> [desc]  write a new up/down pair
  list                  list migrations on disk

Flags:
  -path string          migrations directory
  -log-level string     debug, info, warn or error (default info)

The database is read from config.toml or LEDGER_DATABASE_* variables.
`)
}
