package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/spf13/pflag"
)

const (
	storagePathFlag   = "storage-path"
	migrationPathFlag = "migrations-path"
)

const usage = `usage: migrator -s <dsn> -m <dir> [up | down N]`

type command struct {
	down  bool
	steps int
}

func main() {
	storagePath, migrationsPath, args := getFlagsValues()
	validateFlags(storagePath, migrationsPath)
	cmd := parseCommand(args)
	makeMigrations(storagePath, migrationsPath, cmd)
}

type MigrationLogger struct {
	logger  *slog.Logger
	verbose bool
}

func NewMigrationLogger() *MigrationLogger {
	return &MigrationLogger{
		logger:  slog.Default(),
		verbose: true,
	}
}

func (ml *MigrationLogger) Printf(format string, v ...any) {
	ml.logger.Info(fmt.Sprintf(format, v...))
}

func (ml *MigrationLogger) Verbose() bool {
	return ml.verbose
}

func getFlagsValues() (storage, migrations string, args []string) {
	storagePath := pflag.StringP(storagePathFlag, "s", "", "postgres DSN")
	migrationsPath := pflag.StringP(migrationPathFlag, "m", "", "migrations directory")
	pflag.Usage = func() {
		fmt.Fprintln(os.Stderr, usage)
		pflag.PrintDefaults()
	}
	pflag.Parse()
	return *storagePath, *migrationsPath, pflag.Args()
}

func validateFlags(storagePath, migrationsPath string) {
	var errs []error

	if storagePath == "" {
		errs = append(errs, fmt.Errorf("--%s flag: required", storagePathFlag))
	}

	if migrationsPath == "" {
		errs = append(errs, fmt.Errorf("--%s flag: required", migrationPathFlag))
	}

	if len(errs) != 0 {
		slog.Error("too few args", "err", errors.Join(errs...))
		fallDown()
	}
}

// parseCommand defaults to "up". "down" requires a positive step count.
func parseCommand(args []string) command {
	if len(args) == 0 || (len(args) == 1 && args[0] == "up") {
		return command{}
	}

	if len(args) == 2 && args[0] == "down" {
		n, err := strconv.Atoi(args[1])
		if err == nil && n > 0 {
			return command{down: true, steps: n}
		}
	}

	slog.Error("invalid command", "args", args, "usage", usage)
	fallDown()
	return command{}
}

func makeMigrations(storagePath, migrationsPath string, cmd command) {
	m, err := migrate.New(
		fmt.Sprintf("file://%s", migrationsPath),
		fmt.Sprintf("pgx5://%s", storagePath),
	)
	if err != nil {
		slog.Error("failed to migrate", "err", err)
		fallDown()
	}
	defer m.Close()

	m.Log = NewMigrationLogger()

	if cmd.down {
		err = m.Steps(-cmd.steps)
	} else {
		err = m.Up()
	}

	if err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			m.Log.Printf("no migrations to apply")
			return
		}
		slog.Error("failed to migrate", "err", err)
		fallDown()
	}

	version, dirty, err := m.Version()
	switch {
	case errors.Is(err, migrate.ErrNilVersion):
		m.Log.Printf("all migrations are rolled back")
	case err != nil:
		slog.Error("failed to read version", "err", err)
	default:
		m.Log.Printf("migrated to version %d, dirty=%t", version, dirty)
	}
}

func fallDown() {
	os.Exit(2)
}
