// Package cli implements the gophstudy client commands.
package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/atinyakov/GophStudy/internal/client/cache"
	"github.com/atinyakov/GophStudy/internal/client/scheduler"
	"github.com/atinyakov/GophStudy/internal/client/session"
	"github.com/atinyakov/GophStudy/internal/client/storage"
	"github.com/atinyakov/GophStudy/internal/logger"
)

var (
	baseURL   string
	userID    string
	storeKind string
	dbPath    string
	logLevel  string
	timeout   time.Duration
)

// RootCmd is the top-level command.
var RootCmd = &cobra.Command{
	Use:          "gophstudy",
	Short:        "Daily spaced-repetition study sessions",
	Long:         "Study a deck's daily review queue against a GophStudy scheduling server.",
	SilenceUsage: true,
}

func init() {
	RootCmd.PersistentFlags().StringVarP(&baseURL, "url", "u", "", "Scheduler base URL (default: $GOPHSTUDY_URL or http://localhost:8080)")
	RootCmd.PersistentFlags().StringVar(&userID, "user", "", "User id (default: $GOPHSTUDY_USER)")
	RootCmd.PersistentFlags().StringVar(&storeKind, "store", "", "Local store: file, sqlite or memory (default: $GOPHSTUDY_STORE or file)")
	RootCmd.PersistentFlags().StringVarP(&dbPath, "db", "d", "", "Local store path (default: $GOPHSTUDY_DB or ~/.gophstudy/study.{json,db})")
	RootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "Log level")
	RootCmd.PersistentFlags().DurationVar(&timeout, "timeout", scheduler.DefaultTimeout, "Timeout for scheduler calls")
}

func getBaseURL() string {
	if baseURL != "" {
		return baseURL
	}
	if env := os.Getenv("GOPHSTUDY_URL"); env != "" {
		return env
	}
	return "http://localhost:8080"
}

func getUserID() (string, error) {
	if userID != "" {
		return userID, nil
	}
	if env := os.Getenv("GOPHSTUDY_USER"); env != "" {
		return env, nil
	}
	return "", fmt.Errorf("no user: pass --user or set GOPHSTUDY_USER")
}

func getStoreKind() string {
	if storeKind != "" {
		return storeKind
	}
	if env := os.Getenv("GOPHSTUDY_STORE"); env != "" {
		return env
	}
	return "file"
}

func getDBPath(kind string) string {
	if dbPath != "" {
		return dbPath
	}
	if env := os.Getenv("GOPHSTUDY_DB"); env != "" {
		return env
	}
	name := storage.DefaultFile
	if kind == "sqlite" {
		name = "study.db"
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".gophstudy", name)
}

func openStore() (storage.Store, error) {
	kind := getStoreKind()
	if kind == "memory" {
		return storage.NewMemoryStore(), nil
	}

	path := getDBPath(kind)
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("create store dir: %w", err)
	}
	switch kind {
	case "file":
		return storage.NewFileStore(path)
	case "sqlite":
		return storage.NewSQLiteStore(path)
	default:
		return nil, fmt.Errorf("unknown store %q", kind)
	}
}

func newLogger() (*zap.Logger, error) {
	l := logger.New()
	if err := l.Init(logLevel); err != nil {
		return nil, err
	}
	return l.Log, nil
}

// newRegistry wires one controller per deck over a shared cache and scheduler client.
func newRegistry(store storage.Store, user string, log *zap.Logger) *session.Registry {
	remote := scheduler.New(scheduler.NewHTTPClient(timeout), getBaseURL(), log)
	cc := cache.New(store, cache.WithLogger(log))
	return session.NewRegistry(func(deckID string) *session.Controller {
		return session.NewController(user, deckID, remote, cc, session.WithLogger(log))
	})
}
