// roadmapctl inspects and edits roadmaps directly against the database.
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"

	"github.com/ashureev/goalmap/internal/config"
	"github.com/ashureev/goalmap/internal/generator"
	"github.com/ashureev/goalmap/internal/roadmap"
	"github.com/ashureev/goalmap/internal/store"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var (
	dbPath  string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "roadmapctl",
	Short: "Inspect and edit goalmap roadmaps",
	Long: `roadmapctl works on the same SQLite database as the server.

Generating commands (create, decompose) use the generator configured through
the usual environment variables (GENERATOR_PROVIDER, LLM_API_KEY, ...).`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		level := slog.LevelWarn
		if verbose {
			level = slog.LevelDebug
		}
		slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
		dbPath = resolveDBPath(dbPath, cmd.Flags().Changed("db"))
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "path to the SQLite database (default $DB_PATH or ./data/roadmaps.db)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log debug output to stderr")
}

func main() {
	_ = godotenv.Load()
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// resolveDBPath applies the DB_PATH default once .env has been loaded. An
// explicit --db always wins.
func resolveDBPath(flagValue string, explicit bool) string {
	if explicit {
		return flagValue
	}
	return envOr("DB_PATH", "./data/roadmaps.db")
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// session is an opened service plus whatever must be closed after use.
type session struct {
	svc    *roadmap.Service
	closer func()
}

// openService opens the database and, when withGenerator is set, the
// configured generator.
func openService(withGenerator bool) (*session, error) {
	repo, err := store.NewSQLite(dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	var (
		gen  generator.Generator = generator.Disabled{}
		opts []roadmap.Option
	)
	closers := []func(){func() { _ = repo.Close() }}

	if withGenerator {
		cfg, err := config.Load()
		if err != nil {
			_ = repo.Close()
			return nil, err
		}
		st, err := generator.FromConfig(cfg.Generator, nil, slog.Default())
		if err != nil {
			_ = repo.Close()
			return nil, err
		}
		closers = append(closers, st.Close)
		gen = st
		opts = append(opts,
			roadmap.WithMaxDecomposeDepth(cfg.MaxDecomposeDepth),
			roadmap.WithGenerateTimeout(cfg.Generator.Timeout),
		)
	}

	return &session{
		svc: roadmap.NewService(repo, gen, opts...),
		closer: func() {
			for i := len(closers) - 1; i >= 0; i-- {
				closers[i]()
			}
		},
	}, nil
}

// withService runs fn against a freshly opened service.
func withService(ctx context.Context, withGenerator bool, fn func(context.Context, *roadmap.Service) error) error {
	s, err := openService(withGenerator)
	if err != nil {
		return err
	}
	defer s.closer()
	return fn(ctx, s.svc)
}

func parseID(arg, what string) (int64, error) {
	id, err := strconv.ParseInt(arg, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid %s id %q", what, arg)
	}
	return id, nil
}

func out(cmd *cobra.Command) io.Writer {
	return cmd.OutOrStdout()
}
