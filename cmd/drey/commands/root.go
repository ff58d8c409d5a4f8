package commands

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/dyluth/drey/internal/config"
	"github.com/dyluth/drey/internal/resolver"
	"github.com/dyluth/drey/internal/store/drivestore"
	"github.com/dyluth/drey/internal/store/filestore"
	"github.com/dyluth/drey/internal/store/redisstore"
	"github.com/dyluth/drey/pkg/board"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

var (
	version string
	commit  string
	date    string

	configPath string
	agentID    string
	verbose    bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "drey",
	Short: "Drey - shared message board for collaborating agents",
	Long: `Drey is a shared message board through which independent agent
processes post tasks, claim them exclusively, report status, and hand
off work - over durable stores that offer no locking or transactions.

Correctness under concurrent access comes from optimistic concurrency:
every mutation is a conditional write, and a claim race has exactly one
winner. Backends: a shared folder, Redis, or a remote drive.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}

// SetVersionInfo sets the version information for the CLI
func SetVersionInfo(v, c, d string) {
	version = v
	commit = c
	date = d
	rootCmd.Version = fmt.Sprintf("%s (commit: %s, built: %s)", v, c, d)
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to drey.yml (default: ./drey.yml)")
	rootCmd.PersistentFlags().StringVar(&agentID, "agent", "", "Agent identity (overrides DREY_AGENT_ID)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
}

// session bundles everything a command needs to talk to the board.
type session struct {
	cfg   *config.Config
	board *board.Board
	store board.Store
	close func() error
}

// openSession loads configuration, builds the configured store backend, and
// returns a board client bound to this process's agent identity.
func openSession() (*session, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if agentID != "" {
		cfg.AgentID = agentID
	}

	logger := newLogger()

	store, closer, err := buildStore(cfg, logger)
	if err != nil {
		return nil, err
	}

	b, err := board.NewBoard(store, cfg.AgentID, board.WithLogger(logger))
	if err != nil {
		if closer != nil {
			closer()
		}
		return nil, err
	}

	if closer == nil {
		closer = func() error { return nil }
	}
	return &session{cfg: cfg, board: b, store: store, close: closer}, nil
}

// resolveID expands a short message ID prefix to the full ID.
func (s *session) resolveID(ctx context.Context, shortID string) (string, error) {
	id, err := resolver.ResolveMessageID(ctx, s.store, shortID)
	if err != nil {
		var amb *resolver.AmbiguousError
		if errors.As(err, &amb) {
			return "", fmt.Errorf("%s", resolver.FormatAmbiguousError(amb))
		}
		return "", err
	}
	return id, nil
}

// opCtx returns a context carrying the configured per-operation timeout.
func (s *session) opCtx() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), s.cfg.OpTimeout)
}

// buildStore constructs the store adapter the configuration selects.
func buildStore(cfg *config.Config, logger zerolog.Logger) (board.Store, func() error, error) {
	switch cfg.Backend {
	case config.BackendFile:
		s, err := filestore.New(cfg.File.Root, cfg.Namespace)
		if err != nil {
			return nil, nil, err
		}
		return s, nil, nil

	case config.BackendRedis:
		s, err := redisstore.New(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		}, cfg.Namespace)
		if err != nil {
			return nil, nil, err
		}
		return s, s.Close, nil

	case config.BackendDrive:
		s, err := drivestore.New(drivestore.Credentials{
			TenantID:     cfg.Drive.TenantID,
			ClientID:     cfg.Drive.ClientID,
			ClientSecret: cfg.Drive.ClientSecret,
		}, cfg.Namespace, drivestore.Options{
			SitePath: cfg.Drive.SitePath,
			Logger:   logger,
		})
		if err != nil {
			return nil, nil, err
		}
		return s, nil, nil

	default:
		// config.Validate rejects unknown backends before we get here
		return nil, nil, fmt.Errorf("unknown backend %q", cfg.Backend)
	}
}

func newLogger() zerolog.Logger {
	level := zerolog.WarnLevel
	if verbose {
		level = zerolog.DebugLevel
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).Level(level).With().Timestamp().Logger()
}
