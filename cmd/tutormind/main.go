package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/samber/lo"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/hrygo/tutormind/internal/profile"
	"github.com/hrygo/tutormind/plugin/ai"
	"github.com/hrygo/tutormind/server"
	"github.com/hrygo/tutormind/server/auth"
	"github.com/hrygo/tutormind/store"
	"github.com/hrygo/tutormind/store/db"
)

const version = "0.1.0"

var (
	v = viper.New()

	rootCmd = &cobra.Command{
		Use:           "tutormind",
		Short:         "Chat with AI tutor personas and practice topic quizzes.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	serveCmd = &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP server",
		RunE:  runServe,
	}

	migrateCmd = &cobra.Command{
		Use:   "migrate",
		Short: "Initialize the database schema",
		RunE: func(cmd *cobra.Command, _ []string) error {
			p, err := loadProfile(cmd)
			if err != nil {
				return err
			}
			s, err := openStore(cmd.Context(), p)
			if err != nil {
				return err
			}
			return s.Close()
		},
	}

	personaCmd = &cobra.Command{
		Use:   "persona",
		Short: "Manage personas",
	}

	tokenCmd = &cobra.Command{
		Use:   "token <user-id> <name>",
		Short: "Issue a bearer token for development",
		Args:  cobra.ExactArgs(2),
		RunE:  runToken,
	}
)

func init() {
	profile.SetDefaults(v)

	flags := rootCmd.PersistentFlags()
	flags.String("config", "", "path of a config file (yaml, toml or json)")
	flags.String("mode", "dev", `mode of server, can be "prod" or "dev" or "demo"`)
	flags.String("addr", "", "address of server")
	flags.Int("port", 8081, "port of server")
	flags.String("data", "", "data directory")
	flags.String("driver", "sqlite", "database driver, sqlite or postgres")
	flags.String("dsn", "", "database source name")
	for _, name := range []string{"mode", "addr", "port", "data", "driver", "dsn"} {
		if err := v.BindPFlag(name, flags.Lookup(name)); err != nil {
			panic(err)
		}
	}
	profile.BindEnv(v)

	tokenCmd.Flags().Duration("ttl", 24*time.Hour, "token lifetime, 0 for no expiry")

	personaCmd.AddCommand(
		personaStatusCmd("activate", true),
		personaStatusCmd("deactivate", false),
	)
	rootCmd.AddCommand(serveCmd, migrateCmd, personaCmd, tokenCmd)
}

func main() {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		fmt.Fprintf(os.Stderr, "failed to load .env: %v\n", err)
	}
	if err := rootCmd.Execute(); err != nil {
		slog.Error("command failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func loadProfile(cmd *cobra.Command) (*profile.Profile, error) {
	if path, _ := cmd.Flags().GetString("config"); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.Wrapf(err, "failed to read config file %s", path)
		}
	}

	p := profile.FromViper(v)
	p.Version = version
	setupLogger(p)
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return p, nil
}

func setupLogger(p *profile.Profile) {
	var handler slog.Handler
	if p.IsDev() {
		handler = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug})
	} else {
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo})
	}
	slog.SetDefault(slog.New(handler).With(slog.String("version", p.Version)))
}

func openStore(ctx context.Context, p *profile.Profile) (*store.Store, error) {
	driver, err := db.NewDBDriver(p)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create db driver")
	}
	s := store.New(driver, p)
	if err := s.Migrate(ctx); err != nil {
		_ = s.Close()
		return nil, errors.Wrap(err, "failed to migrate")
	}
	return s, nil
}

func runServe(cmd *cobra.Command, _ []string) error {
	p, err := loadProfile(cmd)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	s, err := openStore(ctx, p)
	if err != nil {
		return err
	}

	var llm ai.LLMService
	if p.IsAIEnabled() {
		if llm, err = ai.NewLLMService(ai.NewLLMConfigFromProfile(p)); err != nil {
			_ = s.Close()
			return errors.Wrap(err, "failed to create LLM service")
		}
		slog.Info("generation service ready", slog.String("provider", llm.Provider()), slog.String("model", llm.Model()))
	} else {
		slog.Warn("no generation provider configured, chat and quiz endpoints are unavailable")
	}

	return server.NewServer(p, s, llm).Start(ctx)
}

func personaStatusCmd(use string, active bool) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <persona-id>",
		Short: "Mark a persona as " + lo.Ternary(active, "active", "inactive"),
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 32)
			if err != nil {
				return errors.Errorf("invalid persona id %q", args[0])
			}
			p, err := loadProfile(cmd)
			if err != nil {
				return err
			}
			s, err := openStore(cmd.Context(), p)
			if err != nil {
				return err
			}
			defer s.Close()

			persona, err := s.UpdatePersona(cmd.Context(), &store.UpdatePersona{ID: int32(id), IsActive: &active})
			if err != nil {
				return errors.Wrap(err, "failed to update persona")
			}
			if persona == nil {
				return errors.Errorf("persona %d not found", id)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "persona %d (%s) is now %sd\n", persona.ID, persona.Name, use)
			return nil
		},
	}
}

func runToken(cmd *cobra.Command, args []string) error {
	userID, err := strconv.ParseInt(args[0], 10, 32)
	if err != nil {
		return errors.Errorf("invalid user id %q", args[0])
	}
	ttl, err := cmd.Flags().GetDuration("ttl")
	if err != nil {
		return err
	}
	p, err := loadProfile(cmd)
	if err != nil {
		return err
	}

	token, err := auth.NewAuthenticator(p.Secret).IssueToken(int32(userID), args[1], ttl)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), token)
	return nil
}
