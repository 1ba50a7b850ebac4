// Package main provides the operator CLI for evaluation, migrations, the
// review log, access tokens and MCP client registration.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/goccy/go-json"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/health-screening-server/internal/config"
	"github.com/health-screening-server/internal/database"
	"github.com/health-screening-server/internal/domain"
	"github.com/health-screening-server/internal/middleware"
	"github.com/health-screening-server/internal/review"
	"github.com/health-screening-server/internal/service"
	"github.com/health-screening-server/internal/setup"
)

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "failed to load .env: %v\n", err)
		os.Exit(1)
	}

	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:          "screening-cli",
		Short:        "Health screening recommendation tools",
		SilenceUsage: true,
	}

	rootCmd.AddCommand(evaluateCmd())
	rootCmd.AddCommand(rulesCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(reviewsCmd())
	rootCmd.AddCommand(tokenCmd())
	rootCmd.AddCommand(mcpCmd())

	return rootCmd
}

func newLogger(cmd *cobra.Command) *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(cmd.ErrOrStderr())
	logger.SetLevel(logrus.WarnLevel)
	return logger
}

func evaluateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "evaluate",
		Short: "Evaluate a questionnaire snapshot JSON file and print the recommendations",
		RunE: func(cmd *cobra.Command, args []string) error {
			file, _ := cmd.Flags().GetString("file")

			var reader io.Reader = cmd.InOrStdin()
			if file != "-" {
				f, err := os.Open(file)
				if err != nil {
					return fmt.Errorf("opening snapshot: %w", err)
				}
				defer f.Close()
				reader = f
			}

			var snapshot domain.QuestionnaireSnapshot
			if err := json.NewDecoder(reader).Decode(&snapshot); err != nil {
				return fmt.Errorf("decoding snapshot: %w", err)
			}
			if err := domain.ValidateSnapshot(&snapshot); err != nil {
				return err
			}

			result, err := service.NewRecommendationEngine(newLogger(cmd)).Evaluate(&snapshot)
			if err != nil {
				return err
			}

			encoder := json.NewEncoder(cmd.OutOrStdout())
			encoder.SetIndent("", "  ")
			return encoder.Encode(result)
		},
	}
	cmd.Flags().StringP("file", "f", "-", "Snapshot JSON file, - for stdin")
	return cmd
}

func rulesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rules",
		Short: "List the screening rules in evaluation order",
		RunE: func(cmd *cobra.Command, args []string) error {
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "#\tCODE\tNAME\tDESCRIPTION")
			for i, rule := range service.NewRecommendationEngine(newLogger(cmd)).Rules() {
				fmt.Fprintf(w, "%d\t%s\t%s\t%s\n", i+1, rule.Code, rule.Name, rule.Description)
			}
			return w.Flush()
		},
	}
}

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run PostgreSQL schema migrations",
	}
	cmd.PersistentFlags().String("dir", "", "Path to a migrations directory; empty uses the built-in schema")

	withRunner := func(cmd *cobra.Command, fn func(ctx context.Context, runner *database.MigrationRunner) error) error {
		dir, _ := cmd.Flags().GetString("dir")

		configManager, err := config.NewManager()
		if err != nil {
			return err
		}

		runner, err := database.NewMigrationRunner(configManager.GetDatabaseURL(), dir, newLogger(cmd))
		if err != nil {
			return err
		}
		defer runner.Close()

		return fn(cmd.Context(), runner)
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRunner(cmd, func(ctx context.Context, runner *database.MigrationRunner) error {
				if err := runner.Up(ctx); err != nil {
					return err
				}
				return printVersion(cmd, runner)
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "down",
		Short: "Roll back the last migration",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRunner(cmd, func(ctx context.Context, runner *database.MigrationRunner) error {
				if err := runner.Down(ctx); err != nil {
					return err
				}
				return printVersion(cmd, runner)
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Show the current schema version",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRunner(cmd, func(ctx context.Context, runner *database.MigrationRunner) error {
				return printVersion(cmd, runner)
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "force VERSION",
		Short: "Set the schema version without running migrations, clearing a dirty state",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			version, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("invalid version %q: %w", args[0], err)
			}
			return withRunner(cmd, func(ctx context.Context, runner *database.MigrationRunner) error {
				if err := runner.Force(version); err != nil {
					return err
				}
				return printVersion(cmd, runner)
			})
		},
	})

	return cmd
}

func printVersion(cmd *cobra.Command, runner *database.MigrationRunner) error {
	status, err := runner.Status()
	if err != nil {
		return err
	}
	if !status.Applied {
		fmt.Fprintln(cmd.OutOrStdout(), "no migrations applied")
		return nil
	}
	fmt.Fprintf(cmd.OutOrStdout(), "schema version %d (dirty: %t)\n", status.Version, status.Dirty)
	return nil
}

func reviewsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reviews",
		Short: "Export, import or count the review log",
	}
	cmd.PersistentFlags().String("db", config.LoadLiteConfig().ReviewDBPath(), "Review log SQLite file")
	cmd.PersistentFlags().String("database-url", "", "PostgreSQL URL; overrides --db")

	openStore := func(cmd *cobra.Command) (review.Store, error) {
		if url, _ := cmd.Flags().GetString("database-url"); url != "" {
			return review.NewPostgresStoreFromURL(url)
		}
		path, _ := cmd.Flags().GetString("db")
		return review.NewSQLiteStore(path)
	}

	exportCmd := &cobra.Command{
		Use:   "export",
		Short: "Write the review log as JSON",
		RunE: func(cmd *cobra.Command, args []string) error {
			out, _ := cmd.Flags().GetString("out")

			store, err := openStore(cmd)
			if err != nil {
				return err
			}
			defer store.Close()

			if out == "-" {
				_, err := store.ExportJSON(cmd.Context(), cmd.OutOrStdout())
				return err
			}

			f, err := os.Create(out)
			if err != nil {
				return fmt.Errorf("creating export file: %w", err)
			}
			count, err := store.ExportJSON(cmd.Context(), f)
			if closeErr := f.Close(); err == nil {
				err = closeErr
			}
			if err != nil {
				os.Remove(out)
				return fmt.Errorf("exporting review log: %w", err)
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "exported %d review entries to %s\n", count, out)
			return nil
		},
	}
	exportCmd.Flags().StringP("out", "o", "-", "Output file, - for stdout")
	cmd.AddCommand(exportCmd)

	importCmd := &cobra.Command{
		Use:   "import",
		Short: "Load review entries from a JSON export",
		RunE: func(cmd *cobra.Command, args []string) error {
			in, _ := cmd.Flags().GetString("in")

			f, err := os.Open(in)
			if err != nil {
				return fmt.Errorf("opening import file: %w", err)
			}
			defer f.Close()

			store, err := openStore(cmd)
			if err != nil {
				return err
			}
			defer store.Close()

			imported, skipped, err := store.ImportJSON(cmd.Context(), f)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "imported %d, skipped %d\n", imported, skipped)
			return nil
		},
	}
	importCmd.Flags().StringP("in", "i", "", "JSON export file")
	_ = importCmd.MarkFlagRequired("in")
	cmd.AddCommand(importCmd)

	cmd.AddCommand(&cobra.Command{
		Use:   "count",
		Short: "Print the number of review log entries",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openStore(cmd)
			if err != nil {
				return err
			}
			defer store.Close()

			count, err := store.Count(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), count)
			return nil
		},
	})

	return cmd
}

func tokenCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue an access token signed with the configured secret",
		RunE: func(cmd *cobra.Command, args []string) error {
			user, _ := cmd.Flags().GetString("user")
			role, _ := cmd.Flags().GetString("role")
			ttl, _ := cmd.Flags().GetDuration("ttl")

			configManager, err := config.NewManager()
			if err != nil {
				return err
			}
			auth := configManager.GetConfig().Auth

			switch domain.Role(role) {
			case domain.RolePatient, domain.RoleAdmin:
			default:
				return fmt.Errorf("unknown role %q", role)
			}

			token, err := middleware.IssueToken(middleware.AuthConfig{
				Secret: []byte(auth.JWTSecret),
				Issuer: auth.Issuer,
			}, user, domain.Role(role), ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().String("user", "", "User ID placed in the token subject")
	cmd.Flags().String("role", string(domain.RolePatient), "patient or admin")
	cmd.Flags().Duration("ttl", 24*time.Hour, "Token lifetime")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}

func mcpCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mcp",
		Short: "Register the MCP server with a desktop MCP client",
	}
	cmd.PersistentFlags().String("config", "", "Client config file; defaults to the desktop client location")

	configPath := func(cmd *cobra.Command) (string, error) {
		if path, _ := cmd.Flags().GetString("config"); path != "" {
			return path, nil
		}
		return setup.DefaultClientConfigPath()
	}

	installCmd := &cobra.Command{
		Use:   "install",
		Short: "Add or update the health-screening server entry",
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := configPath(cmd)
			if err != nil {
				return err
			}
			binary, _ := cmd.Flags().GetString("binary")
			dataDir, _ := cmd.Flags().GetString("data-dir")
			logLevel, _ := cmd.Flags().GetString("log-level")

			entry, err := setup.Install(setup.Options{
				ConfigPath: path,
				BinaryPath: binary,
				DataDir:    dataDir,
				LogLevel:   logLevel,
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "registered %s -> %s in %s\n", setup.ServerName, entry.Command, path)
			return nil
		},
	}
	installCmd.Flags().String("binary", "", "MCP server binary; searched on PATH when empty")
	installCmd.Flags().String("data-dir", "", "Data directory passed to the server")
	installCmd.Flags().String("log-level", "", "Log level passed to the server")
	cmd.AddCommand(installCmd)

	cmd.AddCommand(&cobra.Command{
		Use:   "uninstall",
		Short: "Remove the health-screening server entry",
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := configPath(cmd)
			if err != nil {
				return err
			}
			removed, err := setup.Uninstall(path)
			if err != nil {
				return err
			}
			if !removed {
				fmt.Fprintln(cmd.OutOrStdout(), "not registered")
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "removed %s from %s\n", setup.ServerName, path)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Show the registration state as JSON",
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := configPath(cmd)
			if err != nil {
				return err
			}
			status, err := setup.GetStatus(path)
			if err != nil {
				return err
			}
			encoder := json.NewEncoder(cmd.OutOrStdout())
			encoder.SetIndent("", "  ")
			return encoder.Encode(status)
		},
	})

	return cmd
}
