package main

import (
	"os"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"go-proposal-review/internal/config"
	"go-proposal-review/internal/repository"
	"go-proposal-review/internal/seed"
	"go-proposal-review/pkg/database"
	"go-proposal-review/pkg/logger"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var envFiles []string

	root := &cobra.Command{
		Use:          "api",
		Short:        "Proposal review API server",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd, envFiles)
		},
	}
	root.PersistentFlags().StringSliceVar(&envFiles, "env-file", []string{".env", ".env.local"}, "env files to load before reading the environment")

	root.AddCommand(
		&cobra.Command{
			Use:   "serve",
			Short: "Run the HTTP and WebSocket server (default)",
			RunE: func(cmd *cobra.Command, _ []string) error {
				return runServe(cmd, envFiles)
			},
		},
		&cobra.Command{
			Use:   "migrate",
			Short: "Create or update the database schema",
			RunE: func(cmd *cobra.Command, _ []string) error {
				_, log, db, err := bootstrap(envFiles)
				if err != nil {
					return err
				}
				if err := database.Migrate(db); err != nil {
					return errors.Wrap(err, "migrate")
				}
				log.Info("Database migrated")
				return nil
			},
		},
		newSeedCmd(&envFiles),
	)
	return root
}

func newSeedCmd(envFiles *[]string) *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Create the default admin and, with --file, users from a YAML file",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, log, db, err := bootstrap(*envFiles)
			if err != nil {
				return err
			}
			users := repository.NewUserRepo(db)
			if err := seed.EnsureAdmin(cmd.Context(), users, cfg.Admin, log); err != nil {
				return err
			}
			if file == "" {
				return nil
			}

			entries, err := seed.LoadUsers(file)
			if err != nil {
				return err
			}
			created, err := seed.Apply(cmd.Context(), users, entries, log)
			if err != nil {
				return err
			}
			log.WithField("created", created).Info("Seed complete")
			return nil
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "YAML file with a users list")
	return cmd
}

// bootstrap loads configuration, builds the root logger and connects to the database.
func bootstrap(envFiles []string) (*config.Configuration, *logrus.Logger, *gorm.DB, error) {
	cfg, err := config.Load(envFiles...)
	if err != nil {
		return nil, nil, nil, err
	}
	log := logger.New(cfg.LogLevel, cfg.LogFormat)

	db, err := database.ConnectDB(cfg.Database, log)
	if err != nil {
		return nil, nil, nil, err
	}
	return cfg, log, db, nil
}
