package main

import (
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"go-proposal-review/internal/config"
	"go-proposal-review/internal/repository"
	"go-proposal-review/pkg/database"
	"go-proposal-review/pkg/logger"
)

func main() {
	if err := newCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newCmd() *cobra.Command {
	var (
		email    string
		password string
		envFiles []string
	)

	cmd := &cobra.Command{
		Use:          "reset-password",
		Short:        "Set a user's password and sign them out everywhere",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if len(password) < 8 {
				return errors.New("--password must be at least 8 characters")
			}

			cfg, err := config.Load(envFiles...)
			if err != nil {
				return err
			}
			log := logger.New(cfg.LogLevel, cfg.LogFormat)

			db, err := database.ConnectDB(cfg.Database, log)
			if err != nil {
				return err
			}
			users := repository.NewUserRepo(db)

			user, err := users.FindByEmail(cmd.Context(), strings.ToLower(strings.TrimSpace(email)))
			if err != nil {
				return errors.Wrapf(err, "user %s", email)
			}
			if err := user.SetPassword(password); err != nil {
				return errors.Wrap(err, "hash password")
			}
			if err := users.UpdatePassword(cmd.Context(), user.ID, user.Password); err != nil {
				return err
			}
			if err := users.UpdateTokenVersion(cmd.Context(), user.ID, uuid.New().String()); err != nil {
				return err
			}

			log.WithField("email", email).Info("Password reset, existing sessions revoked")
			return nil
		},
	}
	cmd.Flags().StringVar(&email, "email", "admin@example.com", "email of the account to reset")
	cmd.Flags().StringVar(&password, "password", "", "new password")
	cmd.Flags().StringSliceVar(&envFiles, "env-file", []string{".env", ".env.local"}, "env files to load")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}
