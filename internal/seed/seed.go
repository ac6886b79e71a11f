// Package seed creates the users a fresh deployment needs.
package seed

import (
	"context"
	"os"
	"strings"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"go-proposal-review/internal/config"
	"go-proposal-review/internal/model"
	"go-proposal-review/internal/repository"
	"go-proposal-review/pkg/validator"
)

const seededBy = "seed"

// User is one entry of a seed file.
type User struct {
	Email    string     `yaml:"email" validate:"required,email"`
	Name     string     `yaml:"name" validate:"required,notblank"`
	Role     model.Role `yaml:"role" validate:"required,oneof=ADMIN PRODUCT_MANAGER STAKEHOLDER"`
	Password string     `yaml:"password" validate:"required,min=8"`
}

type file struct {
	Users []User `yaml:"users"`
}

// Parse decodes a seed document and validates every entry.
func Parse(data []byte) ([]User, error) {
	var f file
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, errors.Wrap(err, "seed: decode yaml")
	}
	for i := range f.Users {
		f.Users[i].Email = strings.ToLower(strings.TrimSpace(f.Users[i].Email))
		if err := validator.Validate(&f.Users[i]); err != nil {
			return nil, errors.Wrapf(err, "seed: user #%d", i+1)
		}
	}
	return f.Users, nil
}

// LoadUsers reads and parses a seed file.
func LoadUsers(path string) ([]User, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "seed: read file")
	}
	return Parse(data)
}

// Apply creates every user that does not exist yet and returns how many were created.
// Existing users are left untouched.
func Apply(ctx context.Context, users repository.UserRepository, entries []User, log logrus.FieldLogger) (int, error) {
	if log == nil {
		log = logrus.StandardLogger()
	}

	created := 0
	for _, entry := range entries {
		_, err := users.FindByEmail(ctx, entry.Email)
		if err == nil {
			log.WithField("email", entry.Email).Debug("seed: user exists, skipping")
			continue
		}
		if !errors.Is(err, repository.ErrNotFound) {
			return created, err
		}

		user := &model.User{
			Email:     entry.Email,
			Name:      entry.Name,
			Role:      entry.Role,
			IsActive:  true,
			CreatedBy: seededBy,
		}
		user.UpdatedBy = seededBy
		if err := user.SetPassword(entry.Password); err != nil {
			return created, errors.Wrap(err, "seed: hash password")
		}
		if err := users.Create(ctx, user); err != nil {
			return created, err
		}
		created++
		log.WithFields(logrus.Fields{"email": entry.Email, "role": entry.Role}).Info("seed: user created")
	}
	return created, nil
}

// EnsureAdmin creates the configured administrator when no account uses its
// email. Without ADMIN_PASSWORD nothing is created.
func EnsureAdmin(ctx context.Context, users repository.UserRepository, opts config.AdminOptions, log logrus.FieldLogger) error {
	if log == nil {
		log = logrus.StandardLogger()
	}
	if opts.Password == "" {
		log.Warn("seed: ADMIN_PASSWORD not set, skipping default admin")
		return nil
	}

	_, err := Apply(ctx, users, []User{{
		Email:    strings.ToLower(strings.TrimSpace(opts.Email)),
		Name:     opts.Name,
		Role:     model.RoleAdmin,
		Password: opts.Password,
	}}, log)
	return err
}
