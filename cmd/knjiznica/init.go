package main

import (
	"context"
	"crypto/rand"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"math/big"
	"os"

	"github.com/spf13/cobra"

	"github.com/erazemk/knjiznica/internal/auth"
	"github.com/erazemk/knjiznica/internal/model"
	"github.com/erazemk/knjiznica/internal/store"
)

const defaultAdminEmail = "admin@knjiznica.local"

func newInitCmd(g *globalFlags) *cobra.Command {
	var adminEmail string

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create a new database with an admin account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := g.config()
			if err != nil {
				return err
			}
			if _, err := os.Stat(cfg.DBPath); err == nil {
				return fmt.Errorf("database %s already exists", cfg.DBPath)
			} else if !errors.Is(err, os.ErrNotExist) {
				return err
			}

			database, password, err := initDatabase(cfg.DBPath, adminEmail)
			if err != nil {
				return err
			}
			defer database.Close()

			printInitResult(cmd.OutOrStdout(), cfg.DBPath, adminEmail, password)
			return nil
		},
	}

	cmd.Flags().StringVarP(&adminEmail, "admin", "u", defaultAdminEmail, "admin account email")
	return cmd
}

// initDatabase creates a new database, applies the schema and creates the
// admin account with a random password. The file is removed on failure.
func initDatabase(path, adminEmail string) (*sql.DB, string, error) {
	database, err := openDatabase(path)
	if err != nil {
		os.Remove(path)
		return nil, "", err
	}

	fail := func(err error) (*sql.DB, string, error) {
		database.Close()
		os.Remove(path)
		return nil, "", err
	}

	password, err := generatePassword(16)
	if err != nil {
		return fail(fmt.Errorf("generating password: %w", err))
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return fail(err)
	}

	_, err = store.CreateUser(context.Background(), database, store.NewUser{
		Name:         "Administrator",
		Email:        adminEmail,
		PasswordHash: hash,
		Role:         model.RoleAdmin,
	})
	if err != nil {
		return fail(fmt.Errorf("creating admin user: %w", err))
	}

	return database, password, nil
}

func printInitResult(w io.Writer, dbPath, email, password string) {
	fmt.Fprintf(w, "Database created: %s\n", dbPath)
	fmt.Fprintln(w, "Schema initialized.")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Admin account created:")
	fmt.Fprintf(w, "  Email:    %s\n", email)
	fmt.Fprintf(w, "  Password: %s\n", password)
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Save this password, it cannot be shown again.")
	fmt.Fprintln(w, "It can be changed after logging in or reset by email.")
}

// generatePassword creates a random password of the given length.
func generatePassword(length int) (string, error) {
	const charset = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789!@#$%&*"
	result := make([]byte, length)
	for i := range result {
		n, err := rand.Int(rand.Reader, big.NewInt(int64(len(charset))))
		if err != nil {
			return "", err
		}
		result[i] = charset[n.Int64()]
	}
	return string(result), nil
}
