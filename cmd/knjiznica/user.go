package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/erazemk/knjiznica/internal/auth"
	"github.com/erazemk/knjiznica/internal/model"
	"github.com/erazemk/knjiznica/internal/store"
)

func newUserCmd(g *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Manage accounts",
	}
	cmd.AddCommand(newUserAddCmd(g), newUserListCmd(g))
	return cmd
}

func newUserAddCmd(g *globalFlags) *cobra.Command {
	var name, email, role string

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Create an account, prompting for its password",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			r, err := model.ParseRole(role)
			if err != nil {
				return err
			}
			if strings.TrimSpace(name) == "" {
				name = email
			}

			password, err := readPassword(cmd.InOrStdin(), cmd.OutOrStdout())
			if err != nil {
				return err
			}
			if err := model.ValidatePassword(password); err != nil {
				return err
			}
			hash, err := auth.HashPassword(password)
			if err != nil {
				return err
			}

			cfg, err := g.config()
			if err != nil {
				return err
			}
			database, err := openDatabase(cfg.DBPath)
			if err != nil {
				return err
			}
			defer database.Close()

			user, err := store.CreateUser(cmd.Context(), database, store.NewUser{
				Name:         name,
				Email:        email,
				PasswordHash: hash,
				Role:         r,
			})
			if errors.Is(err, store.ErrConflict) {
				return fmt.Errorf("an account with email %s already exists", email)
			}
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Created %s %s (id %d)\n", user.Role, user.Email, user.ID)
			return nil
		},
	}

	cmd.Flags().StringVar(&email, "email", "", "account email")
	cmd.Flags().StringVar(&name, "name", "", "display name (default: the email)")
	cmd.Flags().StringVar(&role, "role", string(model.RoleUser), "role: user, librarian or admin")
	cmd.MarkFlagRequired("email")
	return cmd
}

func newUserListCmd(g *globalFlags) *cobra.Command {
	var role string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List accounts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var r model.Role
			if role != "" {
				parsed, err := model.ParseRole(role)
				if err != nil {
					return err
				}
				r = parsed
			}

			cfg, err := g.config()
			if err != nil {
				return err
			}
			database, err := openDatabase(cfg.DBPath)
			if err != nil {
				return err
			}
			defer database.Close()

			users, err := store.ListUsers(cmd.Context(), database, r)
			if err != nil {
				return err
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tEMAIL\tNAME\tROLE")
			for _, u := range users {
				fmt.Fprintf(tw, "%d\t%s\t%s\t%s\n", u.ID, u.Email, u.Name, u.Role)
			}
			return tw.Flush()
		},
	}

	cmd.Flags().StringVar(&role, "role", "", "only list accounts with this role")
	return cmd
}

// readPassword prompts twice without echo when stdin is a terminal, and
// reads a single line otherwise.
func readPassword(in io.Reader, out io.Writer) (string, error) {
	f, ok := in.(*os.File)
	if !ok || !term.IsTerminal(int(f.Fd())) {
		line, err := bufio.NewReader(in).ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return "", fmt.Errorf("reading password: %w", err)
		}
		return strings.TrimSpace(line), nil
	}

	prompt := func(label string) (string, error) {
		fmt.Fprint(out, label)
		b, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(out)
		if err != nil {
			return "", fmt.Errorf("reading password: %w", err)
		}
		return strings.TrimSpace(string(b)), nil
	}

	password, err := prompt("Password: ")
	if err != nil {
		return "", err
	}
	confirm, err := prompt("Repeat password: ")
	if err != nil {
		return "", err
	}
	if password != confirm {
		return "", errors.New("passwords do not match")
	}
	return password, nil
}
