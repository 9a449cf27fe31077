// Package admincli implements the operator commands of laplink-cli: creating
// the first admin account and changing user roles. Self-registration never
// grants the admin role, so this is the only way to get one.
package admincli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/dmitrijs2005/laplink/internal/common"
	"github.com/dmitrijs2005/laplink/internal/cryptox"
	"github.com/dmitrijs2005/laplink/internal/server/models"
	"github.com/dmitrijs2005/laplink/internal/server/repositories/users"
	"github.com/google/uuid"
	"github.com/spf13/pflag"
)

const minPasswordLen = 6

var ErrUsage = errors.New("usage error")

const usage = `Usage: laplink-cli [--dsn DSN] <command> [flags]

Commands:
  promote <email>                         grant the admin role
  demote <email>                          revoke the admin role
  create-admin --email E [--name N]       create a verified admin (password is prompted)
`

type App struct {
	users  users.Repository
	hasher cryptox.Hasher
	in     *bufio.Reader
	out    io.Writer
}

func NewApp(repo users.Repository, hasher cryptox.Hasher, in io.Reader, out io.Writer) *App {
	return &App{users: repo, hasher: hasher, in: bufio.NewReader(in), out: out}
}

// Usage prints the command summary.
func (a *App) Usage() {
	fmt.Fprint(a.out, usage)
}

// Run executes the command in args (without global flags).
func (a *App) Run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("%w: missing command", ErrUsage)
	}

	switch args[0] {
	case "promote":
		return a.setRole(ctx, args[1:], models.RoleAdmin)
	case "demote":
		return a.setRole(ctx, args[1:], models.RoleUser)
	case "create-admin":
		return a.createAdmin(ctx, args[1:])
	case "help", "-h", "--help":
		a.Usage()
		return nil
	default:
		return fmt.Errorf("%w: unknown command %q", ErrUsage, args[0])
	}
}

func (a *App) setRole(ctx context.Context, args []string, role models.Role) error {
	if len(args) != 1 {
		return fmt.Errorf("%w: expected exactly one email", ErrUsage)
	}

	u, err := a.users.GetByEmail(ctx, args[0])
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return fmt.Errorf("no user with email %s", args[0])
		}
		return err
	}
	if u.Role == role {
		fmt.Fprintf(a.out, "%s already has role %s\n", u.Email, role)
		return nil
	}
	if err := a.users.SetRole(ctx, u.ID, role); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "%s is now %s\n", u.Email, role)
	return nil
}

func (a *App) createAdmin(ctx context.Context, args []string) error {
	fs := pflag.NewFlagSet("create-admin", pflag.ContinueOnError)
	fs.SetOutput(io.Discard)
	email := fs.String("email", "", "admin email")
	name := fs.String("name", "", "display name (prompted when empty)")
	phone := fs.String("phone", "", "contact phone")
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("%w: %v", ErrUsage, err)
	}
	if *email == "" {
		return fmt.Errorf("%w: --email is required", ErrUsage)
	}

	if *name == "" {
		n, err := GetSimpleText(a.in, "Name", a.out)
		if err != nil {
			return err
		}
		*name = n
	}
	if strings.TrimSpace(*name) == "" {
		*name = *email
	}

	password, err := GetPassword(a.out, "Password: ")
	if err != nil {
		return err
	}
	if len(password) < minPasswordLen {
		return fmt.Errorf("password must be at least %d characters", minPasswordLen)
	}
	confirm, err := GetPassword(a.out, "Repeat password: ")
	if err != nil {
		return err
	}
	if password != confirm {
		return errors.New("passwords do not match")
	}

	hash, err := a.hasher.Hash(password)
	if err != nil {
		return err
	}

	if *phone != "" {
		if *phone, err = models.NormalizePhone(*phone); err != nil {
			return fmt.Errorf("invalid phone: %w", err)
		}
	}

	u, err := a.users.Create(ctx, &models.User{
		ID:              uuid.NewString(),
		Name:            strings.TrimSpace(*name),
		Email:           *email,
		Phone:           *phone,
		PasswordHash:    hash,
		Role:            models.RoleAdmin,
		IsEmailVerified: true,
	})
	if err != nil {
		if errors.Is(err, common.ErrAlreadyExists) {
			return fmt.Errorf("%s already exists, use promote instead", *email)
		}
		return err
	}
	fmt.Fprintf(a.out, "admin %s created (%s)\n", u.Email, u.ID)
	return nil
}
