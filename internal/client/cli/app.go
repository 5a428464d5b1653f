// Package cli implements a one-shot command-line client for the registry.
package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"

	"github.com/dmitrijs2005/userledger/internal/api"
	"github.com/dmitrijs2005/userledger/internal/models"
	"github.com/dmitrijs2005/userledger/internal/shared"
)

var ErrUsage = errors.New("usage")

const seedBytes = 16

// Registry is the command surface the CLI drives.
type Registry interface {
	Register(ctx context.Context, profile models.Profile) (*api.ExecuteResponse, error)
	SessionStart(ctx context.Context, seed string) (*api.ExecuteResponse, error)
	SessionEnd(ctx context.Context, seed string) (*api.ExecuteResponse, error)
	SessionRefresh(ctx context.Context, oldSeed, newSeed string) (*api.ExecuteResponse, error)
	SetSessionTimeout(ctx context.Context, userID, seconds uint64) (*api.ExecuteResponse, error)
	Migrate(ctx context.Context) (*api.ExecuteResponse, error)
	Select(ctx context.Context, fields []string, wallet *string) (*api.SelectResponse, error)
	Session(ctx context.Context, address, seed string) (*models.Session, error)
	UserByID(ctx context.Context, id uint64) (*models.User, error)
	UserByAddress(ctx context.Context, address string) (*models.User, error)
}

type App struct {
	registry Registry
	out      io.Writer
}

func NewApp(r Registry, out io.Writer) *App {
	return &App{registry: r, out: out}
}

const helpText = `Commands:
  register [profile-json]
  session-start [seed]
  session-end <seed>
  session-refresh <old-seed> <new-seed>
  set-timeout <user-id> <seconds>
  migrate
  select [-wallet <address>] [field...]
  session <address> <seed>
  user id <user-id>
  user address <address>`

// Run executes one command and prints its result as JSON.
func (a *App) Run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		fmt.Fprintln(a.out, helpText)
		return ErrUsage
	}
	cmd, args := args[0], args[1:]

	var (
		result any
		err    error
	)
	switch cmd {
	case "help":
		fmt.Fprintln(a.out, helpText)
		return nil
	case "register":
		var profile models.Profile
		if len(args) > 0 {
			if err := json.Unmarshal([]byte(args[0]), &profile); err != nil {
				return fmt.Errorf("profile: %w", err)
			}
		}
		result, err = a.registry.Register(ctx, profile)
	case "session-start":
		if len(args) > 1 {
			return usage("session-start [seed]")
		}
		result, err = a.sessionStart(ctx, args)
	case "session-end":
		if len(args) != 1 {
			return usage("session-end <seed>")
		}
		result, err = a.registry.SessionEnd(ctx, args[0])
	case "session-refresh":
		if len(args) != 2 {
			return usage("session-refresh <old-seed> <new-seed>")
		}
		result, err = a.registry.SessionRefresh(ctx, args[0], args[1])
	case "set-timeout":
		if len(args) != 2 {
			return usage("set-timeout <user-id> <seconds>")
		}
		id, perr := strconv.ParseUint(args[0], 10, 64)
		if perr != nil {
			return fmt.Errorf("user id: %w", perr)
		}
		secs, perr := strconv.ParseUint(args[1], 10, 64)
		if perr != nil {
			return fmt.Errorf("seconds: %w", perr)
		}
		result, err = a.registry.SetSessionTimeout(ctx, id, secs)
	case "migrate":
		result, err = a.registry.Migrate(ctx)
	case "select":
		var wallet *string
		if len(args) >= 2 && args[0] == "-wallet" {
			wallet = &args[1]
			args = args[2:]
		}
		var fields []string
		if len(args) > 0 {
			fields = args
		}
		result, err = a.registry.Select(ctx, fields, wallet)
	case "session":
		if len(args) != 2 {
			return usage("session <address> <seed>")
		}
		var s *models.Session
		s, err = a.registry.Session(ctx, args[0], args[1])
		if err == nil && s != nil {
			result = s
		}
	case "user":
		result, err = a.user(ctx, args)
	default:
		return fmt.Errorf("%w: unknown command %q", ErrUsage, cmd)
	}
	if err != nil {
		return err
	}
	return a.print(result)
}

// sessionStart generates a seed when none is given and reports it, since
// the seed is needed again to end or refresh the session.
func (a *App) sessionStart(ctx context.Context, args []string) (*api.ExecuteResponse, error) {
	seed := ""
	if len(args) == 1 {
		seed = args[0]
	} else {
		s, err := shared.MakeRandHexString(seedBytes)
		if err != nil {
			return nil, fmt.Errorf("seed: %w", err)
		}
		seed = s
	}
	resp, err := a.registry.SessionStart(ctx, seed)
	if err != nil {
		return nil, err
	}
	if len(args) == 0 {
		resp.Attributes = append(resp.Attributes, api.Attribute{Key: "seed", Value: seed})
	}
	return resp, nil
}

func (a *App) user(ctx context.Context, args []string) (*models.User, error) {
	if len(args) != 2 {
		return nil, usage("user id <user-id> | user address <address>")
	}
	switch args[0] {
	case "id":
		id, err := strconv.ParseUint(args[1], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("user id: %w", err)
		}
		return a.registry.UserByID(ctx, id)
	case "address":
		return a.registry.UserByAddress(ctx, args[1])
	default:
		return nil, usage("user id <user-id> | user address <address>")
	}
}

func (a *App) print(v any) error {
	enc := json.NewEncoder(a.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func usage(s string) error {
	return fmt.Errorf("%w: %s", ErrUsage, s)
}
