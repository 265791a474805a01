package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/pflag"

	"github.com/weavy/weavy/pkg/auth"
	"github.com/weavy/weavy/pkg/config"
	"github.com/weavy/weavy/pkg/observability"
	"github.com/weavy/weavy/pkg/users"
)

// tokenCommand manages API tokens: create, list and revoke
func tokenCommand(ctx context.Context, cfg *config.Config, logger *observability.Logger, args []string, out io.Writer) error {
	if len(args) == 0 {
		return errors.New("usage: weavy token <create|list|revoke> [flags]")
	}

	var (
		userID  int64
		tokenID int64
		name    string
		expires time.Duration
	)
	flagSet := pflag.NewFlagSet("token "+args[0], pflag.ContinueOnError)
	flagSet.SetOutput(out)

	switch args[0] {
	case "create":
		flagSet.Int64Var(&userID, "user", 0, "id of the user the token acts as")
		flagSet.StringVar(&name, "name", "", "label shown when listing tokens")
		flagSet.DurationVar(&expires, "expires", 0, "lifetime of the token, e.g. 720h (default: never expires)")
	case "list":
		flagSet.Int64Var(&userID, "user", 0, "id of the user whose tokens to list")
	case "revoke":
		flagSet.Int64Var(&tokenID, "id", 0, "id of the token to revoke")
	default:
		return fmt.Errorf("unknown token command %q", args[0])
	}
	if err := flagSet.Parse(args[1:]); err != nil {
		return err
	}

	db, err := openDatabase(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer db.Close()
	store := auth.NewTokenStore(db)

	switch args[0] {
	case "create":
		if userID <= 0 {
			return errors.New("--user is required")
		}
		if _, err := users.NewStore(db).Get(ctx, userID); err != nil {
			return err
		}
		var expiresAt *time.Time
		if expires > 0 {
			t := time.Now().UTC().Add(expires)
			expiresAt = &t
		}
		token, plaintext, err := store.Create(ctx, userID, name, expiresAt)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "Created token %d (%s) for user %d.\n", token.ID, token.Name, token.UserID)
		fmt.Fprintln(out, "Store it now, it will not be shown again:")
		fmt.Fprintln(out, plaintext)
		return nil

	case "list":
		if userID <= 0 {
			return errors.New("--user is required")
		}
		tokens, err := store.List(ctx, userID)
		if err != nil {
			return err
		}
		return printTokens(out, tokens, time.Now().UTC())

	default:
		if tokenID <= 0 {
			return errors.New("--id is required")
		}
		if err := store.Revoke(ctx, tokenID); err != nil {
			return err
		}
		fmt.Fprintf(out, "Revoked token %d.\n", tokenID)
		return nil
	}
}

func printTokens(out io.Writer, tokens []*auth.APIToken, now time.Time) error {
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tPREFIX\tCREATED\tEXPIRES\tLAST USED\tSTATUS")
	for _, t := range tokens {
		status := "active"
		switch {
		case t.RevokedAt != nil:
			status = "revoked"
		case !t.Usable(now):
			status = "expired"
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%s\t%s\n",
			t.ID, t.Name, t.TokenPrefix, formatTime(&t.CreatedAt), formatTime(t.ExpiresAt), formatTime(t.LastUsedAt), status)
	}
	return tw.Flush()
}

func formatTime(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return t.UTC().Format(time.RFC3339)
}

// userCommand creates local users that API tokens can be issued to
func userCommand(ctx context.Context, cfg *config.Config, logger *observability.Logger, args []string, out io.Writer) error {
	if len(args) == 0 || args[0] != "create" {
		return errors.New("usage: weavy user create --username NAME [--name NAME] [--email EMAIL]")
	}

	var u users.User
	flagSet := pflag.NewFlagSet("user create", pflag.ContinueOnError)
	flagSet.SetOutput(out)
	flagSet.StringVar(&u.Username, "username", "", "unique username")
	flagSet.StringVar(&u.Name, "name", "", "display name")
	flagSet.StringVar(&u.Email, "email", "", "email address")
	if err := flagSet.Parse(args[1:]); err != nil {
		return err
	}

	db, err := openDatabase(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := users.NewStore(db).Create(ctx, &u); err != nil {
		return err
	}
	fmt.Fprintf(out, "Created user %d (%s).\n", u.ID, u.Username)
	return nil
}
