// weavy serves the roles API, the external sign-in gate and the plugin
// catalog, and carries the admin commands that manage its database.
//
//	weavy [--env-file FILE] [serve]
//	weavy migrate
//	weavy cleanup
//	weavy user create --username NAME [--name NAME] [--email EMAIL]
//	weavy token create --user ID --name NAME [--expires 720h]
//	weavy token list --user ID
//	weavy token revoke --id ID
package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/pflag"

	"github.com/weavy/weavy/pkg/config"
	"github.com/weavy/weavy/pkg/observability"
)

// version is stamped at build time with -ldflags "-X main.version=..."
var version = "dev"

func main() {
	if err := run(context.Background(), os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, out io.Writer) error {
	var envFile string

	flagSet := pflag.NewFlagSet("weavy", pflag.ContinueOnError)
	flagSet.SetInterspersed(false)
	flagSet.SetOutput(out)
	flagSet.StringVar(&envFile, "env-file", "", "load environment variables from this file (default: ./.env if present)")
	flagSet.BoolP("help", "h", false, "show help")

	if err := flagSet.Parse(args); err != nil {
		if err == pflag.ErrHelp {
			printHelp(out, flagSet)
			return nil
		}
		return err
	}
	if help, _ := flagSet.GetBool("help"); help {
		printHelp(out, flagSet)
		return nil
	}

	command, rest := "serve", flagSet.Args()
	if len(rest) > 0 {
		command, rest = rest[0], rest[1:]
	}
	if command == "version" {
		fmt.Fprintf(out, "weavy %s\n", version)
		return nil
	}

	var envFiles []string
	if envFile != "" {
		envFiles = append(envFiles, envFile)
	}
	cfg, err := config.LoadConfig(envFiles...)
	if err != nil {
		return err
	}
	logger := observability.NewLogger(cfg.Observability.LogLevel, os.Stderr)

	switch command {
	case "serve":
		return serve(ctx, cfg, logger)
	case "migrate":
		return migrate(ctx, cfg, logger)
	case "cleanup":
		return cleanup(ctx, cfg, logger)
	case "user":
		return userCommand(ctx, cfg, logger, rest, out)
	case "token":
		return tokenCommand(ctx, cfg, logger, rest, out)
	default:
		printHelp(out, flagSet)
		return fmt.Errorf("unknown command %q", command)
	}
}

func printHelp(out io.Writer, flagSet *pflag.FlagSet) {
	fmt.Fprintf(out, `Usage: weavy [flags] <command> [args]

Commands:
  serve     run the HTTP server (default)
  migrate   apply database migrations and exit
  cleanup   remove expired sessions and tokens once and exit
  user      create local users for API clients
  token     create, list and revoke API tokens
  version   print the version

Flags:
%s`, flagSet.FlagUsages())
}
