// Command moneymanager drives the finance tracker façade from the shell.
// Every command prints its result as JSON on stdout.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"moneymanager/internal/cli"
	"moneymanager/internal/config"
)

const usage = `usage: moneymanager <command> [flags]

commands:
  session                         show the current session
  login     -email -password
  register  -username -email -password
  logout
  dashboard
  incomes   list | add | update | delete
  expenses  list | add | update | delete
  categories list | add | update | delete
  filter    [-type] [-category] [-from] [-to] [-min] [-max] [-keyword] [-sort] [-order]
`

var errUsage = errors.New("invalid usage")

func main() {
	cli.LoadEnvFile()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	os.Exit(run(ctx, os.Args[1:], os.Stdout, os.Stderr))
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 || args[0] == "-h" || args[0] == "help" {
		fmt.Fprint(stderr, usage)
		return 2
	}

	cfg := config.Load()
	logger := cli.SetupLogger(cfg.LogLevel, stderr)
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", "error", err)
		return 1
	}

	app, err := cli.BuildApp(ctx, cfg, logger)
	if err != nil {
		logger.Error("Failed to initialize", "error", err)
		return 1
	}
	defer app.Close()

	cmd := &command{tracker: app.Tracker, out: stdout}
	if err := cmd.dispatch(ctx, args[0], args[1:]); err != nil {
		if errors.Is(err, errUsage) {
			fmt.Fprintf(stderr, "%v\n\n%s", err, usage)
			return 2
		}
		fmt.Fprintln(stderr, "error:", err)
		return 1
	}
	return 0
}
