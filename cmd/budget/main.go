package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"budget/internal/amqp"
	"budget/internal/cli"
	"budget/internal/config"
	"budget/internal/core"
	applog "budget/internal/log"
	"budget/internal/report"
	"budget/internal/services"
)

const usage = `usage: budget <command> [flags] [args]

commands:
  estimate MONTH NUM_RESIDENTS   print the stored data and a cost estimate for MONTH
  update                         pull the spreadsheet into the local database
  show                           print the stored data, most recent first
  history CATEGORY               print a month by year table of one category

flags:
  --db PATH      database to use (default: $SQLITE_DB_PATH or $DATABASE_URI)
  --async        (update) queue the refresh for the worker instead of running it
`

// errUsage marks errors caused by bad arguments.
var errUsage = errors.New("usage")

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	err := run(ctx, logger, os.Args[1:], os.Stdout)
	cancel()

	switch {
	case err == nil:
	case errors.Is(err, errUsage):
		fmt.Fprintf(os.Stderr, "%v\n\n%s", err, usage)
		os.Exit(2)
	default:
		logger.Error("Command failed", applog.FieldError, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, logger *applog.Logger, args []string, out io.Writer) error {
	if len(args) == 0 {
		return fmt.Errorf("%w: missing command", errUsage)
	}
	cfg := config.Load()

	cmd, args := args[0], args[1:]
	fs := flag.NewFlagSet(cmd, flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	fs.StringVar(&cfg.SQLiteDBPath, "db", cfg.SQLiteDBPath, "database path")
	async := fs.Bool("async", false, "queue the refresh")

	positional, err := parseInterspersed(fs, args)
	if err != nil {
		return fmt.Errorf("%w: %v", errUsage, err)
	}

	switch cmd {
	case "estimate":
		if len(positional) != 2 {
			return fmt.Errorf("%w: estimate needs MONTH and NUM_RESIDENTS", errUsage)
		}
		residents, err := strconv.Atoi(positional[1])
		if err != nil || residents < 0 {
			return fmt.Errorf("%w: %q is not a non-negative number of residents", errUsage, positional[1])
		}
		return estimate(ctx, cfg, out, positional[0], residents)
	case "update":
		if len(positional) != 0 {
			return fmt.Errorf("%w: update takes no arguments", errUsage)
		}
		return update(ctx, logger, cfg, out, *async)
	case "show":
		if len(positional) != 0 {
			return fmt.Errorf("%w: show takes no arguments", errUsage)
		}
		return show(ctx, cfg, out)
	case "history":
		if len(positional) != 1 {
			return fmt.Errorf("%w: history needs CATEGORY", errUsage)
		}
		return history(ctx, cfg, out, strings.ToLower(strings.TrimSpace(positional[0])))
	default:
		return fmt.Errorf("%w: unknown command %q", errUsage, cmd)
	}
}

// parseInterspersed parses flags that may appear before, between or after
// positional arguments.
func parseInterspersed(fs *flag.FlagSet, args []string) ([]string, error) {
	var positional []string
	for {
		if err := fs.Parse(args); err != nil {
			return nil, err
		}
		rest := fs.Args()
		if len(rest) == 0 {
			return positional, nil
		}
		positional = append(positional, rest[0])
		args = rest[1:]
	}
}

func estimate(ctx context.Context, cfg *config.Config, out io.Writer, month string, residents int) error {
	store, err := cli.OpenStore(cfg.SQLiteDBPath)
	if err != nil {
		return err
	}
	defer store.Close()

	svc := cli.NewForecastService(store)
	target, err := svc.ParseTarget(month)
	if err != nil {
		return fmt.Errorf("%w: %v", errUsage, err)
	}
	ds, err := svc.Dataset(ctx)
	if err != nil {
		return err
	}

	fmt.Fprintln(out, "All Rent Data:")
	if err := report.Dataset(out, ds); err != nil {
		return err
	}
	fmt.Fprintln(out)

	result, err := svc.Forecast(ctx, target, residents)
	if err != nil {
		return err
	}
	return report.Forecast(out, result)
}

func update(ctx context.Context, logger *applog.Logger, cfg *config.Config, out io.Writer, async bool) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	if async {
		publisher := cli.ConnectAMQP(logger, cfg)
		if publisher == nil {
			return services.ErrNoPublisher
		}
		defer publisher.Close()

		id, err := services.NewRefreshQueue(publisher).RequestRefresh(ctx, amqp.ReasonManual)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "Refresh queued: %s\n", id)
		return nil
	}

	store, err := cli.OpenStore(cfg.SQLiteDBPath)
	if err != nil {
		return err
	}
	defer store.Close()

	refresh, err := cli.NewRefreshService(ctx, logger, cfg, store)
	if err != nil {
		return err
	}
	rep, err := refresh.Refresh(ctx, "", amqp.ReasonManual)
	if rep != nil {
		fmt.Fprintf(out, "%s: %d periods written, %d excluded, %d skipped, %d failed in %s\n",
			cfg.SQLiteDBPath, rep.Built, len(rep.Excluded), len(rep.Skipped), len(rep.Failures),
			rep.Duration.Round(time.Millisecond))
		for _, p := range rep.Duplicates {
			fmt.Fprintf(out, "warning: duplicate period %s\n", p)
		}
		for _, f := range rep.Failures {
			fmt.Fprintf(out, "failed: %v\n", f)
		}
	}
	return err
}

func show(ctx context.Context, cfg *config.Config, out io.Writer) error {
	store, err := cli.OpenStore(cfg.SQLiteDBPath)
	if err != nil {
		return err
	}
	defer store.Close()

	ds, err := cli.NewForecastService(store).Dataset(ctx)
	if err != nil {
		return err
	}
	if len(ds) == 0 {
		return fmt.Errorf("%w: run 'budget update' first", core.ErrEmptyDataset)
	}
	return report.Dataset(out, ds)
}

func history(ctx context.Context, cfg *config.Config, out io.Writer, category string) error {
	store, err := cli.OpenStore(cfg.SQLiteDBPath)
	if err != nil {
		return err
	}
	defer store.Close()

	points, err := cli.NewForecastService(store).History(ctx, category)
	if err != nil {
		return err
	}
	if len(points) == 0 {
		return fmt.Errorf("no data for category %q", category)
	}
	return report.History(out, category, points)
}
