// Command looperscript runs a looper scenario file, printing the dispatch
// trace to stdout, as tab-separated lines of uptime, looper and label.
//
// Usage:
//
//	looperscript --file scenario.yaml [--log-level debug]
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"

	"github.com/joeycumines/go-simlooper/internal/script"
	"github.com/joeycumines/logiface"
	"github.com/joeycumines/stumpy"
	"github.com/spf13/pflag"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	err := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	if err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	var (
		filePath string
		logLevel string
	)

	flagSet := pflag.NewFlagSet("looperscript", pflag.ContinueOnError)
	flagSet.SetOutput(stderr)
	flagSet.StringVarP(&filePath, "file", "f", "", "path to the scenario YAML file (required)")
	flagSet.StringVar(&logLevel, "log-level", "warning", "minimum level logged to stderr, or disabled")

	if err := flagSet.Parse(args); err != nil {
		return err
	}
	if flagSet.NArg() != 0 {
		return fmt.Errorf("unexpected argument: %s", flagSet.Arg(0))
	}
	if filePath == "" {
		return errors.New("--file is required")
	}

	level, err := parseLevel(logLevel)
	if err != nil {
		return err
	}
	logger := stumpy.L.New(
		stumpy.L.WithStumpy(stumpy.WithWriter(stderr)),
		stumpy.L.WithLevel(level),
	).Logger()

	scenario, err := script.Load(filePath)
	if err != nil {
		return err
	}

	events, err := scenario.Run(ctx, script.WithLogger(logger))
	if ferr := script.Format(stdout, events); err == nil {
		err = ferr
	}
	return err
}

// parseLevel accepts the short keywords of logiface.Level.String.
func parseLevel(s string) (logiface.Level, error) {
	for level := logiface.LevelDisabled; level <= logiface.LevelTrace; level++ {
		if level.String() == s {
			return level, nil
		}
	}
	return 0, fmt.Errorf("invalid --log-level %q", s)
}
