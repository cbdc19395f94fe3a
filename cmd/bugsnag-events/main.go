package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"

	"github.com/crimson-sun/bugsnag-events/internal/apperr"
	"github.com/crimson-sun/bugsnag-events/internal/bugsnag"
	"github.com/crimson-sun/bugsnag-events/internal/command"
	"github.com/crimson-sun/bugsnag-events/internal/config"
	"github.com/crimson-sun/bugsnag-events/internal/logging"
	"github.com/crimson-sun/bugsnag-events/internal/output"
	"github.com/crimson-sun/bugsnag-events/internal/output/file"
	"github.com/crimson-sun/bugsnag-events/internal/output/multi"
	"github.com/crimson-sun/bugsnag-events/internal/output/stdout"
	"github.com/crimson-sun/bugsnag-events/internal/output/webhook"
)

// Version is overridden at build time with -ldflags "-X main.Version=...".
var Version = "dev"

const (
	exitOK      = 0
	exitFailure = 1
	exitUsage   = 2
)

const dateLayout = "2006-01-02"

func main() {
	if err := loadDotenv(".env"); err != nil {
		fmt.Fprintf(os.Stderr, "bugsnag-events: %v\n", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		fmt.Fprintf(os.Stderr, "\nreceived %v, shutting down...\n", sig)
		cancel()
	}()

	os.Exit(run(ctx, os.Args[1:], os.Stdout, os.Stderr, time.Now))
}

// loadDotenv sets variables from path without overriding the environment.
// A missing file is not an error.
func loadDotenv(path string) error {
	err := godotenv.Load(path)
	if err == nil || errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return fmt.Errorf("load %s: %w", path, err)
}

type cliFlags struct {
	projectID string
	errorID   string
	csvMap    string
	start     string
	end       string
	outputs   []string
	headers   map[string]string
	keep      int
	version   bool
}

// stringList collects a repeatable flag.
type stringList []string

func (l *stringList) String() string { return strings.Join(*l, ",") }

func (l *stringList) Set(v string) error {
	*l = append(*l, v)
	return nil
}

// parseHeaders turns "Key: Value" flag values into a header map.
func parseHeaders(values []string) (map[string]string, error) {
	if len(values) == 0 {
		return nil, nil
	}
	h := make(map[string]string, len(values))
	for _, v := range values {
		key, val, ok := strings.Cut(v, ":")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, fmt.Errorf("-header %q: want \"Key: Value\"", v)
		}
		h[key] = strings.TrimSpace(val)
	}
	return h, nil
}

func parseFlags(args []string, stderr io.Writer) (cliFlags, error) {
	var f cliFlags
	var outs, headers stringList

	flags := flag.NewFlagSet("bugsnag-events", flag.ContinueOnError)
	flags.SetOutput(stderr)
	flags.StringVar(&f.projectID, "project-id", "", "Bugsnag project id")
	flags.StringVar(&f.errorID, "error-id", "", "Bugsnag error id")
	flags.StringVar(&f.csvMap, "csv-map", "", "field map file (.csv, .yml or .yaml)")
	flags.StringVar(&f.start, "start", "", "window start, RFC3339 or YYYY-MM-DD (default: 24h before -end)")
	flags.StringVar(&f.end, "end", "", "window end, RFC3339 or YYYY-MM-DD (default: now)")
	flags.Var(&outs, "output", "destination: - for stdout, an http(s) URL, or a file path; repeatable")
	flags.Var(&headers, "header", "extra HTTP header for URL outputs, \"Key: Value\"; repeatable")
	flags.IntVar(&f.keep, "keep", 0, "previous file exports to keep as <path>.1..<path>.N")
	flags.BoolVar(&f.version, "version", false, "print version and exit")

	if err := flags.Parse(args); err != nil {
		return f, err
	}
	if flags.NArg() > 0 {
		return f, fmt.Errorf("unexpected arguments: %s", strings.Join(flags.Args(), " "))
	}
	h, err := parseHeaders(headers)
	if err != nil {
		return f, err
	}
	f.headers = h
	f.outputs = outs
	if len(f.outputs) == 0 {
		f.outputs = []string{"-"}
	}
	return f, nil
}

func run(ctx context.Context, args []string, out, stderr io.Writer, now func() time.Time) int {
	f, err := parseFlags(args, stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return exitOK
		}
		fmt.Fprintf(stderr, "bugsnag-events: %v\n", err)
		return exitUsage
	}
	if f.version {
		fmt.Fprintf(out, "bugsnag-events %s\n", Version)
		return exitOK
	}

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(stderr, "bugsnag-events: invalid configuration: %v\n", err)
		return exitUsage
	}

	logger := logging.New(stderr, cfg.Logging.Format, logging.ParseLevel(cfg.Logging.Level)).
		With("run_id", uuid.NewString())
	slog.SetDefault(logger)

	start, end, err := resolveWindow(f.start, f.end, now())
	if err != nil {
		logger.Error("invalid time window", "error", err)
		return exitUsage
	}

	cmd, err := command.New(command.Params{
		ProjectID:  f.projectID,
		ErrorID:    f.errorID,
		CSVMapPath: f.csvMap,
		StartDate:  start,
		EndDate:    end,
	},
		command.WithLogger(logger),
		command.WithClientOptions(
			bugsnag.WithToken(cfg.Bugsnag.Token),
			bugsnag.WithEndpoint(cfg.Bugsnag.Endpoint),
			bugsnag.WithPerPage(cfg.Bugsnag.PerPage),
			bugsnag.WithMaxPages(cfg.Bugsnag.MaxPages),
			bugsnag.WithRequestsPerMinute(cfg.Bugsnag.RequestsPerMinute),
			bugsnag.WithTimeout(cfg.Bugsnag.Timeout),
		),
	)
	if err != nil {
		return report(logger, err)
	}

	csv, err := cmd.Get(ctx)
	if err != nil {
		return report(logger, err)
	}

	dest, err := openOutputs(f.outputs, f.keep, f.headers, out, cfg.Bugsnag.Timeout)
	if err != nil {
		logger.Error("open output failed", "error", err)
		return exitFailure
	}
	writeErr := dest.Write(ctx, csv)
	closeErr := dest.Close()
	if err := errors.Join(writeErr, closeErr); err != nil {
		logger.Error("write output failed", "error", err)
		return exitFailure
	}

	logger.Info("export complete", "bytes", len(csv), "outputs", len(f.outputs))
	return exitOK
}

func report(logger *slog.Logger, err error) int {
	var verr *apperr.ValidationError
	if errors.As(err, &verr) {
		logger.Error("invalid input", "attributes", verr.Attributes)
		return exitUsage
	}
	if errors.Is(err, context.Canceled) {
		logger.Warn("cancelled")
		return exitFailure
	}
	logger.Error("export failed", "error", err)
	return exitFailure
}

// resolveWindow parses the -start/-end values. A bare date for -end means
// the end of that day. Missing bounds default to [end-24h, now].
func resolveWindow(startArg, endArg string, now time.Time) (time.Time, time.Time, error) {
	end := now.UTC()
	if endArg != "" {
		t, err := parseTime(endArg, true)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("-end: %w", err)
		}
		end = t
	}
	start := end.Add(-24 * time.Hour)
	if startArg != "" {
		t, err := parseTime(startArg, false)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("-start: %w", err)
		}
		start = t
	}
	return start, end, nil
}

func parseTime(s string, endOfDay bool) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t.UTC(), nil
	}
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("%q is neither RFC3339 nor YYYY-MM-DD", s)
	}
	if endOfDay {
		t = t.Add(24*time.Hour - time.Nanosecond)
	}
	return t, nil
}

// openOutputs builds the destination for each -output value.
func openOutputs(targets []string, keep int, headers map[string]string, out io.Writer, timeout time.Duration) (output.Output, error) {
	var outs []output.Output
	for _, t := range targets {
		switch {
		case t == "" || t == "-":
			outs = append(outs, stdout.New(out))
		case strings.HasPrefix(t, "http://") || strings.HasPrefix(t, "https://"):
			outs = append(outs, webhook.New(t, webhook.WithTimeout(timeout), webhook.WithHeaders(headers)))
		default:
			fo, err := file.New(t, file.WithKeep(keep))
			if err != nil {
				for _, o := range outs {
					o.Close()
				}
				return nil, err
			}
			outs = append(outs, fo)
		}
	}
	if len(outs) == 1 {
		return outs[0], nil
	}
	return multi.New(outs...), nil
}
