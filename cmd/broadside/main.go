package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"github.com/broadside-sim/broadside/internal/config"
	"github.com/broadside-sim/broadside/internal/logging"
	intOtel "github.com/broadside-sim/broadside/internal/otel"
	"github.com/broadside-sim/broadside/internal/session"
	"github.com/rs/zerolog"
	"github.com/spf13/viper"
)

// Version and BuildDate can be set at build time via ldflags.
var (
	Version   = "0.1.0"
	BuildDate = "unknown"

	AppName = "broadside"
)

const usage = `usage: broadside [-config dir] <command> [args]

commands:
  play [key=value ...]     fight a battle from stdin
  serve                    expose battles over HTTP
  list [-db path] [-n N]   list recorded battles
  replay [-db path] <id>   print a recorded battle turn by turn
  backups <dir>            list battles in every .db file of dir
  version                  print the version
`

// app holds the process-wide logging and telemetry.
type app struct {
	slogManager *logging.SlogManager
	log         *slog.Logger
	otel        *intOtel.Provider
	logFile     *os.File
	logLevel    string
	startedAt   time.Time

	// current is the session whose battle and turn tag log records.
	current atomic.Pointer[session.Session]
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdin, os.Stdout))
}

func run(args []string, in io.Reader, out io.Writer) int {
	fs := flag.NewFlagSet(AppName, flag.ContinueOnError)
	fs.SetOutput(out)
	configDir := fs.String("config", ".", "directory containing "+config.FileName)
	if err := fs.Parse(args); err != nil {
		return 2
	}
	rest := fs.Args()
	if len(rest) == 0 {
		fmt.Fprint(out, usage)
		return 2
	}

	cmd := strings.ToLower(rest[0])
	if cmd == "version" {
		fmt.Fprintf(out, "%s %s (built %s)\n", AppName, Version, BuildDate)
		return 0
	}

	a, err := newApp(*configDir)
	if err != nil {
		fmt.Fprintln(out, "error:", err)
		return 1
	}
	defer a.close()

	switch cmd {
	case "play":
		err = a.play(rest[1:], in, out)
	case "serve":
		err = a.serve(rest[1:])
	case "list":
		err = a.list(rest[1:], out)
	case "replay":
		err = a.replay(rest[1:], out)
	case "backups":
		err = a.backups(rest[1:], out)
	default:
		fmt.Fprint(out, usage)
		return 2
	}

	if err != nil {
		a.log.Error("Command failed", "command", cmd, "error", err)
		fmt.Fprintln(out, "error:", err)
		return 1
	}
	return 0
}

// newApp loads config and brings up logging: a log file under logsDir,
// optional OTel export and an optional Graylog sink.
func newApp(configDir string) (*app, error) {
	a := &app{slogManager: logging.NewSlogManager(), startedAt: time.Now()}

	configErr := config.Load(configDir)
	if configErr != nil {
		config.LoadDefaults()
	}
	a.logLevel = viper.GetString("logLevel")

	logsDir := viper.GetString("logsDir")
	if err := os.MkdirAll(logsDir, 0755); err != nil {
		return nil, fmt.Errorf("creating logs dir: %w", err)
	}
	logPath := logging.LogFilePath(logsDir, AppName, a.startedAt)
	if _, err := os.Stat(logPath); err == nil {
		_ = os.Rename(logPath, logPath+".old")
	}
	f, err := os.OpenFile(logPath, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("opening log file: %w", err)
	}
	a.logFile = f

	otelCfg := config.GetOTelConfig()
	a.otel, err = intOtel.New(intOtel.Config{
		Enabled:        otelCfg.Enabled,
		ServiceName:    otelCfg.ServiceName,
		ServiceVersion: Version,
		BatchTimeout:   otelCfg.BatchTimeout,
		MetricInterval: otelCfg.MetricInterval,
		LogWriter:      f,
		Endpoint:       otelCfg.Endpoint,
		Insecure:       otelCfg.Insecure,
	})
	var otelErr error
	if err != nil {
		otelErr = err
		a.otel, _ = intOtel.New(intOtel.Config{})
	}

	if err := a.setupLogging(); err != nil {
		a.log.Warn("Graylog sink unavailable", "error", err)
	}
	if configErr != nil {
		a.log.Warn("Failed to load config, using defaults", "dir", configDir, "error", configErr)
	}
	if otelErr != nil {
		a.log.Error("Failed to initialize OTel provider", "error", otelErr)
	}
	a.log.Info("Starting up", "version", Version, "build", BuildDate, "log", logPath, "otel", a.otel.Enabled())
	return a, nil
}

// setupLogging builds the slog fan-out. Records are tagged with the battle
// and turn of the current session, once there is one.
func (a *app) setupLogging() error {
	var graylog string
	if viper.GetBool("graylog.enabled") {
		graylog = viper.GetString("graylog.address")
	}
	err := a.slogManager.Setup(logging.Options{
		File:           a.logFile,
		Level:          a.logLevel,
		Provider:       a.otel.LoggerProvider(),
		GraylogAddress: graylog,
		Context:        a.logAttrs,
	})
	a.log = a.slogManager.Logger()
	return err
}

func (a *app) logAttrs() []slog.Attr {
	if s := a.current.Load(); s != nil {
		return s.LogAttrs()
	}
	return nil
}

// zerolog returns a component logger writing to the log file, for the
// packages that log through zerolog.
func (a *app) zerolog(component string) zerolog.Logger {
	return logging.NewZerolog(a.logFile, a.logLevel, component)
}

func (a *app) close() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	a.log.Info("Shutting down", "uptime", time.Since(a.startedAt).Round(time.Millisecond))
	for sink, n := range a.slogManager.SinkFailures() {
		if n > 0 {
			fmt.Fprintf(os.Stderr, "%s log sink dropped %d records\n", sink, n)
		}
	}
	errs := []error{
		a.slogManager.Flush(ctx),
		a.otel.Shutdown(ctx),
		a.slogManager.Close(),
	}
	if a.logFile != nil {
		errs = append(errs, a.logFile.Close())
	}
	if err := errors.Join(errs...); err != nil {
		fmt.Fprintln(os.Stderr, "shutdown:", err)
	}
}

// dataPath resolves p against the working directory for log output.
func dataPath(p string) string {
	if abs, err := filepath.Abs(p); err == nil {
		return abs
	}
	return p
}
