package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kingpin/v2"
	"go.uber.org/zap"

	"github.com/eugenenazirov/suricata-config/internal/application"
	"github.com/eugenenazirov/suricata-config/internal/config"
	"github.com/eugenenazirov/suricata-config/internal/logging"
	"github.com/eugenenazirov/suricata-config/internal/watcher"
)

var (
	signalNotify = signal.Notify
	signalStop   = signal.Stop
)

type cliFlags struct {
	configFile        *string
	envFile           *string
	logLevel          *string
	output            *string
	exePath           *string
	alertPath         *string
	rulePath          *string
	configDir         *string
	internalIPs       *string
	maxPendingPackets *string
	stats             *bool
	statsSet          *bool
	reloadRPS         *float64
	reloadBurst       *int
}

func newCLI() (*kingpin.Application, *cliFlags) {
	app := kingpin.New("suricata-config", "Renders suricata.yaml from typed settings")
	statsSet := new(bool)
	flags := &cliFlags{
		statsSet:          statsSet,
		configFile:        app.Flag("config", "Path to YAML or TOML settings file").String(),
		envFile:           app.Flag("env-file", "Path to a dotenv file loaded before defaults are resolved").String(),
		logLevel:          app.Flag("log-level", "Log level (debug, info, warn, error)").Default("info").String(),
		output:            app.Flag("output", "Destination for the rendered suricata.yaml").Short('o').String(),
		exePath:           app.Flag("exe", "Path to the suricata executable").String(),
		alertPath:         app.Flag("alerts", "Unix socket suricata writes alerts to").String(),
		rulePath:          app.Flag("rules", "Rule file loaded by suricata").String(),
		configDir:         app.Flag("suricata-config-dir", "Directory holding threshold and classification configs").String(),
		internalIPs:       app.Flag("internal-ips", "Comma-separated HOME_NET ranges").String(),
		maxPendingPackets: app.Flag("max-pending-packets", "Packets suricata queues before blocking (0-65535)").String(),
		stats:             app.Flag("stats", "Enable suricata stats output").IsSetByUser(statsSet).Bool(),
		reloadRPS:         app.Flag("reload-rate", "Maximum rematerializations per second in watch mode").Default("1").Float64(),
		reloadBurst:       app.Flag("reload-burst", "Burst of rematerializations allowed in watch mode").Default("1").Int(),
	}
	app.Command("materialize", "Write the rendered config to its destination").Default()
	app.Command("render", "Print the rendered config to stdout")
	app.Command("watch", "Materialize, then rematerialize whenever the settings file changes")
	return app, flags
}

func (f *cliFlags) overrides() *config.CLIOverrides {
	overrides := &config.CLIOverrides{
		ConfigFile: *f.configFile,
		EnvFile:    *f.envFile,
	}

	if *f.output != "" {
		overrides.MaterializeTo = f.output
	}
	if *f.exePath != "" {
		overrides.ExePath = f.exePath
	}
	if *f.alertPath != "" {
		overrides.AlertPath = f.alertPath
	}
	if *f.rulePath != "" {
		overrides.RulePath = f.rulePath
	}
	if *f.configDir != "" {
		overrides.ConfigDir = f.configDir
	}
	if *f.internalIPs != "" {
		overrides.InternalIPsStr = f.internalIPs
	}
	if *f.maxPendingPackets != "" {
		overrides.MaxPendingPackets = f.maxPendingPackets
	}
	// Only an explicit --stats/--no-stats overrides file and environment settings.
	if *f.statsSet {
		overrides.EnableStats = f.stats
	}

	return overrides
}

func main() {
	cli, flags := newCLI()
	command := kingpin.MustParse(cli.Parse(os.Args[1:]))

	logger, err := logging.New(*flags.logLevel)
	if err != nil {
		panic(fmt.Sprintf("failed to initialize logger: %v", err))
	}
	defer func() {
		_ = logger.Sync()
	}()

	app := application.New(flags.overrides(), logger,
		application.WithWatchOptions(watcher.WithRateLimit(*flags.reloadRPS, *flags.reloadBurst)),
	)

	if err := run(command, app, os.Stdout, logger); err != nil {
		logger.Fatal("suricata-config failed", zap.String("command", command), zap.Error(err))
	}
}

func run(command string, app *application.App, stdout io.Writer, logger *zap.Logger) error {
	switch command {
	case "render":
		out, err := app.Render()
		if err != nil {
			return err
		}
		_, err = stdout.Write(out)
		return err
	case "watch":
		ctx, cancel := signalContext(logger)
		defer cancel()
		return app.Watch(ctx)
	default:
		_, err := app.Materialize()
		return err
	}
}

func signalContext(logger *zap.Logger) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	quit := make(chan os.Signal, 1)
	signalNotify(quit, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		select {
		case <-quit:
			logger.Info("shutting down watcher")
			cancel()
		case <-ctx.Done():
		}
	}()
	return ctx, func() {
		signalStop(quit)
		cancel()
	}
}
