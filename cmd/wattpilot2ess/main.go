package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/berfenger/wattpilot2ess/internal/adapter/status"
	"github.com/berfenger/wattpilot2ess/internal/adapter/venus"
	"github.com/berfenger/wattpilot2ess/internal/adapter/wallbox"
	"github.com/berfenger/wattpilot2ess/internal/clock"
	"github.com/berfenger/wattpilot2ess/internal/config"
	"github.com/berfenger/wattpilot2ess/internal/core/port"
	"github.com/berfenger/wattpilot2ess/internal/core/service"
	"github.com/berfenger/wattpilot2ess/internal/mqtt"
	"github.com/berfenger/wattpilot2ess/internal/server"
	"github.com/berfenger/wattpilot2ess/internal/util"
	"github.com/berfenger/wattpilot2ess/pkg/wattpilot"

	"github.com/carlmjohnson/versioninfo"
	"github.com/lmittmann/tint"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func main() {
	slog.SetDefault(slog.New(tint.NewHandler(os.Stderr, &tint.Options{
		Level:      slog.LevelInfo,
		TimeFormat: time.DateTime,
	})))

	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		slog.Error("wattpilot2ess stopped", "error", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var cfgFile string
	cmd := &cobra.Command{
		Use:   "wattpilot2ess [address] [credential]",
		Short: "Coordinate a Fronius Wattpilot wallbox with a Victron ESS",
		Long: `Keeps the Victron ESS storage settings in line with the charging mode of a
Fronius Wattpilot wallbox. The wallbox address and password can be given as
arguments or through the configuration (wattpilot.host, wattpilot.password).`,
		Version:      versioninfo.Short(),
		Args:         cobra.MaximumNArgs(2),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := initConfig(cfgFile, args)
			if err != nil {
				return fmt.Errorf("config errors: %w", err)
			}
			safePrintConfig(*cfg)
			return run(cmd.Context(), cfg)
		},
	}
	cmd.Flags().StringVar(&cfgFile, "config", "", "yaml config file (default $CONFIG_FILE)")
	return cmd
}

func initConfig(cfgFile string, args []string) (*config.Config, error) {

	// alias PORT => WATTPILOT2ESS_PORT
	if port := os.Getenv("PORT"); port != "" {
		os.Setenv("WATTPILOT2ESS_PORT", port)
	}

	v := config.NewViper()
	if len(args) > 0 {
		v.Set("wattpilot.host", args[0])
	}
	if len(args) > 1 {
		v.Set("wattpilot.password", args[1])
	}
	return config.Load(v, cfgFile)
}

func run(ctx context.Context, cfg *config.Config) error {

	// zap logger
	zapCfg := zap.NewProductionConfig()
	zapCfg.Level = zap.NewAtomicLevelAt(cfg.LogLevel)
	logger := zap.Must(zapCfg.Build())
	defer logger.Sync()

	if cfg.PidFile != "" {
		removePid, err := util.WritePidFile(cfg.PidFile)
		if err != nil {
			return err
		}
		defer func() {
			if err := removePid(); err != nil {
				logger.Warn("could not remove pid file", zap.Error(err))
			}
		}()
	}

	// storage settings
	bus, err := venus.ConnectBus(cfg.Venus.Bus)
	if err != nil {
		return err
	}
	defer bus.Close()
	registry, err := venus.NewRegistry(bus, venus.RegistryConfig{
		SettingsService: cfg.Venus.SettingsService,
		VEBusService:    cfg.Venus.VEBusService,
		BatteryService:  cfg.Venus.BatteryService,
	}, logger)
	if err != nil {
		return err
	}

	socReader, closeSoC, err := socReaderFromConfig(cfg, registry, logger)
	if err != nil {
		return err
	}
	defer closeSoC()

	// wallbox
	factory := wallbox.NewFactory(cfg.Wattpilot.Host, cfg.Wattpilot.Password, logger,
		wattpilot.WithDialTimeout(time.Duration(cfg.Wattpilot.DialTimeoutMillis)*time.Millisecond))

	// status sinks
	clk := clock.NewRealClock()
	board := status.NewBoard(clk, cfg.HealthMaxAge())
	sinks := status.Fanout{board}
	if cfg.MQTT.Enable {
		client := mqtt.CreateMQTTClient(cfg.MQTT, mqtt.OptsFromConfig(cfg.MQTT), logger)
		if err := client.ConnectAndWait(10 * time.Second); err != nil {
			// paho keeps retrying in the background
			logger.Warn("mqtt: broker not reachable yet", zap.Error(err))
		}
		defer client.Stop()
		sinks = append(sinks, status.NewMQTTSink(client))
	}

	// control loop
	params := cfg.ControlParams()
	resetter := service.NewDefaultsResetter(registry, params, logger)
	reconciler := service.NewModeReconciler(registry, socReader, resetter, clk, params, logger)
	supervisor := service.NewConnectionSupervisor(factory, resetter, reconciler, sinks, clk, params, logger)

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	apiServer := server.NewServer(*cfg, board)
	go func() {
		err := apiServer.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", zap.Error(err))
		}
	}()

	logger.Info("wattpilot2ess started", zap.String("version", versioninfo.Short()), zap.Uint("port", cfg.Port))
	err = supervisor.Run(ctx)
	logger.Info("shutting down gracefully", zap.NamedError("reason", err))

	gracefulShutdown(apiServer, logger)
	return nil
}

func socReaderFromConfig(cfg *config.Config, registry *venus.Registry, logger *zap.Logger) (port.SoCReader, func(), error) {
	if cfg.Venus.SoCSource != config.SoCSourceModbus {
		return registry, func() {}, nil
	}
	reader, err := venus.NewModbusSoCReader(venus.ModbusConfig{
		Host:        cfg.Venus.Modbus.Host,
		Port:        cfg.Venus.Modbus.Port,
		UnitID:      cfg.Venus.Modbus.UnitId,
		SoCRegister: cfg.Venus.Modbus.SoCRegister,
		Timeout:     time.Duration(cfg.Venus.Modbus.TimeoutMillis) * time.Millisecond,
	}, logger)
	if err != nil {
		return nil, nil, err
	}
	return reader, func() { _ = reader.Close() }, nil
}

func gracefulShutdown(apiServer *http.Server, logger *zap.Logger) {
	// The context is used to inform the server it has 5 seconds to finish
	// the request it is currently handling
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := apiServer.Shutdown(ctx); err != nil {
		logger.Error("server forced to shutdown", zap.Error(err))
	}
	logger.Info("server exiting")
}

func safePrintConfig(cfg config.Config) {
	slog.Info("Using", "config", cfg.Redacted())
}
