// Command paydriverd runs the payment driver as a standalone daemon.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/BurntSushi/toml"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/urfave/cli/v2"

	paydriver "github.com/gridmarket/paydriver"
	"github.com/gridmarket/paydriver/bus"
	"github.com/gridmarket/paydriver/logger"
	"github.com/gridmarket/paydriver/metrics"
	"github.com/gridmarket/paydriver/types"
	"github.com/gridmarket/paydriver/utils"
)

type daemonConfig struct {
	types.DriverConfig

	// BusEndpoint receives settlement notifications; empty disables them.
	BusEndpoint string `toml:"bus_endpoint"`

	// MetricsListen serves prometheus metrics; empty disables them.
	MetricsListen string `toml:"metrics_listen"`

	Accounts []accountConfig `toml:"accounts"`
}

type accountConfig struct {
	Network string `toml:"network"`
	Key     string `toml:"key"`
}

func main() {
	app := &cli.App{
		Name:  "paydriverd",
		Usage: "ERC-20 payment driver daemon",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Value:   "paydriver.toml",
				Usage:   "path to the TOML configuration file",
			},
			&cli.StringFlag{
				Name:  "log-level",
				Value: "info",
				Usage: "log level: debug, info, warn, error",
			},
		},
		Action: run,
	}
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(c *cli.Context) error {
	var cfg daemonConfig
	if _, err := toml.DecodeFile(c.String("config"), &cfg); err != nil {
		return fmt.Errorf("failed to read config: %w", err)
	}
	if err := utils.ValidateConfig(&cfg.DriverConfig); err != nil {
		return err
	}

	log := logger.NewZapLogger(c.String("log-level"))

	var recorder metrics.Recorder = metrics.NoopRecorder{}
	if cfg.MetricsListen != "" {
		recorder = metrics.NewPrometheusRecorder()
		go func() {
			if err := http.ListenAndServe(cfg.MetricsListen, promhttp.Handler()); err != nil {
				log.Error("metrics listener stopped", map[string]any{"error": err.Error()})
			}
		}()
	}

	var b bus.Bus = bus.Noop{}
	if cfg.BusEndpoint != "" {
		b = bus.NewHTTPBus(cfg.BusEndpoint)
	}

	driver, err := paydriver.New(&cfg.DriverConfig,
		paydriver.WithLogger(log),
		paydriver.WithMetrics(recorder),
		paydriver.WithBus(b),
	)
	if err != nil {
		return err
	}
	defer driver.Close()

	for _, acct := range cfg.Accounts {
		if _, err := driver.AddLocalAccount(types.Network(acct.Network), acct.Key); err != nil {
			return fmt.Errorf("failed to add account on %s: %w", acct.Network, err)
		}
	}

	driver.Start(context.Background())
	log.Info("payment driver started", map[string]any{
		"name":     cfg.Name,
		"networks": len(cfg.Networks),
		"interval": cfg.Interval.Std().String(),
	})

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	<-sig

	log.Info("shutting down", nil)
	return nil
}
