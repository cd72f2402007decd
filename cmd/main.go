package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/asammad48/VendorView-RestaurantApp-sub002/internal/activity"
	"github.com/asammad48/VendorView-RestaurantApp-sub002/internal/config"
	"github.com/asammad48/VendorView-RestaurantApp-sub002/internal/dispatch"
	"github.com/asammad48/VendorView-RestaurantApp-sub002/internal/events"
	"github.com/asammad48/VendorView-RestaurantApp-sub002/internal/logger"
	"github.com/asammad48/VendorView-RestaurantApp-sub002/internal/orders"
	"github.com/asammad48/VendorView-RestaurantApp-sub002/internal/panel"
	"github.com/asammad48/VendorView-RestaurantApp-sub002/internal/printer"
	"github.com/asammad48/VendorView-RestaurantApp-sub002/internal/receipt"
)

const configFile = "config/config.json"

// --- Main ---

func main() {
	logger.Init()
	defer logger.Sync()

	cfg, err := config.Load(configFile)
	if err != nil {
		logger.Error("config load failed", "err", err)
		os.Exit(1)
	}
	logger.Info("configuration loaded", "api", cfg.APIURL, "ws", cfg.WSURL, "panel", cfg.PanelAddr)

	ctx := context.Background()

	act := activity.NewLog(cfg.LogCapacity)

	loc, err := time.LoadLocation(cfg.PrinterTimezone)
	if err != nil {
		logger.Warn("unknown printer timezone, using UTC", "tz", cfg.PrinterTimezone)
		loc = time.UTC
	}

	var logo []byte
	if cfg.LogoPath != "" {
		logo, err = printer.LoadLogoRaster(cfg.LogoPath, 384)
		if err != nil {
			logger.Warn("logo load failed, printing without it", "err", err)
			logo = nil
		}
	}

	tokens := func(context.Context) (string, error) { return cfg.APIToken, nil }

	transport := printer.NewTCPTransport(cfg.PrinterIP, cfg.PrinterPort, "Receipt Printer")
	manager := printer.NewManager(transport, act, cfg.SendTimeout())

	if info, err := manager.Connect(ctx); err != nil {
		// The agent stays up: the operator reconnects via the panel once the
		// printer is reachable.
		logger.Warn("initial printer pairing failed", "err", err)
	} else {
		logger.Info("printer paired", "address", info.Address)
	}

	lookup := orders.NewClient(cfg.APIURL, orders.TokenProvider(tokens), cfg.FetchTimeout())
	encoder := receipt.NewEncoder(cfg.PrinterWidth, loc)
	serializer := printer.NewSerializer(logo)

	channel := events.NewClient(events.Options{
		URL:      cfg.WSURL,
		Tokens:   events.TokenProvider(tokens),
		Backoff:  events.NewReconnectBackoff(cfg.BackoffBase(), cfg.BackoffCap(), 10),
		Activity: act,
	})

	orchestrator := dispatch.New(dispatch.Options{
		Events:       channel,
		Fetcher:      lookup,
		Encoder:      encoder,
		Serializer:   serializer,
		Link:         manager,
		Activity:     act,
		QueueSize:    cfg.QueueSize,
		FetchTimeout: cfg.FetchTimeout(),
	})

	if err := orchestrator.Start(); err != nil {
		logger.Error("orchestrator start failed", "err", err)
		os.Exit(1)
	}
	if err := channel.Connect(ctx); err != nil {
		logger.Error("event channel start failed", "err", err)
		os.Exit(1)
	}

	srv := panel.NewServer(cfg.PanelAddr, act, manager, channel, orchestrator)
	srv.Start()

	logger.Info("print agent running")

	// Wait for interrupt to exit cleanly
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	<-c
	logger.Info("shutting down")

	orchestrator.Stop()
	_ = channel.Close()
	manager.Disconnect()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
}
