// ABOUTME: Entry point for the chimed daemon
// ABOUTME: Serves remote play requests and advertises itself via mDNS
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/Resonate-Protocol/chime/internal/config"
	"github.com/Resonate-Protocol/chime/internal/logging"
	"github.com/Resonate-Protocol/chime/internal/server"
	"github.com/Resonate-Protocol/chime/internal/version"
	"github.com/Resonate-Protocol/chime/pkg/audio/decode"
	"github.com/Resonate-Protocol/chime/pkg/audio/output"
	"github.com/Resonate-Protocol/chime/pkg/sound"
	"github.com/sirupsen/logrus"
)

var (
	noMDNS   = flag.Bool("no-mdns", false, "Disable mDNS advertisement")
	jsonLogs = flag.Bool("json-logs", false, "Log as JSON")
)

func main() {
	defaults := config.Defaults()
	defaults.LogFile = "chimed.log"

	cfg, err := config.Load(flag.CommandLine, os.Args[1:], defaults)
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		os.Exit(2)
	}

	level := "info"
	if cfg.Debug {
		level = "debug"
	}
	closer, err := logging.Setup(logging.Options{Level: level, File: cfg.LogFile, Stdout: true, JSON: *jsonLogs})
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
	defer closer.Close()

	log := logrus.WithField("function", "main")
	log.WithFields(logrus.Fields{
		"name":    cfg.Name,
		"port":    cfg.Port,
		"device":  cfg.Device,
		"version": version.Version,
	}).Info("Starting chimed")

	dev, err := output.New(cfg.Device, output.Options{Volume: cfg.Volume, Paced: true})
	if err != nil {
		log.WithError(err).Fatal("Failed to open output device")
	}
	defer dev.Close()

	fetcher := &decode.Fetcher{CacheDir: cfg.CacheDir}

	var srv *server.Server
	player, err := sound.New(sound.Config{
		Device:    dev,
		Opener:    fetcher.Open,
		Debug:     cfg.Debug,
		Exclusive: cfg.Exclusive,
		OnEvent: func(e sound.Event) {
			srv.HandleEvent(e)
		},
	})
	if err != nil {
		log.WithError(err).Fatal("Failed to create player")
	}

	srv = server.New(server.Config{
		Port:       cfg.Port,
		Name:       cfg.Name,
		EnableMDNS: !*noMDNS,
		Debug:      cfg.Debug,
		Player:     player,
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := srv.Run(ctx); err != nil {
		log.WithError(err).Error("Server error")
		os.Exit(1)
	}

	player.Wait()
	log.Info("chimed stopped")
}
