// ABOUTME: Entry point for the chime sound player
// ABOUTME: Plays resources locally or on a remote chimed daemon
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Resonate-Protocol/chime/internal/client"
	"github.com/Resonate-Protocol/chime/internal/config"
	"github.com/Resonate-Protocol/chime/internal/discovery"
	"github.com/Resonate-Protocol/chime/internal/logging"
	"github.com/Resonate-Protocol/chime/internal/ui"
	"github.com/Resonate-Protocol/chime/internal/version"
	"github.com/Resonate-Protocol/chime/pkg/audio/decode"
	"github.com/Resonate-Protocol/chime/pkg/audio/output"
	"github.com/Resonate-Protocol/chime/pkg/sound"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/sirupsen/logrus"
)

var (
	remoteAddr  = flag.String("remote", "", "Play on a chimed daemon at host:port instead of locally")
	discover    = flag.Bool("discover", false, "Find a chimed daemon via mDNS and play there")
	noTUI       = flag.Bool("no-tui", false, "Disable TUI, use streaming logs instead")
	showVersion = flag.Bool("version", false, "Print version and exit")
)

func main() {
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "Usage: %s [flags] resource...\n", os.Args[0])
		flag.PrintDefaults()
	}

	cfg, err := config.Load(flag.CommandLine, os.Args[1:], config.Defaults())
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		os.Exit(2)
	}

	if *showVersion {
		fmt.Println(version.String())
		return
	}

	resources := flag.Args()
	if len(resources) == 0 {
		flag.Usage()
		os.Exit(2)
	}

	useTUI := !*noTUI

	level := "info"
	if cfg.Debug {
		level = "debug"
	}
	closer, err := logging.Setup(logging.Options{Level: level, File: cfg.LogFile, Stdout: !useTUI})
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
	defer closer.Close()

	remote := *remoteAddr != "" || *discover
	target := "local (" + cfg.Device + ")"
	if remote {
		target = "remote"
	}

	// TUI setup
	var tuiProg *tea.Program
	if useTUI {
		tuiProg = ui.Run(target)
	}
	updateTUI := func(msg ui.StatusMsg) {
		if tuiProg != nil {
			tuiProg.Send(msg)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	run := func() error {
		if remote {
			return runRemote(ctx, cfg, resources, updateTUI)
		}
		return runLocal(cfg, resources, updateTUI)
	}

	if tuiProg == nil {
		if err := run(); err != nil {
			logrus.WithError(err).Error("chime failed")
			os.Exit(1)
		}
		return
	}

	// Playback runs beside the TUI; the TUI stays up until the user quits
	go func() {
		if err := run(); err != nil {
			logrus.WithError(err).Error("chime failed")
			updateTUI(ui.StatusMsg{Rejected: err.Error()})
		}
	}()
	go func() {
		<-ctx.Done()
		tuiProg.Quit()
	}()

	if _, err := tuiProg.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "TUI error: %v\n", err)
		os.Exit(1)
	}
}

// runLocal plays every resource on this host and waits for them to finish
func runLocal(cfg config.Config, resources []string, updateTUI func(ui.StatusMsg)) error {
	dev, err := output.New(cfg.Device, output.Options{Volume: cfg.Volume})
	if err != nil {
		return fmt.Errorf("failed to open output device: %w", err)
	}
	defer dev.Close()

	connected := true
	updateTUI(ui.StatusMsg{Connected: &connected})

	fetcher := &decode.Fetcher{CacheDir: cfg.CacheDir}
	player, err := sound.New(sound.Config{
		Device:    dev,
		Opener:    fetcher.Open,
		Debug:     cfg.Debug,
		Exclusive: cfg.Exclusive,
		OnEvent: func(e sound.Event) {
			updateTUI(ui.FromSoundEvent(e))
		},
	})
	if err != nil {
		return err
	}

	var failures []error
	for _, resource := range resources {
		if _, err := player.Play(resource); err != nil {
			logrus.WithField("resource", resource).WithError(err).Error("Cannot play sound")
			updateTUI(ui.StatusMsg{Rejected: err.Error()})
			failures = append(failures, err)
		}
	}

	player.Wait()
	return errors.Join(failures...)
}

// runRemote sends every resource to a daemon and waits for their sessions to end
func runRemote(ctx context.Context, cfg config.Config, resources []string, updateTUI func(ui.StatusMsg)) error {
	addr := *remoteAddr
	if addr == "" {
		server, err := discoverServer(ctx, cfg, 10*time.Second)
		if err != nil {
			return err
		}
		addr = server.Addr()
	}

	c := client.NewClient(client.Config{ServerAddr: addr, Name: cfg.Name})
	if err := c.Connect(ctx); err != nil {
		return fmt.Errorf("connection to %s failed: %w", addr, err)
	}
	defer c.Close()

	connected := true
	updateTUI(ui.StatusMsg{Connected: &connected, ServerName: c.Server().Name})
	logrus.WithField("server", c.Server().Name).Info("Connected to daemon")

	// Feed the TUI while requests are still being sent
	forwardDone := make(chan struct{})
	defer close(forwardDone)
	go func() {
		for {
			select {
			case e := <-c.Events():
				updateTUI(ui.FromProtocolEvent(e))
			case <-forwardDone:
				return
			}
		}
	}()

	var sessions []string
	var failures []error

	for _, resource := range resources {
		result, err := c.Play(ctx, resource)
		if err != nil {
			logrus.WithField("resource", resource).WithError(err).Error("Cannot play sound")
			updateTUI(ui.StatusMsg{Rejected: err.Error()})
			failures = append(failures, err)
			continue
		}
		sessions = append(sessions, result.SessionID)
	}

	for _, id := range sessions {
		end, err := c.WaitSession(ctx, id)
		if errors.Is(err, client.ErrNotConnected) {
			return errors.Join(append(failures, errors.New("connection to daemon lost"))...)
		}
		if err != nil {
			return errors.Join(append(failures, err)...)
		}
		if end.Kind == string(sound.EventFailed) {
			failures = append(failures, fmt.Errorf("%s: %s", end.Resource, end.Error))
		}
	}

	return errors.Join(failures...)
}

// discoverServer browses mDNS for the first chimed daemon
func discoverServer(ctx context.Context, cfg config.Config, timeout time.Duration) (*discovery.ServerInfo, error) {
	logrus.Info("Starting server discovery...")

	disc := discovery.NewManager(discovery.Config{ServiceName: cfg.Name})
	disc.Browse()
	defer disc.Stop()

	select {
	case server := <-disc.Servers():
		logrus.WithField("addr", server.Addr()).Info("Discovered server")
		return server, nil
	case <-time.After(timeout):
		return nil, fmt.Errorf("no chimed daemon found after %v", timeout)
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
