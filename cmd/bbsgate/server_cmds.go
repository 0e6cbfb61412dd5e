package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/fsnotify/fsnotify"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"bbsgate/internal/app"
	"bbsgate/internal/network"
)

const shutdownNotice = "*** The system is going down now. Please call back later. ***"

var serverCmd = &cobra.Command{
	Use:              "server",
	Short:            "Start the server",
	PersistentPreRun: bootAppForServer,
	Run:              startServer,
}

type listener interface {
	ListenAndServe() error
	Stop() error
}

func bootAppForServer(cmd *cobra.Command, args []string) {
	if err := app.Boot(cfgFile, false); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func printBanner() {
	title := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("12")).
		Border(lipgloss.RoundedBorder()).
		Padding(0, 2)

	name := app.Config.General.PrettyBoardName
	if name == "" {
		name = app.Config.General.BoardName
	}
	if name == "" {
		name = "bbsgate"
	}
	fmt.Println(title.Render(fmt.Sprintf("%s  v%s", name, app.Version)))
}

func relativePath(path string) string {
	if cwd, err := os.Getwd(); err == nil {
		if rel, err := filepath.Rel(cwd, path); err == nil {
			return rel
		}
	}
	return path
}

// watchConfig signals restart whenever one of the loaded config files is
// written. The returned watcher must be closed by the caller.
func watchConfig(restart chan<- struct{}) *fsnotify.Watcher {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		app.Logger.Error("Failed to create watcher", "err", err)
		return nil
	}

	for _, file := range app.Config.LoadedFiles {
		if err := watcher.Add(file); err != nil {
			app.Logger.Error("Failed to watch config file", "file", relativePath(file), "err", err)
		} else {
			app.Logger.Debug("Watching config file", "file", relativePath(file))
		}
	}

	go func() {
		for {
			select {
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if event.Op&fsnotify.Write != fsnotify.Write || !app.Config.HotReload {
					continue
				}
				app.Logger.Info("Config file modified, rebooting app...", "file", relativePath(event.Name))
				select {
				case restart <- struct{}{}:
				default:
					// restart pending
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				app.Logger.Error("Watcher error", "err", err)
			}
		}
	}()

	return watcher
}

// startMetrics serves /metrics for the life of the process. Changes to the
// metrics section need a full restart.
func startMetrics() *http.Server {
	cfg := app.Config.Metrics
	if !cfg.Enabled {
		return nil
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(app.Registry, promhttp.HandlerOpts{}))
	srv := &http.Server{
		Addr:              cfg.Listen,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		app.Logger.Info("Metrics listening", "addr", cfg.Listen)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			app.Logger.Error("Metrics server stopped", "err", err)
		}
	}()
	return srv
}

func startServer(cmd *cobra.Command, args []string) {
	printBanner()

	metricsServer := startMetrics()
	defer func() {
		if metricsServer != nil {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = metricsServer.Shutdown(ctx)
		}
	}()

	restartChan := make(chan struct{}, 1)
	stopChan := make(chan os.Signal, 1)
	signal.Notify(stopChan, os.Interrupt, syscall.SIGTERM)

	for {
		var watcher *fsnotify.Watcher
		if app.Config.HotReload {
			watcher = watchConfig(restartChan)
		}

		var (
			wg        sync.WaitGroup
			listeners []listener
		)
		if app.Config.Listeners.SSH.Enabled {
			listeners = append(listeners, network.NewSSH())
		}
		if app.Config.Listeners.Telnet.Enabled {
			listeners = append(listeners, network.NewTelnet())
		}
		if len(listeners) == 0 {
			app.Logger.Warn("No listeners enabled.")
		}

		for _, l := range listeners {
			wg.Add(1)
			go func(l listener) {
				defer wg.Done()
				if err := l.ListenAndServe(); err != nil {
					app.Logger.Error("Listener stopped", "err", err)
				}
			}(l)
		}

		stopAll := func() {
			for _, l := range listeners {
				if err := l.Stop(); err != nil {
					app.Logger.Debug("Failed to stop listener", "err", err)
				}
			}
			if watcher != nil {
				watcher.Close()
			}
		}

		// Wait for stop or restart
		select {
		case <-stopChan:
			app.Logger.Info("Shutting down...")
			app.Nodes.Broadcast(shutdownNotice)
			stopAll()
			return

		case <-restartChan:
			stopAll()
			wg.Wait()

			// Boot does not swap anything on failure, so the listeners come
			// back with the existing config and store.
			if err := app.Boot(cfgFile, false); err != nil {
				app.Logger.Error("Failed to reload config", "err", err)
			}
		}
	}
}
