// cmd/matchwarden/main.go
//
// Entry point for the matchwarden lobby coordinator.
//
// Flow:
// 1. Load matchwarden.yaml (written with defaults on first run)
// 2. Build the lobby session and register the configured coordinators
// 3. Start the HTTP bridge the transport posts lifecycle events to
// 4. Run the status console, or just wait for a signal in headless mode

package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/kingrea/matchwarden/internal/bridge"
	"github.com/kingrea/matchwarden/internal/config"
	"github.com/kingrea/matchwarden/internal/lobby"
	"github.com/kingrea/matchwarden/internal/logging"
	"github.com/kingrea/matchwarden/internal/plugin"
	"github.com/kingrea/matchwarden/internal/plugin/abort"
	"github.com/kingrea/matchwarden/internal/plugin/recast"
	"github.com/kingrea/matchwarden/internal/tui"
)

const version = "0.1.0"

func main() {
	var (
		showVersion bool
		headless    bool
		configPath  string
	)
	flag.BoolVar(&showVersion, "version", false, "Print version")
	flag.BoolVar(&headless, "headless", false, "Run without the status console")
	flag.StringVar(&configPath, "config", config.DefaultPath, "Path to matchwarden.yaml")
	flag.Parse()

	if showVersion {
		fmt.Printf("matchwarden %s\n", version)
		return
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Config load failed: %v\n", err)
		os.Exit(1)
	}

	logger, err := logging.New(cfg.LogDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Logger setup failed: %v\n", err)
		os.Exit(1)
	}
	defer logger.Close()

	session := lobby.NewSession(cfg.Lobby.Name, lobby.LogActions{Logger: logger}, lobby.WithLogger(logger))

	registry := plugin.NewRegistry()
	registry.MustRegister(abort.ID, abort.Factory(logger))
	registry.MustRegister(recast.ID, recast.Factory(logger))

	blocks := cfg.PluginConfigs()
	ids := make([]string, 0, len(blocks))
	for id := range blocks {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		p, err := registry.Resolve(id, session, plugin.Config(blocks[id]))
		if err != nil {
			fmt.Fprintf(os.Stderr, "Plugin %s failed: %v\n", id, err)
			os.Exit(1)
		}
		session.Register(p)
		logger.Printf("main: registered plugin %s", p.Name())
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	go session.Run(ctx)

	settings := bridge.SettingsFromConfig(cfg)
	if settings.Enabled {
		server := bridge.NewServer(settings,
			bridge.WithLogger(logger),
			bridge.WithProcessor(bridge.EventProcessorFunc(func(e bridge.Event) error {
				session.Post(e.ToEvent())
				return nil
			})))
		if err := server.Start(ctx); err != nil {
			fmt.Fprintf(os.Stderr, "Bridge start failed: %v\n", err)
			os.Exit(1)
		}
		defer func() {
			_ = server.Shutdown(context.Background())
		}()
		logger.Printf("main: bridge ready at %s", server.BaseURL())
	}

	if headless {
		<-ctx.Done()
		return
	}

	p := tea.NewProgram(tui.NewConsole(session), tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "Console error: %v\n", err)
		os.Exit(1)
	}
	cancel()
}
