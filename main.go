// haven - a local-first terminal client for the haven chat backend.
//
// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/jeranaias/haven-tui/internal/backend"
	"github.com/jeranaias/haven-tui/internal/chat"
	"github.com/jeranaias/haven-tui/internal/chatsync"
	"github.com/jeranaias/haven-tui/internal/config"
	"github.com/jeranaias/haven-tui/internal/logging"
	"github.com/jeranaias/haven-tui/internal/store"
	"github.com/jeranaias/haven-tui/internal/stream"
	"github.com/jeranaias/haven-tui/internal/ui"
)

// Version information (set at build time)
var (
	Version   = "0.1.0"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

func main() {
	var (
		serverURL   = flag.String("server", "", "backend base URL (overrides config)")
		userID      = flag.String("user", "", "user identifier (overrides config)")
		noSync      = flag.Bool("no-sync", false, "disable background sync")
		showVersion = flag.Bool("version", false, "print version and exit")
	)
	flag.Parse()

	if *showVersion {
		fmt.Printf("haven %s (%s, %s)\n", Version, GitCommit, BuildDate)
		return
	}

	if err := run(*serverURL, *userID, *noSync); err != nil {
		fmt.Fprintf(os.Stderr, "haven: %v\n", err)
		os.Exit(1)
	}
}

func run(serverURL, userID string, noSync bool) error {
	if err := config.EnsureAppDir(); err != nil {
		return fmt.Errorf("failed to create app directory: %w", err)
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if serverURL != "" {
		cfg.Server.BaseURL = serverURL
	}
	if userID != "" {
		cfg.User.ID = userID
	}
	if cfg.User.ID == "" {
		return fmt.Errorf("no user configured: set user.id in config.toml, HAVEN_USER, or --user")
	}

	logPath, err := config.LogPath()
	if err != nil {
		return err
	}
	if err := logging.Init(logPath, logging.ParseLevel(cfg.Log.Level)); err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	defer logging.Close()
	log := logging.New("main")
	log.Infof("haven %s starting, backend %s, user %s", Version, cfg.Server.BaseURL, cfg.User.ID)

	// Backend client.
	client := backend.NewClientWithConfig(&backend.ClientConfig{
		BaseURL: cfg.Server.BaseURL,
		Timeout: time.Duration(cfg.Server.TimeoutSecs) * time.Second,
	})

	// Local persistence and cache.
	dbPath, err := config.DatabasePath()
	if err != nil {
		return err
	}
	db, err := store.Open(dbPath)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	cache := store.NewCache()
	saved, err := db.ListConversations(context.Background())
	if err != nil {
		log.Warnf("failed to load saved conversations: %v", err)
	}
	for _, conv := range saved {
		cache.Put(conv)
	}
	log.Infof("loaded %d conversations from disk", len(saved))

	// Background sync.
	var syncEngine *chatsync.Engine
	syncCtx, stopSync := context.WithCancel(context.Background())
	defer stopSync()
	if !noSync {
		syncEngine = chatsync.NewEngine(client, cache, db, &chatsync.Config{
			Mode:     chatsync.Mode(cfg.Sync.Mode),
			Interval: time.Duration(cfg.Sync.IntervalSecs) * time.Second,
		})
		syncEngine.SetUser(cfg.User.ID)
		go syncEngine.Run(syncCtx)
	}

	// Streaming and turn orchestration. The notify hook is attached after
	// the program exists.
	manager := stream.NewManager(client)
	controller := chat.NewController(client, manager, cache, db, syncEngine, cfg.User.ID, chat.Options{
		Model:        cfg.Chat.Model,
		Temperature:  cfg.Chat.Temperature,
		MaxTokens:    cfg.Chat.MaxTokens,
		SystemPrompt: cfg.Chat.SystemPrompt,
		UseMemory:    cfg.Chat.UseMemory,
	}, nil)
	defer controller.Close()

	// Terminal interface.
	uiModel := ui.New(controller, cache, syncEngine, cfg)
	program := tea.NewProgram(uiModel, tea.WithAltScreen(), tea.WithMouseCellMotion())

	controller.SetNotify(func(u chat.Update) {
		program.Send(ui.Deliver(u))
	})

	// Reload the interface when the config file is edited externally.
	cfgPath, err := config.Path()
	if err == nil {
		if watcher, werr := config.Watch(cfgPath); werr == nil {
			defer watcher.Close()
			go func() {
				for reloaded := range watcher.Changes() {
					program.Send(ui.ConfigReloadedMsg{Config: reloaded})
				}
			}()
		} else {
			log.Warnf("config watch unavailable: %v", werr)
		}
	}

	if _, err := program.Run(); err != nil {
		return fmt.Errorf("terminal interface failed: %w", err)
	}
	log.Infof("haven shutting down")
	return nil
}
