package cmd

import (
	"context"
	"errors"
	"flag"
	"log"
	"os"

	"github.com/bz888/nebula/internal/api"
	"github.com/bz888/nebula/internal/chat"
	"github.com/bz888/nebula/internal/config"
	"github.com/bz888/nebula/internal/logger"
	"github.com/bz888/nebula/internal/ui"
)

func Execute() {
	cfg, err := config.Load(os.Args[1:])
	if errors.Is(err, flag.ErrHelp) {
		os.Exit(0)
	}
	if err != nil {
		log.Fatal(err)
	}

	view := ui.New(cfg.Dev)
	if err := logger.InitLogger(cfg.Dev, cfg.LogPath, view.DebugConsole()); err != nil {
		log.Fatal(err)
	}
	defer logger.Close()
	localLogger := logger.NewLogger("main")

	apiClient, err := api.NewClient(api.ClientConfig{
		BaseURL:       cfg.APIURL,
		MaxUploadSize: cfg.MaxUploadSize,
	})
	if err != nil {
		localLogger.Fatal(err)
	}

	chatClient := chat.NewClient(chat.ClientConfig{
		URL:     apiClient.ChatURL(),
		Hooks:   view.Hooks(),
		Session: chat.Session{Search: cfg.Search, Thinking: cfg.Thinking},
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	view.Bind(ui.NewController(ctx, apiClient, chatClient, view))
	localLogger.Info("Using backend ", cfg.APIURL)

	if err := view.Run(cfg.ThreadID); err != nil {
		localLogger.Error(err)
	}
	chatClient.Cancel()
	localLogger.Info("Shutting down gracefully.")
}
