package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/DevRickLin/tpp-chat-filter/internal/api"
	"github.com/DevRickLin/tpp-chat-filter/internal/biz/usecase"
	"github.com/DevRickLin/tpp-chat-filter/internal/conf"
	"github.com/DevRickLin/tpp-chat-filter/internal/data"
	"github.com/DevRickLin/tpp-chat-filter/internal/infra/feishu"
	"github.com/DevRickLin/tpp-chat-filter/internal/server"
	"github.com/DevRickLin/tpp-chat-filter/internal/service"
)

func main() {
	cfg, err := conf.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid config: %v", err)
	}

	var feishuClient *feishu.Client
	if cfg.FeishuEnabled() {
		feishuClient = feishu.NewClient(cfg.Feishu.AppID, cfg.Feishu.AppSecret)
	}

	// Initialize repository layer
	repos, err := data.NewRepositories(cfg.ToStorageOptions(), feishuClient)
	if err != nil {
		log.Fatalf("Failed to create repositories: %v", err)
	}
	defer repos.Close()
	fmt.Printf("[Filter] Settings backend: %s\n", cfg.Storage.Backend)

	// Initialize usecase layer
	rules, err := conf.LoadCatalog(cfg.Filter.CatalogPath, cfg.Filter.SelfName)
	if err != nil {
		log.Fatalf("Failed to load catalog: %v", err)
	}
	engine, err := usecase.NewEngine(repos.Storage, rules)
	if err != nil {
		log.Fatalf("Failed to create engine: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := engine.Load(ctx); err != nil {
		log.Fatalf("Failed to load settings: %v", err)
	}
	buffer := usecase.NewBufferUsecase(engine, cfg.ToBufferConfig())

	// Initialize service layer
	chat := service.NewChatService(engine, buffer, repos.Message)
	scheduler := service.NewRefreshScheduler(chat, cfg.Filter.RefreshInterval)
	scheduler.Start(ctx)

	if cfg.Debug {
		events, unsubscribe := chat.Subscribe(256)
		defer unsubscribe()
		go logEvents(events)
	}

	if cfg.Filter.CatalogPath != "" {
		watcher, err := conf.WatchCatalog(ctx, cfg.Filter.CatalogPath, cfg.Filter.SelfName, func(next usecase.RulesConfig) error {
			if err := engine.ApplyRules(next); err != nil {
				return err
			}
			buffer.MarkDirty()
			return nil
		})
		if err != nil {
			fmt.Printf("[Filter] Warning: catalog hot reload disabled: %v\n", err)
		} else {
			defer watcher.Close()
		}
	}

	// Initialize servers
	apiServer := api.NewServer(chat, cfg.API.Port)
	go func() {
		if err := apiServer.Start(); err != nil {
			fmt.Printf("[Filter] API server error: %v\n", err)
		}
	}()

	var relay *server.FeishuServer
	if feishuClient != nil {
		if err := cfg.ValidateRelay(); err != nil {
			log.Fatalf("Invalid relay config: %v", err)
		}
		relay, err = server.NewFeishuServer(feishuClient, chat, cfg.ToRelayConfig())
		if err != nil {
			log.Fatalf("Failed to create relay: %v", err)
		}
		if cfg.Relay.Backfill > 0 {
			n, err := chat.Backfill(ctx, cfg.Relay.SourceChatID, cfg.Relay.Backfill)
			if err != nil {
				fmt.Printf("[Filter] Warning: backfill failed: %v\n", err)
			} else {
				fmt.Printf("[Filter] Backfilled %d lines from %s\n", n, cfg.Relay.SourceChatID)
			}
		}
		go func() {
			if err := relay.Start(ctx); err != nil {
				fmt.Printf("[Filter] Feishu relay error: %v\n", err)
			}
		}()
	}

	// Graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	fmt.Println("Starting TPP chat filter...")
	<-sigCh
	fmt.Println("\nShutting down...")

	if relay != nil {
		relay.Stop()
	}
	scheduler.Stop()
	apiServer.Stop()
}

func logEvents(events <-chan service.Event) {
	for ev := range events {
		switch ev.Type {
		case service.EventLine, service.EventUpdate:
			fmt.Printf("[Debug] %s %s visible=%v filters=%v text=%q\n",
				ev.Type, ev.Line.ID, ev.Line.Decision.Visible, ev.Line.Decision.MatchedFilters, ev.Line.Decision.Text)
		case service.EventSlowmode:
			fmt.Printf("[Debug] slowmode blocked=%v reason=%s wait=%ds\n",
				ev.Slowmode.Blocked, ev.Slowmode.Reason, ev.Slowmode.WaitSeconds())
		case service.EventSetting:
			fmt.Printf("[Debug] setting %s = %s\n", ev.Setting, ev.Value)
		}
	}
}
