package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"options-core/internal/api"
	"options-core/internal/bot"
	"options-core/internal/status"
	"options-core/pkg/broker"
	"options-core/pkg/broker/iqws"
	"options-core/pkg/broker/sim"
	"options-core/pkg/config"
)

const simStartBalance = 10000

// brokerFactory picks the brokerage backend from configuration: the live
// websocket API, or the in-process simulator for practice runs.
func brokerFactory(ctx context.Context, cfg *config.Config, accountType string) (broker.Client, error) {
	var client broker.Client
	switch cfg.BrokerMode {
	case "iqws":
		client = iqws.New(iqws.Options{
			URL:         cfg.BrokerURL,
			Email:       cfg.BrokerEmail,
			Password:    cfg.BrokerPass,
			AccountType: accountType,
		})
	default:
		client = sim.New(time.Now().UnixNano(), simStartBalance, nil)
	}
	if err := client.Connect(ctx); err != nil {
		return nil, err
	}
	return client, nil
}

func main() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var store *status.Store
	if cfg.RedisURL != "" {
		store, err = status.NewStore(ctx, cfg.RedisURL)
		if err != nil {
			log.Printf("status store unavailable, running local-only: %v", err)
			store = nil
		} else {
			defer store.Close()
		}
	}

	bots := bot.NewManager(cfg, store, brokerFactory)

	if cfg.AutoStart {
		startCtx, startCancel := context.WithTimeout(ctx, 60*time.Second)
		if err := bots.Start(startCtx, cfg.AutoStartID, bot.StartSpec{}); err != nil {
			startCancel()
			log.Fatalf("auto start: %v", err)
		}
		startCancel()
		log.Printf("auto-started bot %s (%s mode)", cfg.AutoStartID, cfg.BrokerMode)
	}

	server := api.NewServer(bots, store, cfg.JWTSecret)
	go func() {
		if err := server.Start(":" + cfg.Port); err != nil {
			log.Fatalf("api server: %v", err)
		}
	}()
	log.Printf("listening on :%s", cfg.Port)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan
	log.Println("shutting down, stopping bots")
	bots.StopAll()
}
