package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/convoflow/convoflow/config"
	"github.com/convoflow/convoflow/engine"
	"github.com/convoflow/convoflow/forge"
	"github.com/convoflow/convoflow/forge/chatnode"
	"github.com/convoflow/convoflow/forge/fraseio"
	"github.com/convoflow/convoflow/forge/webhook"
	"github.com/convoflow/convoflow/server"
	"github.com/convoflow/convoflow/storage"
)

var configPath string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the viewer API server",
	RunE: func(cmd *cobra.Command, args []string) error {
		return serve(configPath)
	},
}

func init() {
	serveCmd.Flags().StringVarP(&configPath, "config", "c", "config.yaml", "path to config file")
}

func serve(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("error loading config: %w", err)
	}
	key, err := cfg.Key()
	if err != nil {
		return err
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	sessions := storage.NewRedisSessionStore(client, time.Duration(cfg.SessionTTL))
	credentials := storage.NewCredentialsResolver(
		storage.NewRedisCredentialsStore(client),
		key,
		time.Duration(cfg.CredentialsCacheTTL),
	)

	// The registry is built once here and passed by reference; there is no
	// process-global mutable registry.
	registry := forge.NewRegistry(
		chatnode.Block(),
		fraseio.Block(),
		webhook.Block(),
	)

	bridge := engine.NewBridge(registry, credentials, logger)
	executor := engine.NewExecutor(bridge, logger)

	g := gin.Default()
	server.New(logger, sessions, executor, bridge).Register(g)

	logger.Info("Starting viewer API", "listen", cfg.Listen)
	if err := g.Run(cfg.Listen); err != nil {
		return fmt.Errorf("error running server: %w", err)
	}
	return nil
}
