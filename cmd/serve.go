package cmd

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/taskpilot/internal/api"
	"github.com/taskpilot/internal/breaker"
	"github.com/taskpilot/internal/chat"
	"github.com/taskpilot/internal/config"
	"github.com/taskpilot/internal/database"
	"github.com/taskpilot/internal/logging"
	"github.com/taskpilot/internal/reasoning"
	"github.com/taskpilot/internal/store"
	"github.com/taskpilot/internal/taskstore"
	"github.com/taskpilot/internal/tools"
)

// ServeCommand returns the CLI command for starting the API server
func ServeCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Start the TaskPilot API server",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:    "port",
				Aliases: []string{"p"},
				Usage:   "Port for the API server (overrides config)",
			},
		},
		Action: runServe,
	}
}

func runServe(c *cli.Context) error {
	cfg, err := config.LoadConfig(c.String("config"))
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if port := c.Int("port"); port > 0 {
		cfg.Server.Port = port
	}
	if err := config.Validate(cfg); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	logging.Setup(cfg.Server.LogLevel, cfg.Server.LogFormat)

	db, err := database.NewDB(cfg.Database.URL)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer db.Close()

	if err := database.Migrate(context.Background(), db); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}

	conversations := store.NewPostgresStore(db)
	tasks := taskstore.NewPostgresTaskStore(db)

	engine, err := reasoning.NewLangchainEngine(context.Background(), reasoning.Options{
		Provider:    reasoning.Provider(cfg.Reasoning.Provider),
		APIKey:      cfg.Reasoning.APIKey,
		Model:       cfg.Reasoning.Model,
		BaseURL:     cfg.Reasoning.BaseURL,
		MaxTokens:   cfg.Reasoning.MaxTokens,
		Temperature: cfg.Reasoning.Temp,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize reasoning engine: %w", err)
	}

	b := breaker.New(breaker.Config{
		FailureThreshold: cfg.Breaker.FailureThreshold,
		Cooldown:         cfg.BreakerCooldown(),
	})
	resilient := reasoning.NewResilientEngine(engine, b, cfg.ReasoningTimeout())

	registry := tools.NewRegistry(tools.NewHandlers(tasks), cfg.ToolTimeout())
	assembler := chat.NewAssembler(cfg.Chat.TokenBudget)
	orchestrator := chat.NewOrchestrator(conversations, registry, resilient, assembler, cfg.Chat.MaxMessageChars)

	server := api.NewServer(api.Options{
		Port:          cfg.Server.Port,
		JWTSecret:     cfg.Server.JWTSecret,
		RatePerMinute: cfg.Chat.RatePerMinute,
		RateBurst:     cfg.Chat.RateBurst,
	}, conversations, orchestrator)

	return server.Start()
}
