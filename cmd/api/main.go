package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"

	"balance_sheet_analyzer/pkg/api"
	"balance_sheet_analyzer/pkg/api/session"
	"balance_sheet_analyzer/pkg/core/config"
	"balance_sheet_analyzer/pkg/core/ingest"
	"balance_sheet_analyzer/pkg/core/logging"
	"balance_sheet_analyzer/pkg/core/pipeline"
	"balance_sheet_analyzer/pkg/core/prompt"
	"balance_sheet_analyzer/pkg/core/setup"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

func main() {
	// Load environment variables
	godotenv.Load()

	configPath := os.Getenv("APP_CONFIG")
	if configPath == "" {
		configPath = "config/app.yaml"
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		if errors.Is(err, config.ErrMissingCredential) {
			fmt.Fprintf(os.Stderr, "[FATAL] %v\n  Set it in the environment or in .env and restart.\n", err)
		} else {
			fmt.Fprintf(os.Stderr, "[FATAL] %v\n", err)
		}
		os.Exit(1)
	}

	logger, err := logging.Init(cfg.Logging.Level, cfg.Logging.Format)
	if err != nil {
		fmt.Fprintf(os.Stderr, "[FATAL] logging: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	if err := run(cfg); err != nil {
		zap.L().Fatal("server stopped", zap.Error(err))
	}
}

func run(cfg *config.Config) error {
	ctx := context.Background()

	// Resources directory next to the working dir, falling back to the executable's dir.
	resourcesPath := cfg.Resources
	if _, err := os.Stat(resourcesPath); os.IsNotExist(err) {
		exePath, _ := os.Executable()
		resourcesPath = filepath.Join(filepath.Dir(exePath), cfg.Resources)
	}
	if err := prompt.LoadFromDirectory(resourcesPath); err != nil {
		zap.L().Warn("using embedded prompts", zap.Error(err))
	}

	agentMgr, closeLLM, err := setup.NewAgentManager(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeLLM()

	stores, closeStores, err := setup.OpenStores(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeStores()

	uploader := pipeline.NewUploader(setup.NewExtractionEngine(cfg, agentMgr), ingest.NewFetcher())
	if cfg.Server.UploadDir != "" {
		if err := os.MkdirAll(cfg.Server.UploadDir, 0o755); err != nil {
			return fmt.Errorf("upload dir: %w", err)
		}
		uploader.SetTempDir(cfg.Server.UploadDir)
	}

	newConversation, err := setup.ConversationFactory(cfg, agentMgr)
	if err != nil {
		return err
	}

	mux := api.NewRouter(api.Deps{
		Stores:   stores,
		Sessions: session.NewRegistry(cfg.SessionTTL(), newConversation),
		Uploader: uploader,
		AgentMgr: agentMgr,
	})

	zap.L().Info("API server starting",
		zap.String("addr", cfg.Server.Addr),
		zap.Strings("groups", cfg.Groups),
		zap.Strings("routes", api.Routes),
	)
	return http.ListenAndServe(cfg.Server.Addr, mux)
}
