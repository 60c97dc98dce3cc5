package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/viper"

	"github.com/kasbahsoft/comptaflow/internal/classify"
	"github.com/kasbahsoft/comptaflow/internal/common"
	"github.com/kasbahsoft/comptaflow/internal/config"
	"github.com/kasbahsoft/comptaflow/internal/extract"
	"github.com/kasbahsoft/comptaflow/internal/journal"
	"github.com/kasbahsoft/comptaflow/internal/llm"
	"github.com/kasbahsoft/comptaflow/internal/model"
	"github.com/kasbahsoft/comptaflow/internal/pcm"
	"github.com/kasbahsoft/comptaflow/internal/pipeline"
	"github.com/kasbahsoft/comptaflow/internal/service"
	"github.com/kasbahsoft/comptaflow/internal/storage"
)

// initStorage opens the database with proper path expansion and brings the
// schema up to date.
func initStorage(ctx context.Context) (service.Storage, error) {
	dbPath := viper.GetString("database.path")
	if dbPath == "" {
		dbPath = "$HOME/.local/share/comptaflow/comptaflow.db"
	}
	dbPath = config.ExpandPath(dbPath)

	store, err := storage.NewSQLiteStorage(dbPath)
	if err != nil {
		return nil, err
	}
	if err := store.Migrate(ctx); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	return store, nil
}

// currentSession builds the acting session from configuration. In the
// deployed system this arrives pre-resolved from the auth layer; the CLI
// stands in for it.
func currentSession() (model.Session, error) {
	sess := model.Session{
		AgentID:   viper.GetInt64("session.agent_id"),
		CabinetID: viper.GetInt64("session.cabinet_id"),
		SocieteID: viper.GetInt64("session.societe_id"),
		Username:  viper.GetString("session.username"),
		Role:      model.Role(viper.GetString("session.role")),
	}
	if sess.Role == "" {
		sess.Role = model.RoleAgent
	}
	if sess.CabinetID == 0 || sess.SocieteID == 0 {
		return sess, fmt.Errorf("%w: cabinet and societe are required (--cabinet, --societe)", common.ErrMissingConfig)
	}
	return sess, nil
}

func llmConfig() llm.Config {
	cfg := llm.Config{
		Provider:    viper.GetString("llm.provider"),
		APIKey:      viper.GetString("llm.api_key"),
		Model:       viper.GetString("llm.model"),
		MaxRetries:  viper.GetInt("llm.max_retries"),
		RetryDelay:  viper.GetDuration("llm.retry_delay"),
		CacheTTL:    viper.GetDuration("llm.cache_ttl"),
		RateLimit:   viper.GetInt("llm.rate_limit"),
		Temperature: viper.GetFloat64("llm.temperature"),
		MaxTokens:   viper.GetInt("llm.max_tokens"),
	}
	if cfg.Provider == "" {
		cfg.Provider = "anthropic"
	}
	if cfg.RetryDelay == 0 {
		cfg.RetryDelay = time.Second
	}
	return cfg
}

// initEngine wires the full pipeline. Without an oracle API key the
// extraction chain degrades to the local parser and classification is
// unavailable.
func initEngine(ctx context.Context) (*pipeline.Engine, func(), error) {
	store, err := initStorage(ctx)
	if err != nil {
		return nil, nil, err
	}

	cfg := llmConfig()

	var extractors []extract.Extractor
	var oracle *llm.Oracle
	var classifier *classify.Service

	if cfg.APIKey != "" {
		client, clientErr := llm.NewClient(cfg)
		if clientErr != nil {
			_ = store.Close()
			return nil, nil, clientErr
		}
		extractors = append(extractors,
			llm.NewStructuredExtractor(client),
			llm.NewLegacyExtractor(client),
		)

		oracle, err = llm.NewOracle(cfg, pcm.Default())
		if err != nil {
			_ = store.Close()
			return nil, nil, err
		}
		classifier = classify.NewService(oracle)
	}
	extractors = append(extractors, extract.NewLocalExtractor())

	engine := pipeline.NewEngine(
		store,
		extract.NewChain(extractors...),
		classifier,
		journal.NewGenerator(pcm.Default()),
	)

	cleanup := func() {
		if oracle != nil {
			oracle.Close()
		}
		_ = store.Close()
	}
	return engine, cleanup, nil
}

// requireOracle rejects commands that need the classification oracle when
// no API key is configured.
func requireOracle() error {
	if llmConfig().APIKey == "" {
		return fmt.Errorf("%w: llm.api_key (or COMPTAFLOW_LLM_API_KEY) is required for classification", common.ErrMissingConfig)
	}
	return nil
}
