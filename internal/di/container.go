// Package di assembles the operator server from its parts.
package di

import (
	"fmt"
	"net/http"

	"browser-operator/internal/application/port/output"
	"browser-operator/internal/application/usecase/orchestrator"
	"browser-operator/internal/config"
	"browser-operator/internal/infrastructure/llm/openrouter"
	"browser-operator/internal/infrastructure/logger"
	"browser-operator/internal/infrastructure/transport"
)

type Container struct {
	Logger  output.LoggerPort
	LLM     output.LLMPort
	Policy  *config.Policy
	Gateway *transport.Gateway
	Handler http.Handler
}

type Config struct {
	OpenRouterAPIKey string
	OpenRouterModel  string
	TranscribeModel  string
	PolicyPath       string
	LogLevel         string
	LogDir           string
}

func NewContainer(cfg Config) (*Container, error) {
	logCfg := logger.DefaultConfig()
	logCfg.Level = cfg.LogLevel
	logCfg.Dir = cfg.LogDir
	logCfg.RunName = "operator"
	log, err := logger.NewZapAdapter(logCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}

	pol, err := config.Load(cfg.PolicyPath)
	if err != nil {
		_ = log.Close()
		return nil, fmt.Errorf("failed to load policy: %w", err)
	}

	llmCfg := openrouter.DefaultConfig(cfg.OpenRouterAPIKey, cfg.OpenRouterModel)
	if cfg.TranscribeModel != "" {
		llmCfg.TranscribeModel = cfg.TranscribeModel
	}
	llm := openrouter.NewAdapter(llmCfg)

	factory := func(tabID string, sink output.CommandSink) transport.SessionHandler {
		return orchestrator.New(tabID, llm, sink, log, pol)
	}

	gw := transport.NewGateway(factory, llm, log)

	return &Container{
		Logger:  log,
		LLM:     llm,
		Policy:  pol,
		Gateway: gw,
		Handler: gw.Router(),
	}, nil
}

func (c *Container) Close() {
	if c.Logger != nil {
		_ = c.Logger.Close()
	}
}
