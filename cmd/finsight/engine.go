package main

import (
	"fmt"
	"time"

	"finsight/internal/agent"
	"finsight/internal/conversation"
	"finsight/internal/llm"
	"finsight/internal/nlsql"
	"finsight/internal/store"
)

// engine bundles the wired pipeline for one CLI session.
type engine struct {
	store        *store.Store
	orchestrator *agent.Orchestrator
}

func (e *engine) Close() error {
	return e.store.Close()
}

// buildEngine wires the store, the LLM capability, and the orchestrator
// from the loaded config.
func buildEngine() (*engine, error) {
	st, err := store.Open(cfg.Store.DatabasePath, logger.Named("store"))
	if err != nil {
		return nil, err
	}

	client, err := buildLLMClient()
	if err != nil {
		st.Close()
		return nil, err
	}

	requestTimeout, err := cfg.RequestTimeout()
	if err != nil {
		st.Close()
		return nil, err
	}

	orch := agent.New(
		nlsql.NewGate(client, logger.Named("gate")),
		nlsql.NewGenerator(client, logger.Named("generator")),
		nlsql.NewRefiner(client, logger.Named("refiner")),
		st,
		st,
		nlsql.NewClassifier(client, logger.Named("classifier")),
		nlsql.NewSummarizer(client, logger.Named("summarizer")),
		nlsql.NewCalculator(client, logger.Named("calculator")),
		conversation.New(cfg.Engine.HistorySize),
		logger.Named("agent"),
		agent.Options{
			MaxAttempts:    cfg.Engine.MaxAttempts,
			PreviewRows:    cfg.Engine.PreviewRows,
			RequestTimeout: requestTimeout,
		},
	)

	return &engine{store: st, orchestrator: orch}, nil
}

func buildLLMClient() (llm.Client, error) {
	if cfg.LLM.APIKey == "" {
		return nil, fmt.Errorf("LLM API key required: set llm.api_key, FINSIGHT_API_KEY, or --api-key")
	}

	timeout, err := cfg.LLMTimeout()
	if err != nil {
		return nil, err
	}

	switch cfg.LLM.Provider {
	case "gemini":
		client, err := llm.NewGeminiClientWithConfig(llm.GeminiConfig{
			APIKey:      cfg.LLM.APIKey,
			Model:       cfg.LLM.Model,
			Temperature: float32(cfg.LLM.Temperature),
		})
		if err != nil {
			return nil, err
		}
		return client, nil
	case "groq", "":
		groqCfg := llm.DefaultGroqConfig(cfg.LLM.APIKey)
		if cfg.LLM.Model != "" {
			groqCfg.Model = cfg.LLM.Model
		}
		if cfg.LLM.BaseURL != "" {
			groqCfg.BaseURL = cfg.LLM.BaseURL
		}
		if cfg.LLM.Temperature > 0 {
			groqCfg.Temperature = cfg.LLM.Temperature
		}
		groqCfg.Timeout = timeout
		return llm.NewGroqClientWithConfig(groqCfg), nil
	default:
		return nil, fmt.Errorf("unknown llm provider %q (want groq or gemini)", cfg.LLM.Provider)
	}
}

// filterContextFromFlags validates the scope flags into a FilterContext.
func filterContextFromFlags() (agent.FilterContext, error) {
	fc := agent.FilterContext{
		BankIDs:       bankIDs,
		AccountIDs:    accountIDs,
		ReferenceDate: time.Now(),
	}
	if refDate != "" {
		d, err := time.Parse("2006-01-02", refDate)
		if err != nil {
			return fc, fmt.Errorf("invalid --date %q: want YYYY-MM-DD", refDate)
		}
		fc.ReferenceDate = d
	}
	if err := fc.Validate(); err != nil {
		return fc, fmt.Errorf("%w (use --banks and --accounts; run 'finsight ids' to list them)", err)
	}
	return fc, nil
}
