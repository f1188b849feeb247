// Command taskrunner is the one user-invokable entrypoint spec.md §6.5
// describes: given (session_id, goal), run the orchestrator to
// completion, print the final result string, and exit 0 on success, 2
// on an uncaught error, 3 on deadline-exceeded with no partial result.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/gomind-labs/taskrunner/ai"
	_ "github.com/gomind-labs/taskrunner/ai/providers/anthropic"
	_ "github.com/gomind-labs/taskrunner/ai/providers/gemini"
	_ "github.com/gomind-labs/taskrunner/ai/providers/openai"
	"github.com/gomind-labs/taskrunner/core"
	"github.com/gomind-labs/taskrunner/embeddings"
	"github.com/gomind-labs/taskrunner/executor"
	"github.com/gomind-labs/taskrunner/genmodel"
	"github.com/gomind-labs/taskrunner/learner"
	"github.com/gomind-labs/taskrunner/memory"
	"github.com/gomind-labs/taskrunner/planner"
	"github.com/gomind-labs/taskrunner/ragcollab"
	"github.com/gomind-labs/taskrunner/resilience"
	"github.com/gomind-labs/taskrunner/reuse"
	"github.com/gomind-labs/taskrunner/runner"
	"github.com/gomind-labs/taskrunner/subagents"
)

func main() {
	if len(os.Args) != 3 {
		fmt.Fprintln(os.Stderr, "usage: taskrunner <session_id> <goal>")
		os.Exit(2)
	}
	sessionID, goal := os.Args[1], os.Args[2]

	logger := core.NewProductionLogger("taskrunner", os.Getenv("LOG_LEVEL"), os.Getenv("LOG_FORMAT"))

	result, err := run(sessionID, goal, logger)
	if err != nil {
		log.Printf("taskrunner: run failed: %v", err)
		os.Exit(2)
	}
	fmt.Println(result)
	const partialMarker = "(partial: deadline exceeded)"
	if strings.HasPrefix(result, partialMarker) && strings.TrimSpace(strings.TrimPrefix(result, partialMarker)) == "{}" {
		os.Exit(3)
	}
}

func run(sessionID, goal string, logger core.Logger) (result string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("taskrunner: panic: %v", r)
		}
	}()

	var cfgOpts []runner.Option
	if cfgFile := os.Getenv("TASKRUNNER_CONFIG_FILE"); cfgFile != "" {
		if opt, loadErr := runner.LoadConfigFile(cfgFile); loadErr != nil {
			logger.Warn("taskrunner: config file ignored", map[string]interface{}{"path": cfgFile, "error": loadErr.Error()})
		} else {
			cfgOpts = append(cfgOpts, opt)
		}
	}
	cfg := runner.NewConfig(cfgOpts...)

	aiClient, aiErr := ai.NewChainClient(
		ai.WithProviderChain(providerChain()...),
		ai.WithChainLogger(logger),
	)
	if aiErr != nil {
		return "", fmt.Errorf("taskrunner: ai client: %w", aiErr)
	}

	var genOpts []genmodel.Option
	if modelCB := newCircuitBreaker("genmodel", logger); modelCB != nil {
		genOpts = append(genOpts, genmodel.WithCircuitBreaker(modelCB))
	}
	model := genmodel.New(aiClient, logger, genOpts...)

	var embedder embeddings.Client
	if apiKey := os.Getenv("OPENAI_API_KEY"); apiKey != "" {
		embedder = embeddings.NewOpenAIClient(apiKey, os.Getenv("EMBEDDING_BASE_URL"), os.Getenv("EMBEDDING_MODEL"), cfg.EmbeddingDim, logger)
	}

	var store memory.Store
	var rag ragcollab.Collaborator
	if redisURL := os.Getenv("REDIS_URL"); redisURL != "" {
		var storeOpts []memory.RedisStoreOption
		storeOpts = append(storeOpts, memory.WithRedisURL(redisURL))
		if storeCB := newCircuitBreaker("memory-store", logger); storeCB != nil {
			storeOpts = append(storeOpts, memory.WithCircuitBreaker(storeCB))
		}
		redisStore, storeErr := memory.NewRedisStore(storeOpts...)
		if storeErr != nil {
			logger.Warn("taskrunner: redis memory store unavailable", map[string]interface{}{"error": storeErr.Error()})
		} else {
			store = redisStore
		}

		redisOpt, parseErr := redis.ParseURL(redisURL)
		if parseErr != nil {
			logger.Warn("taskrunner: redis url for rag store invalid", map[string]interface{}{"error": parseErr.Error()})
		} else {
			knowledge := ragcollab.NewRedisKnowledgeStore(redis.NewClient(redisOpt), "")
			rag = ragcollab.NewService(embedder, knowledge, model, logger)
		}
	}

	registry := subagents.NewDefaultRegistry(subagents.Dependencies{
		RAG:    rag,
		Model:  model,
		Logger: logger,
	})

	pl := planner.New(model, registry, logger, planner.WithMaxAttempts(cfg.PlannerMaxAttempts))
	ex := executor.New(model, registry, embedder, store, logger,
		executor.WithMaxAttempts(max(2, cfg.PlannerMaxAttempts)),
		executor.WithScholarlyMin(cfg.WebSearchScholarlyMin))
	lr := learner.New(embedder, store, model, logger)
	gate := reuse.New(embedder, store, registry, logger, reuse.WithTopK(cfg.ProceduralTopK), reuse.WithThreshold(cfg.ReuseThreshold))

	orch := runner.New(cfg, registry, pl, ex, lr, gate, rag, embedder, store, logger)

	return orch.Handle(context.Background(), sessionID, goal, time.Now())
}

// newCircuitBreaker builds a named resilience.CircuitBreaker via the
// package's dependency-injection factory (auto-wires OTel metrics when
// telemetry is globally initialized). Construction only fails on an
// invalid config, in which case the caller degrades to running
// without one (the teacher's "circuit breaker is injected, never
// required" rule).
func newCircuitBreaker(name string, logger core.Logger) core.CircuitBreaker {
	cb, err := resilience.CreateCircuitBreaker(name, resilience.ResilienceDependencies{Logger: logger})
	if err != nil {
		logger.Warn("taskrunner: circuit breaker disabled", map[string]interface{}{"name": name, "error": err.Error()})
		return nil
	}
	return cb
}

// providerChain resolves the AI provider fallback order from
// AI_PROVIDER_CHAIN (comma-separated aliases, e.g. "openai,anthropic"),
// defaulting to a single OpenAI provider.
func providerChain() []string {
	if v := os.Getenv("AI_PROVIDER_CHAIN"); v != "" {
		parts := strings.Split(v, ",")
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}
		return parts
	}
	return []string{"openai"}
}
