package main

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/pricing-cli/internal/pipeline"
	"github.com/sells-group/pricing-cli/internal/store"
	anthropicpkg "github.com/sells-group/pricing-cli/pkg/anthropic"
	"github.com/sells-group/pricing-cli/pkg/meli"
)

// pipelineEnv holds the initialized store, clients, and pipeline needed by
// the analyze/bulk/serve commands.
type pipelineEnv struct {
	Store    store.Store
	Pipeline *pipeline.Pipeline
}

// Close releases resources held by the pipeline environment.
func (pe *pipelineEnv) Close() {
	if pe.Store != nil {
		_ = pe.Store.Close()
	}
}

// initStore opens the SQLite run store.
func initStore(ctx context.Context) (store.Store, error) {
	path := cfg.Store.Path
	if path == "" {
		path = "pricing.db"
	}
	st, err := store.NewSQLite(path)
	if err != nil {
		return nil, eris.Wrap(err, "init sqlite store")
	}
	return st, nil
}

// initPipeline sets up the store, API clients, and the Pipeline. Callers
// should defer env.Close().
func initPipeline(ctx context.Context) (*pipelineEnv, error) {
	if cfg.Anthropic.Key == "" {
		return nil, eris.New("PRICING_ANTHROPIC_KEY not set (required: enrichment, classification, recommendation)")
	}

	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}

	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}

	meliOpts := []meli.Option{meli.WithBaseURL(cfg.Meli.BaseURL)}
	if cfg.Meli.AccessToken != "" {
		meliOpts = append(meliOpts, meli.WithAccessToken(cfg.Meli.AccessToken))
	}
	if cfg.Meli.TimeoutSecs > 0 {
		meliOpts = append(meliOpts, meli.WithTimeout(time.Duration(cfg.Meli.TimeoutSecs)*time.Second))
	}
	meliClient := meli.NewClient(cfg.Meli.SiteID, meliOpts...)

	anthropicClient := anthropicpkg.NewClient(cfg.Anthropic.Key)
	factory := pipeline.NewAgentFactory(anthropicClient, cfg.Anthropic, cfg.Pipeline.MaxAlternativeQueries)

	p := pipeline.New(cfg, st,
		pipeline.NewMeliExtractor(meliClient),
		pipeline.NewMeliSearcher(meliClient),
		factory,
	)

	return &pipelineEnv{Store: st, Pipeline: p}, nil
}
