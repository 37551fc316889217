package main

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/rfpdesk/internal/answer"
	"github.com/sells-group/rfpdesk/internal/draft"
	"github.com/sells-group/rfpdesk/internal/export"
	"github.com/sells-group/rfpdesk/internal/extract"
	"github.com/sells-group/rfpdesk/internal/ingest"
	"github.com/sells-group/rfpdesk/internal/knowledge"
	"github.com/sells-group/rfpdesk/internal/ocr"
	"github.com/sells-group/rfpdesk/internal/project"
	"github.com/sells-group/rfpdesk/internal/question"
	"github.com/sells-group/rfpdesk/internal/scrape"
	"github.com/sells-group/rfpdesk/internal/store"
	"github.com/sells-group/rfpdesk/internal/summarize"
	anthropicpkg "github.com/sells-group/rfpdesk/pkg/anthropic"
)

// appEnv holds the store and every service the commands use.
type appEnv struct {
	Store     store.Store
	Projects  *project.Service
	Ingest    *ingest.Service
	Summaries *summarize.Service
	Drafts    *draft.Service
	Questions *question.Service
	Knowledge *knowledge.Service
	Export    *export.Service

	pool *ingest.Pool
}

// Close drains background summaries and closes the store.
func (a *appEnv) Close(ctx context.Context) {
	if a.pool != nil {
		if err := a.pool.Shutdown(ctx); err != nil {
			zap.L().Warn("background summaries did not drain", zap.Error(err))
		}
	}
	if a.Store != nil {
		_ = a.Store.Close()
	}
}

// initApp opens the store and wires the services. Callers should defer
// env.Close.
func initApp(ctx context.Context) (*appEnv, error) {
	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}

	var client anthropicpkg.Client
	if cfg.Anthropic.Key != "" {
		client = anthropicpkg.NewThrottledClient(
			anthropicpkg.NewClient(cfg.Anthropic.Key),
			cfg.Anthropic.RequestsPerSecond,
			"rfpdesk",
		)
	}

	ocrExtractor, err := ocr.NewExtractor(cfg.OCR)
	if err != nil {
		_ = st.Close()
		return nil, err
	}
	xopts := []extract.Option{extract.WithMaxBytes(cfg.Upload.MaxBytes)}
	if ocrExtractor != nil {
		xopts = append(xopts, extract.WithOCR(ocrExtractor))
	}
	extractor := extract.New(xopts...)

	chain := scrape.NewChainFromConfig(cfg, extractor)
	zap.L().Info("scrape chain configured", zap.Any("scrapers", chain.Names()))

	summaries := summarize.NewService(st, summarize.New(client, summarize.OptionsFromConfig(cfg.Summary, cfg.Anthropic)))
	answers := answer.New(client, st, summaries, answer.OptionsFromConfig(cfg.Answer, cfg.Anthropic))

	mode := ingest.Mode(cfg.Summary.AutoMode)
	taskTimeout := time.Duration(cfg.Summary.TaskTimeoutSecs) * time.Second
	var pool *ingest.Pool
	if mode == ingest.ModeAsync {
		pool = ingest.NewPool(cfg.Summary.AsyncWorkers, cfg.Summary.AsyncWorkers*16, taskTimeout)
	}

	return &appEnv{
		Store:     st,
		Projects:  project.NewService(st),
		Ingest:    ingest.NewService(st, extractor, chain, ingest.WithSummaries(summaries, mode, pool), ingest.WithSyncTimeout(taskTimeout)),
		Summaries: summaries,
		Drafts:    draft.NewService(st),
		Questions: question.NewService(st, answers),
		Knowledge: knowledge.NewService(st),
		Export:    export.NewService(st),
		pool:      pool,
	}, nil
}
