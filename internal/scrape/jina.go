package scrape

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/rfpdesk/internal/model"
	"github.com/sells-group/rfpdesk/internal/resilience"
	"github.com/sells-group/rfpdesk/pkg/jina"
)

// JinaAdapter wraps a Jina Reader client as a Scraper behind a circuit
// breaker.
type JinaAdapter struct {
	client  jina.Client
	breaker *resilience.Breaker
}

// NewJinaAdapter creates a JinaAdapter. Three consecutive failures within
// 30s open the circuit for 60s, during which the chain skips the reader.
func NewJinaAdapter(client jina.Client) *JinaAdapter {
	return &JinaAdapter{
		client: client,
		breaker: resilience.NewBreaker(resilience.BreakerConfig{
			Name:      "jina",
			Threshold: 3,
			Window:    30 * time.Second,
			Cooldown:  60 * time.Second,
		}),
	}
}

func (j *JinaAdapter) Name() model.FetchMethod { return model.FetchJina }

// Supports returns true unless the circuit breaker is open.
func (j *JinaAdapter) Supports(_ string) bool { return j.breaker.Allow() }

// Scrape fetches a URL via Jina Reader. Challenge pages count as failures.
func (j *JinaAdapter) Scrape(ctx context.Context, targetURL string) (*Result, error) {
	return resilience.Do(ctx, j.breaker, func(ctx context.Context) (*Result, error) {
		resp, err := j.client.Read(ctx, targetURL)
		if err != nil {
			return nil, err
		}
		if needsFallback(resp) {
			return nil, eris.New("jina: response has no usable content")
		}

		pageURL := resp.Data.URL
		if pageURL == "" {
			pageURL = targetURL
		}
		return &Result{
			URL:     pageURL,
			Title:   resp.Data.Title,
			Content: resp.Data.Content,
			Method:  model.FetchJina,
		}, nil
	})
}

// needsFallback reports whether a reader response is an error envelope or
// a blocked page.
func needsFallback(resp *jina.ReadResponse) bool {
	if resp == nil {
		return true
	}
	if resp.Code != 0 && resp.Code != 200 {
		return true
	}
	return IsChallengeText(resp.Data.Content)
}
