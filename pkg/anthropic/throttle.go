package anthropic

import (
	"context"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"
)

// ThrottledClient rate-limits CreateMessage calls with a token bucket and
// logs token usage for each successful call.
type ThrottledClient struct {
	next      Client
	limiter   *rate.Limiter
	operation string
}

// NewThrottledClient wraps next with a limiter of rps requests per second.
// A non-positive rps disables throttling.
func NewThrottledClient(next Client, rps float64, operation string) *ThrottledClient {
	limit := rate.Inf
	if rps > 0 {
		limit = rate.Limit(rps)
	}
	burst := int(rps)
	if burst < 1 {
		burst = 1
	}
	return &ThrottledClient{
		next:      next,
		limiter:   rate.NewLimiter(limit, burst),
		operation: operation,
	}
}

func (c *ThrottledClient) CreateMessage(ctx context.Context, req MessageRequest) (*MessageResponse, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, eris.Wrap(err, "anthropic: rate limit wait")
	}

	resp, err := c.next.CreateMessage(ctx, req)
	if err != nil {
		return nil, err
	}

	resp.Usage.LogCost(req.Model, c.operation)
	return resp, nil
}
