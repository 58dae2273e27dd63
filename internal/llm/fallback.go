package llm

import (
	"context"

	"github.com/wolfman30/callcrm-ai-platform/pkg/logging"
)

// FallbackClient wraps a primary client with a secondary provider tried on failure.
type FallbackClient struct {
	primary  Client
	fallback Client
	logger   *logging.Logger
}

// NewFallbackClient returns primary unchanged when fallback is nil.
func NewFallbackClient(primary, fallback Client, logger *logging.Logger) Client {
	if fallback == nil {
		return primary
	}
	if primary == nil {
		return fallback
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &FallbackClient{primary: primary, fallback: fallback, logger: logger}
}

func (c *FallbackClient) Complete(ctx context.Context, req Request) (Response, error) {
	resp, err := c.primary.Complete(ctx, req)
	if err == nil {
		return resp, nil
	}
	c.logger.Warn("primary LLM failed, attempting fallback", "error", err)
	fallbackResp, fallbackErr := c.fallback.Complete(ctx, req)
	if fallbackErr != nil {
		c.logger.Error("fallback LLM also failed", "primary_error", err, "fallback_error", fallbackErr)
		return Response{}, fallbackErr
	}
	return fallbackResp, nil
}
