package generator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"idea2blog/extract"
)

// GatewayConfig bounds every model call.
type GatewayConfig struct {
	// CallTimeout caps a single attempt; expiry counts as ErrModelUnavailable.
	CallTimeout time.Duration
	// MaxAttempts counts the first call, so 3 means at most two retries.
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

// DefaultGatewayConfig returns the production retry policy.
func DefaultGatewayConfig() GatewayConfig {
	return GatewayConfig{
		CallTimeout: 2 * time.Minute,
		MaxAttempts: 3,
		BaseDelay:   time.Second,
		MaxDelay:    10 * time.Second,
	}
}

// Gateway is the single entry point to the model. It retries transient
// failures with bounded exponential backoff and surfaces rejections at once.
// It holds no per-call state and is safe for concurrent use.
type Gateway struct {
	client LLMClient
	cfg    GatewayConfig
	logger *zap.Logger
	tracer trace.Tracer
}

func NewGateway(client LLMClient, cfg GatewayConfig, logger *zap.Logger) (*Gateway, error) {
	if client == nil {
		return nil, errors.New("llm client is required")
	}
	if cfg.MaxAttempts < 1 {
		return nil, fmt.Errorf("gateway max attempts must be at least 1, got %d", cfg.MaxAttempts)
	}
	if cfg.CallTimeout <= 0 {
		return nil, fmt.Errorf("gateway call timeout must be positive, got %s", cfg.CallTimeout)
	}
	if cfg.BaseDelay < 0 || cfg.MaxDelay < cfg.BaseDelay {
		return nil, fmt.Errorf("gateway delays invalid: base %s, max %s", cfg.BaseDelay, cfg.MaxDelay)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Gateway{
		client: client,
		cfg:    cfg,
		logger: logger.Named("gateway"),
		tracer: otel.Tracer("idea2blog/generator"),
	}, nil
}

// Invoke sends prompt for the stage described by schema and returns the raw reply.
//
// Failures are either ErrModelUnavailable (after retries are exhausted, or when
// ctx ends) or ErrModelRejected (immediately).
func (g *Gateway) Invoke(ctx context.Context, schema extract.Schema, prompt Prompt) (string, error) {
	if prompt.Stage == "" {
		prompt.Stage = schema.Name
	}
	ctx, span := g.tracer.Start(ctx, "generator.invoke",
		trace.WithAttributes(attribute.String("stage", prompt.Stage)))
	defer span.End()

	start := time.Now()
	attempts := 0
	op := func() (string, error) {
		attempts++
		reply, err := g.call(ctx, prompt)
		if err == nil {
			return reply, nil
		}
		if errors.Is(err, ErrModelRejected) || ctx.Err() != nil {
			return "", backoff.Permanent(err)
		}
		return "", err
	}

	reply, err := backoff.Retry(ctx, op,
		backoff.WithBackOff(g.backOff()),
		backoff.WithMaxTries(uint(g.cfg.MaxAttempts)),
		backoff.WithMaxElapsedTime(0),
		backoff.WithNotify(func(err error, next time.Duration) {
			g.logger.Warn("model call failed, retrying",
				zap.String("stage", prompt.Stage),
				zap.Int("attempt", attempts),
				zap.Duration("backoff", next),
				zap.Error(err))
		}),
	)
	span.SetAttributes(attribute.Int("attempts", attempts))
	if err != nil {
		var perm *backoff.PermanentError
		if errors.As(err, &perm) {
			err = perm.Err
		}
		if !errors.Is(err, ErrModelRejected) {
			// Context cancellation between attempts comes back unclassified.
			err = Unavailable(err)
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		g.logger.Error("model call failed",
			zap.String("stage", prompt.Stage),
			zap.Int("attempts", attempts),
			zap.Duration("elapsed", time.Since(start)),
			zap.Error(err))
		return "", err
	}

	span.SetAttributes(attribute.Int("reply_len", len(reply)))
	g.logger.Debug("model call completed",
		zap.String("stage", prompt.Stage),
		zap.Int("attempts", attempts),
		zap.Int("prompt_len", len(prompt.Text())),
		zap.Int("reply_len", len(reply)),
		zap.Duration("elapsed", time.Since(start)))
	return reply, nil
}

func (g *Gateway) call(ctx context.Context, prompt Prompt) (string, error) {
	callCtx, cancel := context.WithTimeout(ctx, g.cfg.CallTimeout)
	defer cancel()

	reply, err := g.client.Complete(callCtx, prompt)
	switch {
	case err == nil && strings.TrimSpace(reply) == "":
		return "", Unavailable(errors.New("empty reply"))
	case err == nil:
		return reply, nil
	case errors.Is(err, ErrModelRejected), errors.Is(err, ErrModelUnavailable):
		return "", err
	case ctx.Err() != nil:
		return "", Unavailable(fmt.Errorf("call aborted: %w", err))
	case errors.Is(err, context.DeadlineExceeded):
		return "", Unavailable(fmt.Errorf("call timed out after %s: %w", g.cfg.CallTimeout, err))
	default:
		return "", Unavailable(err)
	}
}

func (g *Gateway) backOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = g.cfg.BaseDelay
	b.Multiplier = 2
	b.RandomizationFactor = 0.2
	b.MaxInterval = g.cfg.MaxDelay
	return b
}
