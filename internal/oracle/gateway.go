// Package oracle wraps the host-supplied generation function in a
// validated gateway that classifies transport errors and enforces the
// usage-token contract, per spec.md §4.3.
package oracle

import (
	"context"
	"fmt"
	"strings"

	"omg/internal/logging"
)

// Params is the oracle call contract.
type Params struct {
	System    string
	User      string
	MaxTokens int
}

// Usage reports token counts for a completed call.
type Usage struct {
	InputTokens  int
	OutputTokens int
}

// Response is what a successful oracle call returns.
type Response struct {
	Content string
	Usage   Usage
}

// Generate is the host-injected oracle function: generate(system, user,
// maxTokens) -> {content, usage}.
type Generate func(ctx context.Context, p Params) (Response, error)

// ValidationError reports a malformed request or response.
type ValidationError struct {
	Field string
	Msg   string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("oracle: invalid %s: %s", e.Field, e.Msg)
}

// RateLimitError indicates the oracle should be retried after backoff.
type RateLimitError struct{ Model string; Cause error }

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("oracle: rate limited (model=%s): %v", e.Model, e.Cause)
}
func (e *RateLimitError) Unwrap() error { return e.Cause }

// GatewayUnreachableError indicates a transport-level failure.
type GatewayUnreachableError struct{ Model string; Cause error }

func (e *GatewayUnreachableError) Error() string {
	return fmt.Sprintf("oracle: gateway unreachable (model=%s): %v", e.Model, e.Cause)
}
func (e *GatewayUnreachableError) Unwrap() error { return e.Cause }

// PipelineAbortedError is terminal for the current pipeline run.
type PipelineAbortedError struct{ Reason string; Cause error }

func (e *PipelineAbortedError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("oracle: pipeline aborted: %s: %v", e.Reason, e.Cause)
	}
	return fmt.Sprintf("oracle: pipeline aborted: %s", e.Reason)
}
func (e *PipelineAbortedError) Unwrap() error { return e.Cause }

// OtherError wraps a classified-as-"other" LLM error, recorded verbatim
// in failure logs.
type OtherError struct{ Model string; Cause error }

func (e *OtherError) Error() string { return fmt.Sprintf("oracle: %s: %v", e.Model, e.Cause) }
func (e *OtherError) Unwrap() error { return e.Cause }

// Gateway validates calls to a Generate function and classifies its
// failures into the typed errors above.
type Gateway struct {
	model    string
	generate Generate
}

// NewGateway wraps generate with validation for the named model.
func NewGateway(model string, generate Generate) *Gateway {
	return &Gateway{model: model, generate: generate}
}

// Call validates params, invokes the underlying generate function,
// classifies any error, and validates the returned usage.
func (g *Gateway) Call(ctx context.Context, p Params) (Response, error) {
	log := logging.Get(logging.CategoryOracle)

	if p.MaxTokens <= 0 {
		return Response{}, &ValidationError{Field: "maxTokens", Msg: fmt.Sprintf("must be positive for model %s, got %d", g.model, p.MaxTokens)}
	}

	resp, err := g.generate(ctx, p)
	if err != nil {
		classified := classify(g.model, err)
		log.Warn("generate failed: %v", classified)
		return Response{}, classified
	}

	if resp.Usage.InputTokens < 0 || resp.Usage.OutputTokens < 0 {
		return Response{}, &ValidationError{Field: "usage", Msg: "token counts must be >= 0"}
	}

	return resp, nil
}

// classify maps a raw error to one of RateLimitError, GatewayUnreachableError,
// or OtherError, in that priority order, based on message content.
func classify(model string, err error) error {
	msg := strings.ToLower(err.Error())

	rateLimitMarkers := []string{"rate limit", "rate_limit", "too many requests", "429"}
	for _, m := range rateLimitMarkers {
		if strings.Contains(msg, m) {
			return &RateLimitError{Model: model, Cause: err}
		}
	}

	unreachableMarkers := []string{
		"econnrefused", "econnreset", "etimedout", "enotfound",
		"fetch failed", "connection error",
	}
	for _, m := range unreachableMarkers {
		if strings.Contains(msg, m) {
			return &GatewayUnreachableError{Model: model, Cause: err}
		}
	}

	return &OtherError{Model: model, Cause: err}
}
