// Package llm implements the typed structured-output LLM client wrapper:
// bounded retries, a hard per-attempt timeout, and schema validation, with
// callers required to treat a nil result as "unavailable" and degrade
// gracefully rather than treat it as an error.
package llm

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"noetic/internal/logging"
)

// Transport is the out-of-process collaborator: an HTTP client to a local
// model server. The core only depends on this interface; which server it
// points at (Ollama, vLLM, ...) is outside the engine's concern.
type Transport interface {
	// Complete sends prompt at temperature and returns the raw model
	// output, or an error for a transport failure (timeout, connection
	// refused, non-2xx response).
	Complete(ctx context.Context, model, prompt string, temperature float64) (string, error)
	// ListModels is the lightweight call check_connection uses.
	ListModels(ctx context.Context) ([]string, error)
}

// Client is the structured-output wrapper described in the design: it owns
// retry/timeout policy and schema validation; Transport only ever sees one
// attempt at a time.
type Client struct {
	model       string
	timeout     time.Duration
	maxRetries  int
	temperature float64

	mu        sync.Mutex
	transport Transport
	build     func() Transport
}

// New creates a client. build is invoked at most once, the first time a
// call needs a transport (lazy initialization, as the design requires).
func New(model string, timeout time.Duration, maxRetries int, temperature float64, build func() Transport) *Client {
	return &Client{
		model:       model,
		timeout:     timeout,
		maxRetries:  maxRetries,
		temperature: temperature,
		build:       build,
	}
}

func (c *Client) ensureTransport() Transport {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.transport == nil {
		logging.LLM("lazily initializing transport for model %s", c.model)
		c.transport = c.build()
	}
	return c.transport
}

// Validator performs schema validation beyond plain JSON well-formedness;
// callers return an error to reject an otherwise-parseable response.
type Validator[T any] func(T) error

// StructuredQuery sends prompt and unmarshals the model's JSON response
// into T, retrying up to maxRetries additional times on transport failure
// or malformed/invalid output. It always returns within
// timeout*(maxRetries+1) wall-clock, and returns ok=false — never an
// error — once the retry budget is exhausted, per the design's
// never-raise-to-the-caller contract.
func StructuredQuery[T any](ctx context.Context, c *Client, prompt string, validate Validator[T]) (T, bool) {
	var zero T
	transport := c.ensureTransport()

	attempts := c.maxRetries + 1
	for attempt := 0; attempt < attempts; attempt++ {
		attemptCtx, cancel := context.WithTimeout(ctx, c.timeout)
		raw, err := transport.Complete(attemptCtx, c.model, prompt, c.temperature)
		cancel()

		if err != nil {
			logging.LLM("attempt %d/%d transport error: %v", attempt+1, attempts, err)
			continue
		}

		var value T
		if err := json.Unmarshal([]byte(raw), &value); err != nil {
			logging.LLM("attempt %d/%d malformed JSON: %v", attempt+1, attempts, err)
			continue
		}
		if validate != nil {
			if err := validate(value); err != nil {
				logging.LLM("attempt %d/%d failed schema validation: %v", attempt+1, attempts, err)
				continue
			}
		}
		return value, true
	}

	logging.Get(logging.CategoryLLM).Error("structured query exhausted %d attempt(s), degrading to unavailable", attempts)
	return zero, false
}

// CheckConnection is a lightweight bounded call used to probe transport
// availability without spending a structured-query retry budget.
func (c *Client) CheckConnection(ctx context.Context) bool {
	transport := c.ensureTransport()
	attemptCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	_, err := transport.ListModels(attemptCtx)
	if err != nil {
		logging.LLM("check_connection failed: %v", err)
		return false
	}
	return true
}

// WorstCaseLatency returns the documented upper bound timeout*(maxRetries+1).
func (c *Client) WorstCaseLatency() time.Duration {
	return c.timeout * time.Duration(c.maxRetries+1)
}
