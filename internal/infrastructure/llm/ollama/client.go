package ollama

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/visvikbharti/rna-lab-navigator-sub001/internal/core/ports"
	"github.com/visvikbharti/rna-lab-navigator-sub001/internal/infrastructure/resilience"
)

// Client talks to a local Ollama instance for both embeddings and text
// completions. Completion calls carry a long timeout; streamed
// completions can run for tens of seconds.
type Client struct {
	baseURL    string
	genModel   string
	embedModel string
	httpClient *http.Client
	executor   *resilience.Executor
}

func New(baseURL, genModel, embedModel string, executor *resilience.Executor) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		genModel:   genModel,
		embedModel: embedModel,
		httpClient: &http.Client{Timeout: 120 * time.Second},
		executor:   executor,
	}
}

func (c *Client) ModelID() string {
	return c.genModel
}

// EmbedQuery calls the embedding backend exactly once. Embedding sits
// on the retrieval path, which fails fast instead of retrying; only
// synthesis calls go through the retry executor.
func (c *Client) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	request := map[string]any{
		"model": c.embedModel,
		"input": []string{text},
	}

	var response struct {
		Embeddings [][]float32 `json:"embeddings"`
	}
	if err := c.postJSON(ctx, "/api/embed", request, &response, "embed"); err != nil {
		return nil, wrapTemporaryIfNeeded("embed", err)
	}
	if len(response.Embeddings) == 0 {
		return nil, fmt.Errorf("empty embedding result")
	}
	return response.Embeddings[0], nil
}

func (c *Client) Complete(ctx context.Context, prompt string) (string, error) {
	request := map[string]any{
		"model":  c.genModel,
		"prompt": prompt,
		"stream": false,
	}

	var response struct {
		Response string `json:"response"`
	}
	err := c.execute(ctx, "generate", func(callCtx context.Context) error {
		return c.postJSON(callCtx, "/api/generate", request, &response, "generate")
	})
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(response.Response), nil
}

// CompleteStream opens a streaming generate call. The stream itself is
// not retried: a failure mid-stream surfaces to the dispatcher, which
// owns delivery semantics.
func (c *Client) CompleteStream(ctx context.Context, prompt string) (ports.CompletionStream, error) {
	request := map[string]any{
		"model":  c.genModel,
		"prompt": prompt,
		"stream": true,
	}
	return c.openStream(ctx, "/api/generate", request)
}

func (c *Client) execute(ctx context.Context, operation string, call func(context.Context) error) error {
	if c.executor == nil {
		return wrapTemporaryIfNeeded(operation, call(ctx))
	}
	err := c.executor.Execute(ctx, "ollama."+operation, call, classifyOllamaError)
	return wrapTemporaryIfNeeded(operation, err)
}

var _ ports.Embedder = (*Client)(nil)
var _ ports.Completer = (*Client)(nil)
