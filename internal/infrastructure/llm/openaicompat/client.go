package openaicompat

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"

	openai "github.com/sashabaranov/go-openai"

	"github.com/visvikbharti/rna-lab-navigator-sub001/internal/core/domain"
	"github.com/visvikbharti/rna-lab-navigator-sub001/internal/core/ports"
	"github.com/visvikbharti/rna-lab-navigator-sub001/internal/infrastructure/resilience"
)

// Client adapts any OpenAI-compatible completion/embedding backend
// (OpenAI, LocalAI, vLLM) to the pipeline ports.
type Client struct {
	api        *openai.Client
	genModel   string
	embedModel string
	executor   *resilience.Executor
}

func New(baseURL, apiKey, genModel, embedModel string, executor *resilience.Executor) *Client {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return &Client{
		api:        openai.NewClientWithConfig(cfg),
		genModel:   genModel,
		embedModel: embedModel,
		executor:   executor,
	}
}

func (c *Client) ModelID() string {
	return c.genModel
}

// EmbedQuery calls the embedding backend exactly once; the retrieval
// path fails fast rather than retrying. Only synthesis calls go through
// the retry executor.
func (c *Client) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	resp, err := c.api.CreateEmbeddings(ctx, openai.EmbeddingRequestStrings{
		Input: []string{text},
		Model: openai.EmbeddingModel(c.embedModel),
	})
	if err != nil {
		return nil, wrapTemporary("embed", fmt.Errorf("create embeddings: %w", err))
	}
	if len(resp.Data) == 0 {
		return nil, fmt.Errorf("empty embedding result")
	}
	return resp.Data[0].Embedding, nil
}

func (c *Client) Complete(ctx context.Context, prompt string) (string, error) {
	var text string
	call := func(callCtx context.Context) error {
		resp, err := c.api.CreateChatCompletion(callCtx, c.chatRequest(prompt, false))
		if err != nil {
			return fmt.Errorf("create chat completion: %w", err)
		}
		if len(resp.Choices) == 0 {
			return fmt.Errorf("empty completion result")
		}
		text = resp.Choices[0].Message.Content
		return nil
	}
	if err := c.execute(ctx, "complete", call); err != nil {
		return "", err
	}
	return text, nil
}

func (c *Client) CompleteStream(ctx context.Context, prompt string) (ports.CompletionStream, error) {
	stream, err := c.api.CreateChatCompletionStream(ctx, c.chatRequest(prompt, true))
	if err != nil {
		return nil, wrapTemporary("complete_stream", err)
	}
	return &chatStream{inner: stream}, nil
}

func (c *Client) chatRequest(prompt string, stream bool) openai.ChatCompletionRequest {
	return openai.ChatCompletionRequest{
		Model: c.genModel,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		Stream: stream,
	}
}

func (c *Client) execute(ctx context.Context, operation string, call func(context.Context) error) error {
	if c.executor == nil {
		return wrapTemporary(operation, call(ctx))
	}
	err := c.executor.Execute(ctx, "openai."+operation, call, classifyError)
	return wrapTemporary(operation, err)
}

type chatStream struct {
	inner *openai.ChatCompletionStream
}

func (s *chatStream) Recv() (string, error) {
	resp, err := s.inner.Recv()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return "", io.EOF
		}
		return "", fmt.Errorf("recv completion stream: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", nil
	}
	return resp.Choices[0].Delta.Content, nil
}

func (s *chatStream) Close() error {
	return s.inner.Close()
}

func classifyError(err error) resilience.ErrorClassification {
	if err == nil {
		return resilience.ErrorClassification{}
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return resilience.ErrorClassification{Retryable: false, RecordFailure: false}
	}
	if resilience.IsCircuitOpen(err) {
		return resilience.ErrorClassification{Retryable: true, RecordFailure: true}
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		retryable := apiErr.HTTPStatusCode == 408 || apiErr.HTTPStatusCode == 429 || apiErr.HTTPStatusCode >= 500
		return resilience.ErrorClassification{Retryable: retryable, RecordFailure: retryable}
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return resilience.ErrorClassification{Retryable: true, RecordFailure: true}
	}

	return resilience.ErrorClassification{Retryable: false, RecordFailure: true}
}

func wrapTemporary(operation string, err error) error {
	if err == nil {
		return nil
	}
	if domain.IsKind(err, domain.ErrTemporary) {
		return err
	}
	if class := classifyError(err); class.Retryable || resilience.IsCircuitOpen(err) {
		return domain.WrapError(domain.ErrTemporary, operation, err)
	}
	return err
}

var _ ports.Embedder = (*Client)(nil)
var _ ports.Completer = (*Client)(nil)
