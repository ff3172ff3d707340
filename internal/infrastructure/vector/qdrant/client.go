package qdrant

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/visvikbharti/rna-lab-navigator-sub001/internal/core/domain"
	"github.com/visvikbharti/rna-lab-navigator-sub001/internal/core/ports"
)

// Client queries a qdrant collection holding the ingested corpus
// chunks. The collection carries a dense vector per chunk plus a named
// sparse vector ("keywords") built by the same encoder used for
// queries; ingestion (offline, external) writes both.
type Client struct {
	baseURL    string
	collection string
	httpClient *http.Client
}

func New(baseURL, collection string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		collection: collection,
		httpClient: &http.Client{Timeout: 15 * time.Second},
	}
}

func (c *Client) SearchDense(ctx context.Context, queryVector []float32, limit int, docType string) ([]domain.CandidateChunk, error) {
	reqBody := map[string]any{
		"vector":       queryVector,
		"limit":        limit,
		"with_payload": true,
	}
	if filter := docTypeFilter(docType); filter != nil {
		reqBody["filter"] = filter
	}

	hits, err := c.search(ctx, reqBody, "dense")
	if err != nil {
		return nil, err
	}

	out := make([]domain.CandidateChunk, 0, len(hits))
	for _, hit := range hits {
		chunk := chunkFromPayload(hit.ID, hit.Payload)
		chunk.VectorScore = clampUnit(hit.Score)
		out = append(out, chunk)
	}
	return out, nil
}

func (c *Client) SearchSparse(ctx context.Context, queryText string, limit int, docType string) ([]domain.CandidateChunk, error) {
	sparse := encodeSparseQuery(queryText)
	if len(sparse.Indices) == 0 {
		return nil, nil
	}

	reqBody := map[string]any{
		"vector": map[string]any{
			"name":   "keywords",
			"vector": sparse,
		},
		"limit":        limit,
		"with_payload": true,
	}
	if filter := docTypeFilter(docType); filter != nil {
		reqBody["filter"] = filter
	}

	hits, err := c.search(ctx, reqBody, "sparse")
	if err != nil {
		return nil, err
	}

	// Sparse dot-product scores are unbounded; normalize against the
	// best hit so the blend weight means the same thing on both sides.
	maxScore := 0.0
	for _, hit := range hits {
		if hit.Score > maxScore {
			maxScore = hit.Score
		}
	}

	out := make([]domain.CandidateChunk, 0, len(hits))
	for _, hit := range hits {
		chunk := chunkFromPayload(hit.ID, hit.Payload)
		if maxScore > 0 {
			chunk.KeywordScore = clampUnit(hit.Score / maxScore)
		}
		out = append(out, chunk)
	}
	return out, nil
}

type searchHit struct {
	ID      any            `json:"id"`
	Score   float64        `json:"score"`
	Payload map[string]any `json:"payload"`
}

func (c *Client) search(ctx context.Context, reqBody map[string]any, operation string) ([]searchHit, error) {
	body, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshal %s search body: %w", operation, err)
	}

	url := fmt.Sprintf("%s/collections/%s/points/search", c.baseURL, c.collection)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create %s search request: %w", operation, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("qdrant %s search request: %w", operation, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		if msg := strings.TrimSpace(string(body)); msg != "" {
			return nil, fmt.Errorf("qdrant %s search status: %s: %s", operation, resp.Status, msg)
		}
		return nil, fmt.Errorf("qdrant %s search status: %s", operation, resp.Status)
	}

	var searchResp struct {
		Result []searchHit `json:"result"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&searchResp); err != nil {
		return nil, fmt.Errorf("decode %s search response: %w", operation, err)
	}
	return searchResp.Result, nil
}

func docTypeFilter(docType string) map[string]any {
	if docType == "" {
		return nil
	}
	return map[string]any{
		"must": []map[string]any{
			{
				"key":   "doc_type",
				"match": map[string]any{"value": docType},
			},
		},
	}
}

func chunkFromPayload(id any, payload map[string]any) domain.CandidateChunk {
	return domain.CandidateChunk{
		ID:         fmt.Sprintf("%v", id),
		DocumentID: getStringPayload(payload, "doc_id"),
		Text:       getStringPayload(payload, "text"),
		Meta: domain.ChunkMeta{
			Title:   getStringPayload(payload, "title"),
			Author:  getStringPayload(payload, "author"),
			Year:    getIntPayload(payload, "year"),
			DocType: getStringPayload(payload, "doc_type"),
			Section: getStringPayload(payload, "section"),
		},
	}
}

func getStringPayload(payload map[string]any, key string) string {
	v, ok := payload[key]
	if !ok || v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprintf("%v", v)
}

func getIntPayload(payload map[string]any, key string) int {
	switch v := payload[key].(type) {
	case float64:
		return int(v)
	case int:
		return v
	case json.Number:
		n, _ := v.Int64()
		return int(n)
	default:
		return 0
	}
}

func clampUnit(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

var _ ports.SearchIndex = (*Client)(nil)
