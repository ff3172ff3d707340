package ollama

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
)

// generateStream reads the NDJSON body of a streaming /api/generate
// call, yielding one text fragment per line.
type generateStream struct {
	body    io.ReadCloser
	scanner *bufio.Scanner
	done    bool
}

func (c *Client) openStream(ctx context.Context, path string, payload any) (*generateStream, error) {
	resp, err := c.post(ctx, path, payload, "generate_stream")
	if err != nil {
		return nil, wrapTemporaryIfNeeded("generate_stream", err)
	}
	if resp.StatusCode >= 300 {
		err := statusError("generate_stream", resp)
		_ = resp.Body.Close()
		return nil, wrapTemporaryIfNeeded("generate_stream", err)
	}

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	return &generateStream{body: resp.Body, scanner: scanner}, nil
}

func (s *generateStream) Recv() (string, error) {
	if s.done {
		return "", io.EOF
	}
	for s.scanner.Scan() {
		line := strings.TrimSpace(s.scanner.Text())
		if line == "" {
			continue
		}

		var chunk struct {
			Response string `json:"response"`
			Done     bool   `json:"done"`
			Error    string `json:"error"`
		}
		if err := json.Unmarshal([]byte(line), &chunk); err != nil {
			return "", fmt.Errorf("decode stream line: %w", err)
		}
		if chunk.Error != "" {
			return "", fmt.Errorf("ollama stream: %s", chunk.Error)
		}
		if chunk.Done {
			s.done = true
			if chunk.Response != "" {
				return chunk.Response, nil
			}
			return "", io.EOF
		}
		return chunk.Response, nil
	}
	if err := s.scanner.Err(); err != nil {
		return "", fmt.Errorf("read stream: %w", err)
	}
	s.done = true
	return "", io.EOF
}

// Close releases the in-flight completion call. The server may still
// finish already-issued work; its output is discarded.
func (s *generateStream) Close() error {
	s.done = true
	return s.body.Close()
}
