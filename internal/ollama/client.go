package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

var (
	// ErrUnavailable marks transport failures and non-2xx responses.
	ErrUnavailable = errors.New("ollama unavailable")

	// ErrMalformed marks a response body that could not be decoded.
	ErrMalformed = errors.New("ollama returned a malformed response")
)

// Client communicates with a local Ollama instance over HTTP.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

// New creates a Client targeting the given Ollama base URL. Generation and
// embedding calls carry no client-side timeout; cancel through ctx instead.
// If logger is nil, the default slog logger is used.
func New(baseURL string, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 0,
		},
		logger: logger,
	}
}

// BaseURL returns the normalised backend URL.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// tagsResponse mirrors the JSON returned by GET /api/tags.
type tagsResponse struct {
	Models []modelEntry `json:"models"`
}

type modelEntry struct {
	Name string `json:"name"`
}

// IsRunning returns true if the Ollama server responds to GET /api/tags with 200.
func (c *Client) IsRunning(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/tags", nil)
	if err != nil {
		return false
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false
	}
	resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

// ListModels returns the names of all models available in the local Ollama instance.
func (c *Client) ListModels(ctx context.Context) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/tags", nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: requesting model list: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: tags: unexpected status %d", ErrUnavailable, resp.StatusCode)
	}

	var tags tagsResponse
	if err := json.NewDecoder(resp.Body).Decode(&tags); err != nil {
		return nil, fmt.Errorf("%w: decoding tags: %v", ErrMalformed, err)
	}

	names := make([]string, len(tags.Models))
	for i, m := range tags.Models {
		names[i] = m.Name
	}
	return names, nil
}

// HasModel reports whether the given model name is present locally.
func (c *Client) HasModel(ctx context.Context, name string) bool {
	models, err := c.ListModels(ctx)
	if err != nil {
		return false
	}
	for _, m := range models {
		// "gemma3" matches "gemma3:latest".
		if m == name || strings.HasPrefix(m, name+":") {
			return true
		}
	}
	return false
}

// pullRequest is the JSON body for POST /api/pull.
type pullRequest struct {
	Name   string `json:"name"`
	Stream bool   `json:"stream"`
}

// PullProgress is one line of the streamed pull response.
type PullProgress struct {
	Status    string `json:"status"`
	Total     int64  `json:"total,omitempty"`
	Completed int64  `json:"completed,omitempty"`
}

// PullModel downloads a model, reading the streamed progress to completion.
// The optional progress callback receives each progress line; pass nil to ignore.
func (c *Client) PullModel(ctx context.Context, name string, onProgress func(PullProgress)) error {
	body, err := json.Marshal(pullRequest{Name: name, Stream: true})
	if err != nil {
		return err
	}

	resp, err := c.post(ctx, "/api/pull", body)
	if err != nil {
		return fmt.Errorf("pulling model %s: %w", name, err)
	}
	defer resp.Body.Close()

	dec := json.NewDecoder(resp.Body)
	for {
		var p PullProgress
		if err := dec.Decode(&p); err == io.EOF {
			break
		} else if err != nil {
			return fmt.Errorf("%w: reading pull progress: %v", ErrMalformed, err)
		}
		if onProgress != nil {
			onProgress(p)
		}
	}

	return nil
}

// GenerateRequest describes one call to POST /api/generate.
// Zero NumPredict, empty System and nil Temperature are omitted so the model
// defaults apply. A non-nil Temperature is always sent, including 0.
type GenerateRequest struct {
	Model       string
	Prompt      string
	System      string
	NumPredict  int
	Temperature *float64
}

// generateOptions duplicates the sampling fields under "options", which is
// where current Ollama releases read them from.
type generateOptions struct {
	NumPredict  int      `json:"num_predict,omitempty"`
	Temperature *float64 `json:"temperature,omitempty"`
}

// generateBody is the JSON body for POST /api/generate.
type generateBody struct {
	Model       string           `json:"model"`
	Prompt      string           `json:"prompt"`
	System      string           `json:"system,omitempty"`
	NumPredict  int              `json:"num_predict,omitempty"`
	Temperature *float64         `json:"temperature,omitempty"`
	Options     *generateOptions `json:"options,omitempty"`
	Stream      bool             `json:"stream"`
}

// generateResponse is a full non-streaming body or one streamed record.
type generateResponse struct {
	Response string `json:"response"`
	Done     bool   `json:"done"`
	Error    string `json:"error,omitempty"`
}

func (r GenerateRequest) body(stream bool) generateBody {
	b := generateBody{
		Model:       r.Model,
		Prompt:      r.Prompt,
		System:      r.System,
		NumPredict:  r.NumPredict,
		Temperature: r.Temperature,
		Stream:      stream,
	}
	if r.NumPredict != 0 || r.Temperature != nil {
		b.Options = &generateOptions{NumPredict: r.NumPredict, Temperature: r.Temperature}
	}
	return b
}

// Generate performs a blocking generation and returns the "response" field,
// or "" when the backend omits it.
func (c *Client) Generate(ctx context.Context, gr GenerateRequest) (string, error) {
	body, err := json.Marshal(gr.body(false))
	if err != nil {
		return "", err
	}

	resp, err := c.post(ctx, "/api/generate", body)
	if err != nil {
		return "", fmt.Errorf("generate with %s: %w", gr.Model, err)
	}
	defer resp.Body.Close()

	var result generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("%w: decoding generate response: %v", ErrMalformed, err)
	}
	return result.Response, nil
}

// GenerateStream opens a streaming generation. The caller must either drain
// Stream.Fragments or call Stream.Close.
func (c *Client) GenerateStream(ctx context.Context, gr GenerateRequest) (*Stream, error) {
	body, err := json.Marshal(gr.body(true))
	if err != nil {
		return nil, err
	}

	resp, err := c.post(ctx, "/api/generate", body)
	if err != nil {
		return nil, fmt.Errorf("generate stream with %s: %w", gr.Model, err)
	}
	return newStream(resp.Body, c.logger), nil
}

// embeddingsRequest is the JSON body for POST /api/embeddings.
type embeddingsRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
}

// embeddingsResponse is the JSON returned by POST /api/embeddings.
type embeddingsResponse struct {
	Embedding []float32 `json:"embedding"`
}

// Embed returns the embedding vector for the given text using the specified model.
func (c *Client) Embed(ctx context.Context, model string, text string) ([]float32, error) {
	body, err := json.Marshal(embeddingsRequest{Model: model, Prompt: text})
	if err != nil {
		return nil, err
	}

	resp, err := c.post(ctx, "/api/embeddings", body)
	if err != nil {
		return nil, fmt.Errorf("embed with %s: %w", model, err)
	}
	defer resp.Body.Close()

	var result embeddingsResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("%w: decoding embed response: %v", ErrMalformed, err)
	}
	if len(result.Embedding) == 0 {
		return nil, fmt.Errorf("%w: empty embedding", ErrMalformed)
	}
	return result.Embedding, nil
}

// post sends a JSON body and returns the response when the status is 2xx.
// The caller owns resp.Body.
func (c *Client) post(ctx context.Context, path string, body []byte) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		resp.Body.Close()
		return nil, fmt.Errorf("%w: %s returned status %d: %s", ErrUnavailable, path, resp.StatusCode, strings.TrimSpace(string(msg)))
	}
	return resp, nil
}
