package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"knowledge-capture-platform/internal/config"
)

// EmbeddingClient talks to the embedding sidecar over HTTP. The sidecar
// hosts a multimodal model, so text and images land in the same vector space.
type EmbeddingClient struct {
	config     *config.Config
	httpClient *http.Client
	baseURL    string
}

type embedTextRequest struct {
	Text string `json:"text"`
}

type embedTextsRequest struct {
	Texts []string `json:"texts"`
}

type embedTextResponse struct {
	Success   bool      `json:"success"`
	Embedding []float32 `json:"embedding"`
	Dimension int       `json:"dimension"`
	Error     string    `json:"error,omitempty"`
}

type embedTextsResponse struct {
	Success    bool        `json:"success"`
	Embeddings [][]float32 `json:"embeddings"`
	Dimension  int         `json:"dimension"`
	Error      string      `json:"error,omitempty"`
}

// EmbedHealthResponse represents the sidecar health check response
type EmbedHealthResponse struct {
	Status      string `json:"status"`
	ModelLoaded bool   `json:"model_loaded"`
	Dimension   int    `json:"dimension"`
	Device      string `json:"device"`
}

// NewEmbeddingClient creates a client for the embedding sidecar
func NewEmbeddingClient(cfg *config.Config) *EmbeddingClient {
	baseURL := cfg.EmbedServiceURL
	if baseURL == "" {
		baseURL = "http://localhost:8001"
	}

	return &EmbeddingClient{
		config: cfg,
		httpClient: &http.Client{
			Timeout: time.Duration(cfg.EmbedTimeout) * time.Second,
		},
		baseURL: baseURL,
	}
}

// IsHealthy checks if the embedding sidecar is up and has its model loaded
func (c *EmbeddingClient) IsHealthy(ctx context.Context) (bool, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", c.baseURL+"/health", nil)
	if err != nil {
		return false, fmt.Errorf("failed to create health check request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false, fmt.Errorf("health check request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return false, fmt.Errorf("embedding service unhealthy: status %d", resp.StatusCode)
	}

	var healthResp EmbedHealthResponse
	if err := json.NewDecoder(resp.Body).Decode(&healthResp); err != nil {
		return false, fmt.Errorf("failed to decode health response: %w", err)
	}

	return healthResp.Status == "healthy" && healthResp.ModelLoaded, nil
}

// EmbedText embeds a single text string
func (c *EmbeddingClient) EmbedText(ctx context.Context, text string) ([]float32, error) {
	body, err := json.Marshal(embedTextRequest{Text: text})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal embed request: %w", err)
	}

	var embedResp embedTextResponse
	if err := c.postJSON(ctx, "/embed/text", body, &embedResp); err != nil {
		return nil, err
	}

	if !embedResp.Success {
		return nil, fmt.Errorf("text embedding failed: %s", embedResp.Error)
	}

	return embedResp.Embedding, nil
}

// EmbedTexts embeds a batch of texts in one round trip. The response
// preserves input order.
func (c *EmbeddingClient) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	body, err := json.Marshal(embedTextsRequest{Texts: texts})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal batch embed request: %w", err)
	}

	var embedResp embedTextsResponse
	if err := c.postJSON(ctx, "/embed/texts", body, &embedResp); err != nil {
		return nil, err
	}

	if !embedResp.Success {
		return nil, fmt.Errorf("batch text embedding failed: %s", embedResp.Error)
	}
	if len(embedResp.Embeddings) != len(texts) {
		return nil, fmt.Errorf("batch embedding returned %d vectors for %d texts",
			len(embedResp.Embeddings), len(texts))
	}

	return embedResp.Embeddings, nil
}

// EmbedImageFile embeds an image stored on disk via multipart upload
func (c *EmbeddingClient) EmbedImageFile(ctx context.Context, filePath string) ([]float32, error) {
	fileData, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read image file: %w", err)
	}

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	fileWriter, err := writer.CreateFormFile("file", filepath.Base(filePath))
	if err != nil {
		return nil, fmt.Errorf("failed to create form file: %w", err)
	}
	if _, err := io.Copy(fileWriter, bytes.NewReader(fileData)); err != nil {
		return nil, fmt.Errorf("failed to copy image data: %w", err)
	}
	writer.Close()

	httpReq, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/embed/image", &buf)
	if err != nil {
		return nil, fmt.Errorf("failed to create image embed request: %w", err)
	}
	httpReq.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("image embed request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("image embed request failed with status %d: %s", resp.StatusCode, string(respBody))
	}

	var embedResp embedTextResponse
	if err := json.NewDecoder(resp.Body).Decode(&embedResp); err != nil {
		return nil, fmt.Errorf("failed to decode image embed response: %w", err)
	}
	if !embedResp.Success {
		return nil, fmt.Errorf("image embedding failed: %s", embedResp.Error)
	}

	return embedResp.Embedding, nil
}

// Dimension reports the vector size the sidecar produces. Falls back to
// the configured dimension when the sidecar is unreachable.
func (c *EmbeddingClient) Dimension(ctx context.Context) int {
	req, err := http.NewRequestWithContext(ctx, "GET", c.baseURL+"/health", nil)
	if err != nil {
		return c.config.VectorDimensions
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return c.config.VectorDimensions
	}
	defer resp.Body.Close()

	var healthResp EmbedHealthResponse
	if err := json.NewDecoder(resp.Body).Decode(&healthResp); err != nil || healthResp.Dimension == 0 {
		return c.config.VectorDimensions
	}

	return healthResp.Dimension
}

func (c *EmbeddingClient) postJSON(ctx context.Context, path string, body []byte, out any) error {
	httpReq, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("embedding request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("embedding request failed with status %d: %s", resp.StatusCode, string(respBody))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode embedding response: %w", err)
	}

	return nil
}
