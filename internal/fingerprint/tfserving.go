package fingerprint

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

const (
	defaultTFServingURL   = "http://localhost:8501"
	defaultTFServingModel = "embedding_model"
)

// TFServingClient computes embeddings with a model hosted by TensorFlow
// Serving over its REST API.
type TFServingClient struct {
	baseURL   string
	model     string
	inputSize int
	client    *http.Client
}

// NewTFServingClient creates a client for the named model.
func NewTFServingClient(baseURL, model string, inputSize int) *TFServingClient {
	if baseURL == "" {
		baseURL = defaultTFServingURL
	}
	if model == "" {
		model = defaultTFServingModel
	}
	if inputSize <= 0 {
		inputSize = DefaultInputSize
	}
	return &TFServingClient{
		baseURL:   strings.TrimSuffix(baseURL, "/"),
		model:     model,
		inputSize: inputSize,
		client:    &http.Client{},
	}
}

type predictRequest struct {
	Instances [][][][]float32 `json:"instances"`
}

type predictResponse struct {
	Predictions []json.RawMessage `json:"predictions"`
	Error       string            `json:"error"`
}

type modelStatusResponse struct {
	ModelVersionStatus []struct {
		Version string `json:"version"`
		State   string `json:"state"`
	} `json:"model_version_status"`
}

func (c *TFServingClient) modelURL() string {
	return c.baseURL + "/v1/models/" + url.PathEscape(c.model)
}

// Embed implements Embedder. The image is preprocessed into a single-item
// batch and the first prediction is returned flattened.
func (c *TFServingClient) Embed(ctx context.Context, imageData []byte) ([]float32, error) {
	tensor, err := Preprocess(imageData, c.inputSize)
	if err != nil {
		return nil, err
	}

	payload, err := json.Marshal(predictRequest{Instances: [][][][]float32{tensor.Nested()}})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.modelURL()+":predict", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	body, err := c.do(req)
	if err != nil {
		return nil, err
	}

	var predResp predictResponse
	if err := json.Unmarshal(body, &predResp); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}
	if predResp.Error != "" {
		return nil, fmt.Errorf("model error: %s", predResp.Error)
	}
	if len(predResp.Predictions) == 0 {
		return nil, errors.New("no predictions returned")
	}

	embedding, err := flattenPrediction(predResp.Predictions[0])
	if err != nil {
		return nil, err
	}
	if len(embedding) == 0 {
		return nil, errors.New("empty embedding returned")
	}
	return embedding, nil
}

// Ready implements Embedder. It succeeds once some version of the model is
// AVAILABLE.
func (c *TFServingClient) Ready(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.modelURL(), nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	body, err := c.do(req)
	if err != nil {
		return err
	}

	var status modelStatusResponse
	if err := json.Unmarshal(body, &status); err != nil {
		return fmt.Errorf("failed to parse model status: %w", err)
	}
	for _, v := range status.ModelVersionStatus {
		if v.State == "AVAILABLE" {
			return nil
		}
	}
	return fmt.Errorf("model %s has no available version", c.model)
}

func (c *TFServingClient) do(req *http.Request) ([]byte, error) {
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("API error (status %d): %s", resp.StatusCode, string(body))
	}
	return body, nil
}

// flattenPrediction turns a prediction of any nesting depth into a flat vector.
func flattenPrediction(raw json.RawMessage) ([]float32, error) {
	var value any
	if err := json.Unmarshal(raw, &value); err != nil {
		return nil, fmt.Errorf("failed to parse prediction: %w", err)
	}
	var out []float32
	if err := flattenInto(value, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func flattenInto(value any, out *[]float32) error {
	switch v := value.(type) {
	case float64:
		*out = append(*out, float32(v))
	case []any:
		for _, item := range v {
			if err := flattenInto(item, out); err != nil {
				return err
			}
		}
	default:
		return fmt.Errorf("unexpected prediction value of type %T", value)
	}
	return nil
}
