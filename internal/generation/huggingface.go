package generation

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
	"time"
)

const (
	DefaultInferenceURL = "https://api-inference.huggingface.co"
	DefaultHubURL       = "https://huggingface.co"
)

// HuggingFaceConfig points the backend at the hosted inference API.
type HuggingFaceConfig struct {
	Token        string
	InferenceURL string
	HubURL       string
	HTTPClient   *http.Client
}

// HuggingFaceBackend calls a hosted summarization pipeline (BART, T5).
type HuggingFaceBackend struct {
	client       *http.Client
	inferenceURL string
	token        string
	model        string
}

type hfParameters struct {
	MaxLength int  `json:"max_length"`
	MinLength int  `json:"min_length"`
	DoSample  bool `json:"do_sample"`
}

type hfOptions struct {
	WaitForModel bool `json:"wait_for_model"`
}

type hfRequest struct {
	Inputs     string       `json:"inputs"`
	Parameters hfParameters `json:"parameters"`
	Options    hfOptions    `json:"options"`
}

type hfSummary struct {
	SummaryText   string `json:"summary_text"`
	GeneratedText string `json:"generated_text"`
}

// NewHuggingFaceFactory returns a Factory that resolves the model on the Hub
// before use. Loading fails without a token.
func NewHuggingFaceFactory(cfg HuggingFaceConfig) Factory {
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 90 * time.Second}
	}
	inferenceURL := strings.TrimRight(firstNonEmpty(cfg.InferenceURL, DefaultInferenceURL), "/")
	hubURL := strings.TrimRight(firstNonEmpty(cfg.HubURL, DefaultHubURL), "/")
	token := strings.TrimSpace(cfg.Token)

	return func(ctx context.Context, model string) (Backend, error) {
		if token == "" {
			return nil, errors.New("huggingface token not configured")
		}
		if strings.TrimSpace(model) == "" {
			return nil, errors.New("huggingface model is required")
		}
		if err := probeHubModel(ctx, client, hubURL, token, model); err != nil {
			return nil, err
		}
		return &HuggingFaceBackend{
			client:       client,
			inferenceURL: inferenceURL,
			token:        token,
			model:        model,
		}, nil
	}
}

func probeHubModel(ctx context.Context, client *http.Client, hubURL, token, model string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, hubURL+"/api/models/"+modelPath(model), nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("huggingface hub probe: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64*1024))
	if resp.StatusCode != http.StatusOK {
		return &StatusError{Op: "huggingface hub probe", Code: resp.StatusCode}
	}
	return nil
}

func (h *HuggingFaceBackend) Name() string { return FamilyHuggingFace + ":" + h.model }

func (h *HuggingFaceBackend) Generate(ctx context.Context, req Request) (string, error) {
	body, err := json.Marshal(hfRequest{
		Inputs: req.Text,
		Parameters: hfParameters{
			MaxLength: req.MaxLength,
			MinLength: req.MinLength,
			DoSample:  false,
		},
		Options: hfOptions{WaitForModel: true},
	})
	if err != nil {
		return "", err
	}
	return withRetry(ctx, func(ctx context.Context) (string, error) {
		return h.post(ctx, body)
	})
}

func (h *HuggingFaceBackend) post(ctx context.Context, body []byte) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.inferenceURL+"/models/"+modelPath(h.model), bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+h.token)
	req.Header.Set("Content-Type", "application/json")
	resp, err := h.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", err
	}
	if resp.StatusCode != http.StatusOK {
		return "", &StatusError{Op: "huggingface inference", Code: resp.StatusCode, Body: strings.TrimSpace(string(raw))}
	}
	var out []hfSummary
	if err := json.Unmarshal(raw, &out); err != nil {
		return "", fmt.Errorf("huggingface inference: decode response: %w", err)
	}
	if len(out) == 0 {
		return "", errors.New("huggingface inference: empty response")
	}
	return firstNonEmpty(out[0].SummaryText, out[0].GeneratedText), nil
}

func modelPath(model string) string {
	parts := strings.Split(strings.TrimSpace(model), "/")
	for i, p := range parts {
		parts[i] = url.PathEscape(p)
	}
	return strings.Join(parts, "/")
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
