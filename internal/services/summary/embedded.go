package summary

import (
	"context"
	"fmt"
	"strings"
	"time"

	xhttp "SignalForge/pkg/http"
)

type runRequest struct {
	Prompt    string `json:"prompt"`
	MaxTokens int    `json:"max_tokens"`
}

type runResponse struct {
	Success bool `json:"success"`
	Result  struct {
		Response string `json:"response"`
	} `json:"result"`
	Errors []struct {
		Message string `json:"message"`
	} `json:"errors"`
}

// EmbeddedProvider calls an inference gateway exposing POST /run/{model}.
type EmbeddedProvider struct {
	baseURL string
	apiKey  string
	model   string
	client  *xhttp.Client
}

var _ Provider = (*EmbeddedProvider)(nil)

type EmbeddedOption func(*EmbeddedProvider)

func WithEmbeddedClient(c *xhttp.Client) EmbeddedOption {
	return func(p *EmbeddedProvider) { p.client = c }
}

func NewEmbeddedProvider(baseURL, apiKey, model string, timeout time.Duration, opts ...EmbeddedOption) *EmbeddedProvider {
	p := &EmbeddedProvider{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		model:   model,
		client:  xhttp.NewClient(xhttp.WithTimeout(timeout)),
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

func (p *EmbeddedProvider) Name() string    { return "embedded" }
func (p *EmbeddedProvider) Model() string   { return p.model }
func (p *EmbeddedProvider) Available() bool { return p.baseURL != "" && p.model != "" }

func (p *EmbeddedProvider) Complete(ctx context.Context, prompt string) (string, error) {
	if !p.Available() {
		return "", ErrProviderUnavailable
	}
	headers := map[string]string{"Content-Type": "application/json"}
	if p.apiKey != "" {
		headers["Authorization"] = "Bearer " + p.apiKey
	}

	var resp runResponse
	err := p.client.SendAndParse(ctx, &xhttp.RequestOptions{
		Method:  xhttp.MethodPost,
		URL:     p.baseURL + "/run/" + p.model,
		Headers: headers,
		Body:    runRequest{Prompt: prompt, MaxTokens: 200},
	}, &resp)
	if err != nil {
		return "", fmt.Errorf("run %s: %w", p.model, err)
	}
	if len(resp.Errors) > 0 {
		return "", fmt.Errorf("run %s: %s", p.model, resp.Errors[0].Message)
	}
	return strings.TrimSpace(resp.Result.Response), nil
}
