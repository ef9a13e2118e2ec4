package summary

import (
	"context"
	"fmt"
	"strings"
	"time"

	xhttp "SignalForge/pkg/http"
)

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

// RemoteProvider calls an OpenAI-compatible chat completion endpoint.
type RemoteProvider struct {
	baseURL string
	apiKey  string
	model   string
	client  *xhttp.Client
}

var _ Provider = (*RemoteProvider)(nil)

type RemoteOption func(*RemoteProvider)

func WithRemoteClient(c *xhttp.Client) RemoteOption {
	return func(p *RemoteProvider) { p.client = c }
}

func NewRemoteProvider(baseURL, apiKey, model string, timeout time.Duration, opts ...RemoteOption) *RemoteProvider {
	p := &RemoteProvider{
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

func (p *RemoteProvider) Name() string    { return "remote" }
func (p *RemoteProvider) Model() string   { return p.model }
func (p *RemoteProvider) Available() bool { return p.apiKey != "" && p.baseURL != "" }

func (p *RemoteProvider) Complete(ctx context.Context, prompt string) (string, error) {
	if !p.Available() {
		return "", ErrProviderUnavailable
	}
	var resp chatResponse
	err := p.client.SendAndParse(ctx, &xhttp.RequestOptions{
		Method: xhttp.MethodPost,
		URL:    p.baseURL + "/chat/completions",
		Headers: map[string]string{
			"Authorization": "Bearer " + p.apiKey,
			"Content-Type":  "application/json",
		},
		Body: chatRequest{
			Model:       p.model,
			Messages:    []chatMessage{{Role: "user", Content: prompt}},
			Temperature: 0.3,
			MaxTokens:   200,
		},
	}, &resp)
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", ErrEmptyCompletion
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}
