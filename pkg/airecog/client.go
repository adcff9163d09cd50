package airecog

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	mhttp "github.com/mediascout/mediascout/pkg/http"
)

// ErrPermanent marks a classifier failure that retrying cannot fix, such as
// a bad API key or a malformed request. Callers should stop sending until
// the configuration changes.
var ErrPermanent = errors.New("permanent classifier error")

//go:generate mockgen -source=client.go -destination=mocks/mock_client.go -package=mocks

// Client is the external classifier contract. Recognize sends one prompt
// plus a batch of path fragments and returns the raw text response.
type Client interface {
	Recognize(ctx context.Context, systemPrompt string, lines []string) (string, error)
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// HTTPClient talks to an OpenAI-compatible chat completions endpoint.
type HTTPClient struct {
	url    string
	apiKey string
	model  string
	client *mhttp.RetryClient
}

// NewHTTPClient builds a classifier client. maxAttempts bounds retries for
// transient failures; rate-limit responses back off longer before retrying.
func NewHTTPClient(url, apiKey, model string, maxAttempts int, opts ...mhttp.ClientOption) *HTTPClient {
	opts = append([]mhttp.ClientOption{mhttp.WithMaxRetries(maxAttempts)}, opts...)
	return &HTTPClient{
		url:    strings.TrimSuffix(url, "/"),
		apiKey: apiKey,
		model:  model,
		client: mhttp.NewRetryClient(opts...),
	}
}

func (c *HTTPClient) Recognize(ctx context.Context, systemPrompt string, lines []string) (string, error) {
	body, err := json.Marshal(chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: strings.Join(lines, "\n")},
		},
	})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		switch resp.StatusCode {
		case http.StatusBadRequest, http.StatusUnauthorized, http.StatusForbidden:
			return "", fmt.Errorf("%w: status %d", ErrPermanent, resp.StatusCode)
		default:
			return "", fmt.Errorf("classifier returned status %d", resp.StatusCode)
		}
	}

	var parsed chatResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&parsed); err != nil {
		return "", fmt.Errorf("decoding classifier response: %w", err)
	}
	if len(parsed.Choices) == 0 {
		return "", errors.New("classifier response had no choices")
	}

	return parsed.Choices[0].Message.Content, nil
}
