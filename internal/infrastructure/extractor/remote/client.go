package remote

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gferro/mediatext/internal/infrastructure/resilience"
)

// Client talks to one extraction collaborator (OCR, transcription, video
// indexing) over HTTP. The contract is uniform across services:
// POST {base}/v1/extract {"file_path": ...} -> {"text": ...}.
type Client struct {
	baseURL    string
	service    string
	httpClient *http.Client
	executor   *resilience.Executor
}

func New(baseURL, service string, executor *resilience.Executor) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		service:    service,
		httpClient: &http.Client{Timeout: 120 * time.Second},
		executor:   executor,
	}
}

func (c *Client) Extract(ctx context.Context, path string) (string, error) {
	request := map[string]string{"file_path": path}
	var response struct {
		Text string `json:"text"`
	}

	call := func(ctx context.Context) error {
		return c.postJSON(ctx, "/v1/extract", request, &response, "extract")
	}

	var err error
	if c.executor != nil {
		err = c.executor.Execute(ctx, c.service+".extract", call, classifyHTTPError)
	} else {
		err = call(ctx)
	}
	if err != nil {
		return "", err
	}
	return response.Text, nil
}
