// Package providers adapts remote image generation services to the
// generation.Provider and generation.Subscriber interfaces.
package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"canvas-studio-backend/internal/faults"
	"canvas-studio-backend/internal/models"

	"golang.org/x/oauth2"
)

const defaultHTTPTimeout = 30 * time.Second

// HTTPProvider talks JSON to a job API: POST {base}/jobs submits,
// GET {base}/jobs/{id} reads the job record.
type HTTPProvider struct {
	baseURL string
	client  *http.Client
}

// NewHTTPProvider builds a provider client. A non-empty apiKey is sent as a
// bearer token on every request.
func NewHTTPProvider(baseURL, apiKey string) *HTTPProvider {
	client := &http.Client{}
	if apiKey != "" {
		src := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: apiKey, TokenType: "Bearer"})
		client = oauth2.NewClient(context.Background(), src)
	}
	client.Timeout = defaultHTTPTimeout
	return &HTTPProvider{baseURL: strings.TrimRight(baseURL, "/"), client: client}
}

type submitResponse struct {
	JobID string `json:"jobId"`
}

type errorResponse struct {
	Message string `json:"message"`
	Error   string `json:"error"`
}

func (p *HTTPProvider) Submit(ctx context.Context, req models.JobRequest) (string, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("marshal job request: %w", err)
	}
	var out submitResponse
	if err := p.do(ctx, http.MethodPost, p.baseURL+"/jobs", payload, &out); err != nil {
		return "", fmt.Errorf("submit %s job: %w", req.Kind, err)
	}
	if out.JobID == "" {
		return "", faults.Provider("submission response carried no job id")
	}
	return out.JobID, nil
}

func (p *HTTPProvider) Status(ctx context.Context, jobID string) (models.JobRecord, error) {
	var rec models.JobRecord
	if err := p.do(ctx, http.MethodGet, p.baseURL+"/jobs/"+url.PathEscape(jobID), nil, &rec); err != nil {
		return models.JobRecord{}, fmt.Errorf("job %s status: %w", jobID, err)
	}
	if rec.JobID == "" {
		rec.JobID = jobID
	}
	if rec.Status == "" {
		return models.JobRecord{}, faults.Provider("status response carried no status")
	}
	return rec, nil
}

func (p *HTTPProvider) do(ctx context.Context, method, target string, body []byte, out interface{}) error {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := p.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return faults.Connectivity(method+" "+target, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return faults.Connectivity("read response", err)
	}
	if resp.StatusCode >= 300 {
		return statusError(resp.StatusCode, data)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return faults.Provider("malformed response: " + err.Error())
	}
	return nil
}

// statusError maps a failed HTTP exchange onto the error taxonomy, keeping
// the provider's human readable message.
func statusError(code int, body []byte) error {
	msg := http.StatusText(code)
	var er errorResponse
	if json.Unmarshal(body, &er) == nil {
		switch {
		case er.Message != "":
			msg = er.Message
		case er.Error != "":
			msg = er.Error
		}
	}

	var kind error
	switch {
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		kind = faults.ErrAuth
	case code == http.StatusNotFound:
		kind = faults.ErrNotFound
	case code == http.StatusBadRequest || code == http.StatusUnprocessableEntity:
		kind = faults.ErrValidation
	case code == http.StatusTooManyRequests || code == http.StatusBadGateway ||
		code == http.StatusServiceUnavailable || code == http.StatusGatewayTimeout:
		kind = faults.ErrConnectivity
	default:
		kind = faults.ErrProvider
	}
	return fmt.Errorf("%w: %d %s", kind, code, msg)
}
