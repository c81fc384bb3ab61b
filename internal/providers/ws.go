package providers

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"canvas-studio-backend/internal/faults"
	"canvas-studio-backend/internal/models"

	"github.com/gorilla/websocket"
)

// WSSubscriber streams job records pushed by the provider over a websocket
// at {base}/jobs/{id}. The stream ends after a terminal record.
type WSSubscriber struct {
	baseURL string
	header  http.Header
	dialer  *websocket.Dialer
}

func NewWSSubscriber(baseURL, apiKey string) *WSSubscriber {
	header := http.Header{}
	if apiKey != "" {
		header.Set("Authorization", "Bearer "+apiKey)
	}
	return &WSSubscriber{
		baseURL: strings.TrimRight(baseURL, "/"),
		header:  header,
		dialer: &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: 10 * time.Second,
		},
	}
}

func (s *WSSubscriber) Subscribe(ctx context.Context, jobID string) (<-chan models.JobRecord, error) {
	target := s.baseURL + "/jobs/" + url.PathEscape(jobID)
	conn, resp, err := s.dialer.DialContext(ctx, target, s.header)
	if err != nil {
		if resp != nil {
			defer resp.Body.Close()
			return nil, fmt.Errorf("subscribe to job %s: %w", jobID, statusError(resp.StatusCode, nil))
		}
		return nil, faults.Connectivity("subscribe to job "+jobID, err)
	}

	out := make(chan models.JobRecord, 8)
	done := make(chan struct{})
	go func() {
		// unblocks ReadJSON when the caller gives up
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()
	go func() {
		defer close(out)
		defer close(done)
		defer conn.Close()
		for {
			var rec models.JobRecord
			if err := conn.ReadJSON(&rec); err != nil {
				return
			}
			if rec.Status == "" {
				continue
			}
			if rec.JobID == "" {
				rec.JobID = jobID
			}
			select {
			case out <- rec:
			case <-ctx.Done():
				return
			}
			if rec.Status.Terminal() {
				conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
					time.Now().Add(time.Second))
				return
			}
		}
	}()
	return out, nil
}
