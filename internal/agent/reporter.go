package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/EternisAI/fleet-monitor/internal/api/http/dto"
	"github.com/nats-io/nats.go"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

var ErrRejected = errors.New("heartbeat rejected")

type Reporter interface {
	Report(ctx context.Context, req dto.HeartbeatRequest) error
}

type HTTPReporter struct {
	endpoint string
	client   *http.Client
}

func NewHTTPReporter(serverURL string, timeout time.Duration) *HTTPReporter {
	return &HTTPReporter{
		endpoint: strings.TrimRight(serverURL, "/") + "/heartbeat",
		client: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
	}
}

func (r *HTTPReporter) Report(ctx context.Context, req dto.HeartbeatRequest) error {
	body, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("encode heartbeat: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, r.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := r.client.Do(httpReq)
	if err != nil {
		return fmt.Errorf("post heartbeat: %w", err)
	}
	defer resp.Body.Close()

	data, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if resp.StatusCode != http.StatusOK {
		return decodeRejection(resp.StatusCode, data)
	}
	return nil
}

func decodeRejection(status int, data []byte) error {
	var errResp dto.ErrorResponse
	if err := json.Unmarshal(data, &errResp); err == nil && errResp.Error != "" {
		if status == 0 {
			return fmt.Errorf("%w: %s: %s", ErrRejected, errResp.Error, errResp.Message)
		}
		return fmt.Errorf("%w: status %d: %s: %s", ErrRejected, status, errResp.Error, errResp.Message)
	}
	return fmt.Errorf("%w: status %d", ErrRejected, status)
}

// NATSReporter publishes heartbeats as requests and waits for the server's
// acknowledgement.
type NATSReporter struct {
	conn    *nats.Conn
	subject string
}

func NewNATSReporter(conn *nats.Conn, subject string) *NATSReporter {
	return &NATSReporter{conn: conn, subject: subject}
}

func (r *NATSReporter) Report(ctx context.Context, req dto.HeartbeatRequest) error {
	body, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("encode heartbeat: %w", err)
	}

	msg, err := r.conn.RequestWithContext(ctx, r.subject, body)
	if err != nil {
		return fmt.Errorf("request on %s: %w", r.subject, err)
	}
	return parseReply(msg.Data)
}

func parseReply(data []byte) error {
	var ack dto.AckResponse
	if err := json.Unmarshal(data, &ack); err == nil && ack.Msg == "ok" {
		return nil
	}
	return decodeRejection(0, data)
}
