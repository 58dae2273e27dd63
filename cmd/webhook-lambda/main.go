package main

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	appconfig "github.com/wolfman30/callcrm-ai-platform/internal/config"
	"github.com/wolfman30/callcrm-ai-platform/internal/webhook"
	"github.com/wolfman30/callcrm-ai-platform/pkg/logging"
)

const maxResponseBytes = 64 << 10

// forwarder relays provider webhooks received through API Gateway to the API's /webhook
// endpoint. The body is passed through byte for byte so the HMAC still verifies upstream.
type forwarder struct {
	target  *url.URL
	timeout time.Duration
	client  *http.Client
	logger  *logging.Logger
}

func newForwarder(rawURL string, timeout time.Duration, logger *logging.Logger) (*forwarder, error) {
	rawURL = strings.TrimSpace(rawURL)
	if rawURL == "" {
		return nil, errors.New("UPSTREAM_WEBHOOK_URL is required")
	}
	target, err := url.Parse(rawURL)
	if err != nil || target.Scheme == "" || target.Host == "" {
		return nil, fmt.Errorf("invalid UPSTREAM_WEBHOOK_URL %q", rawURL)
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &forwarder{
		target:  target,
		timeout: timeout,
		client:  &http.Client{Timeout: timeout},
		logger:  logger,
	}, nil
}

func main() {
	cfg := appconfig.Load()
	logger := logging.New(cfg.LogLevel)

	timeout := 5 * time.Second
	if raw := strings.TrimSpace(os.Getenv("UPSTREAM_TIMEOUT")); raw != "" {
		parsed, err := time.ParseDuration(raw)
		if err != nil {
			logger.Error("invalid UPSTREAM_TIMEOUT", "error", err)
			os.Exit(1)
		}
		timeout = parsed
	}

	fwd, err := newForwarder(cfg.UpstreamWebhookURL, timeout, logger)
	if err != nil {
		logger.Error("webhook forwarder misconfigured", "error", err)
		os.Exit(1)
	}
	lambda.Start(fwd.handle)
}

func (f *forwarder) handle(ctx context.Context, evt events.APIGatewayV2HTTPRequest) (events.APIGatewayV2HTTPResponse, error) {
	method := strings.ToUpper(strings.TrimSpace(evt.RequestContext.HTTP.Method))
	path := strings.TrimSpace(evt.RawPath)
	if path == "" {
		path = strings.TrimSpace(evt.RequestContext.HTTP.Path)
	}

	switch path {
	case "/health", "/_health":
		return events.APIGatewayV2HTTPResponse{StatusCode: http.StatusOK, Body: "ok"}, nil
	case "/webhook", "/":
	default:
		return events.APIGatewayV2HTTPResponse{StatusCode: http.StatusNotFound}, nil
	}
	if method != http.MethodPost {
		return events.APIGatewayV2HTTPResponse{StatusCode: http.StatusMethodNotAllowed}, nil
	}

	body, err := decodeBody(evt)
	if err != nil {
		return events.APIGatewayV2HTTPResponse{StatusCode: http.StatusBadRequest, Body: "invalid body"}, nil
	}

	reqCtx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, f.target.String(), bytes.NewReader(body))
	if err != nil {
		return events.APIGatewayV2HTTPResponse{StatusCode: http.StatusInternalServerError}, nil
	}
	req.Header.Set("Content-Type", "application/json")
	copyHeader(req.Header, evt.Headers, "content-type")
	copyHeader(req.Header, evt.Headers, webhook.SignatureHeader)
	if id := strings.TrimSpace(evt.RequestContext.RequestID); id != "" {
		req.Header.Set("X-Request-Id", id)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		// a non-2xx makes the provider redeliver; the API deduplicates the retry
		f.logger.Error("webhook forward failed", "error", err, "request_id", evt.RequestContext.RequestID)
		return events.APIGatewayV2HTTPResponse{StatusCode: http.StatusBadGateway, Body: "upstream error"}, nil
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	out := events.APIGatewayV2HTTPResponse{
		StatusCode: resp.StatusCode,
		Body:       string(respBody),
		Headers:    map[string]string{},
	}
	if ct := resp.Header.Get("Content-Type"); ct != "" {
		out.Headers["content-type"] = ct
	}
	if resp.StatusCode >= http.StatusInternalServerError {
		f.logger.Warn("upstream rejected webhook", "status", resp.StatusCode)
	}
	return out, nil
}

func decodeBody(evt events.APIGatewayV2HTTPRequest) ([]byte, error) {
	if !evt.IsBase64Encoded {
		return []byte(evt.Body), nil
	}
	return base64.StdEncoding.DecodeString(evt.Body)
}

func headerValue(headers map[string]string, key string) string {
	for k, v := range headers {
		if strings.EqualFold(k, key) {
			return v
		}
	}
	return ""
}

func copyHeader(dst http.Header, src map[string]string, header string) {
	if value := strings.TrimSpace(headerValue(src, header)); value != "" {
		dst.Set(header, value)
	}
}
