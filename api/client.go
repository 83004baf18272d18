// Package api implements the client-side API for code wishing to interact
// with the ollama service's generate endpoint. The methods of the [Client]
// type correspond to the ollama REST API as described in [the API
// documentation].
//
// [the API documentation]: https://github.com/ollama/ollama/blob/main/docs/api.md
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"runtime"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ollama/oneshot/envconfig"
	"github.com/ollama/oneshot/logutil"
	"github.com/ollama/oneshot/version"
)

// Client encapsulates client state for interacting with the ollama
// service. Use [ClientFromEnvironment] to create new Clients.
type Client struct {
	base *url.URL
	http *http.Client
}

func checkError(resp *http.Response, body []byte) error {
	if resp.StatusCode >= http.StatusOK && resp.StatusCode < http.StatusMultipleChoices {
		return nil
	}

	apiError := StatusError{StatusCode: resp.StatusCode, Status: resp.Status}

	err := json.Unmarshal(body, &apiError)
	if err != nil || apiError.ErrorMessage == "" {
		// Use the full body as the message if we fail to decode a response.
		apiError.ErrorMessage = strings.TrimSpace(string(body))
	}

	return apiError
}

// ClientFromEnvironment creates a new [Client] using configuration from the
// environment variable OLLAMA_HOST, which points to the network host and
// port on which the ollama service is listening. The format of this variable
// is:
//
//	<scheme>://<host>:<port>
//
// If the variable is not specified, a default ollama host and port will be
// used. OLLAMA_TIMEOUT bounds each request.
func ClientFromEnvironment() (*Client, error) {
	return NewClient(envconfig.Host(), &http.Client{
		Timeout:   envconfig.Timeout(),
		Transport: newTransport(),
	}), nil
}

func NewClient(base *url.URL, http *http.Client) *Client {
	return &Client{
		base: base,
		http: http,
	}
}

// Host returns the base URL requests are sent to.
func (c *Client) Host() *url.URL {
	return c.base
}

func newTransport() *http.Transport {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.DialContext = (&net.Dialer{
		Timeout:   10 * time.Second,
		KeepAlive: 30 * time.Second,
	}).DialContext
	return transport
}

func userAgent() string {
	return fmt.Sprintf("ollama-oneshot/%s (%s %s) Go/%s", version.Version, runtime.GOARCH, runtime.GOOS, runtime.Version())
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

func (c *Client) do(ctx context.Context, method, path string, reqData, respData any) error {
	var reqBody io.Reader
	var data []byte
	var err error

	switch reqData := reqData.(type) {
	case io.Reader:
		// reqData is already an io.Reader
		reqBody = reqData
	case nil:
		// noop
	default:
		data, err = json.Marshal(reqData)
		if err != nil {
			return err
		}

		reqBody = bytes.NewReader(data)
	}

	requestID := uuid.NewString()
	ctx = logutil.WithRequestID(ctx, requestID)

	requestURL := c.base.JoinPath(path)
	request, err := http.NewRequestWithContext(ctx, method, requestURL.String(), reqBody)
	if err != nil {
		return err
	}

	request.Header.Set("Content-Type", "application/json")
	request.Header.Set("Accept", "application/json")
	request.Header.Set("User-Agent", userAgent())
	request.Header.Set("X-Request-Id", requestID)

	slog.DebugContext(ctx, "sending request", "method", method, "url", requestURL.String())
	logutil.TraceContext(ctx, "request body", "body", string(data))

	start := time.Now()
	respObj, err := c.http.Do(request)
	if err != nil {
		slog.DebugContext(ctx, "request failed", "elapsed", time.Since(start), "error", err)
		switch {
		case errors.Is(err, context.Canceled):
			return err
		case isTimeout(err):
			return fmt.Errorf("%w after %s: %w", ErrTimeout, time.Since(start).Round(time.Millisecond), err)
		default:
			return &connectionError{host: c.base.Host, err: err}
		}
	}
	defer respObj.Body.Close()

	respBody, err := io.ReadAll(respObj.Body)
	if err != nil {
		if isTimeout(err) {
			return fmt.Errorf("%w reading response: %w", ErrTimeout, err)
		}
		return fmt.Errorf("read response: %w", err)
	}

	slog.DebugContext(ctx, "request completed", "status", respObj.StatusCode, "elapsed", time.Since(start), "bytes", len(respBody))
	logutil.TraceContext(ctx, "response body", "body", string(respBody))

	if err := checkError(respObj, respBody); err != nil {
		return err
	}

	if len(respBody) > 0 && respData != nil {
		if err := json.Unmarshal(respBody, respData); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}

	return nil
}

// generateResponse is the wire form of [GenerateResponse]. The pointer
// tells a missing or null "response" apart from an empty one.
type generateResponse struct {
	GenerateResponse
	Response *string `json:"response"`
	Error    string  `json:"error,omitempty"`
}

// Generate sends req to the server's /api/generate endpoint and waits for
// the single, complete reply. The request is always sent with streaming
// disabled regardless of req.Stream.
func (c *Client) Generate(ctx context.Context, req *GenerateRequest) (*GenerateResponse, error) {
	switch {
	case req == nil || req.Model == "":
		return nil, ErrModelRequired
	case req.Prompt == "":
		return nil, ErrPromptRequired
	}

	body := *req
	body.Stream = false

	var resp generateResponse
	if err := c.do(ctx, http.MethodPost, "/api/generate", &body, &resp); err != nil {
		return nil, err
	}

	if resp.Error != "" {
		return nil, StatusError{StatusCode: http.StatusOK, ErrorMessage: resp.Error}
	}

	if resp.Response == nil {
		return nil, ErrMissingResponse
	}

	generated := resp.GenerateResponse
	generated.Response = *resp.Response
	return &generated, nil
}
