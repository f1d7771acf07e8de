package connection

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/oklog/ulid/v2"

	"github.com/yndnr/tokvault-go/internal/core/service"
)

// DefaultTimeout bounds a single request.
const DefaultTimeout = 30 * time.Second

// Request headers understood by the server.
const (
	headerAPIKeyID  = "X-API-Key-ID"
	headerAPIKey    = "X-API-Key"
	headerCaller    = "X-Caller"
	headerSignature = "X-Signature"
	headerTimestamp = "X-Timestamp"
	headerNonce     = "X-Nonce"
)

// HTTPClient provides HTTP communication with the server.
type HTTPClient struct {
	baseURL  string
	client   *http.Client
	apiKeyID string
	apiKey   string

	// signer, when set, signs every request as its public key.
	signer solana.PrivateKey
	// caller is sent unsigned when no signer is configured.
	caller solana.PublicKey
	now    func() time.Time
}

// Option configures an HTTPClient.
type Option func(*HTTPClient)

// WithKeypair signs requests with key and acts as its public key.
func WithKeypair(key solana.PrivateKey) Option {
	return func(c *HTTPClient) { c.signer = key }
}

// WithCaller sends pk as the acting identity without a signature. Only
// servers running without signature enforcement accept it.
func WithCaller(pk solana.PublicKey) Option {
	return func(c *HTTPClient) { c.caller = pk }
}

// WithTLSConfig sets the TLS settings used for https servers.
func WithTLSConfig(cfg *tls.Config) Option {
	return func(c *HTTPClient) {
		c.client.Transport = &http.Transport{
			Proxy:           http.ProxyFromEnvironment,
			TLSClientConfig: cfg,
		}
	}
}

// WithTimeout overrides DefaultTimeout.
func WithTimeout(d time.Duration) Option {
	return func(c *HTTPClient) { c.client.Timeout = d }
}

// NewHTTPClient creates a new HTTP client.
func NewHTTPClient(server, apiKeyID, apiKey string, opts ...Option) *HTTPClient {
	baseURL := strings.TrimRight(server, "/")
	if !strings.HasPrefix(baseURL, "http://") && !strings.HasPrefix(baseURL, "https://") {
		baseURL = "http://" + baseURL
	}

	c := &HTTPClient{
		baseURL:  baseURL,
		apiKeyID: apiKeyID,
		apiKey:   apiKey,
		client:   &http.Client{Timeout: DefaultTimeout},
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Get performs a GET request.
func (c *HTTPClient) Get(ctx context.Context, path string) (*http.Response, error) {
	return c.do(ctx, http.MethodGet, path, nil)
}

// Post performs a POST request with JSON body.
func (c *HTTPClient) Post(ctx context.Context, path string, body any) (*http.Response, error) {
	var data []byte
	if body != nil {
		var err error
		if data, err = json.Marshal(body); err != nil {
			return nil, fmt.Errorf("marshal body: %w", err)
		}
	}
	return c.do(ctx, http.MethodPost, path, data)
}

func (c *HTTPClient) do(ctx context.Context, method, path string, body []byte) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if err := c.addHeaders(req, body); err != nil {
		return nil, err
	}
	return c.client.Do(req)
}

// addHeaders adds authentication and caller headers.
func (c *HTTPClient) addHeaders(req *http.Request, body []byte) error {
	if c.apiKeyID != "" && c.apiKey != "" {
		req.Header.Set(headerAPIKeyID, c.apiKeyID)
		req.Header.Set(headerAPIKey, c.apiKey)
	}
	req.Header.Set("User-Agent", "tokvault-cli/1.0")

	switch {
	case len(c.signer) > 0:
		ts := c.now().UnixMilli()
		nonce := ulid.Make().String()
		sig, err := service.SignRequest(c.signer, req.Method, req.URL.Path, ts, nonce, body)
		if err != nil {
			return fmt.Errorf("sign request: %w", err)
		}
		req.Header.Set(headerCaller, c.signer.PublicKey().String())
		req.Header.Set(headerSignature, sig)
		req.Header.Set(headerTimestamp, strconv.FormatInt(ts, 10))
		req.Header.Set(headerNonce, nonce)
	case !c.caller.IsZero():
		req.Header.Set(headerCaller, c.caller.String())
	}
	return nil
}

// BaseURL returns the base URL of the client.
func (c *HTTPClient) BaseURL() string {
	return c.baseURL
}

// Caller returns the identity requests act as, or the zero key.
func (c *HTTPClient) Caller() solana.PublicKey {
	if len(c.signer) > 0 {
		return c.signer.PublicKey()
	}
	return c.caller
}

// APIError is a non-2xx server reply.
type APIError struct {
	Status    int
	Code      string
	Message   string
	RequestID string
	Details   any
}

func (e *APIError) Error() string {
	msg := fmt.Sprintf("[%s] %s", e.Code, e.Message)
	if e.Details != nil {
		msg += fmt.Sprintf(" (%v)", e.Details)
	}
	return msg
}

// envelope mirrors the server response wrapper.
type envelope struct {
	Code      string          `json:"code"`
	Message   string          `json:"message"`
	RequestID string          `json:"request_id"`
	Data      json.RawMessage `json:"data"`
	Details   any             `json:"details"`
}

// ParseResponse decodes the envelope's data into target, or returns an
// *APIError for error replies.
func ParseResponse(resp *http.Response, target any) error {
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	var env envelope
	decodeErr := json.Unmarshal(raw, &env)

	if resp.StatusCode >= 400 {
		if decodeErr == nil && env.Code != "" {
			return &APIError{
				Status:    resp.StatusCode,
				Code:      env.Code,
				Message:   env.Message,
				RequestID: env.RequestID,
				Details:   env.Details,
			}
		}
		return &APIError{Status: resp.StatusCode, Code: "HTTP-" + strconv.Itoa(resp.StatusCode), Message: http.StatusText(resp.StatusCode)}
	}

	if target == nil {
		return nil
	}
	if decodeErr != nil {
		return fmt.Errorf("parse response: %w", decodeErr)
	}
	if len(env.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(env.Data, target); err != nil {
		return fmt.Errorf("parse response data: %w", err)
	}
	return nil
}
