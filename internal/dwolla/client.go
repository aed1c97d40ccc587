// Package dwolla is a small client for the Dwolla payments API: customers,
// funding sources and transfers between funding sources.
package dwolla

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/dvloznov/horizon/internal/logger"
	"golang.org/x/oauth2/clientcredentials"
)

const (
	sandboxBaseURL    = "https://api-sandbox.dwolla.com"
	productionBaseURL = "https://api.dwolla.com"
	halContentType    = "application/vnd.dwolla.v1.hal+json"
)

var (
	ErrInvalidEnvironment = errors.New("dwolla environment should either be set to sandbox or production")
	ErrInvalidTransfer    = errors.New("invalid parameters for transfer")
	ErrMissingLocation    = errors.New("response has no location header")
	ErrUnexpectedStatus   = errors.New("unexpected http status code")
)

// Config is the immutable client configuration.
type Config struct {
	Key         string
	Secret      string
	Environment string // "sandbox" or "production"
	BaseURL     string // overrides the environment's API host when set
}

// Client calls the Dwolla API with an OAuth2 client-credentials token.
type Client struct {
	httpClient *http.Client
	baseURL    string
}

// BaseURL returns the API host for an environment.
func BaseURL(environment string) (string, error) {
	switch environment {
	case "sandbox":
		return sandboxBaseURL, nil
	case "production":
		return productionBaseURL, nil
	default:
		return "", fmt.Errorf("%q: %w", environment, ErrInvalidEnvironment)
	}
}

// NewClient creates a Client. The environment is validated even when
// BaseURL is overridden.
func NewClient(ctx context.Context, cfg Config) (*Client, error) {
	baseURL, err := BaseURL(cfg.Environment)
	if err != nil {
		return nil, fmt.Errorf("NewClient: %w", err)
	}
	if cfg.BaseURL != "" {
		baseURL = strings.TrimRight(cfg.BaseURL, "/")
	}

	creds := clientcredentials.Config{
		ClientID:     cfg.Key,
		ClientSecret: cfg.Secret,
		TokenURL:     baseURL + "/token",
	}

	return &Client{
		httpClient: creds.Client(ctx),
		baseURL:    baseURL,
	}, nil
}

// errorBody is the HAL error document returned on 4xx/5xx.
type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// post sends a JSON body to path and returns the response with its body
// already read. Any status other than 200 or 201 is an error. A non-empty
// idempotencyKey makes Dwolla return the first resource on replays.
func (c *Client) post(ctx context.Context, path string, body interface{}, idempotencyKey string) (*http.Response, []byte, error) {
	var reader io.Reader = http.NoBody
	if body != nil {
		bodyBytes, err := json.Marshal(body)
		if err != nil {
			return nil, nil, fmt.Errorf("error marshaling request body: %w", err)
		}
		reader = bytes.NewReader(bodyBytes)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/"+strings.TrimLeft(path, "/"), reader)
	if err != nil {
		return nil, nil, fmt.Errorf("error creating request: %w", err)
	}
	req.Header.Set("Content-Type", halContentType)
	req.Header.Set("Accept", halContentType)
	if idempotencyKey != "" {
		req.Header.Set("Idempotency-Key", idempotencyKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, nil, fmt.Errorf("error sending request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp, nil, fmt.Errorf("error reading response body: %w", err)
	}

	if resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusOK {
		var apiErr errorBody
		if json.Unmarshal(respBody, &apiErr) == nil && apiErr.Code != "" {
			return resp, respBody, fmt.Errorf("%w %d: %s: %s", ErrUnexpectedStatus, resp.StatusCode, apiErr.Code, apiErr.Message)
		}
		return resp, respBody, fmt.Errorf("%w %d", ErrUnexpectedStatus, resp.StatusCode)
	}

	return resp, respBody, nil
}

// postForLocation posts and returns the Location header of the created resource.
func (c *Client) postForLocation(ctx context.Context, path string, body interface{}, idempotencyKey string) (string, error) {
	resp, _, err := c.post(ctx, path, body, idempotencyKey)
	if err != nil {
		return "", err
	}

	location := resp.Header.Get("Location")
	if location == "" {
		return "", ErrMissingLocation
	}
	return location, nil
}

// logFailure logs at error level, the way every operation reports failures.
func logFailure(ctx context.Context, op string, err error) {
	log := logger.FromContext(ctx)
	log.Error().Err(err).Str("operation", op).Msg("Dwolla request failed")
}
