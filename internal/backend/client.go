package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"ai-companion-demo/companion/internal/models"
	"ai-companion-demo/companion/pkg/config"
	"ai-companion-demo/companion/pkg/logger"
	"ai-companion-demo/companion/pkg/middleware"
	"ai-companion-demo/companion/pkg/resilience"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	apiPrefix       = "/api/v1"
	maxResponseSize = 4 << 20
	scopeName       = "ai-companion-demo/companion/internal/backend"
)

// ClientConfig configures a Client
type ClientConfig struct {
	BaseURL    string
	Timeout    time.Duration
	APIKey     string
	Tokens     TokenSource
	HTTPClient *http.Client
	Breaker    resilience.CircuitBreakerConfig
}

// Client talks to the companion REST API over HTTP
type Client struct {
	http    *http.Client
	baseURL string
	apiKey  string
	tokens  TokenSource
	breaker *resilience.CircuitBreaker
	tracer  trace.Tracer
	metrics *clientMetrics
	log     *logger.Logger
}

var _ API = (*Client)(nil)

// NewClient builds a client. A zero Breaker config gets the package defaults.
func NewClient(cfg ClientConfig, log *logger.Logger) *Client {
	if log == nil {
		log = logger.GetGlobal()
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 15 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	breakerCfg := cfg.Breaker
	if breakerCfg.Name == "" {
		breakerCfg = resilience.DefaultCircuitBreakerConfig("companion-backend")
	}
	if breakerCfg.IsFailure == nil {
		breakerCfg.IsFailure = countsAgainstBreaker
	}

	return &Client{
		http:    httpClient,
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		tokens:  cfg.Tokens,
		breaker: resilience.NewCircuitBreaker(breakerCfg, log),
		tracer:  otel.Tracer(scopeName),
		metrics: newClientMetrics(log),
		log:     log.WithComponent("backend"),
	}
}

// NewFromConfig builds a client from the service configuration
func NewFromConfig(cfg *config.Config, apiKey string, tokens TokenSource, log *logger.Logger) *Client {
	breaker := resilience.DefaultCircuitBreakerConfig("companion-backend")
	breaker.FailureThreshold = uint(cfg.Backend.BreakerFailures)
	breaker.RetryTimeout = cfg.Backend.BreakerRetryTimeout

	return NewClient(ClientConfig{
		BaseURL: cfg.Backend.URL,
		Timeout: cfg.Backend.Timeout,
		APIKey:  apiKey,
		Tokens:  tokens,
		Breaker: breaker,
	}, log)
}

// Breaker exposes the circuit breaker for health reporting
func (c *Client) Breaker() *resilience.CircuitBreaker {
	return c.breaker
}

func (c *Client) ListCharacters(ctx context.Context) ([]models.Character, error) {
	var raw json.RawMessage
	if err := c.do(ctx, "list_characters", http.MethodGet, "/characters", nil, nil, &raw); err != nil {
		return nil, err
	}

	// the backend answers either with a bare list or with {"characters": [...]}
	var characters []models.Character
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) > 0 && trimmed[0] == '{' {
		var wrapped struct {
			Characters []models.Character `json:"characters"`
		}
		if err := json.Unmarshal(trimmed, &wrapped); err != nil {
			return nil, fmt.Errorf("decode characters: %w", err)
		}
		characters = wrapped.Characters
	} else if len(trimmed) > 0 {
		if err := json.Unmarshal(trimmed, &characters); err != nil {
			return nil, fmt.Errorf("decode characters: %w", err)
		}
	}

	for i := range characters {
		characters[i] = characters[i].WithParams(characters[i].Params)
	}
	return characters, nil
}

func (c *Client) GetChatHistory(ctx context.Context, characterID string, page, pageSize int) (*models.HistoryPage, error) {
	q := url.Values{}
	if page > 0 {
		q.Set("page", strconv.Itoa(page))
	}
	if pageSize > 0 {
		q.Set("page_size", strconv.Itoa(pageSize))
	}

	var out models.HistoryPage
	path := "/chat/" + url.PathEscape(characterID) + "/history"
	if err := c.do(ctx, "get_chat_history", http.MethodGet, path, q, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) SendMessage(ctx context.Context, characterID string, req models.SendMessageRequest) (*models.SendMessageResponse, error) {
	var out models.SendMessageResponse
	path := "/chat/" + url.PathEscape(characterID) + "/send"
	if err := c.do(ctx, "send_message", http.MethodPost, path, nil, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) GenerateAvatar(ctx context.Context, req models.GenerateAvatarRequest) ([]string, error) {
	body := struct {
		models.GenerateAvatarRequest
		Prompt string `json:"prompt,omitempty"`
	}{req, req.Appearance}

	var out struct {
		Images   []string `json:"images"`
		Variants []string `json:"variants"`
	}
	if err := c.do(ctx, "generate_avatar", http.MethodPost, "/characters/generate-variants", nil, body, &out); err != nil {
		return nil, err
	}
	if len(out.Images) > 0 {
		return out.Images, nil
	}
	return out.Variants, nil
}

func (c *Client) CreateCharacter(ctx context.Context, req models.CreateCharacterRequest) (*models.Character, error) {
	var out models.Character
	if err := c.do(ctx, "create_character", http.MethodPost, "/characters", nil, req, &out); err != nil {
		return nil, err
	}
	created := out.WithParams(out.Params)
	return &created, nil
}

func (c *Client) ListMissions(ctx context.Context) ([]models.Mission, error) {
	var out []models.Mission
	if err := c.do(ctx, "list_missions", http.MethodGet, "/missions", nil, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) ExecuteMission(ctx context.Context, missionID string, req models.ExecuteMissionRequest) (*models.ExecuteMissionResponse, error) {
	var out models.ExecuteMissionResponse
	path := "/missions/" + url.PathEscape(missionID) + "/execute"
	if err := c.do(ctx, "execute_mission", http.MethodPost, path, nil, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) ListCompletedMissions(ctx context.Context) ([]models.CompletedMission, error) {
	var out []models.CompletedMission
	if err := c.do(ctx, "list_completed_missions", http.MethodGet, "/missions/completed", nil, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) GetBalance(ctx context.Context) (int, error) {
	var out models.Balance
	if err := c.do(ctx, "get_balance", http.MethodGet, "/payments/balance", nil, nil, &out); err != nil {
		return 0, err
	}
	return out.BalanceNTG, nil
}

// Ping calls the backend health endpoint outside the circuit breaker
func (c *Client) Ping(ctx context.Context, path string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	if resp.StatusCode >= 300 {
		return &APIError{StatusCode: resp.StatusCode, Message: http.StatusText(resp.StatusCode)}
	}
	return nil
}

func (c *Client) do(ctx context.Context, op, method, path string, query url.Values, body, out any) error {
	ctx, span := c.tracer.Start(ctx, "backend."+op,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("http.method", method),
			attribute.String("backend.path", path),
		),
	)
	defer span.End()

	start := time.Now()
	err := c.breaker.Execute(func() error {
		return c.roundTrip(ctx, method, path, query, body, out)
	})
	c.metrics.record(ctx, op, time.Since(start), err)

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		c.log.Debug("backend call failed", "op", op, "error", err.Error())
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

func (c *Client) roundTrip(ctx context.Context, method, path string, query url.Values, body, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	target := c.baseURL + apiPrefix + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		req.Header.Set("X-API-Key", c.apiKey)
	}
	if requestID := middleware.GetRequestID(ctx); requestID != "" {
		req.Header.Set("X-Request-ID", requestID)
	}

	token := TokenFromContext(ctx)
	if token == "" && c.tokens != nil {
		if token, err = c.tokens.Token(ctx); err != nil {
			return fmt.Errorf("acquire token: %w", err)
		}
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return parseAPIError(resp.StatusCode, data)
	}

	if out == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// parseAPIError understands {"detail": ...} bodies and {"error": {...}} envelopes
func parseAPIError(status int, data []byte) *APIError {
	apiErr := &APIError{StatusCode: status, Message: http.StatusText(status)}

	var body struct {
		Detail json.RawMessage `json:"detail"`
		Error  *struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(data, &body); err != nil {
		return apiErr
	}

	switch {
	case body.Error != nil:
		apiErr.Code = body.Error.Code
		if body.Error.Message != "" {
			apiErr.Message = body.Error.Message
		}
	case len(body.Detail) > 0:
		var detail string
		if json.Unmarshal(body.Detail, &detail) == nil {
			apiErr.Message = detail
		} else {
			apiErr.Message = string(body.Detail)
		}
	}
	return apiErr
}
