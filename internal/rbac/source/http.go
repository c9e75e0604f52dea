package source

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"

	"github.com/expenseflow-go/internal/rbac/domain"
	"github.com/expenseflow-go/pkg/logger"
	"github.com/expenseflow-go/pkg/metrics"
	"github.com/expenseflow-go/pkg/resilience"
	"github.com/expenseflow-go/pkg/telemetry"
)

const (
	DefaultPath = "/api/users/me/role"

	maxBodyBytes = 64 << 10
)

type Config struct {
	BaseURL string
	Path    string
	Timeout time.Duration
	Retry   resilience.RetryConfig
	Breaker resilience.CircuitBreakerConfig
}

// HTTPSource reads the role from GET {BaseURL}{Path} with a bearer token.
// Accepted bodies are {"role": "..."} and {"user": {"role": "..."}}.
type HTTPSource struct {
	config  Config
	client  *http.Client
	breaker *resilience.CircuitBreaker
	tracer  trace.Tracer
	logger  logger.Logger
}

type roleResponse struct {
	Role *string `json:"role"`
	User *struct {
		Role *string `json:"role"`
	} `json:"user"`
}

func NewHTTPSource(cfg Config, client *http.Client, log logger.Logger) *HTTPSource {
	if cfg.Path == "" {
		cfg.Path = DefaultPath
	}
	if cfg.Retry.MaxAttempts == 0 {
		cfg.Retry = resilience.DefaultRetryConfig()
	}
	if cfg.Breaker.Name == "" {
		cfg.Breaker = resilience.DefaultCircuitBreakerConfig("role-source")
	}
	cfg.Retry.ShouldRetry = shouldRetry

	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}
	if log == nil {
		log = logger.NewNop()
	}

	return &HTTPSource{
		config:  cfg,
		client:  client,
		breaker: resilience.NewCircuitBreaker(cfg.Breaker),
		tracer:  otel.Tracer(telemetry.TracerName),
		logger:  log,
	}
}

func (s *HTTPSource) FetchRole(ctx context.Context, token string) (domain.Role, error) {
	if token == "" {
		return domain.RoleNone, ErrMissingCredential
	}

	ctx, span := s.tracer.Start(ctx, "rbac.source.fetch")
	defer span.End()

	role, err := resilience.Execute(ctx, s.breaker, func(ctx context.Context) (domain.Role, error) {
		return resilience.RetryWithResult(ctx, s.config.Retry, func() (domain.Role, error) {
			return s.fetchOnce(ctx, token)
		})
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return domain.RoleNone, err
	}

	span.SetAttributes(telemetry.RoleAttribute(role.String()))
	return role, nil
}

func (s *HTTPSource) fetchOnce(ctx context.Context, token string) (domain.Role, error) {
	url := strings.TrimSuffix(s.config.BaseURL, "/") + s.config.Path

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return domain.RoleNone, fmt.Errorf("failed to build role request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(req.Header))

	resp, err := s.client.Do(req)
	if err != nil {
		metrics.RecordSourceRequest("error")
		return domain.RoleNone, fmt.Errorf("role request failed: %w", err)
	}
	defer resp.Body.Close()

	metrics.RecordSourceRequest(strconv.Itoa(resp.StatusCode))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodyBytes))
		return domain.RoleNone, &StatusError{Code: resp.StatusCode}
	}

	var body roleResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxBodyBytes)).Decode(&body); err != nil {
		return domain.RoleNone, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}

	raw := body.Role
	if raw == nil && body.User != nil {
		raw = body.User.Role
	}
	if raw == nil {
		return domain.RoleNone, fmt.Errorf("%w: no role field", ErrMalformedResponse)
	}

	role := domain.ParseRole(*raw)
	if role == domain.RoleNone {
		return domain.RoleNone, fmt.Errorf("%w: unknown role %q", ErrMalformedResponse, *raw)
	}

	s.logger.Debug("Fetched role from server", "role", role)
	return role, nil
}

func shouldRetry(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	if errors.Is(err, ErrMalformedResponse) {
		return false
	}

	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return resilience.IsRetryableHTTPStatus(statusErr.Code)
	}
	return true
}
