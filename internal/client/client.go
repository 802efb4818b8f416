// Package client REST-клиент API биллинга RH Master.
//
// Ответы сервера проверяются на границе: обязательные поля и значения перечислений
// валидируются, некорректный ответ возвращается как *DecodeError. Запросы не
// повторяются автоматически.
package client

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

	"github.com/go-playground/validator"
	"github.com/google/uuid"

	"github.com/magabrotheeeer/rhmaster-billing/internal/lib/plans"
	"github.com/magabrotheeeer/rhmaster-billing/internal/models"
)

// IdempotencyHeader заголовок ключа идемпотентности для create и update.
const IdempotencyHeader = "Idempotency-Key"

const defaultTimeout = 15 * time.Second

// APIError ответ сервера с кодом не 2xx. Message показывается пользователю как есть.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error %d: %s", e.Status, e.Message)
}

// DecodeError ответ 2xx, который не прошел разбор или проверку схемы.
type DecodeError struct {
	Endpoint string
	Err      error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode %s: %v", e.Endpoint, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// IsNotFound сообщает, что сервер ответил 404.
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == http.StatusNotFound
}

// Message возвращает текст ошибки для пользователя: сообщение сервера или fallback.
func Message(err error, fallback string) string {
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.Message != "" {
		return apiErr.Message
	}
	return fallback
}

// Client клиент API биллинга. Токен можно сменить после входа через SetToken.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	validate   *validator.Validate
	newKey     func() string
}

// New создает клиент. Нулевой timeout заменяется значением по умолчанию.
func New(baseURL, token string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		httpClient: &http.Client{Timeout: timeout},
		validate:   validator.New(),
		newKey:     func() string { return uuid.NewString() },
	}
}

// SetToken задает JWT для последующих запросов.
func (c *Client) SetToken(token string) {
	c.token = token
}

// Register регистрирует ментора и сохраняет выданный токен.
func (c *Client) Register(ctx context.Context, req models.RegisterRequest) (*models.AuthResponse, error) {
	const op = "client.Register"
	var resp models.AuthResponse
	if err := c.do(ctx, http.MethodPost, "/api/auth/register", req, nil, &resp); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if resp.Token == "" {
		return nil, fmt.Errorf("%s: %w", op, &DecodeError{Endpoint: "/api/auth/register", Err: errors.New("empty token")})
	}
	c.token = resp.Token
	return &resp, nil
}

// Login выполняет вход и сохраняет выданный токен.
func (c *Client) Login(ctx context.Context, email, password string) (*models.AuthResponse, error) {
	const op = "client.Login"
	var resp models.AuthResponse
	req := models.LoginRequest{Email: email, Password: password}
	if err := c.do(ctx, http.MethodPost, "/api/auth/login", req, nil, &resp); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if resp.Token == "" {
		return nil, fmt.Errorf("%s: %w", op, &DecodeError{Endpoint: "/api/auth/login", Err: errors.New("empty token")})
	}
	c.token = resp.Token
	return &resp, nil
}

// CurrentSubscription возвращает подписку ментора. Отсутствие подписки дает *APIError со Status 404.
func (c *Client) CurrentSubscription(ctx context.Context) (*models.Subscription, error) {
	const op = "client.CurrentSubscription"
	const path = "/api/subscription/current-subscription"
	var sub models.Subscription
	if err := c.do(ctx, http.MethodGet, path, nil, nil, &sub); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if err := c.validate.Struct(sub); err != nil {
		return nil, fmt.Errorf("%s: %w", op, &DecodeError{Endpoint: path, Err: err})
	}
	return &sub, nil
}

// TrialInfo возвращает состояние пробного периода.
func (c *Client) TrialInfo(ctx context.Context) (*models.TrialInfo, error) {
	const op = "client.TrialInfo"
	var info models.TrialInfo
	if err := c.do(ctx, http.MethodGet, "/api/subscription/trial-info", nil, nil, &info); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if info.DaysRemaining < 0 {
		return nil, fmt.Errorf("%s: %w", op, &DecodeError{
			Endpoint: "/api/subscription/trial-info",
			Err:      fmt.Errorf("negative daysRemaining %d", info.DaysRemaining),
		})
	}
	return &info, nil
}

// Invoices возвращает счета ментора, новые первыми.
func (c *Client) Invoices(ctx context.Context) ([]models.Invoice, error) {
	const op = "client.Invoices"
	const path = "/api/subscription/invoices"
	var invoices []models.Invoice
	if err := c.do(ctx, http.MethodGet, path, nil, nil, &invoices); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	for i := range invoices {
		if err := c.validate.Struct(invoices[i]); err != nil {
			return nil, fmt.Errorf("%s: %w", op, &DecodeError{Endpoint: path, Err: fmt.Errorf("invoice %d: %w", i, err)})
		}
	}
	return invoices, nil
}

// Plans возвращает каталог тарифов.
func (c *Client) Plans(ctx context.Context) (*plans.Catalog, error) {
	const op = "client.Plans"
	var catalog plans.Catalog
	if err := c.do(ctx, http.MethodGet, "/api/subscription/plans", nil, nil, &catalog); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if len(catalog.Plans) == 0 {
		return nil, fmt.Errorf("%s: %w", op, &DecodeError{Endpoint: "/api/subscription/plans", Err: errors.New("empty catalog")})
	}
	return &catalog, nil
}

// CreateSubscription оформляет платную подписку. Каждый вызов получает свой ключ идемпотентности.
func (c *Client) CreateSubscription(ctx context.Context, req models.ChangePlanRequest) (*models.ChangePlanResult, error) {
	const op = "client.CreateSubscription"
	res, err := c.changePlan(ctx, "/api/subscription/create-subscription", req)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return res, nil
}

// UpdateSubscription меняет тариф или цикл оплаты.
func (c *Client) UpdateSubscription(ctx context.Context, req models.ChangePlanRequest) (*models.ChangePlanResult, error) {
	const op = "client.UpdateSubscription"
	res, err := c.changePlan(ctx, "/api/subscription/update-subscription", req)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return res, nil
}

// CancelSubscription отменяет подписку. cancelImmediate всегда передается явно.
func (c *Client) CancelSubscription(ctx context.Context, req models.CancelRequest) (*models.MessageResponse, error) {
	const op = "client.CancelSubscription"
	const path = "/api/subscription/cancel-subscription"
	var resp models.MessageResponse
	if err := c.do(ctx, http.MethodPost, path, req, nil, &resp); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if err := c.validate.Struct(resp); err != nil {
		return nil, fmt.Errorf("%s: %w", op, &DecodeError{Endpoint: path, Err: err})
	}
	return &resp, nil
}

// ReactivateSubscription снимает отмену в конце периода.
func (c *Client) ReactivateSubscription(ctx context.Context) (*models.MessageResponse, error) {
	const op = "client.ReactivateSubscription"
	const path = "/api/subscription/reactivate-subscription"
	var resp models.MessageResponse
	if err := c.do(ctx, http.MethodPost, path, struct{}{}, nil, &resp); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if err := c.validate.Struct(resp); err != nil {
		return nil, fmt.Errorf("%s: %w", op, &DecodeError{Endpoint: path, Err: err})
	}
	return &resp, nil
}

// CreateClient добавляет клиента ментора.
func (c *Client) CreateClient(ctx context.Context, req models.CreateClientRequest) (*models.Client, error) {
	const op = "client.CreateClient"
	var created models.Client
	if err := c.do(ctx, http.MethodPost, "/api/clients", req, nil, &created); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &created, nil
}

// ListClients возвращает клиентов ментора.
func (c *Client) ListClients(ctx context.Context) ([]models.Client, error) {
	const op = "client.ListClients"
	var clients []models.Client
	if err := c.do(ctx, http.MethodGet, "/api/clients", nil, nil, &clients); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return clients, nil
}

func (c *Client) changePlan(ctx context.Context, path string, req models.ChangePlanRequest) (*models.ChangePlanResult, error) {
	headers := map[string]string{IdempotencyHeader: c.newKey()}
	var res models.ChangePlanResult
	if err := c.do(ctx, http.MethodPost, path, req, headers, &res); err != nil {
		return nil, err
	}
	if res.ClientSecret == "" && !res.Success {
		return nil, &DecodeError{Endpoint: path, Err: errors.New("neither clientSecret nor success in response")}
	}
	return &res, nil
}

func (c *Client) do(ctx context.Context, method, path string, body any, headers map[string]string, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request %s: %w", path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return apiError(resp.StatusCode, data)
	}

	if err := json.Unmarshal(data, out); err != nil {
		return &DecodeError{Endpoint: path, Err: err}
	}
	return nil
}

func apiError(status int, data []byte) *APIError {
	var body struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(data, &body); err != nil || body.Message == "" {
		return &APIError{Status: status, Message: http.StatusText(status)}
	}
	return &APIError{Status: status, Message: body.Message}
}
