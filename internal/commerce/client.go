// Package commerce предоставляет клиент удалённого commerce API.
package commerce

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-retryablehttp"

	"github.com/mmeshcher/storefront-system/internal/model"
)

// ErrUnauthorized возвращается, когда API отклоняет токен сеанса.
var ErrUnauthorized = errors.New("unauthorized")

// Client инкапсулирует HTTP-взаимодействие с удалённым commerce API.
// Все методы принимают токен сеанса; пустой токен означает запрос без
// заголовка авторизации.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient создаёт клиент commerce API по указанному адресу.
func NewClient(baseURL string) *Client {
	rc := retryablehttp.NewClient()
	rc.RetryMax = 2
	rc.RetryWaitMin = 200 * time.Millisecond
	rc.RetryWaitMax = 2 * time.Second
	rc.HTTPClient.Timeout = 5 * time.Second
	rc.Logger = nil

	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: rc.StandardClient(),
	}
}

// FetchProducts запрашивает полный список товаров каталога.
func (c *Client) FetchProducts(ctx context.Context) ([]model.Product, error) {
	var products []model.Product
	if err := c.do(ctx, http.MethodGet, "/api/products", "", nil, &products); err != nil {
		return nil, err
	}
	return products, nil
}

type cartItemRequest struct {
	ProductID string `json:"productId"`
}

type cartResponse struct {
	Items map[string]int `json:"items"`
}

// GetCart запрашивает серверную корзину текущего пользователя.
func (c *Client) GetCart(ctx context.Context, token string) (map[string]int, error) {
	var resp cartResponse
	if err := c.do(ctx, http.MethodGet, "/api/cart", token, nil, &resp); err != nil {
		return nil, err
	}
	if resp.Items == nil {
		return map[string]int{}, nil
	}
	return resp.Items, nil
}

// AddToCart увеличивает количество товара в серверной корзине.
func (c *Client) AddToCart(ctx context.Context, token, productID string) error {
	return c.do(ctx, http.MethodPost, "/api/cart", token, cartItemRequest{ProductID: productID}, nil)
}

// RemoveFromCart уменьшает количество товара в серверной корзине.
func (c *Client) RemoveFromCart(ctx context.Context, token, productID string) error {
	return c.do(ctx, http.MethodPost, "/api/cart/remove", token, cartItemRequest{ProductID: productID}, nil)
}

// ClearCart полностью очищает серверную корзину.
func (c *Client) ClearCart(ctx context.Context, token string) error {
	return c.do(ctx, http.MethodDelete, "/api/cart/clear", token, nil, nil)
}

// CreateOrder создаёт заказ и возвращает его вместе с платёжным секретом.
// Запрос снабжается ключом идемпотентности, чтобы повтор не создал
// дубликат заказа.
func (c *Client) CreateOrder(ctx context.Context, token string, order model.Order) (*model.Order, error) {
	body, err := json.Marshal(order)
	if err != nil {
		return nil, fmt.Errorf("encode order: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url("/api/orders"), bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Idempotency-Key", uuid.NewString())
	setAuthHeader(req, token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if err := checkStatus(resp.StatusCode); err != nil {
		return nil, err
	}

	var created model.Order
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &created, nil
}

type verifyRequest struct {
	PaymentOrderID string `json:"paymentOrderId"`
}

// VerifyPayment подтверждает оплату заказа на стороне API.
func (c *Client) VerifyPayment(ctx context.Context, token, paymentOrderID string) error {
	return c.do(ctx, http.MethodPost, "/api/orders/verify", token, verifyRequest{PaymentOrderID: paymentOrderID}, nil)
}

// GetOrders запрашивает историю заказов текущего пользователя.
func (c *Client) GetOrders(ctx context.Context, token string) ([]model.Order, error) {
	var orders []model.Order
	if err := c.do(ctx, http.MethodGet, "/api/orders", token, nil, &orders); err != nil {
		return nil, err
	}
	return orders, nil
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token string `json:"token"`
}

// Login выполняет вход и возвращает токен сеанса.
func (c *Client) Login(ctx context.Context, email, password string) (string, error) {
	var resp loginResponse
	if err := c.do(ctx, http.MethodPost, "/api/auth/login", "", loginRequest{Email: email, Password: password}, &resp); err != nil {
		return "", err
	}
	if resp.Token == "" {
		return "", errors.New("empty token in response")
	}
	return resp.Token, nil
}

type registerRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Register регистрирует нового пользователя. Вход после регистрации
// выполняется отдельно.
func (c *Client) Register(ctx context.Context, name, email, password string) error {
	return c.do(ctx, http.MethodPost, "/api/auth/register", "", registerRequest{Name: name, Email: email, Password: password}, nil)
}

func (c *Client) url(path string) string {
	base := c.baseURL
	if !strings.HasPrefix(base, "http://") && !strings.HasPrefix(base, "https://") {
		base = "http://" + base
	}
	return base + path
}

func (c *Client) do(ctx context.Context, method, path, token string, in, out any) error {
	if c == nil || c.baseURL == "" {
		return errors.New("commerce client not configured")
	}

	var body bytes.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body.Reset(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.url(path), &body)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	setAuthHeader(req, token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if err := checkStatus(resp.StatusCode); err != nil {
		return err
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func setAuthHeader(req *http.Request, token string) {
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
}

func checkStatus(code int) error {
	switch {
	case code == http.StatusUnauthorized:
		return ErrUnauthorized
	case code >= 200 && code < 300:
		return nil
	default:
		return fmt.Errorf("unexpected status: %d", code)
	}
}
