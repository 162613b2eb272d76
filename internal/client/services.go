package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
)

// ErrEmptyToken is returned when the auth endpoint answers without a token.
var ErrEmptyToken = errors.New("auth: response carried no token")

// AuthService logs in against a fakestore compatible endpoint that answers
// {"token": "..."}.
type AuthService struct {
	url    string
	client *http.Client
}

func NewAuthService(url string, timeout time.Duration) *AuthService {
	return &AuthService{url: url, client: &http.Client{Timeout: timeout}}
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token string `json:"token"`
}

func (s *AuthService) Login(ctx context.Context, username, password string) (string, error) {
	var out loginResponse
	if err := postJSON(ctx, s.client, s.url, loginRequest{Username: username, Password: password}, &out); err != nil {
		return "", fmt.Errorf("auth: %w", err)
	}
	if out.Token == "" {
		return "", ErrEmptyToken
	}
	return out.Token, nil
}

// Customer is the delivery contact of an order.
type Customer struct {
	Name    string `json:"name" validate:"required"`
	Email   string `json:"email" validate:"required,email"`
	Address string `json:"address" validate:"required"`
}

// OrderItem references one product of the order.
type OrderItem struct {
	ID string `json:"id" validate:"required"`
}

// Order is what the checkout endpoint receives.
type Order struct {
	Items     []OrderItem `json:"items" validate:"required,min=1,dive"`
	Customer  Customer    `json:"customer"`
	OrderDate time.Time   `json:"orderDate"`
}

// NewOrder builds an order holding one item per cart line.
func NewOrder(snap Snapshot, customer Customer, now time.Time) Order {
	items := make([]OrderItem, 0, len(snap.Items))
	for _, it := range snap.Items {
		items = append(items, OrderItem{ID: it.ProductID})
	}
	return Order{Items: items, Customer: customer, OrderDate: now.UTC()}
}

// CheckoutService submits orders to a configurable endpoint and returns
// whatever JSON it answers with.
type CheckoutService struct {
	url      string
	client   *http.Client
	validate *validator.Validate
}

func NewCheckoutService(url string, timeout time.Duration) *CheckoutService {
	return &CheckoutService{url: url, client: &http.Client{Timeout: timeout}, validate: validator.New()}
}

func (s *CheckoutService) Submit(ctx context.Context, order Order) (json.RawMessage, error) {
	if err := s.validate.Struct(order); err != nil {
		return nil, fmt.Errorf("checkout: invalid order: %w", err)
	}
	var out json.RawMessage
	if err := postJSON(ctx, s.client, s.url, order, &out); err != nil {
		return nil, fmt.Errorf("checkout: %w", err)
	}
	return out, nil
}

func postJSON(ctx context.Context, client *http.Client, url string, in, out interface{}) error {
	body, err := json.Marshal(in)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("status=%d body=%s", resp.StatusCode, bytes.TrimSpace(raw))
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
