package commerce

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/mmeshcher/storefront-system/internal/model"
)

func testContext(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func TestFetchProducts_OK(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			t.Fatalf("method = %s, want GET", r.Method)
		}
		if r.URL.Path != "/api/products" {
			t.Fatalf("path = %s, want /api/products", r.URL.Path)
		}
		if auth := r.Header.Get("Authorization"); auth != "" {
			t.Fatalf("catalog request must be anonymous, got %q", auth)
		}

		products := []model.Product{
			{ID: "p1", Name: "Mug", Category: "Accessories", Price: 9.99},
		}
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(products); err != nil {
			t.Fatalf("encode: %v", err)
		}
	}))
	defer ts.Close()

	client := NewClient(ts.URL)

	products, err := client.FetchProducts(testContext(t))
	if err != nil {
		t.Fatalf("FetchProducts error: %v", err)
	}
	if len(products) != 1 || products[0].ID != "p1" {
		t.Fatalf("unexpected products: %+v", products)
	}
}

func TestAddToCart_SendsBearerToken(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Fatalf("method = %s, want POST", r.Method)
		}
		if r.URL.Path != "/api/cart" {
			t.Fatalf("path = %s, want /api/cart", r.URL.Path)
		}
		if auth := r.Header.Get("Authorization"); auth != "Bearer user-token" {
			t.Fatalf("authorization = %q, want bearer token", auth)
		}

		var req struct {
			ProductID string `json:"productId"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if req.ProductID != "p1" {
			t.Fatalf("productId = %q, want p1", req.ProductID)
		}

		w.WriteHeader(http.StatusOK)
	}))
	defer ts.Close()

	client := NewClient(ts.URL)

	if err := client.AddToCart(testContext(t), "user-token", "p1"); err != nil {
		t.Fatalf("AddToCart error: %v", err)
	}
}

func TestGetCart_OK(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"items":{"p1":2,"p2":1}}`))
	}))
	defer ts.Close()

	client := NewClient(ts.URL)

	cart, err := client.GetCart(testContext(t), "user-token")
	if err != nil {
		t.Fatalf("GetCart error: %v", err)
	}
	if len(cart) != 2 || cart["p1"] != 2 || cart["p2"] != 1 {
		t.Fatalf("unexpected cart: %v", cart)
	}
}

func TestGetOrders_Unauthorized(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer ts.Close()

	client := NewClient(ts.URL)

	_, err := client.GetOrders(testContext(t), "expired-token")
	if !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
}

func TestCreateOrder_OK(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/orders" {
			t.Fatalf("path = %s, want /api/orders", r.URL.Path)
		}
		if r.Header.Get("Idempotency-Key") == "" {
			t.Fatalf("order creation must carry an idempotency key")
		}

		var order model.Order
		if err := json.NewDecoder(r.Body).Decode(&order); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if order.Amount != 230 {
			t.Fatalf("amount = %v, want 230", order.Amount)
		}

		order.ID = "o1"
		order.PaymentRef = "pay_1"
		order.ClientSecret = "cs_test"
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(order); err != nil {
			t.Fatalf("encode: %v", err)
		}
	}))
	defer ts.Close()

	client := NewClient(ts.URL)

	created, err := client.CreateOrder(testContext(t), "user-token", model.Order{
		Amount: 230,
		Status: model.OrderStatusCreated,
	})
	if err != nil {
		t.Fatalf("CreateOrder error: %v", err)
	}
	if created.ID != "o1" || created.ClientSecret != "cs_test" {
		t.Fatalf("unexpected order: %+v", created)
	}
}

func TestLogin_OK(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/auth/login" {
			t.Fatalf("path = %s, want /api/auth/login", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"token":"session-token"}`))
	}))
	defer ts.Close()

	client := NewClient(ts.URL)

	token, err := client.Login(testContext(t), "foo@bar.com", "pass")
	if err != nil {
		t.Fatalf("Login error: %v", err)
	}
	if token != "session-token" {
		t.Fatalf("token = %q, want session-token", token)
	}
}

func TestClient_NotConfigured(t *testing.T) {
	client := &Client{}

	if _, err := client.FetchProducts(testContext(t)); err == nil {
		t.Fatalf("expected error for unconfigured client")
	}
}
