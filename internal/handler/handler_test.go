package handler

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/mmeshcher/storefront-system/internal/commerce"
	"github.com/mmeshcher/storefront-system/internal/localstore"
	"github.com/mmeshcher/storefront-system/internal/model"
	"github.com/mmeshcher/storefront-system/internal/store"
)

type stubAPI struct {
	products []model.Product

	cart map[string]int

	loginToken string
	loginErr   error

	registerErr error

	orders    []model.Order
	ordersErr error

	createResp *model.Order
	createErr  error

	verifyErr error
	clearErr  error
}

func (s *stubAPI) FetchProducts(ctx context.Context) ([]model.Product, error) {
	return s.products, nil
}

func (s *stubAPI) GetCart(ctx context.Context, token string) (map[string]int, error) {
	return s.cart, nil
}

func (s *stubAPI) AddToCart(ctx context.Context, token, productID string) error { return nil }

func (s *stubAPI) RemoveFromCart(ctx context.Context, token, productID string) error { return nil }

func (s *stubAPI) Login(ctx context.Context, email, password string) (string, error) {
	return s.loginToken, s.loginErr
}

func (s *stubAPI) Register(ctx context.Context, name, email, password string) error {
	return s.registerErr
}

func (s *stubAPI) GetOrders(ctx context.Context, token string) ([]model.Order, error) {
	return s.orders, s.ordersErr
}

func (s *stubAPI) CreateOrder(ctx context.Context, token string, order model.Order) (*model.Order, error) {
	if s.createErr != nil {
		return nil, s.createErr
	}
	return s.createResp, nil
}

func (s *stubAPI) VerifyPayment(ctx context.Context, token, paymentOrderID string) error {
	return s.verifyErr
}

func (s *stubAPI) ClearCart(ctx context.Context, token string) error { return s.clearErr }

func newTestHandler(t *testing.T, api *stubAPI) (*Handler, *store.Store) {
	t.Helper()

	local, err := localstore.NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileStore error: %v", err)
	}

	st := store.New(api, local, zap.NewNop())
	if len(api.products) > 0 {
		st.LoadCatalog(context.Background())
	}

	return NewHandler(st, api, zap.NewNop(), "pk_test"), st
}

func postForm(t *testing.T, h http.Handler, path string, form url.Values) *http.Response {
	t.Helper()

	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()

	h.ServeHTTP(rec, req)
	return rec.Result()
}

func TestCheckout_RedirectsToLoginWithoutSession(t *testing.T) {
	h, _ := newTestHandler(t, &stubAPI{})
	router := h.SetupRouter()

	req := httptest.NewRequest(http.MethodGet, "/checkout", nil)
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	res := rec.Result()
	if res.StatusCode != http.StatusSeeOther {
		t.Fatalf("status = %d, want %d", res.StatusCode, http.StatusSeeOther)
	}
	if loc := res.Header.Get("Location"); loc != "/login" {
		t.Fatalf("location = %q, want /login", loc)
	}
}

func TestAddToCart_IncrementsStore(t *testing.T) {
	h, st := newTestHandler(t, &stubAPI{})
	router := h.SetupRouter()

	res := postForm(t, router, "/cart/add", url.Values{"productId": {"p1"}})
	if res.StatusCode != http.StatusSeeOther {
		t.Fatalf("status = %d, want %d", res.StatusCode, http.StatusSeeOther)
	}

	if got := st.CartCount(); got != 1 {
		t.Fatalf("CartCount = %d, want 1", got)
	}
}

func TestAddToCart_MissingProductID(t *testing.T) {
	h, _ := newTestHandler(t, &stubAPI{})
	router := h.SetupRouter()

	res := postForm(t, router, "/cart/add", url.Values{})
	if res.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", res.StatusCode, http.StatusBadRequest)
	}
}

func TestLogin_SetsTokenAndLoadsServerCart(t *testing.T) {
	api := &stubAPI{
		loginToken: "session-token",
		cart:       map[string]int{"p9": 3},
	}
	h, st := newTestHandler(t, api)
	router := h.SetupRouter()

	res := postForm(t, router, "/login", url.Values{
		"email":    {"foo@bar.com"},
		"password": {"secret"},
	})
	if res.StatusCode != http.StatusSeeOther {
		t.Fatalf("status = %d, want %d", res.StatusCode, http.StatusSeeOther)
	}

	if st.Token() != "session-token" {
		t.Fatalf("token = %q, want session-token", st.Token())
	}
	if st.Quantities()["p9"] != 3 {
		t.Fatalf("server cart must be loaded after login, got %v", st.Quantities())
	}
}

func TestLogin_ErrorKeepsForm(t *testing.T) {
	api := &stubAPI{loginErr: context.DeadlineExceeded}
	h, _ := newTestHandler(t, api)
	router := h.SetupRouter()

	res := postForm(t, router, "/login", url.Values{
		"email":    {"foo@bar.com"},
		"password": {"secret"},
	})
	if res.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", res.StatusCode, http.StatusOK)
	}

	body, _ := io.ReadAll(res.Body)
	if !strings.Contains(string(body), "Unable to login") {
		t.Fatalf("error message must be rendered")
	}
}

func TestOrders_SessionExpiredMessage(t *testing.T) {
	api := &stubAPI{ordersErr: commerce.ErrUnauthorized}
	h, st := newTestHandler(t, api)
	st.SetToken("expired-token")
	router := h.SetupRouter()

	req := httptest.NewRequest(http.MethodGet, "/orders", nil)
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	res := rec.Result()
	if res.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", res.StatusCode, http.StatusOK)
	}

	body, _ := io.ReadAll(res.Body)
	if !strings.Contains(string(body), "Session expired") {
		t.Fatalf("unauthorized refresh must be reported as expired session")
	}
}

func TestProductDetail_NotFound(t *testing.T) {
	h, _ := newTestHandler(t, &stubAPI{
		products: []model.Product{{ID: "p1", Name: "Mug", Price: 10}},
	})
	router := h.SetupRouter()

	req := httptest.NewRequest(http.MethodGet, "/product/unknown", nil)
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	if rec.Result().StatusCode != http.StatusNotFound {
		t.Fatalf("status = %d, want %d", rec.Result().StatusCode, http.StatusNotFound)
	}
}

func TestSubmitCheckout_InvalidFormRendered(t *testing.T) {
	api := &stubAPI{
		products: []model.Product{{ID: "p1", Name: "Mug", Price: 100}},
		createResp: &model.Order{
			ID:           "o1",
			PaymentRef:   "pay_1",
			ClientSecret: "cs_test",
			Amount:       230,
		},
	}
	h, st := newTestHandler(t, api)
	st.SetToken("session-token")
	st.AddItem("p1")
	router := h.SetupRouter()

	res := postForm(t, router, "/checkout", url.Values{
		"firstName":   {"Ivan"},
		"lastName":    {"Petrov"},
		"email":       {"foo@bar"},
		"phoneNumber": {"12345"},
		"address":     {"1 Main St"},
		"city":        {"Springfield"},
		"state":       {"IL"},
		"zipCode":     {"62704"},
	})
	if res.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", res.StatusCode, http.StatusOK)
	}

	body, _ := io.ReadAll(res.Body)
	if !strings.Contains(string(body), "Please fill all fields correctly") {
		t.Fatalf("validation summary must be rendered")
	}
	if !strings.Contains(string(body), "Valid 10-digit phone required") {
		t.Fatalf("per-field message must be rendered")
	}
}

func TestSubmitCheckout_HappyPathShowsPayment(t *testing.T) {
	api := &stubAPI{
		products: []model.Product{{ID: "p1", Name: "Mug", Price: 100}},
		createResp: &model.Order{
			ID:           "o1",
			PaymentRef:   "pay_1",
			ClientSecret: "cs_test",
			Amount:       230,
		},
	}
	h, st := newTestHandler(t, api)
	st.SetToken("session-token")
	st.AddItem("p1")
	st.AddItem("p1")
	router := h.SetupRouter()

	res := postForm(t, router, "/checkout", url.Values{
		"firstName":   {"Ivan"},
		"lastName":    {"Petrov"},
		"email":       {"foo@bar.com"},
		"phoneNumber": {"9876543210"},
		"address":     {"1 Main St"},
		"city":        {"Springfield"},
		"state":       {"IL"},
		"zipCode":     {"62704"},
	})
	if res.StatusCode != http.StatusSeeOther {
		t.Fatalf("status = %d, want %d", res.StatusCode, http.StatusSeeOther)
	}
	if loc := res.Header.Get("Location"); loc != "/checkout" {
		t.Fatalf("location = %q, want /checkout", loc)
	}

	req := httptest.NewRequest(http.MethodGet, "/checkout", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	body, _ := io.ReadAll(rec.Result().Body)
	if !strings.Contains(string(body), "cs_test") {
		t.Fatalf("payment page must carry the client secret")
	}
}

func TestPaymentResult_FailureRedirects(t *testing.T) {
	api := &stubAPI{
		products: []model.Product{{ID: "p1", Name: "Mug", Price: 100}},
		createResp: &model.Order{
			ID:           "o1",
			PaymentRef:   "pay_1",
			ClientSecret: "cs_test",
			Amount:       115,
		},
	}
	h, st := newTestHandler(t, api)
	st.SetToken("session-token")
	st.AddItem("p1")
	router := h.SetupRouter()

	res := postForm(t, router, "/checkout", url.Values{
		"firstName":   {"Ivan"},
		"lastName":    {"Petrov"},
		"email":       {"foo@bar.com"},
		"phoneNumber": {"9876543210"},
		"address":     {"1 Main St"},
		"city":        {"Springfield"},
		"state":       {"IL"},
		"zipCode":     {"62704"},
	})
	if res.StatusCode != http.StatusSeeOther {
		t.Fatalf("submit status = %d, want %d", res.StatusCode, http.StatusSeeOther)
	}

	res = postForm(t, router, "/payment/result", url.Values{
		"status": {"failed"},
		"error":  {"card declined"},
	})
	if res.StatusCode != http.StatusSeeOther {
		t.Fatalf("status = %d, want %d", res.StatusCode, http.StatusSeeOther)
	}
	if loc := res.Header.Get("Location"); loc != "/payment-failed" {
		t.Fatalf("location = %q, want /payment-failed", loc)
	}

	// Корзина после отказа оплаты не очищается
	if st.CartCount() != 1 {
		t.Fatalf("cart must be kept after payment failure")
	}
}
