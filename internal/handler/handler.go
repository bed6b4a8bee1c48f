// Package handler содержит HTTP-обработчики страниц витрины магазина.
package handler

import (
	"context"
	"embed"
	"errors"
	"html/template"
	"net/http"
	"sort"
	"strings"
	"sync"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/mmeshcher/storefront-system/internal/checkout"
	"github.com/mmeshcher/storefront-system/internal/commerce"
	"github.com/mmeshcher/storefront-system/internal/model"
	"github.com/mmeshcher/storefront-system/internal/pricing"
	"github.com/mmeshcher/storefront-system/internal/store"
)

//go:embed templates/*.tmpl
var templatesFS embed.FS

// Commerce определяет операции удалённого API, используемые страницами
// напрямую (вход, регистрация, история заказов) и процессом оформления.
type Commerce interface {
	Login(ctx context.Context, email, password string) (string, error)
	Register(ctx context.Context, name, email, password string) error
	GetOrders(ctx context.Context, token string) ([]model.Order, error)
	checkout.Commerce
}

// Handler реализует HTTP-обработчики страниц витрины.
type Handler struct {
	store  *store.Store
	api    Commerce
	logger *zap.Logger

	paymentPublicKey string
	tmpl             *template.Template

	flowMu sync.Mutex
	flow   *checkout.Flow
}

// NewHandler создаёт новый экземпляр обработчика страниц.
func NewHandler(st *store.Store, api Commerce, logger *zap.Logger, paymentPublicKey string) *Handler {
	return &Handler{
		store:            st,
		api:              api,
		logger:           logger,
		paymentPublicKey: paymentPublicKey,
		tmpl:             template.Must(template.ParseFS(templatesFS, "templates/*.tmpl")),
	}
}

type pageBase struct {
	Title         string
	Authenticated bool
	CartCount     int
	Message       string
}

func (h *Handler) base(title string, r *http.Request) pageBase {
	return pageBase{
		Title:         title,
		Authenticated: h.store.Token() != "",
		CartCount:     h.store.CartCount(),
		Message:       r.URL.Query().Get("msg"),
	}
}

func (h *Handler) render(w http.ResponseWriter, name string, data any) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := h.tmpl.ExecuteTemplate(w, name, data); err != nil {
		h.logger.Error("render template error", zap.String("template", name), zap.Error(err))
	}
}

func redirectBack(w http.ResponseWriter, r *http.Request, fallback string) {
	target := r.Header.Get("Referer")
	if target == "" {
		target = fallback
	}
	http.Redirect(w, r, target, http.StatusSeeOther)
}

type homePage struct {
	pageBase
	Loading      bool
	CatalogError bool
	Products     []model.Product
}

// Home отображает главную страницу с каталогом товаров.
func (h *Handler) Home(w http.ResponseWriter, r *http.Request) {
	h.render(w, "home", homePage{
		pageBase:     h.base("Storefront", r),
		Loading:      h.store.LoadingCatalog(),
		CatalogError: h.store.CatalogError() != nil,
		Products:     h.store.Catalog(),
	})
}

type productsPage struct {
	pageBase
	Loading      bool
	CatalogError bool
	Products     []model.Product
	Categories   []string
	Category     string
	Query        string
}

// Products отображает список товаров с поиском и фильтром по категории.
func (h *Handler) Products(w http.ResponseWriter, r *http.Request) {
	query := strings.ToLower(strings.TrimSpace(r.URL.Query().Get("q")))
	category := strings.ToLower(strings.TrimSpace(r.URL.Query().Get("category")))

	catalog := h.store.Catalog()

	seen := make(map[string]bool)
	categories := make([]string, 0)
	for _, p := range catalog {
		if p.Category != "" && !seen[p.Category] {
			seen[p.Category] = true
			categories = append(categories, p.Category)
		}
	}
	sort.Strings(categories)

	filtered := make([]model.Product, 0, len(catalog))
	for _, p := range catalog {
		if category != "" && p.Category != category {
			continue
		}
		if query != "" &&
			!strings.Contains(strings.ToLower(p.Name), query) &&
			!strings.Contains(p.Category, query) {
			continue
		}
		filtered = append(filtered, p)
	}

	h.render(w, "products", productsPage{
		pageBase:     h.base("Explore Products", r),
		Loading:      h.store.LoadingCatalog(),
		CatalogError: h.store.CatalogError() != nil,
		Products:     filtered,
		Categories:   categories,
		Category:     category,
		Query:        r.URL.Query().Get("q"),
	})
}

type productPage struct {
	pageBase
	Product model.Product
}

// ProductDetail отображает карточку товара по идентификатору.
func (h *Handler) ProductDetail(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	product, ok := h.store.Product(id)
	if !ok {
		http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
		return
	}

	h.render(w, "product", productPage{
		pageBase: h.base(product.Name, r),
		Product:  product,
	})
}

type cartLine struct {
	Product   model.Product
	Quantity  int
	LineTotal float64
}

type cartPage struct {
	pageBase
	Items     []cartLine
	Breakdown pricing.Breakdown
	SyncError bool
}

func (h *Handler) cartLines() ([]cartLine, pricing.Breakdown) {
	items := h.store.CartItems()
	quantities := h.store.Quantities()

	lines := make([]cartLine, 0, len(items))
	for _, p := range items {
		qty := quantities[p.ID]
		lines = append(lines, cartLine{
			Product:   p,
			Quantity:  qty,
			LineTotal: p.Price * float64(qty),
		})
	}
	return lines, pricing.Calculate(items, quantities)
}

// Cart отображает корзину с разбивкой стоимости.
func (h *Handler) Cart(w http.ResponseWriter, r *http.Request) {
	lines, breakdown := h.cartLines()
	h.render(w, "cart", cartPage{
		pageBase:  h.base("Cart", r),
		Items:     lines,
		Breakdown: breakdown,
		SyncError: h.store.LastCartSyncError() != nil,
	})
}

// AddToCart увеличивает количество товара в корзине.
func (h *Handler) AddToCart(w http.ResponseWriter, r *http.Request) {
	productID := r.PostFormValue("productId")
	if productID == "" {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	h.store.AddItem(productID)
	redirectBack(w, r, "/cart")
}

// DecreaseQty уменьшает количество товара в корзине.
func (h *Handler) DecreaseQty(w http.ResponseWriter, r *http.Request) {
	productID := r.PostFormValue("productId")
	if productID == "" {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	h.store.DecreaseQty(productID)
	redirectBack(w, r, "/cart")
}

// RemoveFromCart удаляет товар из корзины.
func (h *Handler) RemoveFromCart(w http.ResponseWriter, r *http.Request) {
	productID := r.PostFormValue("productId")
	if productID == "" {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	h.store.RemoveItem(productID)
	redirectBack(w, r, "/cart")
}

// currentFlow возвращает активный процесс оформления, создавая новый,
// если предыдущий отсутствует или уже успешно завершён.
func (h *Handler) currentFlow() *checkout.Flow {
	h.flowMu.Lock()
	defer h.flowMu.Unlock()

	if h.flow == nil || h.flow.State() == checkout.StateResolvedSuccess {
		h.flow = checkout.NewFlow(h.api, h.store, h.logger)
	}
	return h.flow
}

type formField struct {
	Name  string
	Label string
	Type  string
	Value string
	Error string
}

type checkoutPage struct {
	pageBase
	Fields      []formField
	Items       []cartLine
	Breakdown   pricing.Breakdown
	SubmitError string
}

type paymentPage struct {
	pageBase
	Order            *model.Order
	ClientSecret     string
	PaymentPublicKey string
}

func checkoutFields(b model.BillingDetails, fieldErrors map[string]string) []formField {
	fields := []formField{
		{Name: "firstName", Label: "First Name", Type: "text", Value: b.FirstName},
		{Name: "lastName", Label: "Last Name", Type: "text", Value: b.LastName},
		{Name: "email", Label: "Email Address", Type: "email", Value: b.Email},
		{Name: "phoneNumber", Label: "Phone Number", Type: "tel", Value: b.PhoneNumber},
		{Name: "address", Label: "Street Address", Type: "text", Value: b.Address},
		{Name: "city", Label: "City", Type: "text", Value: b.City},
		{Name: "state", Label: "State", Type: "text", Value: b.State},
		{Name: "zipCode", Label: "ZIP Code", Type: "text", Value: b.ZipCode},
	}
	for i := range fields {
		fields[i].Error = fieldErrors[fields[i].Name]
	}
	return fields
}

func billingFromForm(r *http.Request) model.BillingDetails {
	return model.BillingDetails{
		FirstName:   r.PostFormValue("firstName"),
		LastName:    r.PostFormValue("lastName"),
		Email:       r.PostFormValue("email"),
		PhoneNumber: r.PostFormValue("phoneNumber"),
		Address:     r.PostFormValue("address"),
		City:        r.PostFormValue("city"),
		State:       r.PostFormValue("state"),
		ZipCode:     r.PostFormValue("zipCode"),
	}
}

// Checkout отображает форму реквизитов либо страницу оплаты в
// зависимости от состояния процесса оформления.
func (h *Handler) Checkout(w http.ResponseWriter, r *http.Request) {
	flow := h.currentFlow()

	if flow.State() == checkout.StateAwaitingPayment {
		order := flow.Order()
		h.render(w, "payment", paymentPage{
			pageBase:         h.base("Payment", r),
			Order:            order,
			ClientSecret:     order.ClientSecret,
			PaymentPublicKey: h.paymentPublicKey,
		})
		return
	}

	lines, breakdown := h.cartLines()
	h.render(w, "checkout", checkoutPage{
		pageBase:  h.base("Checkout", r),
		Fields:    checkoutFields(flow.Billing(), flow.FieldErrors()),
		Items:     lines,
		Breakdown: breakdown,
	})
}

// SubmitCheckout проверяет форму и создаёт заказ. При ошибке процесс
// остаётся на форме; корзина и поля не теряются.
func (h *Handler) SubmitCheckout(w http.ResponseWriter, r *http.Request) {
	flow := h.currentFlow()
	billing := billingFromForm(r)

	err := flow.SubmitBilling(r.Context(), billing)
	switch {
	case err == nil:
		http.Redirect(w, r, "/checkout", http.StatusSeeOther)
	case errors.Is(err, checkout.ErrInvalidBilling):
		lines, breakdown := h.cartLines()
		h.render(w, "checkout", checkoutPage{
			pageBase:    h.base("Checkout", r),
			Fields:      checkoutFields(billing, flow.FieldErrors()),
			Items:       lines,
			Breakdown:   breakdown,
			SubmitError: "Please fill all fields correctly",
		})
	case errors.Is(err, checkout.ErrEmptyCart):
		http.Redirect(w, r, "/cart?msg=Cart+is+empty", http.StatusSeeOther)
	case errors.Is(err, checkout.ErrNoSession):
		http.Redirect(w, r, "/login", http.StatusSeeOther)
	case errors.Is(err, checkout.ErrInvalidState):
		http.Redirect(w, r, "/checkout", http.StatusSeeOther)
	default:
		h.logger.Error("order creation error", zap.Error(err))
		lines, breakdown := h.cartLines()
		h.render(w, "checkout", checkoutPage{
			pageBase:    h.base("Checkout", r),
			Fields:      checkoutFields(billing, flow.FieldErrors()),
			Items:       lines,
			Breakdown:   breakdown,
			SubmitError: "Order creation failed",
		})
	}
}

// PaymentResult принимает исход оплаты от платёжного виджета.
func (h *Handler) PaymentResult(w http.ResponseWriter, r *http.Request) {
	flow := h.currentFlow()

	if r.PostFormValue("status") == "succeeded" {
		if err := flow.ConfirmPayment(r.Context()); err != nil {
			http.Redirect(w, r, "/", http.StatusSeeOther)
			return
		}
		http.Redirect(w, r, "/payment-success", http.StatusSeeOther)
		return
	}

	cause := r.PostFormValue("error")
	if cause == "" {
		cause = "payment declined"
	}
	if err := flow.FailPayment(errors.New(cause)); err != nil {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}
	http.Redirect(w, r, "/payment-failed", http.StatusSeeOther)
}

type paymentSuccessPage struct {
	pageBase
	NeedsReconciliation bool
}

// PaymentSuccess отображает страницу успешной оплаты.
func (h *Handler) PaymentSuccess(w http.ResponseWriter, r *http.Request) {
	needsReconciliation := false
	h.flowMu.Lock()
	if h.flow != nil {
		needsReconciliation = h.flow.NeedsReconciliation()
	}
	h.flowMu.Unlock()

	h.render(w, "payment_success", paymentSuccessPage{
		pageBase:            h.base("Payment Successful", r),
		NeedsReconciliation: needsReconciliation,
	})
}

type paymentFailedPage struct {
	pageBase
	Reason string
}

// PaymentFailed отображает страницу отказа оплаты с путём повтора.
func (h *Handler) PaymentFailed(w http.ResponseWriter, r *http.Request) {
	reason := ""
	h.flowMu.Lock()
	if h.flow != nil && h.flow.PaymentError() != nil {
		reason = h.flow.PaymentError().Error()
	}
	h.flowMu.Unlock()

	h.render(w, "payment_failed", paymentFailedPage{
		pageBase: h.base("Payment Failed", r),
		Reason:   reason,
	})
}

// RetryPayment возвращает процесс оформления к форме реквизитов.
func (h *Handler) RetryPayment(w http.ResponseWriter, r *http.Request) {
	h.flowMu.Lock()
	flow := h.flow
	h.flowMu.Unlock()

	if flow != nil {
		_ = flow.Retry()
	}
	http.Redirect(w, r, "/checkout", http.StatusSeeOther)
}

type loginPage struct {
	pageBase
	Email string
	Error string
}

// LoginForm отображает форму входа. Авторизованный сеанс
// перенаправляется на главную.
func (h *Handler) LoginForm(w http.ResponseWriter, r *http.Request) {
	if h.store.Token() != "" {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}
	h.render(w, "login", loginPage{pageBase: h.base("Sign In", r)})
}

// Login выполняет вход через commerce API. Успешный вход сохраняет
// токен и запрашивает серверную корзину.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	email := r.PostFormValue("email")
	password := r.PostFormValue("password")

	if email == "" || password == "" {
		h.render(w, "login", loginPage{
			pageBase: h.base("Sign In", r),
			Email:    email,
			Error:    "Please fill all fields",
		})
		return
	}

	token, err := h.api.Login(r.Context(), email, password)
	if err != nil {
		h.logger.Error("login error", zap.Error(err))
		h.render(w, "login", loginPage{
			pageBase: h.base("Sign In", r),
			Email:    email,
			Error:    "Unable to login. Please try again.",
		})
		return
	}

	h.store.SetToken(token)
	h.store.LoadCartData(r.Context())
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

type registerPage struct {
	pageBase
	Name  string
	Email string
	Error string
}

// RegisterForm отображает форму регистрации.
func (h *Handler) RegisterForm(w http.ResponseWriter, r *http.Request) {
	if h.store.Token() != "" {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}
	h.render(w, "register", registerPage{pageBase: h.base("Sign Up", r)})
}

// Register регистрирует пользователя; вход выполняется отдельно.
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	name := r.PostFormValue("name")
	email := r.PostFormValue("email")
	password := r.PostFormValue("password")

	if name == "" || email == "" || password == "" {
		h.render(w, "register", registerPage{
			pageBase: h.base("Sign Up", r),
			Name:     name,
			Email:    email,
			Error:    "Please fill all fields",
		})
		return
	}

	if err := h.api.Register(r.Context(), name, email, password); err != nil {
		h.logger.Error("register error", zap.Error(err))
		h.render(w, "register", registerPage{
			pageBase: h.base("Sign Up", r),
			Name:     name,
			Email:    email,
			Error:    "Unable to register. Please try again.",
		})
		return
	}

	http.Redirect(w, r, "/login?msg=Registration+successful", http.StatusSeeOther)
}

// Logout завершает сеанс и сбрасывает корзину.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	h.store.Logout()
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

type ordersPage struct {
	pageBase
	Orders     []model.Order
	FetchError string
}

// Orders отображает историю заказов. Ошибка авторизации отличается от
// прочих сбоев; автоматических повторов нет, обновление — по ссылке.
func (h *Handler) Orders(w http.ResponseWriter, r *http.Request) {
	orders, err := h.api.GetOrders(r.Context(), h.store.Token())

	fetchError := ""
	if err != nil {
		if errors.Is(err, commerce.ErrUnauthorized) {
			fetchError = "Session expired. Please sign in again."
		} else {
			h.logger.Error("fetch orders error", zap.Error(err))
			fetchError = "Failed to fetch orders"
		}
	}

	h.render(w, "orders", ordersPage{
		pageBase:   h.base("My Orders", r),
		Orders:     orders,
		FetchError: fetchError,
	})
}

type contactPage struct {
	pageBase
}

// Contact отображает страницу контактов.
func (h *Handler) Contact(w http.ResponseWriter, r *http.Request) {
	h.render(w, "contact", contactPage{pageBase: h.base("Contact", r)})
}
