package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	custommiddleware "github.com/mmeshcher/storefront-system/internal/middleware"
)

// SetupRouter настраивает маршруты страниц и middleware витрины.
func (h *Handler) SetupRouter() *chi.Mux {
	r := chi.NewRouter()

	r.Use(custommiddleware.GzipMiddleware)
	r.Use(custommiddleware.Logger(h.logger))

	r.Get("/", h.Home)
	r.Get("/products", h.Products)
	r.Get("/product/{id}", h.ProductDetail)
	r.Get("/contact", h.Contact)

	r.Get("/cart", h.Cart)
	r.Post("/cart/add", h.AddToCart)
	r.Post("/cart/decrease", h.DecreaseQty)
	r.Post("/cart/remove", h.RemoveFromCart)

	r.Get("/login", h.LoginForm)
	r.Post("/login", h.Login)
	r.Get("/register", h.RegisterForm)
	r.Post("/register", h.Register)
	r.Post("/logout", h.Logout)

	r.Get("/payment-success", h.PaymentSuccess)
	r.Get("/payment-failed", h.PaymentFailed)

	// Оформление заказа и история требуют активного сеанса.
	r.Group(func(r chi.Router) {
		r.Use(custommiddleware.RequireSession(func() bool {
			return h.store.Token() != ""
		}))

		r.Get("/checkout", h.Checkout)
		r.Post("/checkout", h.SubmitCheckout)
		r.Post("/payment/result", h.PaymentResult)
		r.Post("/payment-failed/retry", h.RetryPayment)

		r.Get("/orders", h.Orders)
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
	})

	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
	})

	return r
}
