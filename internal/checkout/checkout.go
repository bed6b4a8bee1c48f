// Package checkout реализует процесс оформления заказа.
//
// Процесс описывается машиной из трёх состояний: Drafting (форма
// реквизитов), AwaitingPayment (заказ создан, показан платёжный виджет)
// и Resolved (успех или отказ). Платёжные данные процесс не видит:
// подтверждение оплаты целиком делегировано размещённому виджету.
package checkout

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/mmeshcher/storefront-system/internal/model"
	"github.com/mmeshcher/storefront-system/internal/pricing"
	"github.com/mmeshcher/storefront-system/internal/validation"
)

// State описывает состояние процесса оформления заказа.
type State string

const (
	StateDrafting        State = "DRAFTING"
	StateAwaitingPayment State = "AWAITING_PAYMENT"
	StateResolvedSuccess State = "RESOLVED_SUCCESS"
	StateResolvedFailure State = "RESOLVED_FAILURE"
)

var (
	// ErrEmptyCart возвращается при попытке оформить пустую корзину.
	ErrEmptyCart = errors.New("cart is empty")
	// ErrNoSession возвращается при оформлении без активного сеанса.
	ErrNoSession = errors.New("no active session")
	// ErrInvalidBilling возвращается при ошибках валидации формы.
	ErrInvalidBilling = errors.New("billing details invalid")
	// ErrInvalidState возвращается при переходе, недопустимом из
	// текущего состояния.
	ErrInvalidState = errors.New("invalid checkout state")
)

// Commerce описывает операции удалённого API, используемые процессом.
type Commerce interface {
	CreateOrder(ctx context.Context, token string, order model.Order) (*model.Order, error)
	VerifyPayment(ctx context.Context, token, paymentOrderID string) error
	ClearCart(ctx context.Context, token string) error
}

// Cart описывает доступ к состоянию сеанса, необходимый процессу.
type Cart interface {
	Token() string
	CartItems() []model.Product
	Quantities() map[string]int
	ClearCart()
}

// Flow хранит состояние одного оформления заказа.
type Flow struct {
	mu sync.Mutex

	state  State
	client Commerce
	cart   Cart
	logger *zap.Logger

	billing     model.BillingDetails
	fieldErrors map[string]string

	order               *model.Order
	needsReconciliation bool
	paymentErr          error
}

// NewFlow создаёт процесс оформления в состоянии Drafting.
func NewFlow(client Commerce, cart Cart, logger *zap.Logger) *Flow {
	return &Flow{
		state:  StateDrafting,
		client: client,
		cart:   cart,
		logger: logger,
	}
}

// SubmitBilling проверяет реквизиты и создаёт заказ. При любой ошибке
// процесс остаётся в Drafting, а форма — редактируемой. Пустая корзина
// отклоняется до обращения к API.
func (f *Flow) SubmitBilling(ctx context.Context, billing model.BillingDetails) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.state != StateDrafting {
		return ErrInvalidState
	}

	f.billing = billing
	f.fieldErrors = validation.ValidateBilling(billing)
	if len(f.fieldErrors) > 0 {
		return ErrInvalidBilling
	}

	token := f.cart.Token()
	if token == "" {
		return ErrNoSession
	}

	items := f.cart.CartItems()
	if len(items) == 0 {
		return ErrEmptyCart
	}

	quantities := f.cart.Quantities()
	breakdown := pricing.Calculate(items, quantities)

	order := model.Order{
		UserName:    strings.TrimSpace(billing.FirstName + " " + billing.LastName),
		UserAddress: billing.Address,
		Email:       billing.Email,
		PhoneNumber: billing.PhoneNumber,
		Amount:      breakdown.Total,
		Status:      model.OrderStatusCreated,
		Items:       orderItems(items, quantities),
	}

	created, err := f.client.CreateOrder(ctx, token, order)
	if err != nil {
		return fmt.Errorf("create order: %w", err)
	}
	if created.ClientSecret == "" {
		return errors.New("order response without payment secret")
	}

	f.order = created
	f.state = StateAwaitingPayment
	return nil
}

// ConfirmPayment завершает процесс после успешного списания в виджете:
// подтверждение на API, очистка серверной и локальной корзины, переход
// в Resolved(success). Ошибка подтверждения не блокирует успех — деньги
// уже списаны — но помечает заказ для ручной сверки.
func (f *Flow) ConfirmPayment(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.state != StateAwaitingPayment {
		return ErrInvalidState
	}

	token := f.cart.Token()

	if err := f.client.VerifyPayment(ctx, token, f.order.PaymentRef); err != nil {
		f.logger.Error("payment verification error, order flagged for reconciliation",
			zap.String("paymentRef", f.order.PaymentRef),
			zap.Error(err))
		f.needsReconciliation = true
	} else if err := f.client.ClearCart(ctx, token); err != nil {
		f.logger.Error("remote cart clear error", zap.Error(err))
		f.needsReconciliation = true
	}

	f.cart.ClearCart()
	f.state = StateResolvedSuccess
	return nil
}

// FailPayment фиксирует отказ или сбой виджета и переводит процесс в
// Resolved(failure).
func (f *Flow) FailPayment(cause error) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.state != StateAwaitingPayment {
		return ErrInvalidState
	}

	f.paymentErr = cause
	f.order = nil
	f.state = StateResolvedFailure
	return nil
}

// Retry возвращает процесс из Resolved(failure) в Drafting, сохраняя
// введённые реквизиты.
func (f *Flow) Retry() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.state != StateResolvedFailure {
		return ErrInvalidState
	}

	f.paymentErr = nil
	f.state = StateDrafting
	return nil
}

// State возвращает текущее состояние процесса.
func (f *Flow) State() State {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

// Billing возвращает последние отправленные реквизиты.
func (f *Flow) Billing() model.BillingDetails {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.billing
}

// FieldErrors возвращает сообщения валидации по полям формы.
func (f *Flow) FieldErrors() map[string]string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.fieldErrors
}

// Order возвращает созданный заказ вместе с платёжным секретом, nil до
// перехода в AwaitingPayment.
func (f *Flow) Order() *model.Order {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.order
}

// NeedsReconciliation сообщает, требуется ли ручная сверка оплаты.
func (f *Flow) NeedsReconciliation() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.needsReconciliation
}

// PaymentError возвращает причину отказа оплаты.
func (f *Flow) PaymentError() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.paymentErr
}

func orderItems(items []model.Product, quantities map[string]int) []model.OrderItem {
	out := make([]model.OrderItem, 0, len(items))
	for _, p := range items {
		out = append(out, model.OrderItem{
			ProductID: p.ID,
			Quantity:  quantities[p.ID],
			Price:     p.Price,
			Name:      p.Name,
			Category:  p.Category,
			ImageURL:  p.ImageURL,
		})
	}
	return out
}
