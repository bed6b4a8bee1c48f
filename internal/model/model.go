// Package model содержит доменные сущности витрины магазина.
package model

import (
	"strings"
	"time"
)

// Product описывает товар каталога. Данные приходят из удалённого
// commerce API и на стороне клиента не изменяются.
type Product struct {
	ID          string   `json:"id"`
	ProductID   string   `json:"productId,omitempty"`
	Name        string   `json:"name"`
	Category    string   `json:"category"`
	Price       float64  `json:"price"`
	Discount    *float64 `json:"discount,omitempty"`
	Stock       *int     `json:"stock,omitempty"`
	Rating      *float64 `json:"rating,omitempty"`
	Description string   `json:"description"`
	ImageURL    string   `json:"imageUrl"`
}

// Normalize приводит запись каталога к каноничному виду: подстановка
// идентификатора из productId, нормализация категории, неотрицательная цена.
func (p Product) Normalize() Product {
	if p.ID == "" {
		p.ID = p.ProductID
	}
	p.Category = strings.ToLower(strings.TrimSpace(p.Category))
	if p.Price < 0 {
		p.Price = 0
	}
	return p
}

// RatingValue возвращает рейтинг товара, 0 при его отсутствии.
func (p Product) RatingValue() float64 {
	if p.Rating == nil {
		return 0
	}
	return *p.Rating
}

// OrderStatus описывает статус обработки заказа.
type OrderStatus string

const (
	OrderStatusCreated   OrderStatus = "CREATED"
	OrderStatusPending   OrderStatus = "PENDING_VERIFICATION"
	OrderStatusPaid      OrderStatus = "PAID"
	OrderStatusFulfilled OrderStatus = "FULFILLED"
)

// OrderItem описывает позицию заказа. Значения фиксируются на момент
// оформления и не ссылаются на живую запись каталога.
type OrderItem struct {
	ProductID string  `json:"productId"`
	Quantity  int     `json:"quantity"`
	Price     float64 `json:"price"`
	Name      string  `json:"name"`
	Category  string  `json:"category"`
	ImageURL  string  `json:"imageUrl"`
}

// Order описывает заказ пользователя.
type Order struct {
	ID           string      `json:"id"`
	UserName     string      `json:"userName"`
	UserAddress  string      `json:"userAddress"`
	Email        string      `json:"email"`
	PhoneNumber  string      `json:"phoneNumber"`
	Items        []OrderItem `json:"orderedItems"`
	Amount       float64     `json:"amount"`
	Status       OrderStatus `json:"orderStatus"`
	PaymentRef   string      `json:"paymentOrderId,omitempty"`
	ClientSecret string      `json:"paymentClientSecret,omitempty"`
	CreatedAt    time.Time   `json:"createdAt"`
}

// BillingDetails содержит платёжные реквизиты формы оформления заказа.
type BillingDetails struct {
	FirstName   string
	LastName    string
	Email       string
	PhoneNumber string
	Address     string
	City        string
	State       string
	ZipCode     string
}
