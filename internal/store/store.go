// Package store реализует состояние сеанса витрины: каталог, токен и корзину.
//
// Store — единственный источник истины для всех страниц. Мутации корзины
// применяются локально и сразу сохраняются в локальное хранилище; при
// наличии токена изменение дублируется фоновым запросом к commerce API.
// Ошибка удалённого вызова не откатывает локальное состояние: до
// следующей сверки локальные данные считаются авторитетными.
package store

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/sethvargo/go-retry"
	"go.uber.org/zap"

	"github.com/mmeshcher/storefront-system/internal/model"
)

// Commerce описывает операции удалённого API, используемые хранилищем.
type Commerce interface {
	FetchProducts(ctx context.Context) ([]model.Product, error)
	GetCart(ctx context.Context, token string) (map[string]int, error)
	AddToCart(ctx context.Context, token, productID string) error
	RemoveFromCart(ctx context.Context, token, productID string) error
}

// Persister описывает локальное долговременное хранилище сеанса.
type Persister interface {
	SaveToken(token string) error
	SaveQuantities(quantities map[string]int) error
	DeleteQuantities() error
	Clear() error
}

type syncAction string

const (
	syncAdd    syncAction = "add"
	syncRemove syncAction = "remove"
)

type syncOp struct {
	action    syncAction
	productID string
	token     string
}

const syncQueueSize = 64

var errSyncQueueFull = errors.New("cart sync queue full")

// Store содержит состояние сеанса витрины.
type Store struct {
	mu sync.Mutex

	catalog        []model.Product
	loadingCatalog bool
	catalogErr     error

	token      string
	quantities map[string]int

	cartSyncErr error

	client Commerce
	local  Persister
	logger *zap.Logger

	syncQueue chan syncOp
}

// New создаёт хранилище с указанным клиентом API и локальным хранилищем.
func New(client Commerce, local Persister, logger *zap.Logger) *Store {
	return &Store{
		quantities: make(map[string]int),
		client:     client,
		local:      local,
		logger:     logger,
		syncQueue:  make(chan syncOp, syncQueueSize),
	}
}

// Restore подставляет состояние, восстановленное из локального хранилища
// при старте процесса. Удалённые вызовы не выполняются.
func (s *Store) Restore(token string, quantities map[string]int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.token = token
	if quantities != nil {
		s.quantities = quantities
	}
}

// LoadCatalog загружает каталог товаров. Вызывается один раз при старте;
// повторный вызов во время загрузки игнорируется. При ошибке каталог
// остаётся пустым, автоматических повторов нет.
func (s *Store) LoadCatalog(ctx context.Context) {
	s.mu.Lock()
	if s.loadingCatalog {
		s.mu.Unlock()
		return
	}
	s.loadingCatalog = true
	s.catalogErr = nil
	s.mu.Unlock()

	products, err := s.client.FetchProducts(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()

	s.loadingCatalog = false
	if err != nil {
		s.logger.Error("load catalog error", zap.Error(err))
		s.catalogErr = err
		s.catalog = nil
		return
	}

	normalized := make([]model.Product, 0, len(products))
	for _, p := range products {
		normalized = append(normalized, p.Normalize())
	}
	s.catalog = normalized
}

// LoadCartData запрашивает серверную корзину. Непустой ответ целиком
// замещает локальные количества: после входа сервер главнее состояния,
// накопленного без авторизации.
func (s *Store) LoadCartData(ctx context.Context) {
	s.mu.Lock()
	token := s.token
	s.mu.Unlock()

	if token == "" {
		return
	}

	remote, err := s.client.GetCart(ctx, token)
	if err != nil {
		s.logger.Error("load cart error", zap.Error(err))
		return
	}
	if len(remote) == 0 {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.quantities = remote
	s.persistQuantities()
}

// AddItem увеличивает количество товара в корзине на единицу.
func (s *Store) AddItem(productID string) {
	s.mu.Lock()
	s.quantities[productID]++
	s.persistQuantities()
	token := s.token
	s.mu.Unlock()

	s.enqueueSync(syncOp{action: syncAdd, productID: productID, token: token})
}

// DecreaseQty уменьшает количество товара на единицу. Если результат
// не положителен, запись удаляется целиком: нулевые количества в карте
// не хранятся.
func (s *Store) DecreaseQty(productID string) {
	s.mu.Lock()
	if s.quantities[productID] <= 1 {
		delete(s.quantities, productID)
	} else {
		s.quantities[productID]--
	}
	s.persistQuantities()
	token := s.token
	s.mu.Unlock()

	s.enqueueSync(syncOp{action: syncRemove, productID: productID, token: token})
}

// RemoveItem удаляет товар из корзины безусловно.
func (s *Store) RemoveItem(productID string) {
	s.mu.Lock()
	delete(s.quantities, productID)
	s.persistQuantities()
	token := s.token
	s.mu.Unlock()

	s.enqueueSync(syncOp{action: syncRemove, productID: productID, token: token})
}

// ClearCart очищает корзину и её сохранённую копию. Используется после
// успешной оплаты заказа.
func (s *Store) ClearCart() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.quantities = make(map[string]int)
	if err := s.local.DeleteQuantities(); err != nil {
		s.logger.Error("delete persisted cart error", zap.Error(err))
	}
}

// SetToken устанавливает токен сеанса и сохраняет его локально.
func (s *Store) SetToken(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.token = token
	if err := s.local.SaveToken(token); err != nil {
		s.logger.Error("save token error", zap.Error(err))
	}
}

// Logout сбрасывает сеанс: токен и корзина очищаются вместе с их
// сохранёнными копиями. Слияния с серверным состоянием нет.
func (s *Store) Logout() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.token = ""
	s.quantities = make(map[string]int)
	s.cartSyncErr = nil
	if err := s.local.Clear(); err != nil {
		s.logger.Error("clear local state error", zap.Error(err))
	}
}

// Token возвращает текущий токен сеанса, пустой без авторизации.
func (s *Store) Token() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.token
}

// Catalog возвращает нормализованный каталог товаров.
func (s *Store) Catalog() []model.Product {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]model.Product, len(s.catalog))
	copy(out, s.catalog)
	return out
}

// Product возвращает товар каталога по идентификатору.
func (s *Store) Product(id string) (model.Product, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, p := range s.catalog {
		if p.ID == id {
			return p, true
		}
	}
	return model.Product{}, false
}

// LoadingCatalog сообщает, выполняется ли загрузка каталога.
func (s *Store) LoadingCatalog() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadingCatalog
}

// CatalogError возвращает ошибку последней загрузки каталога.
func (s *Store) CatalogError() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.catalogErr
}

// Quantities возвращает копию карты количеств корзины.
func (s *Store) Quantities() map[string]int {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make(map[string]int, len(s.quantities))
	for id, qty := range s.quantities {
		out[id] = qty
	}
	return out
}

// CartCount возвращает суммарное количество товаров в корзине.
func (s *Store) CartCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	count := 0
	for _, qty := range s.quantities {
		count += qty
	}
	return count
}

// CartTotal возвращает сумму цен товаров корзины по каталогу.
func (s *Store) CartTotal() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	total := 0.0
	for _, p := range s.catalog {
		total += p.Price * float64(s.quantities[p.ID])
	}
	return total
}

// CartItems возвращает товары каталога с положительным количеством.
func (s *Store) CartItems() []model.Product {
	s.mu.Lock()
	defer s.mu.Unlock()

	items := make([]model.Product, 0)
	for _, p := range s.catalog {
		if s.quantities[p.ID] > 0 {
			items = append(items, p)
		}
	}
	return items
}

// LastCartSyncError возвращает ошибку последней фоновой синхронизации
// корзины, nil после успешной синхронизации.
func (s *Store) LastCartSyncError() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cartSyncErr
}

// RunSync запускает фоновую обработку очереди синхронизации корзины.
// Возвращается при отмене контекста.
func (s *Store) RunSync(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case op := <-s.syncQueue:
			s.processSync(ctx, op)
		}
	}
}

func (s *Store) enqueueSync(op syncOp) {
	if op.token == "" {
		return
	}

	select {
	case s.syncQueue <- op:
	default:
		s.logger.Error("cart sync queue full, dropping op",
			zap.String("action", string(op.action)),
			zap.String("productID", op.productID))
		s.setCartSyncErr(errSyncQueueFull)
	}
}

func (s *Store) processSync(ctx context.Context, op syncOp) {
	backoff := retry.WithMaxRetries(3, retry.NewExponential(200*time.Millisecond))

	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		var callErr error
		switch op.action {
		case syncAdd:
			callErr = s.client.AddToCart(ctx, op.token, op.productID)
		case syncRemove:
			callErr = s.client.RemoveFromCart(ctx, op.token, op.productID)
		}
		if callErr != nil {
			return retry.RetryableError(callErr)
		}
		return nil
	})
	if err != nil {
		s.logger.Error("cart sync error",
			zap.String("action", string(op.action)),
			zap.String("productID", op.productID),
			zap.Error(err))
		s.setCartSyncErr(err)
		return
	}

	s.setCartSyncErr(nil)
}

func (s *Store) setCartSyncErr(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cartSyncErr = err
}

// persistQuantities сохраняет корзину под уже взятой блокировкой.
func (s *Store) persistQuantities() {
	if err := s.local.SaveQuantities(s.quantities); err != nil {
		s.logger.Error("persist cart error", zap.Error(err))
	}
}
