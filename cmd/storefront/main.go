// Package main запускает HTTP-сервер витрины магазина.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/mmeshcher/storefront-system/internal/commerce"
	"github.com/mmeshcher/storefront-system/internal/config"
	"github.com/mmeshcher/storefront-system/internal/handler"
	"github.com/mmeshcher/storefront-system/internal/localstore"
	"github.com/mmeshcher/storefront-system/internal/store"
)

func main() {
	logger, _ := zap.NewProduction()
	defer logger.Sync()

	sugar := logger.Sugar()

	cfg, err := config.Parse()
	if err != nil {
		sugar.Fatalw("configuration error", "error", err.Error())
	}

	local, err := localstore.NewFileStore(cfg.StateDir)
	if err != nil {
		sugar.Fatalw("local storage initialization error", "error", err.Error())
	}

	client := commerce.NewClient(cfg.CommerceAPIAddress)

	st := store.New(client, local, logger)

	// Восстановление сеанса, пережившего перезапуск процесса
	token, err := local.Token()
	if err != nil {
		sugar.Errorw("restore token error", "error", err.Error())
	}
	quantities, err := local.Quantities()
	if err != nil {
		sugar.Errorw("restore cart error", "error", err.Error())
		quantities = nil
	}
	st.Restore(token, quantities)

	h := handler.NewHandler(st, client, logger, cfg.PaymentPublicKey)

	r := h.SetupRouter()

	server := &http.Server{
		Addr:    cfg.RunAddress,
		Handler: r,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)

	// Однократная загрузка каталога и сверка серверной корзины
	g.Go(func() error {
		st.LoadCatalog(ctx)
		st.LoadCartData(ctx)
		return nil
	})

	// Фоновая синхронизация мутаций корзины с commerce API
	g.Go(func() error {
		st.RunSync(ctx)
		return nil
	})

	// Запуск HTTP-сервера
	g.Go(func() error {
		sugar.Infow("starting storefront server", "addr", cfg.RunAddress)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	// Graceful shutdown при отмене контекста (сигнал или ошибка в другой горутине)
	g.Go(func() error {
		<-ctx.Done()
		sugar.Info("shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown error: %w", err)
		}
		sugar.Info("server stopped gracefully")
		return nil
	})

	if err := g.Wait(); err != nil {
		sugar.Fatalw("application terminated with error", "error", err)
	}
}
