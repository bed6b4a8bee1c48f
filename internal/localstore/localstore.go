// Package localstore реализует локальное хранилище состояния сеанса.
//
// Хранятся два значения: токен сеанса и карта количеств корзины.
// Оба переживают перезапуск процесса и удаляются вместе при выходе.
package localstore

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

const (
	tokenFile = "token"
	cartFile  = "cart.json"
)

// FileStore хранит состояние сеанса в файлах внутри указанного каталога.
type FileStore struct {
	dir string
}

// NewFileStore создаёт хранилище в каталоге dir, создавая его при необходимости.
func NewFileStore(dir string) (*FileStore, error) {
	if dir == "" {
		return nil, errors.New("state directory is not set")
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("create state dir: %w", err)
	}
	return &FileStore{dir: dir}, nil
}

// Token возвращает сохранённый токен сеанса или пустую строку.
func (s *FileStore) Token() (string, error) {
	data, err := os.ReadFile(filepath.Join(s.dir, tokenFile))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", nil
		}
		return "", fmt.Errorf("read token: %w", err)
	}
	return strings.TrimSpace(string(data)), nil
}

// SaveToken сохраняет токен сеанса.
func (s *FileStore) SaveToken(token string) error {
	if err := os.WriteFile(filepath.Join(s.dir, tokenFile), []byte(token), 0o600); err != nil {
		return fmt.Errorf("write token: %w", err)
	}
	return nil
}

// Quantities возвращает сохранённую карту количеств корзины.
// Отсутствие файла означает пустую корзину.
func (s *FileStore) Quantities() (map[string]int, error) {
	data, err := os.ReadFile(filepath.Join(s.dir, cartFile))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return map[string]int{}, nil
		}
		return nil, fmt.Errorf("read cart: %w", err)
	}

	quantities := make(map[string]int)
	if err := json.Unmarshal(data, &quantities); err != nil {
		return nil, fmt.Errorf("decode cart: %w", err)
	}
	return quantities, nil
}

// SaveQuantities сохраняет карту количеств корзины в формате JSON.
func (s *FileStore) SaveQuantities(quantities map[string]int) error {
	data, err := json.Marshal(quantities)
	if err != nil {
		return fmt.Errorf("encode cart: %w", err)
	}
	if err := os.WriteFile(filepath.Join(s.dir, cartFile), data, 0o600); err != nil {
		return fmt.Errorf("write cart: %w", err)
	}
	return nil
}

// DeleteQuantities удаляет сохранённую корзину.
func (s *FileStore) DeleteQuantities() error {
	if err := os.Remove(filepath.Join(s.dir, cartFile)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove cart: %w", err)
	}
	return nil
}

// Clear удаляет токен и корзину. Используется при выходе из аккаунта.
func (s *FileStore) Clear() error {
	if err := os.Remove(filepath.Join(s.dir, tokenFile)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove token: %w", err)
	}
	return s.DeleteQuantities()
}
