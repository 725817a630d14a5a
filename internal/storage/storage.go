// Package storage provides the key/blob persistence primitive the stores are
// built on. A key names one text document (a JSON file in practice); callers
// always read and rewrite whole documents.
package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

// ErrNotFound is returned by ReadText when the key has never been written
var ErrNotFound = errors.New("storage: key not found")

// Backend stores text documents by key
type Backend interface {
	Exists(ctx context.Context, key string) (bool, error)
	ReadText(ctx context.Context, key string) (string, error)
	WriteText(ctx context.Context, key, text string) error
	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error
}

// LoadJSON decodes the document at key into v. It reports false, with no
// error, when nothing has been stored under key yet.
func LoadJSON(ctx context.Context, b Backend, key string, v any) (bool, error) {
	ok, err := b.Exists(ctx, key)
	if err != nil || !ok {
		return false, err
	}
	text, err := b.ReadText(ctx, key)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal([]byte(text), v); err != nil {
		return false, fmt.Errorf("decode %s: %w", key, err)
	}
	return true, nil
}

// SaveJSON encodes v with two-space indentation and writes it to key
func SaveJSON(ctx context.Context, b Backend, key string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	return b.WriteText(ctx, key, string(data))
}
