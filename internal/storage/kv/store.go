// Package kv provides key-value stores holding one JSON document per key.
package kv

import (
	"context"
	"sync"
)

// Store is a flat string key-value store
type Store interface {
	// Get returns the value for key; ok is false when the key was never set
	Get(ctx context.Context, key string) (value string, ok bool, err error)
	// Set replaces the value for key
	Set(ctx context.Context, key, value string) error
	Close() error
}

// Memory is an in-process Store
type Memory struct {
	mu   sync.RWMutex
	data map[string]string
}

// NewMemory creates an empty in-memory store
func NewMemory() *Memory {
	return &Memory{data: make(map[string]string)}
}

func (m *Memory) Get(ctx context.Context, key string) (string, bool, error) {
	if err := ctx.Err(); err != nil {
		return "", false, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.data[key]
	return v, ok, nil
}

func (m *Memory) Set(ctx context.Context, key, value string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value
	return nil
}

func (m *Memory) Close() error { return nil }
