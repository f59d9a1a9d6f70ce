// GridWatch - Weather and Power Telemetry Streaming
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/gridwatch

// Package thresholds persists per-parameter alarm bands in BadgerDB.
//
// Keys are "threshold:<parameter>" and values are the JSON encoding of
// models.Threshold. Parameters are metric names such as "temperatura" or
// "voltage"; the dashboard decides what to do when a reading leaves the band.
package thresholds

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"

	"github.com/tomtom215/gridwatch/internal/logging"
	"github.com/tomtom215/gridwatch/internal/models"
	"github.com/tomtom215/gridwatch/internal/validation"
)

const keyPrefix = "threshold:"

var (
	// ErrNotFound is returned when no threshold is stored for a parameter.
	ErrNotFound = errors.New("threshold not found")

	// ErrInvalidThreshold wraps validation failures from Put.
	ErrInvalidThreshold = errors.New("invalid threshold")
)

// Store is a Badger-backed threshold repository.
type Store struct {
	db  *badger.DB
	now func() time.Time
}

// Open opens or creates the Badger directory at path. An empty path opens an
// in-memory store.
func Open(path string) (*Store, error) {
	var opts badger.Options
	if path == "" {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(path, 0o750); err != nil {
			return nil, fmt.Errorf("create thresholds directory: %w", err)
		}
		opts = badger.DefaultOptions(path)
	}
	opts = opts.WithLogger(nil).WithNumVersionsToKeep(1)

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open thresholds store: %w", err)
	}
	logging.Info().Str("path", path).Bool("in_memory", path == "").Msg("Thresholds store ready")
	return &Store{db: db, now: time.Now}, nil
}

func key(parameter string) []byte {
	return []byte(keyPrefix + parameter)
}

// Get returns the threshold for parameter.
func (s *Store) Get(_ context.Context, parameter string) (*models.Threshold, error) {
	var th models.Threshold
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key(parameter))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("get threshold: %w", err)
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &th)
		})
	})
	if err != nil {
		return nil, err
	}
	return &th, nil
}

// List returns every stored threshold ordered by parameter name.
func (s *Store) List(_ context.Context) ([]models.Threshold, error) {
	out := make([]models.Threshold, 0)
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(keyPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			var th models.Threshold
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &th)
			}); err != nil {
				return fmt.Errorf("decode %s: %w", it.Item().Key(), err)
			}
			out = append(out, th)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list thresholds: %w", err)
	}
	return out, nil
}

// Put validates th, stamps UpdatedAt, and stores it. The stored value is
// returned.
func (s *Store) Put(_ context.Context, th models.Threshold) (*models.Threshold, error) {
	th.Parameter = strings.TrimSpace(th.Parameter)
	if verr := validation.ValidateStruct(&th); verr != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidThreshold, verr.Error())
	}
	th.UpdatedAt = s.now().UTC()

	data, err := json.Marshal(th)
	if err != nil {
		return nil, fmt.Errorf("encode threshold: %w", err)
	}
	if err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key(th.Parameter), data)
	}); err != nil {
		return nil, fmt.Errorf("store threshold: %w", err)
	}
	return &th, nil
}

// Delete removes the threshold for parameter. Deleting a missing key returns
// ErrNotFound.
func (s *Store) Delete(ctx context.Context, parameter string) error {
	if _, err := s.Get(ctx, parameter); err != nil {
		return err
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(key(parameter))
	})
}

// Ping reports whether the store is open.
func (s *Store) Ping(_ context.Context) error {
	if s.db.IsClosed() {
		return errors.New("thresholds store is closed")
	}
	return nil
}

// Close flushes and closes the store.
func (s *Store) Close() error {
	return s.db.Close()
}
