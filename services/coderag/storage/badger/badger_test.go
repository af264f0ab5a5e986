// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package badger

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenInMemory(t *testing.T) {
	db, err := OpenInMemory()
	require.NoError(t, err)
	defer db.Close()

	ctx := context.Background()
	err = db.WithTxn(ctx, func(txn *badger.Txn) error {
		return txn.Set([]byte("key"), []byte("value"))
	})
	require.NoError(t, err)

	err = db.WithReadTxn(ctx, func(txn *badger.Txn) error {
		val, err := Get(txn, []byte("key"))
		require.NoError(t, err)
		assert.Equal(t, []byte("value"), val)
		return nil
	})
	require.NoError(t, err)
	assert.True(t, db.InMemory())
	assert.Equal(t, "", db.Path())
}

func TestOpenPersistentReopen(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "db")

	cfg := DefaultConfig(dir)
	cfg.SyncWrites = false
	db, err := Open(cfg)
	require.NoError(t, err)

	err = db.WithTxn(context.Background(), func(txn *badger.Txn) error {
		return txn.Set([]byte("persistent"), []byte("yes"))
	})
	require.NoError(t, err)
	require.NoError(t, db.Close())

	db2, err := Open(cfg)
	require.NoError(t, err)
	defer db2.Close()

	err = db2.WithReadTxn(context.Background(), func(txn *badger.Txn) error {
		val, err := Get(txn, []byte("persistent"))
		require.NoError(t, err)
		assert.Equal(t, []byte("yes"), val)
		return nil
	})
	require.NoError(t, err)
}

func TestOpenRequiresPath(t *testing.T) {
	_, err := Open(Config{})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.Contains(t, err.Error(), "path is required")
}

func TestConfigDefaults(t *testing.T) {
	cfg := DefaultConfig("/tmp/x")
	assert.True(t, cfg.SyncWrites)
	assert.Equal(t, 5*time.Minute, cfg.GCInterval)
	assert.Equal(t, 0.5, cfg.GCDiscardRatio)

	mem := InMemoryConfig()
	assert.True(t, mem.InMemory)
	assert.Equal(t, time.Duration(0), mem.GCInterval)
}

func TestWithTxn_RollbackOnError(t *testing.T) {
	db, err := OpenInMemory()
	require.NoError(t, err)
	defer db.Close()

	ctx := context.Background()
	boom := errors.New("boom")
	err = db.WithTxn(ctx, func(txn *badger.Txn) error {
		if err := txn.Set([]byte("k"), []byte("v")); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	err = db.WithReadTxn(ctx, func(txn *badger.Txn) error {
		_, err := Get(txn, []byte("k"))
		assert.ErrorIs(t, err, badger.ErrKeyNotFound)
		return nil
	})
	require.NoError(t, err)
}

func TestWithTxn_CancelledContext(t *testing.T) {
	db, err := OpenInMemory()
	require.NoError(t, err)
	defer db.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	called := false
	err = db.WithTxn(ctx, func(txn *badger.Txn) error {
		called = true
		return nil
	})
	assert.Error(t, err)
	assert.False(t, called)
}

func TestClosedDatabaseIsUnavailable(t *testing.T) {
	db, err := OpenInMemory()
	require.NoError(t, err)
	require.NoError(t, db.Close())
	require.NoError(t, db.Close())

	err = db.WithReadTxn(context.Background(), func(txn *badger.Txn) error { return nil })
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.ErrorIs(t, db.Ping(), ErrUnavailable)
}

func TestScanPrefix(t *testing.T) {
	db, err := OpenInMemory()
	require.NoError(t, err)
	defer db.Close()

	ctx := context.Background()
	err = db.WithTxn(ctx, func(txn *badger.Txn) error {
		for _, k := range []string{"a/1", "a/2", "a/3", "b/1"} {
			if err := txn.Set([]byte(k), []byte("v-"+k)); err != nil {
				return err
			}
		}
		return nil
	})
	require.NoError(t, err)

	t.Run("collects prefix in key order", func(t *testing.T) {
		var keys []string
		err := db.WithReadTxn(ctx, func(txn *badger.Txn) error {
			return ScanPrefix(txn, []byte("a/"), func(k, v []byte) error {
				keys = append(keys, string(k))
				assert.Equal(t, "v-"+string(k), string(v))
				return nil
			})
		})
		require.NoError(t, err)
		assert.Equal(t, []string{"a/1", "a/2", "a/3"}, keys)
	})

	t.Run("stops early", func(t *testing.T) {
		count := 0
		err := db.WithReadTxn(ctx, func(txn *badger.Txn) error {
			return ScanKeys(txn, []byte("a/"), func(k []byte) error {
				count++
				return ErrStopScan
			})
		})
		require.NoError(t, err)
		assert.Equal(t, 1, count)
	})

	t.Run("drop prefix", func(t *testing.T) {
		require.NoError(t, db.DropPrefixes([]byte("a/")))
		count := 0
		err := db.WithReadTxn(ctx, func(txn *badger.Txn) error {
			return ScanKeys(txn, []byte(""), func(k []byte) error {
				count++
				return nil
			})
		})
		require.NoError(t, err)
		assert.Equal(t, 1, count)
	})
}
