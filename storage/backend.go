/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package storage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/dgraph-io/badger/v4"
)

// ErrExists is returned by Backend.Put when the name is already taken.
var ErrExists = errors.New("record already exists")

// Backend is an insert-only blob store keyed by record file name.
type Backend interface {
	// Put stores data under name and fails with ErrExists rather than
	// replacing an existing entry.
	Put(ctx context.Context, name string, data []byte) error
	// Scan calls fn for each entry whose name starts with prefix, in name order.
	Scan(ctx context.Context, prefix string, fn func(name string, data []byte) error) error
}

// FileBackend stores one JSON file per record in a directory.
type FileBackend struct {
	dir string
}

var _ Backend = (*FileBackend)(nil)

// NewFileBackend stores records under dir, creating it on first write.
func NewFileBackend(dir string) *FileBackend {
	return &FileBackend{dir: dir}
}

// Dir returns the results directory.
func (f *FileBackend) Dir() string { return f.dir }

// Put implements Backend with an exclusive create.
func (f *FileBackend) Put(_ context.Context, name string, data []byte) error {
	if err := os.MkdirAll(f.dir, 0o755); err != nil {
		return fmt.Errorf("creating results directory: %w", err)
	}
	path := filepath.Join(f.dir, name)
	file, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if errors.Is(err, fs.ErrExist) {
		return fmt.Errorf("%w: %s", ErrExists, name)
	}
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	if _, err := file.Write(data); err != nil {
		_ = file.Close()
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return file.Close()
}

// Scan implements Backend over a snapshot of the directory listing. A
// missing directory holds no records.
func (f *FileBackend) Scan(ctx context.Context, prefix string, fn func(string, []byte) error) error {
	entries, err := os.ReadDir(f.dir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("listing results directory: %w", err)
	}

	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasPrefix(name, prefix) || !strings.HasSuffix(name, recordExt) {
			continue
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		data, err := os.ReadFile(filepath.Join(f.dir, name))
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return fmt.Errorf("reading %s: %w", name, err)
		}
		if err := fn(name, data); err != nil {
			return err
		}
	}
	return nil
}

// BadgerBackend stores records in an embedded badger database under the
// same names the FileBackend would use.
type BadgerBackend struct {
	db *badger.DB
}

var _ Backend = (*BadgerBackend)(nil)

// OpenBadger opens (or creates) a badger database at path. An empty path
// opens an in-memory database.
func OpenBadger(path string) (*BadgerBackend, error) {
	var opts badger.Options
	if path == "" {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(path, 0o750); err != nil {
			return nil, fmt.Errorf("create database directory %s: %w", path, err)
		}
		opts = badger.DefaultOptions(path)
	}
	db, err := badger.Open(opts.WithLogger(nil))
	if err != nil {
		return nil, fmt.Errorf("open badger database: %w", err)
	}
	return &BadgerBackend{db: db}, nil
}

// NewBadgerBackend wraps an already opened database.
func NewBadgerBackend(db *badger.DB) *BadgerBackend {
	return &BadgerBackend{db: db}
}

// Close closes the database.
func (b *BadgerBackend) Close() error {
	return b.db.Close()
}

// Put implements Backend. The existence check and write share one
// transaction, so concurrent writers of the same name conflict instead of
// overwriting each other.
func (b *BadgerBackend) Put(_ context.Context, name string, data []byte) error {
	err := b.db.Update(func(txn *badger.Txn) error {
		_, err := txn.Get([]byte(name))
		switch {
		case err == nil:
			return fmt.Errorf("%w: %s", ErrExists, name)
		case !errors.Is(err, badger.ErrKeyNotFound):
			return err
		}
		return txn.Set([]byte(name), data)
	})
	if errors.Is(err, badger.ErrConflict) {
		return fmt.Errorf("%w: %s", ErrExists, name)
	}
	return err
}

// Scan implements Backend.
func (b *BadgerBackend) Scan(ctx context.Context, prefix string, fn func(string, []byte) error) error {
	type entry struct {
		name string
		data []byte
	}
	var entries []entry

	err := b.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(prefix)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			item := it.Item()
			data, err := item.ValueCopy(nil)
			if err != nil {
				return fmt.Errorf("reading %s: %w", item.Key(), err)
			}
			entries = append(entries, entry{name: string(item.KeyCopy(nil)), data: data})
		}
		return nil
	})
	if err != nil {
		return err
	}

	for _, e := range entries {
		if err := fn(e.name, e.data); err != nil {
			return err
		}
	}
	return nil
}
