// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package simulator

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/edsrzf/mmap-go"

	"github.com/ffutop/renogy-rtu/internal/config"
)

// Storage provides the bytes behind a register bank.
type Storage interface {
	// Load returns BankSize bytes. fresh reports that no earlier state
	// existed.
	Load() (data []byte, fresh bool, err error)

	// OnWrite is a hook called whenever registers are modified.
	OnWrite(address, quantity uint16)

	Close() error
}

// NewStorage selects the storage named by cfg.Type.
func NewStorage(cfg config.PersistenceConfig) (Storage, error) {
	switch cfg.Type {
	case "", "memory":
		return NewMemoryStorage(), nil
	case "mmap":
		if cfg.Path == "" {
			return nil, fmt.Errorf("mmap persistence requires a path")
		}
		return NewMmapStorage(cfg.Path), nil
	default:
		return nil, fmt.Errorf("unknown persistence type %q", cfg.Type)
	}
}

// MemoryStorage keeps registers for the life of the process.
type MemoryStorage struct{}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{}
}

func (ms *MemoryStorage) Load() ([]byte, bool, error) {
	return make([]byte, BankSize), true, nil
}

func (ms *MemoryStorage) OnWrite(address, quantity uint16) {}

func (ms *MemoryStorage) Close() error {
	return nil
}

// MmapStorage keeps registers in a memory-mapped file, one big-endian word
// per address, so state survives restarts and the file is portable.
type MmapStorage struct {
	path string
	file *os.File
	data mmap.MMap
}

// NewMmapStorage creates a new MmapStorage.
func NewMmapStorage(path string) *MmapStorage {
	return &MmapStorage{
		path: path,
	}
}

// Load maps the file, creating or resizing it as needed. A created or
// resized file is fresh.
func (ms *MmapStorage) Load() ([]byte, bool, error) {
	f, err := os.OpenFile(ms.path, os.O_RDWR|os.O_CREATE, 0644)
	if err != nil {
		return nil, false, fmt.Errorf("failed to open mmap file: %w", err)
	}

	fi, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, false, err
	}

	fresh := fi.Size() != int64(BankSize)
	if fresh {
		if err := f.Truncate(0); err != nil {
			f.Close()
			return nil, false, fmt.Errorf("failed to reset mmap file: %w", err)
		}
		if err := f.Truncate(int64(BankSize)); err != nil {
			f.Close()
			return nil, false, fmt.Errorf("failed to resize mmap file: %w", err)
		}
	}

	data, err := mmap.Map(f, mmap.RDWR, 0)
	if err != nil {
		f.Close()
		return nil, false, fmt.Errorf("mmap failed: %w", err)
	}
	ms.file = f
	ms.data = data
	return data, fresh, nil
}

// OnWrite flushes the mapping to disk.
func (ms *MmapStorage) OnWrite(address, quantity uint16) {
	if ms.data == nil {
		return
	}
	if err := ms.data.Flush(); err != nil {
		slog.Error("Failed to flush mmap", "err", err)
	}
}

// Close unmaps and closes the file.
func (ms *MmapStorage) Close() error {
	var err error
	if ms.data != nil {
		if e := ms.data.Unmap(); e != nil {
			err = e
		}
		ms.data = nil
	}
	if ms.file != nil {
		if e := ms.file.Close(); e != nil {
			err = e
		}
		ms.file = nil
	}
	return err
}
