package memory

import (
	"testing"

	"github.com/tjfontaine/jarvis/internal/core/ports"
	"github.com/tjfontaine/jarvis/internal/storage"
	"github.com/tjfontaine/jarvis/internal/storage/storagetest"
)

func TestMemoryStore_Pending(t *testing.T) {
	storagetest.RunPendingStoreTests(t, func(t *testing.T, opts storage.Options) ports.PendingStore {
		return New(opts)
	})
}

func TestMemoryStore_Memory(t *testing.T) {
	storagetest.RunMemoryStoreTests(t, func(t *testing.T, opts storage.Options) ports.MemoryStore {
		return New(opts)
	})
}
