package cache

import (
	"context"
	"testing"
	"time"
)

func TestGoCache(t *testing.T) {
	config := LocalConfig{
		DefaultExpiration: 5 * time.Minute,
		CleanupInterval:   10 * time.Minute,
	}

	c := NewGoCache(config)
	defer c.Close()

	ctx := context.Background()

	t.Run("Set and Get", func(t *testing.T) {
		key := "test_key"
		value := "test_value"

		if err := c.Set(ctx, key, value, time.Minute); err != nil {
			t.Errorf("Failed to set cache: %v", err)
		}

		if retrieved, exists := c.Get(ctx, key); !exists {
			t.Error("Cache value not found")
		} else if retrieved != value {
			t.Errorf("Expected %v, got %v", value, retrieved)
		}
	})

	t.Run("Delete", func(t *testing.T) {
		key := "delete_key"
		if err := c.Set(ctx, key, "v", time.Minute); err != nil {
			t.Fatalf("Failed to set cache: %v", err)
		}
		if err := c.Delete(ctx, key); err != nil {
			t.Errorf("Failed to delete cache: %v", err)
		}
		if _, exists := c.Get(ctx, key); exists {
			t.Error("Cache value should have been deleted")
		}
	})

	t.Run("Expiration", func(t *testing.T) {
		key := "expire_key"
		if err := c.Set(ctx, key, "v", 10*time.Millisecond); err != nil {
			t.Fatalf("Failed to set cache: %v", err)
		}
		time.Sleep(30 * time.Millisecond)
		if _, exists := c.Get(ctx, key); exists {
			t.Error("Cache value should have expired")
		}
	})
}

func TestNewCacheFactory(t *testing.T) {
	c, err := NewCache(Config{Type: "gocache"})
	if err != nil {
		t.Fatalf("Failed to create cache: %v", err)
	}
	defer c.Close()

	if _, err := NewCache(Config{Type: "memcached"}); err == nil {
		t.Error("Expected error for unsupported cache type")
	}
}
