package schema_test

import (
	"sync"
	"testing"

	"github.com/atlekbai/entityql/internal/schema"
	"github.com/atlekbai/entityql/internal/schema/schematest"
)

func TestCachePutGet(t *testing.T) {
	c := schema.NewCache()
	s := schematest.Shop(t)
	c.Put(s)

	if c.Get("shop") != s {
		t.Fatal("expected deployed schema")
	}
	if c.Get("missing") != nil {
		t.Fatal("expected nil for unknown schema")
	}
	if c.Len() != 1 {
		t.Fatalf("expected 1 schema, got %d", c.Len())
	}
}

func TestCacheLoadFiles(t *testing.T) {
	c := schema.NewCache()
	if err := c.LoadFiles("testdata/shop.yaml"); err != nil {
		t.Fatalf("LoadFiles: %v", err)
	}
	names := c.Names()
	if len(names) != 1 || names[0] != "shop" {
		t.Fatalf("unexpected names %v", names)
	}

	if err := c.LoadFiles("testdata/shop.yaml", "testdata/missing.yaml"); err == nil {
		t.Fatal("expected error for missing file")
	}
	if c.Len() != 1 {
		t.Fatal("failed load must not change the cache")
	}
}

func TestCacheConcurrentReaders(t *testing.T) {
	c := schema.NewCache()
	s := schematest.Shop(t)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			c.Put(s)
		}()
		go func() {
			defer wg.Done()
			_ = c.Get("shop")
			_ = c.Names()
		}()
	}
	wg.Wait()
	if c.Get("shop") != s {
		t.Fatal("expected shop after concurrent puts")
	}
}
