package schema

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/jackc/pgx/v5"
)

const catalogQuery = `
SELECT name, document
FROM entityql.schemas
WHERE deployed
ORDER BY name
`

// CatalogQuerier is satisfied by *pgxpool.Pool and pgx.Tx.
type CatalogQuerier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// Cache holds deployed schemas by name. A deployed Schema is never mutated;
// redeploying replaces the pointer.
type Cache struct {
	mu      sync.RWMutex
	schemas map[string]*Schema
}

func NewCache() *Cache {
	return &Cache{schemas: make(map[string]*Schema)}
}

// Put deploys s, replacing any schema with the same name.
func (c *Cache) Put(s *Schema) {
	c.mu.Lock()
	c.schemas[s.Name] = s
	c.mu.Unlock()
}

func (c *Cache) Get(name string) *Schema {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.schemas[name]
}

// Names returns the deployed schema names in sorted order.
func (c *Cache) Names() []string {
	c.mu.RLock()
	names := make([]string, 0, len(c.schemas))
	for n := range c.schemas {
		names = append(names, n)
	}
	c.mu.RUnlock()
	sort.Strings(names)
	return names
}

// Len returns the number of deployed schemas.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.schemas)
}

// LoadFiles builds every YAML document and deploys them all, or none on error.
func (c *Cache) LoadFiles(paths ...string) error {
	loaded := make([]*Schema, 0, len(paths))
	for _, p := range paths {
		s, err := LoadFile(p)
		if err != nil {
			return fmt.Errorf("schema %s: %w", p, err)
		}
		loaded = append(loaded, s)
	}
	c.swap(loaded, false)
	return nil
}

// LoadCatalog replaces the cache contents with the deployed documents stored
// in the entityql.schemas table.
func (c *Cache) LoadCatalog(ctx context.Context, q CatalogQuerier) error {
	rows, err := q.Query(ctx, catalogQuery)
	if err != nil {
		return fmt.Errorf("schema cache load: %w", err)
	}
	defer rows.Close()

	var loaded []*Schema
	for rows.Next() {
		var name, doc string
		if err := rows.Scan(&name, &doc); err != nil {
			return fmt.Errorf("schema cache scan: %w", err)
		}
		s, err := Decode(strings.NewReader(doc))
		if err != nil {
			return fmt.Errorf("schema %q: %w", name, err)
		}
		if s.Name == "" {
			s.Name = name
		}
		loaded = append(loaded, s)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("schema cache rows: %w", err)
	}

	c.swap(loaded, true)
	return nil
}

func (c *Cache) swap(loaded []*Schema, replace bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if replace {
		c.schemas = make(map[string]*Schema, len(loaded))
	}
	for _, s := range loaded {
		c.schemas[s.Name] = s
	}
}
