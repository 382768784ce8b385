package services

import (
	"fmt"
	"sort"

	"github.com/jacksonlee411/registry-console/modules/registry/domain/ports"
	"github.com/jacksonlee411/registry-console/modules/registry/domain/types"
)

// Catalog holds one Service per registry schema.
type Catalog struct {
	services map[string]*Service
	names    []string
}

// NewCatalog builds a service per schema. opts, when non-nil, supplies
// per-schema options (cache, mirror, auditor).
func NewCatalog(schemas []types.Schema, store ports.DocumentStore, opts func(types.Schema) []Option) (*Catalog, error) {
	c := &Catalog{services: make(map[string]*Service, len(schemas))}
	for _, schema := range schemas {
		if _, dup := c.services[schema.Name]; dup {
			return nil, fmt.Errorf("duplicate registry %s", schema.Name)
		}
		var o []Option
		if opts != nil {
			o = opts(schema)
		}
		svc, err := NewService(schema, store, o...)
		if err != nil {
			return nil, err
		}
		c.services[schema.Name] = svc
		c.names = append(c.names, schema.Name)
	}
	sort.Strings(c.names)
	return c, nil
}

func (c *Catalog) Get(name string) (*Service, bool) {
	s, ok := c.services[name]
	return s, ok
}

func (c *Catalog) Names() []string {
	out := make([]string, len(c.names))
	copy(out, c.names)
	return out
}

func (c *Catalog) Schemas() []types.Schema {
	out := make([]types.Schema, 0, len(c.names))
	for _, n := range c.names {
		out = append(out, c.services[n].schema)
	}
	return out
}
