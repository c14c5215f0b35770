package cache

import (
	"golang.org/x/sync/singleflight"

	"github.com/hupe1980/semview/internal/resource"
	"github.com/hupe1980/semview/model"
)

// DefaultDefinitionCapacity is the JSON byte budget used when none is set.
const DefaultDefinitionCapacity = 4 << 20

// definitionKey holds the source text itself, so a redefinition under the
// same name never hits an older parse.
type definitionKey struct {
	name string
	data string
}

type parsed struct {
	def  *model.Definition
	size int64
}

// Definitions caches parsed view definitions.
// Cached definitions are shared and must not be modified.
type Definitions struct {
	lru   *LRU[definitionKey, parsed]
	group singleflight.Group
}

// NewDefinitions creates a cache bounded by capacity bytes of source JSON.
func NewDefinitions(capacity int64, rc *resource.Controller) *Definitions {
	if capacity <= 0 {
		capacity = DefaultDefinitionCapacity
	}
	return &Definitions{
		lru: NewLRU[definitionKey, parsed](capacity, func(p parsed) int64 { return p.size }, rc),
	}
}

// Parse returns the parsed definition of view name stored as data.
func (d *Definitions) Parse(name, data string) (*model.Definition, error) {
	key := definitionKey{name: name, data: data}
	if p, ok := d.lru.Get(key); ok {
		return p.def, nil
	}

	v, err, _ := d.group.Do(name+"\x00"+data, func() (any, error) {
		def, err := model.ParseString(name, data)
		if err != nil {
			return nil, err
		}
		d.lru.Set(key, parsed{def: def, size: int64(len(data))})
		return def, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*model.Definition), nil
}

// Forget drops every cached parse of view name.
func (d *Definitions) Forget(name string) {
	d.lru.Invalidate(func(k definitionKey) bool { return k.name == name })
}

// Stats returns hit and miss counts.
func (d *Definitions) Stats() (hits, misses int64) {
	return d.lru.Stats()
}
