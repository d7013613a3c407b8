package codec

import "sync"

// Registry maps codec names and UIDs to implementations.
type Registry struct {
	mu     sync.RWMutex
	codecs map[string]Codec
}

var defaultRegistry = &Registry{codecs: make(map[string]Codec)}

// Register adds a codec to the default registry.
func Register(c Codec) { defaultRegistry.Register(c) }

// Get looks a codec up by name or UID in the default registry.
func Get(nameOrUID string) (Codec, error) { return defaultRegistry.Get(nameOrUID) }

// List returns the codecs in the default registry.
func List() []Codec { return defaultRegistry.List() }

// Register adds a codec under both its name and its UID.
func (r *Registry) Register(c Codec) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.codecs[c.Name()] = c
	r.codecs[c.UID()] = c
}

// Get looks a codec up by name or UID.
func (r *Registry) Get(nameOrUID string) (Codec, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.codecs[nameOrUID]
	if !ok {
		return nil, ErrCodecNotFound
	}
	return c, nil
}

// List returns the registered codecs, deduplicated.
func (r *Registry) List() []Codec {
	r.mu.RLock()
	defer r.mu.RUnlock()
	seen := make(map[Codec]bool)
	out := make([]Codec, 0, len(r.codecs))
	for _, c := range r.codecs {
		if !seen[c] {
			seen[c] = true
			out = append(out, c)
		}
	}
	return out
}
