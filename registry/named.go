package registry

// NamedPool is a Pool with a unique-name index. Textures, shaders and
// shader parameters are looked up by name as well as by handle.
type NamedPool[T any] struct {
	Pool[T]
	byName   map[string]Handle
	byHandle map[Handle]string
}

// NewNamedPool creates an empty named pool.
func NewNamedPool[T any](capacity int) *NamedPool[T] {
	p := &NamedPool[T]{}
	p.Pool.init(capacity)
	p.byName = make(map[string]Handle, capacity)
	p.byHandle = make(map[Handle]string, capacity)
	return p
}

// AllocateNamed stores v under name. If name is already present the
// existing handle is returned with created == false and v is discarded.
// Empty names are not indexed.
func (p *NamedPool[T]) AllocateNamed(name string, v T) (h Handle, created bool) {
	if p.byName == nil {
		p.byName = make(map[string]Handle)
		p.byHandle = make(map[Handle]string)
	}
	if name != "" {
		if h, ok := p.byName[name]; ok {
			return h, false
		}
	}
	h = p.Pool.Allocate(v)
	if name != "" {
		p.byName[name] = h
		p.byHandle[h] = name
	}
	return h, true
}

// Find returns the handle registered under name.
func (p *NamedPool[T]) Find(name string) (Handle, bool) {
	h, ok := p.byName[name]
	return h, ok
}

// Lookup returns the value registered under name.
func (p *NamedPool[T]) Lookup(name string) (T, bool) {
	h, ok := p.byName[name]
	if !ok {
		var zero T
		return zero, false
	}
	return p.Pool.Get(h)
}

// Name returns the name h was registered under, or "".
func (p *NamedPool[T]) Name(h Handle) string {
	return p.byHandle[h]
}

// Release frees h and erases its name entry.
func (p *NamedPool[T]) Release(h Handle) bool {
	if !p.Pool.Release(h) {
		return false
	}
	if name, ok := p.byHandle[h]; ok {
		delete(p.byName, name)
		delete(p.byHandle, h)
	}
	return true
}

// Reset drops every value, the free list and the name index.
func (p *NamedPool[T]) Reset() {
	p.Pool.Reset()
	clear(p.byName)
	clear(p.byHandle)
}
