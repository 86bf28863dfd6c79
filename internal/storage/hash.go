package storage

// Hash backs the HSET/HGET family: a plain field->value map guarded by the
// owning Database's mutex, not its own.
type Hash struct {
	Fields map[string]string
}

func NewHash() *Hash {
	return &Hash{Fields: make(map[string]string)}
}

// Clone deep-copies the hash for copy-on-write snapshotting (RDB save,
// replication fan-out).
func (h *Hash) Clone() *Hash {
	if h == nil || len(h.Fields) == 0 {
		return NewHash()
	}
	clone := &Hash{Fields: make(map[string]string, len(h.Fields))}
	for field, value := range h.Fields {
		clone.Fields[field] = value
	}
	return clone
}

// Set stores field, reporting whether it was previously absent.
func (h *Hash) Set(field, value string) bool {
	isNew := !h.Exists(field)
	h.Fields[field] = value
	return isNew
}

// SetNX stores field only if absent.
func (h *Hash) SetNX(field, value string) bool {
	if h.Exists(field) {
		return false
	}
	h.Fields[field] = value
	return true
}

func (h *Hash) Get(field string) (string, bool) {
	val, ok := h.Fields[field]
	return val, ok
}

func (h *Hash) Exists(field string) bool {
	_, ok := h.Fields[field]
	return ok
}

// Delete removes field, reporting whether it existed.
func (h *Hash) Delete(field string) bool {
	if !h.Exists(field) {
		return false
	}
	delete(h.Fields, field)
	return true
}

func (h *Hash) Len() int {
	return len(h.Fields)
}

func (h *Hash) Keys() []string {
	keys := make([]string, 0, len(h.Fields))
	for field := range h.Fields {
		keys = append(keys, field)
	}
	return keys
}

func (h *Hash) Values() []string {
	values := make([]string, 0, len(h.Fields))
	for _, value := range h.Fields {
		values = append(values, value)
	}
	return values
}

// GetAll flattens the hash into [field1, value1, field2, value2, ...], the
// shape HGETALL's RESP array reply needs.
func (h *Hash) GetAll() []string {
	flat := make([]string, 0, len(h.Fields)*2)
	for field, value := range h.Fields {
		flat = append(flat, field, value)
	}
	return flat
}
