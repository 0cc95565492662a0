// internal/page/document.go
package page

// Attributes is a string map that remembers insertion order, so header
// attributes keep the order they were declared in.
type Attributes struct {
	keys   []string
	values map[string]string
}

// NewAttributes builds an Attributes from alternating key/value pairs.
// A trailing key without a value is ignored.
func NewAttributes(kv ...string) Attributes {
	a := Attributes{}
	for i := 0; i+1 < len(kv); i += 2 {
		a.Set(kv[i], kv[i+1])
	}
	return a
}

// Set stores value under key. Re-setting a key keeps its original position.
func (a *Attributes) Set(key, value string) {
	if a.values == nil {
		a.values = make(map[string]string)
	}
	if _, ok := a.values[key]; !ok {
		a.keys = append(a.keys, key)
	}
	a.values[key] = value
}

// SetDefault stores value only if key is absent.
func (a *Attributes) SetDefault(key, value string) {
	if _, ok := a.values[key]; ok {
		return
	}
	a.Set(key, value)
}

func (a Attributes) Get(key string) (string, bool) {
	v, ok := a.values[key]
	return v, ok
}

func (a Attributes) Has(key string) bool {
	_, ok := a.values[key]
	return ok
}

func (a Attributes) Len() int { return len(a.keys) }

// Keys returns the keys in insertion order.
func (a Attributes) Keys() []string {
	out := make([]string, len(a.keys))
	copy(out, a.keys)
	return out
}

// Clone returns an independent copy.
func (a Attributes) Clone() Attributes {
	c := Attributes{keys: a.Keys(), values: make(map[string]string, len(a.values))}
	for k, v := range a.values {
		c.values[k] = v
	}
	return c
}

// Document is the parsed form of one source file: a header and an opaque
// body. It is produced once by the parser and never mutated afterwards.
type Document struct {
	Title      string
	Subtitle   string
	Author     string
	Attributes Attributes
	Body       []byte
}
