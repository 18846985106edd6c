package util

func IntFloat64MapKeys(m map[int]float64) []int {
	keys := make([]int, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	return keys
}

// MapKeys returns the keys of m in unspecified order.
func MapKeys[K comparable, V any](m map[K]V) []K {
	keys := make([]K, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	return keys
}

// DefaultMap is a map that returns a caller-supplied default value for any
// key not yet present, and remembers that default the first time it's
// requested so subsequent mutation through Get/Set affects the same entry.
type DefaultMap[K comparable, V any] struct {
	m          map[K]V
	defaultVal func() V
}

func NewDefaultMap[K comparable, V any](defaultVal func() V) *DefaultMap[K, V] {
	return &DefaultMap[K, V]{m: make(map[K]V), defaultVal: defaultVal}
}

func (d *DefaultMap[K, V]) Get(key K) V {
	if v, ok := d.m[key]; ok {
		return v
	}
	v := d.defaultVal()
	d.m[key] = v
	return v
}

func (d *DefaultMap[K, V]) Set(key K, val V) {
	d.m[key] = val
}

func (d *DefaultMap[K, V]) Has(key K) bool {
	_, ok := d.m[key]
	return ok
}

func (d *DefaultMap[K, V]) Keys() []K {
	return MapKeys(d.m)
}

func (d *DefaultMap[K, V]) Len() int {
	return len(d.m)
}

func (d *DefaultMap[K, V]) ForEach(f func(K, V)) {
	for k, v := range d.m {
		f(k, v)
	}
}

// EjectMap returns the underlying map directly, for callers that just want
// a plain map once they're done accumulating through Get/Set.
func (d *DefaultMap[K, V]) EjectMap() map[K]V {
	return d.m
}
