package vulkan

// registry hands out the opaque uint64 handles the ray tracing core works
// with and maps them back to Vulkan objects. Zero is never issued.
type registry[T any] struct {
	next    uint64
	objects map[uint64]T
}

func newRegistry[T any]() *registry[T] {
	return &registry[T]{objects: make(map[uint64]T)}
}

func (r *registry[T]) add(v T) uint64 {
	r.next++
	r.objects[r.next] = v
	return r.next
}

func (r *registry[T]) get(h uint64) (T, bool) {
	v, ok := r.objects[h]
	return v, ok
}

// lookup returns the zero value for unknown handles.
func (r *registry[T]) lookup(h uint64) T {
	return r.objects[h]
}

func (r *registry[T]) remove(h uint64) (T, bool) {
	v, ok := r.objects[h]
	if ok {
		delete(r.objects, h)
	}
	return v, ok
}

func (r *registry[T]) len() int {
	return len(r.objects)
}

// each visits every live object, e.g. for leak reports at shutdown.
func (r *registry[T]) each(fn func(h uint64, v T)) {
	for h, v := range r.objects {
		fn(h, v)
	}
}
