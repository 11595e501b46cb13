package types

// Signature is the Go realisation of a Task "signature": a dotted task
// name plus keyword arguments, routed through a Dispatcher. Signatures
// must serialise and round-trip through whatever broker backs the
// Dispatcher (in-process or NATS JetStream).
type Signature struct {
	Name   string         `json:"task_name"`
	Kwargs map[string]any `json:"kwargs"`
}

// Clone returns a copy of the signature with extra kwargs merged in,
// mirroring celery.canvas.Signature.clone(kwargs=...).
func (s Signature) Clone(extra map[string]any) Signature {
	kwargs := make(map[string]any, len(s.Kwargs)+len(extra))
	for k, v := range s.Kwargs {
		kwargs[k] = v
	}
	for k, v := range extra {
		kwargs[k] = v
	}
	return Signature{Name: s.Name, Kwargs: kwargs}
}
