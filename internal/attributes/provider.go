// Package attributes collects the flat key/value attributes attached to
// every crash report.
package attributes

// Provider returns a snapshot of attributes. Providers never fail; an
// attribute that cannot be read is left out.
type Provider interface {
	Get() map[string]string
}

// ProviderFunc adapts a plain function to Provider
type ProviderFunc func() map[string]string

// Get calls f
func (f ProviderFunc) Get() map[string]string {
	return f()
}

// Collect merges the attributes of every provider. Later providers win on
// key collisions.
func Collect(providers ...Provider) map[string]string {
	out := make(map[string]string)
	for _, p := range providers {
		if p == nil {
			continue
		}
		for k, v := range p.Get() {
			out[k] = v
		}
	}
	return out
}
