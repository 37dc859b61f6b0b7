package registry

import (
	"github.com/viant/x"
)

// Types registers the Go types of step payloads so that payloads arriving
// over the delegation protocol as raw JSON can be re-materialised into
// their declared type.
type Types struct {
	x.Registry
}

// Register adds a payload type to the registry.
func (t *Types) Register(dataType *x.Type) {
	if dataType == nil {
		return
	}
	t.Registry.Register(dataType)
}

// Lookup returns the registered type for the supplied name, or nil.
func (t *Types) Lookup(name string) *x.Type {
	return t.Registry.Lookup(name)
}

// NewTypes creates a payload type registry.
func NewTypes(options ...x.RegistryOption) *Types {
	return &Types{Registry: *x.NewRegistry(options...)}
}
