package compiler

import (
	"sync"

	"github.com/qi-lang/qi/internal/codegen"
)

// ModuleRegistry records functions exported by previously compiled modules
// so cross-module calls resolve to the right mangled symbol and signature.
type ModuleRegistry struct {
	mu      sync.RWMutex
	exports map[string]codegen.Signature // qualified name -> signature
}

// NewModuleRegistry returns an empty registry.
func NewModuleRegistry() *ModuleRegistry {
	return &ModuleRegistry{exports: map[string]codegen.Signature{}}
}

// Register records one exported function under its module-qualified name
// (<module>_<function>).
func (r *ModuleRegistry) Register(module, function string, sig codegen.Signature) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.exports[module+"_"+function] = sig
}

// Lookup resolves a qualified name.
func (r *ModuleRegistry) Lookup(module, function string) (codegen.Signature, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	sig, ok := r.exports[module+"_"+function]
	return sig, ok
}

// Exports snapshots the registry in the shape the lowering engine takes as
// its externally-defined-functions input.
func (r *ModuleRegistry) Exports() map[string]codegen.Signature {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]codegen.Signature, len(r.exports))
	for k, v := range r.exports {
		out[k] = v
	}
	return out
}
