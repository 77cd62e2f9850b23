package types

// SymbolKind represents the kind of language construct a symbol describes
type SymbolKind string

const (
	KindFunction  SymbolKind = "function"
	KindMethod    SymbolKind = "method"
	KindType      SymbolKind = "type"
	KindVariable  SymbolKind = "variable"
	KindConstant  SymbolKind = "constant"
	KindMacro     SymbolKind = "macro"
	KindNamespace SymbolKind = "namespace"
)

// Position represents a location in source code
type Position struct {
	Line   int `json:"line"`
	Column int `json:"column"`
}

// Symbol represents one symbol extracted from a source file.
//
// Extraction is performed by an external parse action; this subsystem only
// stores, persists, and publishes symbols.
type Symbol struct {
	Name      string     `json:"name"`
	Kind      SymbolKind `json:"kind"`
	Container string     `json:"container,omitempty"` // enclosing namespace or type, if any
	Signature string     `json:"signature,omitempty"`
	Path      string     `json:"path"` // absolute path of the defining file
	Start     Position   `json:"start"`
	End       Position   `json:"end"`
}
