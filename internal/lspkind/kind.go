// Package lspkind fixes the canonical string spelling for LSP SymbolKind values.
package lspkind

import protocol "github.com/tliron/glsp/protocol_3_16"

var names = map[protocol.SymbolKind]string{
	protocol.SymbolKindFile:          "File",
	protocol.SymbolKindModule:        "Module",
	protocol.SymbolKindNamespace:     "Namespace",
	protocol.SymbolKindPackage:       "Package",
	protocol.SymbolKindClass:         "Class",
	protocol.SymbolKindMethod:        "Method",
	protocol.SymbolKindProperty:      "Property",
	protocol.SymbolKindField:         "Field",
	protocol.SymbolKindConstructor:   "Constructor",
	protocol.SymbolKindEnum:          "Enum",
	protocol.SymbolKindInterface:     "Interface",
	protocol.SymbolKindFunction:      "Function",
	protocol.SymbolKindVariable:      "Variable",
	protocol.SymbolKindConstant:      "Constant",
	protocol.SymbolKindString:        "String",
	protocol.SymbolKindNumber:        "Number",
	protocol.SymbolKindBoolean:       "Boolean",
	protocol.SymbolKindArray:         "Array",
	protocol.SymbolKindObject:        "Object",
	protocol.SymbolKindKey:           "Key",
	protocol.SymbolKindNull:          "Null",
	protocol.SymbolKindEnumMember:    "EnumMember",
	protocol.SymbolKindStruct:        "Struct",
	protocol.SymbolKindEvent:         "Event",
	protocol.SymbolKindOperator:      "Operator",
	protocol.SymbolKindTypeParameter: "TypeParameter",
}

// KindString returns the canonical name for an LSP symbol kind, e.g. "Function".
// Unknown kinds (future protocol additions) fall back to "Unknown".
func KindString(kind protocol.SymbolKind) string {
	if name, ok := names[kind]; ok {
		return name
	}
	return "Unknown"
}

// WorkspaceSymbolKinds is the set of kinds this bridge declares support for
// in its initialize request.
func WorkspaceSymbolKinds() []protocol.SymbolKind {
	return []protocol.SymbolKind{
		protocol.SymbolKindConstant,
		protocol.SymbolKindEnum,
		protocol.SymbolKindEnumMember,
		protocol.SymbolKindField,
		protocol.SymbolKindFunction,
		protocol.SymbolKindInterface,
		protocol.SymbolKindMethod,
		protocol.SymbolKindModule,
		protocol.SymbolKindNamespace,
		protocol.SymbolKindObject,
		protocol.SymbolKindStruct,
		protocol.SymbolKindTypeParameter,
		protocol.SymbolKindVariable,
	}
}
