// The closed set of attributes. Argument arity, repeatability, inversion,
// and the item kinds an attribute may decorate are all table-driven.

package main

import "strings"

type attributeKind int

const (
	attrCached attributeKind = iota
	attrConfirm
	attrDoc
	attrExtension
	attrGroup
	attrLinux
	attrMacos
	attrNoCd
	attrNoExitMessage
	attrNoQuiet
	attrOpenbsd
	attrPositionalArguments
	attrPrivate
	attrScript
	attrUnix
	attrWindows
	attrWorkingDirectory
)

// Which item kinds an attribute may appear on.
const (
	onRecipe = 1 << iota
	onAlias
	onModule
)

type attributeInfo struct {
	name       string
	minArgs    int
	maxArgs    int // -1 for unbounded
	repeatable bool
	invertible bool
	items      int
	unstable   bool
}

var attributeTable = map[attributeKind]attributeInfo{
	attrCached:              {name: "cached", items: onRecipe},
	attrConfirm:             {name: "confirm", maxArgs: 1, items: onRecipe},
	attrDoc:                 {name: "doc", maxArgs: 1, items: onRecipe | onAlias | onModule},
	attrExtension:           {name: "extension", minArgs: 1, maxArgs: 1, items: onRecipe},
	attrGroup:               {name: "group", minArgs: 1, maxArgs: 1, repeatable: true, items: onRecipe | onModule},
	attrLinux:               {name: "linux", invertible: true, items: onRecipe},
	attrMacos:               {name: "macos", invertible: true, items: onRecipe},
	attrNoCd:                {name: "no-cd", items: onRecipe},
	attrNoExitMessage:       {name: "no-exit-message", items: onRecipe},
	attrNoQuiet:             {name: "no-quiet", items: onRecipe},
	attrOpenbsd:             {name: "openbsd", invertible: true, items: onRecipe},
	attrPositionalArguments: {name: "positional-arguments", items: onRecipe},
	attrPrivate:             {name: "private", items: onRecipe | onAlias},
	attrScript:              {name: "script", maxArgs: -1, items: onRecipe, unstable: true},
	attrUnix:                {name: "unix", invertible: true, items: onRecipe},
	attrWindows:             {name: "windows", invertible: true, items: onRecipe},
	attrWorkingDirectory:    {name: "working-directory", minArgs: 1, maxArgs: 1, items: onRecipe},
}

func attributeKindFromName(name string) (attributeKind, bool) {
	for kind, info := range attributeTable {
		if info.name == name {
			return kind, true
		}
	}
	return 0, false
}

func (k attributeKind) info() attributeInfo {
	return attributeTable[k]
}

func (k attributeKind) isPlatform() bool {
	switch k {
	case attrLinux, attrMacos, attrOpenbsd, attrUnix, attrWindows:
		return true
	}
	return false
}

type attribute struct {
	kind      attributeKind
	name      token
	inverted  bool
	arguments []string // cooked argument values
}

func (a attribute) String() string {
	var b strings.Builder
	if a.inverted {
		b.WriteByte('!')
	}
	b.WriteString(a.kind.info().name)
	if len(a.arguments) > 0 {
		b.WriteByte('(')
		for i, arg := range a.arguments {
			if i > 0 {
				b.WriteString(", ")
			}
			b.WriteByte('\'')
			b.WriteString(arg)
			b.WriteByte('\'')
		}
		b.WriteByte(')')
	}
	return b.String()
}

// find returns the first attribute of the given kind.
func findAttribute(attributes []attribute, kind attributeKind) (attribute, bool) {
	for _, a := range attributes {
		if a.kind == kind {
			return a, true
		}
	}
	return attribute{}, false
}

func hasAttribute(attributes []attribute, kind attributeKind) bool {
	_, ok := findAttribute(attributes, kind)
	return ok
}

// validateAttributes checks repetition and item-kind permission for a
// parsed attribute list. itemKind is one of onRecipe, onAlias, onModule;
// itemName names the decorated item for diagnostics.
func validateAttributes(attributes []attribute, itemKind int, itemWord, itemName string) error {
	seen := map[attributeKind]bool{}
	for _, a := range attributes {
		info := a.kind.info()
		if info.items&itemKind == 0 {
			return compileErrorAt(a.name, invalidAttribute{item: itemWord, name: itemName, attribute: info.name})
		}
		if seen[a.kind] && !info.repeatable {
			return compileErrorAt(a.name, duplicateAttribute{attribute: info.name})
		}
		seen[a.kind] = true
	}
	return nil
}
