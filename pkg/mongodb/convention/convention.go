// Package convention maps Go struct types to BSON documents through an
// ordered set of registered conventions.
//
// Conventions are grouped in named packs and registered once per process on
// a Registry. The first time a struct type is encoded or decoded the registry
// builds a ClassMap for it by running every matching convention in
// registration order, freezes it and caches it. A pack registered after a
// type was mapped does not affect that type.
//
// The canonical pack, registered by RegisterDefaults under the name
// "additional", contains:
//
//   - ExclusionConvention: fields tagged bson:"-" or db:"-" are not mapped.
//   - IgnoreExtraElementsConvention: unknown document fields are dropped on
//     decode instead of failing with ErrUnknownElement.
//   - IgnoreIfNullConvention: null values are not written.
//   - CamelCaseElementNameConvention: the element name is the field name with
//     its first character lower-cased.
package convention

import (
	"reflect"
	"strings"
	"unicode"
	"unicode/utf8"
)

// DefaultPackName is the name RegisterDefaults registers the canonical pack under.
const DefaultPackName = "additional"

// Convention is a named mapping rule. A convention implements
// MemberConvention, ClassConvention, or both.
type Convention interface {
	Name() string
}

// MemberConvention is applied to every mapped field of a type.
type MemberConvention interface {
	Convention
	ApplyMember(m *MemberMap)
}

// ClassConvention is applied once per mapped type.
type ClassConvention interface {
	Convention
	ApplyClass(cm *ClassMap)
}

// Pack is an ordered list of conventions.
type Pack []Convention

// Filter selects the types a pack applies to. A nil Filter matches every type.
type Filter func(t reflect.Type) bool

// Defaults returns the canonical pack.
func Defaults() Pack {
	return Pack{
		ExclusionConvention{},
		IgnoreExtraElementsConvention{},
		IgnoreIfNullConvention{},
		CamelCaseElementNameConvention{},
	}
}

// ExclusionConvention unmaps fields carrying an exclusion marker.
type ExclusionConvention struct{}

// Name implements Convention.
func (ExclusionConvention) Name() string { return "Exclusion" }

// ApplyMember implements MemberConvention.
func (ExclusionConvention) ApplyMember(m *MemberMap) {
	if tagName(m.Field().Tag, "bson") == "-" || tagName(m.Field().Tag, "db") == "-" {
		m.SetIgnored(true)
	}
}

// IgnoreExtraElementsConvention makes decoding tolerate unmapped document fields.
type IgnoreExtraElementsConvention struct{}

// Name implements Convention.
func (IgnoreExtraElementsConvention) Name() string { return "IgnoreExtraElements" }

// ApplyClass implements ClassConvention.
func (IgnoreExtraElementsConvention) ApplyClass(cm *ClassMap) {
	cm.SetIgnoreExtraElements(true)
}

// IgnoreIfNullConvention omits null values when encoding.
type IgnoreIfNullConvention struct{}

// Name implements Convention.
func (IgnoreIfNullConvention) Name() string { return "IgnoreIfNull" }

// ApplyMember implements MemberConvention.
func (IgnoreIfNullConvention) ApplyMember(m *MemberMap) {
	m.SetIgnoreIfNull(true)
}

// CamelCaseElementNameConvention lower-cases the first character of the field
// name. An explicit name in the bson tag is kept.
type CamelCaseElementNameConvention struct{}

// Name implements Convention.
func (CamelCaseElementNameConvention) Name() string { return "CamelCaseElementName" }

// ApplyMember implements MemberConvention.
func (CamelCaseElementNameConvention) ApplyMember(m *MemberMap) {
	if m.HasExplicitName() {
		return
	}
	m.SetElementName(LowerFirst(m.FieldName()))
}

// LowerFirst lower-cases the first character of s and leaves the rest unchanged.
func LowerFirst(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError || unicode.IsLower(r) {
		return s
	}
	return string(unicode.ToLower(r)) + s[size:]
}

// tagName returns the name part of the key entry of tag.
func tagName(tag reflect.StructTag, key string) string {
	v, ok := tag.Lookup(key)
	if !ok {
		return ""
	}
	name, _, _ := strings.Cut(v, ",")
	return name
}
