package convention

import (
	"fmt"
	"reflect"
	"sort"
	"strings"

	"go.mongodb.org/mongo-driver/bson/bsoncodec"
	"go.mongodb.org/mongo-driver/bson/bsonoptions"

	"github.com/kart-io/docbase/pkg/errors"
)

// MemberMap describes how one struct field maps to a document element.
type MemberMap struct {
	owner    *ClassMap
	field    reflect.StructField
	tags     bsoncodec.StructTags
	explicit bool

	elementName  string
	ignored      bool
	ignoreIfNull bool
}

// Field returns the mapped struct field.
func (m *MemberMap) Field() reflect.StructField { return m.field }

// FieldName returns the Go field name.
func (m *MemberMap) FieldName() string { return m.field.Name }

// ElementName returns the document element name.
func (m *MemberMap) ElementName() string { return m.elementName }

// HasExplicitName reports whether the bson tag names the element.
func (m *MemberMap) HasExplicitName() bool { return m.explicit }

// IsIgnored reports whether the field is left out of the document.
func (m *MemberMap) IsIgnored() bool { return m.ignored }

// IgnoreIfNull reports whether a null value is left out when encoding.
func (m *MemberMap) IgnoreIfNull() bool { return m.ignoreIfNull }

// IsInline reports whether the field is inlined into the parent document.
func (m *MemberMap) IsInline() bool { return m.tags.Inline }

// SetElementName sets the document element name.
func (m *MemberMap) SetElementName(name string) *MemberMap {
	m.owner.mustBeMutable()
	m.elementName = name
	return m
}

// SetIgnored sets whether the field is left out of the document.
func (m *MemberMap) SetIgnored(ignored bool) *MemberMap {
	m.owner.mustBeMutable()
	m.ignored = ignored
	return m
}

// SetIgnoreIfNull sets whether a null value is left out when encoding.
func (m *MemberMap) SetIgnoreIfNull(ignore bool) *MemberMap {
	m.owner.mustBeMutable()
	m.ignoreIfNull = ignore
	return m
}

func (m *MemberMap) structTags() bsoncodec.StructTags {
	tags := m.tags
	tags.Name = m.elementName
	tags.Skip = m.ignored
	return tags
}

// memberKey identifies a struct field without its declaring type. Inlined
// fields reach the tag parser with only their reflect.StructField.
type memberKey struct {
	name  string
	index string
	tag   reflect.StructTag
	typ   reflect.Type
}

func keyOf(sf reflect.StructField) memberKey {
	return memberKey{name: sf.Name, index: fmt.Sprint(sf.Index), tag: sf.Tag, typ: sf.Type}
}

// ClassMap is the mapping of one struct type. It is mutable only while it is
// being built; once frozen it is shared by every encode and decode of the type.
type ClassMap struct {
	typ         reflect.Type
	members     []*MemberMap
	byKey       map[memberKey]*MemberMap
	conventions []string
	ignoreExtra bool
	frozen      bool

	// Computed by freeze.
	elements  map[string]struct{}
	omitNull  map[string]struct{}
	inlineMap bool
	codec     *bsoncodec.StructCodec
}

func newClassMap(t reflect.Type) *ClassMap {
	cm := &ClassMap{
		typ:   t,
		byKey: make(map[memberKey]*MemberMap),
	}
	cm.addMembers(t, map[reflect.Type]bool{t: true})
	return cm
}

func (cm *ClassMap) addMembers(t reflect.Type, visiting map[reflect.Type]bool) {
	for i := 0; i < t.NumField(); i++ {
		sf := t.Field(i)
		if sf.PkgPath != "" {
			continue
		}

		tags, err := bsoncodec.DefaultStructTagParser.ParseStructTags(sf)
		if err != nil {
			continue
		}

		name := tagName(sf.Tag, "bson")
		m := &MemberMap{
			owner:       cm,
			field:       sf,
			tags:        tags,
			explicit:    name != "" && name != "-",
			elementName: tags.Name,
			ignored:     tags.Skip,
		}
		cm.members = append(cm.members, m)
		cm.byKey[keyOf(sf)] = m

		if !tags.Inline || tags.Skip {
			continue
		}
		ft := sf.Type
		if ft.Kind() == reflect.Ptr {
			ft = ft.Elem()
		}
		switch ft.Kind() {
		case reflect.Struct:
			if !visiting[ft] {
				visiting[ft] = true
				cm.addMembers(ft, visiting)
				delete(visiting, ft)
			}
		case reflect.Map:
			cm.inlineMap = true
		}
	}
}

func (cm *ClassMap) mustBeMutable() {
	if cm.frozen {
		panic(fmt.Sprintf("convention: class map for %s is frozen", cm.typ))
	}
}

// Type returns the mapped type.
func (cm *ClassMap) Type() reflect.Type { return cm.typ }

// Members returns the field mappings, inlined fields included, in declaration order.
func (cm *ClassMap) Members() []*MemberMap {
	return append([]*MemberMap(nil), cm.members...)
}

// Member returns the mapping of the first field named fieldName.
func (cm *ClassMap) Member(fieldName string) *MemberMap {
	for _, m := range cm.members {
		if m.field.Name == fieldName {
			return m
		}
	}
	return nil
}

// IgnoreExtraElements reports whether unmapped document fields are dropped on decode.
func (cm *ClassMap) IgnoreExtraElements() bool { return cm.ignoreExtra }

// SetIgnoreExtraElements sets whether unmapped document fields are dropped on decode.
func (cm *ClassMap) SetIgnoreExtraElements(ignore bool) {
	cm.mustBeMutable()
	cm.ignoreExtra = ignore
}

// Conventions returns the names of the conventions applied, in order.
func (cm *ClassMap) Conventions() []string {
	return append([]string(nil), cm.conventions...)
}

// IsFrozen reports whether the class map can still be changed.
func (cm *ClassMap) IsFrozen() bool { return cm.frozen }

// ElementNames returns the sorted names of the mapped elements.
func (cm *ClassMap) ElementNames() []string {
	names := make([]string, 0, len(cm.elements))
	for name := range cm.elements {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (cm *ClassMap) apply(c Convention) {
	applied := false
	if mc, ok := c.(MemberConvention); ok {
		for _, m := range cm.members {
			mc.ApplyMember(m)
		}
		applied = true
	}
	if cc, ok := c.(ClassConvention); ok {
		cc.ApplyClass(cm)
		applied = true
	}
	if applied {
		cm.conventions = append(cm.conventions, c.Name())
	}
}

func (cm *ClassMap) freeze() error {
	elements := make(map[string]*MemberMap)
	cm.elements = make(map[string]struct{})
	cm.omitNull = make(map[string]struct{})

	for _, m := range cm.members {
		if m.ignored || m.tags.Inline {
			continue
		}
		if prev, ok := elements[m.elementName]; ok {
			return errors.ErrInvalidParam.WithMessagef("convention: %s maps %s and %s to element %q",
				cm.typ, prev.FieldName(), m.FieldName(), m.elementName)
		}
		elements[m.elementName] = m
		cm.elements[m.elementName] = struct{}{}
		if m.ignoreIfNull {
			cm.omitNull[m.elementName] = struct{}{}
		}
	}

	codec, err := bsoncodec.NewStructCodec(
		bsoncodec.StructTagParserFunc(cm.parseStructTags),
		bsonoptions.StructCodec().SetDecodeZeroStruct(true),
	)
	if err != nil {
		return fmt.Errorf("convention: build codec for %s: %w", cm.typ, err)
	}
	cm.codec = codec
	cm.frozen = true
	return nil
}

func (cm *ClassMap) parseStructTags(sf reflect.StructField) (bsoncodec.StructTags, error) {
	if m, ok := cm.byKey[keyOf(sf)]; ok {
		return m.structTags(), nil
	}
	return bsoncodec.DefaultStructTagParser.ParseStructTags(sf)
}

// knows reports whether name is a mapped element. After an exact miss the
// lower-cased name is tried, the one fallback the driver's struct decoder has.
func (cm *ClassMap) knows(name string) bool {
	if cm.inlineMap {
		return true
	}
	if _, ok := cm.elements[name]; ok {
		return true
	}
	_, ok := cm.elements[strings.ToLower(name)]
	return ok
}
