package wrapper

import (
	"fmt"
	"strings"

	"google.golang.org/protobuf/reflect/protoreflect"

	"github.com/malonaz/protobuild/go/protobuild/rustname"
)

type fieldKind int

const (
	kindMessage fieldKind = iota
	kindInt
	kindFloat
	kindBool
	kindBytes
	kindString
	kindEnum
	kindRepeated
	kindMap
)

// How a getter hands out the field.
type refType int

const (
	refRef refType = iota
	refCopy
	refDeref
)

type mutKind int

const (
	mutNone mutKind = iota
	mutStandard
	mutCustom
)

type fieldMethods struct {
	// Rust type of the struct field.
	ty         string
	refType    refType
	derefTy    string
	overrideTy string
	name       string
	unescName  string
	has        bool
	// Empty delegates to the field's own `clear`.
	clear string
	// Empty stores `v`.
	set     string
	enumSet bool
	// Empty uses the trivial getter.
	get       string
	mut       mutKind
	customMut string
	take      string
}

// Value types of prost's well known wrappers.
var wellKnownScalars = map[protoreflect.FullName]protoreflect.Kind{
	"google.protobuf.DoubleValue": protoreflect.DoubleKind,
	"google.protobuf.FloatValue":  protoreflect.FloatKind,
	"google.protobuf.Int64Value":  protoreflect.Int64Kind,
	"google.protobuf.UInt64Value": protoreflect.Uint64Kind,
	"google.protobuf.Int32Value":  protoreflect.Int32Kind,
	"google.protobuf.UInt32Value": protoreflect.Uint32Kind,
	"google.protobuf.BoolValue":   protoreflect.BoolKind,
	"google.protobuf.StringValue": protoreflect.StringKind,
	"google.protobuf.BytesValue":  protoreflect.BytesKind,
}

const wellKnownPackage = "google.protobuf"

// typeResolver names Rust types as seen from the module of a package.
type typeResolver struct {
	pkg string
}

func (r typeResolver) path(desc protoreflect.Descriptor) string {
	typePkg := string(desc.ParentFile().Package())
	if typePkg == wellKnownPackage && r.pkg != wellKnownPackage {
		return "::prost_types::" + rustname.UpperCamel(string(desc.Name()))
	}
	return rustname.TypePath(r.pkg, string(desc.FullName()), typePkg)
}

func scalarType(kind protoreflect.Kind) string {
	switch kind {
	case protoreflect.Int32Kind, protoreflect.Sint32Kind, protoreflect.Sfixed32Kind, protoreflect.EnumKind:
		return "i32"
	case protoreflect.Int64Kind, protoreflect.Sint64Kind, protoreflect.Sfixed64Kind:
		return "i64"
	case protoreflect.Uint32Kind, protoreflect.Fixed32Kind:
		return "u32"
	case protoreflect.Uint64Kind, protoreflect.Fixed64Kind:
		return "u64"
	case protoreflect.FloatKind:
		return "f32"
	case protoreflect.DoubleKind:
		return "f64"
	case protoreflect.BoolKind:
		return "bool"
	case protoreflect.StringKind:
		return "::std::string::String"
	case protoreflect.BytesKind:
		return "::std::vec::Vec<u8>"
	default:
		return ""
	}
}

func scalarKind(kind protoreflect.Kind) fieldKind {
	switch kind {
	case protoreflect.BoolKind:
		return kindBool
	case protoreflect.EnumKind:
		return kindEnum
	case protoreflect.FloatKind, protoreflect.DoubleKind:
		return kindFloat
	case protoreflect.StringKind:
		return kindString
	case protoreflect.BytesKind:
		return kindBytes
	case protoreflect.MessageKind, protoreflect.GroupKind:
		return kindMessage
	default:
		return kindInt
	}
}

// elementType returns the Rust type of a single value of field.
func (r typeResolver) elementType(field protoreflect.FieldDescriptor) string {
	switch field.Kind() {
	case protoreflect.MessageKind, protoreflect.GroupKind:
		if kind, ok := wellKnownScalars[field.Message().FullName()]; ok && r.pkg != wellKnownPackage {
			return scalarType(kind)
		}
		return r.path(field.Message())
	default:
		return scalarType(field.Kind())
	}
}

// elementKind returns the kind of a single value of field, and the enum it holds if any.
func (r typeResolver) elementKind(field protoreflect.FieldDescriptor) (fieldKind, string) {
	switch field.Kind() {
	case protoreflect.EnumKind:
		return kindEnum, r.path(field.Enum())
	case protoreflect.MessageKind, protoreflect.GroupKind:
		if kind, ok := wellKnownScalars[field.Message().FullName()]; ok && r.pkg != wellKnownPackage {
			return scalarKind(kind), ""
		}
		return kindMessage, ""
	default:
		return scalarKind(field.Kind()), ""
	}
}

// newFieldMethods returns the accessors of field, false if it gets none.
func (r typeResolver) newFieldMethods(field protoreflect.FieldDescriptor) (*fieldMethods, bool) {
	// Oneofs are rare and irregular enough to be handled by hand.
	if oneof := field.ContainingOneof(); oneof != nil && !oneof.IsSynthetic() {
		return nil, false
	}
	if field.Message() != nil && field.Message().FullName() == "google.protobuf.Empty" && r.pkg != wellKnownPackage {
		return nil, false
	}

	name := rustname.FieldIdent(string(field.Name()))
	m := &fieldMethods{name: name, unescName: rustname.Unescape(name), refType: refRef}
	switch {
	case field.IsMap():
		m.ty = fmt.Sprintf("::std::collections::HashMap<%s, %s>", r.elementType(field.MapKey()), r.elementType(field.MapValue()))
		m.apply(kindMap, "")
	case field.Cardinality() == protoreflect.Repeated:
		m.ty = "::std::vec::Vec<" + r.elementType(field) + ">"
		m.apply(kindRepeated, "")
	default:
		kind, enum := r.elementKind(field)
		elementType := r.elementType(field)
		optional := kind == kindMessage || field.Cardinality() == protoreflect.Optional && field.HasPresence()
		if optional {
			m.ty = "::std::option::Option<" + elementType + ">"
			m.applyOptional(kind, elementType, enum)
		} else {
			m.ty = elementType
			m.apply(kind, enum)
		}
	}
	return m, true
}

func (m *fieldMethods) apply(kind fieldKind, enum string) {
	switch kind {
	case kindInt:
		m.refType = refCopy
		m.clear = "0"
	case kindFloat:
		m.refType = refCopy
		m.clear = "0."
	case kindBool:
		m.refType = refCopy
		m.clear = "false"
	case kindRepeated:
		m.mut = mutStandard
		m.take = fmt.Sprintf("::std::mem::replace(&mut self.%s, ::std::vec::Vec::new())", m.name)
	case kindMap:
		m.mut = mutStandard
		m.take = fmt.Sprintf("::std::mem::replace(&mut self.%s, ::std::collections::HashMap::new())", m.name)
	case kindBytes:
		m.refType = refDeref
		m.derefTy = "[u8]"
		m.mut = mutStandard
		m.take = fmt.Sprintf("::std::mem::replace(&mut self.%s, ::std::vec::Vec::new())", m.name)
	case kindString:
		m.refType = refDeref
		m.derefTy = "str"
		m.mut = mutStandard
		m.take = fmt.Sprintf("::std::mem::replace(&mut self.%s, ::std::string::String::new())", m.name)
	case kindEnum:
		m.overrideTy = enum
		m.refType = refCopy
		m.clear = "0"
		m.set = "v as i32"
		m.enumSet = true
		m.get = fmt.Sprintf("match %s::from_i32(self.%s) {\n"+
			"        Some(e) => e,\n"+
			"        None => panic!(\"Unknown enum variant: {}\", self.%[2]s),\n"+
			"    }", enum, m.name)
	}
}

// applyOptional configures a field stored as `Option<elementType>`.
func (m *fieldMethods) applyOptional(kind fieldKind, elementType, enum string) {
	nested := &fieldMethods{name: m.name, ty: elementType, refType: refRef}
	nested.apply(kind, enum)

	m.overrideTy = elementType
	if nested.overrideTy != "" {
		m.overrideTy = nested.overrideTy
	}
	m.refType = nested.refType
	m.derefTy = nested.derefTy
	m.enumSet = nested.enumSet
	m.has = true
	m.clear = "::std::option::Option::None"
	m.set = "::std::option::Option::Some(v)"
	if kind == kindEnum {
		m.set = "::std::option::Option::Some(v as i32)"
	}

	asRef := ""
	if m.refType != refCopy {
		mutType := elementType
		if kind == kindBytes {
			mutType = "::std::vec::Vec"
		}
		m.mut = mutCustom
		m.customMut = fmt.Sprintf("if self.%s.is_none() {\n"+
			"        self.%[1]s = ::std::option::Option::Some(%s::default());\n"+
			"    }\n"+
			"    self.%[1]s.as_mut().unwrap()", m.name, mutType)
		asRef = ".as_ref()"
	}

	var initial string
	switch kind {
	case kindMessage:
		m.take = fmt.Sprintf("self.%s.take().unwrap_or_else(%s::default)", m.name, elementType)
		initial = elementType + "::default_ref()"
	case kindBytes:
		m.take = fmt.Sprintf("self.%s.take().unwrap_or_else(::std::vec::Vec::new)", m.name)
		initial = "&[]"
	case kindString:
		m.take = fmt.Sprintf("self.%s.take().unwrap_or_else(::std::string::String::new)", m.name)
		initial = `""`
	case kindInt, kindEnum:
		initial = "0"
	case kindFloat:
		initial = "0."
	case kindBool:
		initial = "false"
	}

	if kind == kindEnum {
		m.get = fmt.Sprintf("match self.%s {\n"+
			"        Some(v) => match %s::from_i32(v) {\n"+
			"            Some(e) => e,\n"+
			"            None => panic!(\"Unknown enum variant: {}\", v),\n"+
			"        },\n"+
			"        None => %[2]s::default(),\n"+
			"    }", m.name, enum)
		return
	}
	m.get = fmt.Sprintf("match self.%s%s {\n"+
		"        Some(v) => v,\n"+
		"        None => %s,\n"+
		"    }", m.name, asRef, initial)
}

// methods renders the accessors enabled by options.
func (m *fieldMethods) methods(options Options) []string {
	var methods []string
	add := func(format string, args ...any) {
		methods = append(methods, fmt.Sprintf(format, args...))
	}

	if m.has && options.Has(OptHas) {
		add("#[inline] pub fn has_%s(&self) -> bool { self.%s.is_some() }", m.unescName, m.name)
	}
	ty := m.ty
	if m.overrideTy != "" {
		ty = m.overrideTy
	}
	var refTy string
	switch m.refType {
	case refCopy:
		refTy = ty
	case refRef:
		refTy = "&" + ty
	case refDeref:
		refTy = "&" + m.derefTy
	}

	if options.Has(OptClear) {
		if m.clear != "" {
			add("#[inline] pub fn clear_%s(&mut self) { self.%s = %s }", m.unescName, m.name, m.clear)
		} else {
			add("#[inline] pub fn clear_%s(&mut self) { self.%s.clear(); }", m.unescName, m.name)
		}
	}

	// Prost escapes keywords with `r#` where rust-protobuf prefixes `field_`. Prost's own enum setter
	// carries the raw name, so a `set_field_` wrapper keeps both APIs aligned.
	fieldEscaped := strings.HasPrefix(m.unescName, "field") && !strings.HasPrefix(m.name, "field")
	switch {
	case m.set != "" && (fieldEscaped || !m.enumSet):
		add("#[inline] pub fn set_%s(&mut self, v: %s) { self.%s = %s; }", m.unescName, ty, m.name, m.set)
	case m.set == "" && options.Has(OptTrivialSet):
		add("#[inline] pub fn set_%s(&mut self, v: %s) { self.%s = v; }", m.unescName, ty, m.name)
	}

	switch {
	case m.get != "":
		add("#[inline] pub fn get_%s(&self) -> %s { %s }", m.unescName, refTy, m.get)
	case options.Has(OptTrivialGet):
		ref := "&"
		if m.refType == refCopy {
			ref = ""
		}
		add("#[inline] pub fn get_%s(&self) -> %s { %sself.%s }", m.unescName, refTy, ref, m.name)
	}

	if options.Has(OptMut) {
		switch m.mut {
		case mutStandard:
			add("#[inline] pub fn mut_%s(&mut self) -> &mut %s { &mut self.%s }", m.unescName, ty, m.name)
		case mutCustom:
			add("#[inline] pub fn mut_%s(&mut self) -> &mut %s { %s }", m.unescName, ty, m.customMut)
		}
	}

	if options.Has(OptTake) && m.take != "" {
		add("#[inline] pub fn take_%s(&mut self) -> %s { %s }", m.unescName, ty, m.take)
	}
	return methods
}
