package domain

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// Category groups settings in menus
type Category string

const (
	CategoryFilters   Category = "filters_category"
	CategoryRewriters Category = "rewriters_category"
	CategoryVisual    Category = "visual_category"
	CategoryCustoms   Category = "customs_category"
)

// Valid reports whether c is a known category
func (c Category) Valid() bool {
	switch c {
	case CategoryFilters, CategoryRewriters, CategoryVisual, CategoryCustoms:
		return true
	}
	return false
}

// Title returns the menu heading for the category
func (c Category) Title() string {
	switch c {
	case CategoryFilters:
		return "Filters"
	case CategoryRewriters:
		return "Rewriters"
	case CategoryVisual:
		return "Visual"
	case CategoryCustoms:
		return "Customs"
	}
	return string(c)
}

// Kind is the value type of a setting
type Kind int

const (
	KindBool Kind = iota
	KindList
)

func (k Kind) String() string {
	if k == KindList {
		return "list"
	}
	return "bool"
}

var (
	ErrUnknownSetting = errors.New("unknown setting")
	ErrKindMismatch   = errors.New("setting value kind mismatch")
)

// SettingError describes an invalid setting registration or value
type SettingError struct {
	Setting string
	Message string
	Err     error
}

func (e *SettingError) Error() string {
	if e.Setting == "" {
		return "setting: " + e.Message
	}
	return fmt.Sprintf("setting %s: %s", e.Setting, e.Message)
}

func (e *SettingError) Unwrap() error {
	return e.Err
}

// Value holds either a boolean or a list of strings
type Value struct {
	kind Kind
	b    bool
	list []string
}

// BoolValue wraps a boolean
func BoolValue(b bool) Value {
	return Value{kind: KindBool, b: b}
}

// ListValue wraps a string list; the slice is copied
func ListValue(list []string) Value {
	cp := make([]string, len(list))
	copy(cp, list)
	return Value{kind: KindList, list: cp}
}

// Kind returns the value type
func (v Value) Kind() Kind {
	return v.kind
}

// Bool returns the boolean, false for lists
func (v Value) Bool() bool {
	return v.kind == KindBool && v.b
}

// List returns a copy of the list, nil for booleans
func (v Value) List() []string {
	if v.kind != KindList {
		return nil
	}
	cp := make([]string, len(v.list))
	copy(cp, v.list)
	return cp
}

// Equal compares kind and content
func (v Value) Equal(o Value) bool {
	if v.kind != o.kind {
		return false
	}
	if v.kind == KindBool {
		return v.b == o.b
	}
	if len(v.list) != len(o.list) {
		return false
	}
	for i := range v.list {
		if v.list[i] != o.list[i] {
			return false
		}
	}
	return true
}

func (v Value) String() string {
	if v.kind == KindList {
		return "[" + strings.Join(v.list, ", ") + "]"
	}
	if v.b {
		return "true"
	}
	return "false"
}

func (v Value) MarshalJSON() ([]byte, error) {
	if v.kind == KindList {
		if v.list == nil {
			return []byte("[]"), nil
		}
		return json.Marshal(v.list)
	}
	return json.Marshal(v.b)
}

func (v *Value) UnmarshalJSON(data []byte) error {
	var b bool
	if err := json.Unmarshal(data, &b); err == nil {
		*v = BoolValue(b)
		return nil
	}
	var list []string
	if err := json.Unmarshal(data, &list); err != nil {
		return fmt.Errorf("value must be a boolean or a list of strings: %w", err)
	}
	if list == nil {
		list = []string{}
	}
	*v = ListValue(list)
	return nil
}

// SettingMeta is the descriptive part shared by all settings
type SettingMeta struct {
	Name        string
	Comment     string
	LongComment string
	Category    Category
	Kind        Kind
}

// SettingSpec is a typed setting declaration
type SettingSpec interface {
	Meta() SettingMeta
	DefaultValue() Value
	isSettingSpec()
}

// BoolSetting declares an on/off toggle
type BoolSetting struct {
	Name        string
	Comment     string
	LongComment string
	Category    Category
	Default     bool
}

func (s BoolSetting) Meta() SettingMeta {
	return SettingMeta{Name: s.Name, Comment: s.Comment, LongComment: s.LongComment, Category: s.Category, Kind: KindBool}
}

func (s BoolSetting) DefaultValue() Value { return BoolValue(s.Default) }

func (BoolSetting) isSettingSpec() {}

// ListSetting declares a user-maintained string list
type ListSetting struct {
	Name        string
	Comment     string
	LongComment string
	Category    Category
	Default     []string
}

func (s ListSetting) Meta() SettingMeta {
	return SettingMeta{Name: s.Name, Comment: s.Comment, LongComment: s.LongComment, Category: s.Category, Kind: KindList}
}

func (s ListSetting) DefaultValue() Value { return ListValue(s.Default) }

func (ListSetting) isSettingSpec() {}

// ValidateSetting checks the required fields of a declaration
func ValidateSetting(spec SettingSpec) error {
	meta := spec.Meta()
	if strings.TrimSpace(meta.Name) == "" {
		return &SettingError{Message: "missing required field name"}
	}
	if strings.TrimSpace(meta.Comment) == "" {
		return &SettingError{Setting: meta.Name, Message: "missing required field comment"}
	}
	if !meta.Category.Valid() {
		return &SettingError{Setting: meta.Name, Message: fmt.Sprintf("unknown category %q", meta.Category)}
	}
	if ls, ok := spec.(ListSetting); ok && ls.Default == nil {
		return &SettingError{Setting: meta.Name, Message: "missing required field default"}
	}
	return nil
}

// SettingInfo is a snapshot of a setting for menus and APIs
type SettingInfo struct {
	Name        string   `json:"name"`
	Comment     string   `json:"comment"`
	LongComment string   `json:"long_comment,omitempty"`
	Category    Category `json:"category"`
	Kind        string   `json:"kind"`
	Default     Value    `json:"default"`
	Value       Value    `json:"value"`
	Overridden  bool     `json:"overridden"`
}
