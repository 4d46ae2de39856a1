package pim

import (
	"strings"
)

// StoredValue holds the ten typed storage columns of an attribute value.
type StoredValue struct {
	BoolValue      Field[bool]    `json:"boolValue,omitzero"`
	IntValue       Field[int64]   `json:"intValue,omitzero"`
	IntValue1      Field[int64]   `json:"intValue1,omitzero"`
	FloatValue     Field[float64] `json:"floatValue,omitzero"`
	FloatValue1    Field[float64] `json:"floatValue1,omitzero"`
	VarcharValue   Field[string]  `json:"varcharValue,omitzero"`
	TextValue      Field[string]  `json:"textValue,omitzero"`
	DateValue      Field[string]  `json:"dateValue,omitzero"`
	DatetimeValue  Field[string]  `json:"datetimeValue,omitzero"`
	ReferenceValue Field[string]  `json:"referenceValue,omitzero"`
}

// Clear makes all ten columns absent.
func (s *StoredValue) Clear() {
	*s = StoredValue{}
}

// Has reports whether column c is present (null counts as present).
func (s *StoredValue) Has(c StoredColumn) bool {
	switch c {
	case ColumnBool:
		return s.BoolValue.IsPresent()
	case ColumnInt:
		return s.IntValue.IsPresent()
	case ColumnInt1:
		return s.IntValue1.IsPresent()
	case ColumnFloat:
		return s.FloatValue.IsPresent()
	case ColumnFloat1:
		return s.FloatValue1.IsPresent()
	case ColumnVarchar:
		return s.VarcharValue.IsPresent()
	case ColumnText:
		return s.TextValue.IsPresent()
	case ColumnDate:
		return s.DateValue.IsPresent()
	case ColumnDatetime:
		return s.DatetimeValue.IsPresent()
	case ColumnReference:
		return s.ReferenceValue.IsPresent()
	}
	return false
}

// Column returns the value of column c as a driver-friendly value: nil for
// absent or null columns.
func (s *StoredValue) Column(c StoredColumn) any {
	switch c {
	case ColumnBool:
		return valueOrNil(s.BoolValue)
	case ColumnInt:
		return valueOrNil(s.IntValue)
	case ColumnInt1:
		return valueOrNil(s.IntValue1)
	case ColumnFloat:
		return valueOrNil(s.FloatValue)
	case ColumnFloat1:
		return valueOrNil(s.FloatValue1)
	case ColumnVarchar:
		return valueOrNil(s.VarcharValue)
	case ColumnText:
		return valueOrNil(s.TextValue)
	case ColumnDate:
		return valueOrNil(s.DateValue)
	case ColumnDatetime:
		return valueOrNil(s.DatetimeValue)
	case ColumnReference:
		return valueOrNil(s.ReferenceValue)
	}
	return nil
}

// Populated lists the present columns in storage order.
func (s *StoredValue) Populated() []StoredColumn {
	var out []StoredColumn
	for _, c := range storedColumns {
		if s.Has(c) {
			out = append(out, c)
		}
	}
	return out
}

func valueOrNil[T any](f Field[T]) any {
	if v, ok := f.Get(); ok {
		return v
	}
	return nil
}

// ValueData is the nested data object of a payload.
type ValueData struct {
	Currency Field[string] `json:"currency,omitzero"`
}

// Option is a prepared extensible enum option.
type Option struct {
	ID               string `json:"id"`
	ExtensibleEnumID string `json:"extensibleEnumId,omitempty"`
	Code             string `json:"code,omitempty"`
	Name             string `json:"name,omitempty"`
	PreparedName     string `json:"preparedName"`
	Color            string `json:"color,omitempty"`
	SortOrder        int    `json:"sortOrder"`
}

// Unit is a measure unit.
type Unit struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	MeasureID string `json:"measureId"`
	IsDefault bool   `json:"isDefault,omitempty"`
}

// PathsData carries the resolved locations of an attachment.
type PathsData struct {
	Download   string            `json:"download"`
	Thumbnails map[string]string `json:"thumbnails,omitempty"`
}

// ValuePayload is an attribute value in its API shape, with the stored
// columns embedded. It is mutated in place by the converters.
type ValuePayload struct {
	Value         Field[any]       `json:"value,omitzero"`
	ValueFrom     Field[any]       `json:"valueFrom,omitzero"`
	ValueTo       Field[any]       `json:"valueTo,omitzero"`
	ValueID       Field[string]    `json:"valueId,omitzero"`
	ValueUnitID   Field[string]    `json:"valueUnitId,omitzero"`
	ValueCurrency Field[string]    `json:"valueCurrency,omitzero"`
	ValueUnit     Field[string]    `json:"valueUnit,omitzero"`
	Data          Field[ValueData] `json:"data,omitzero"`

	// display-only
	ValueName        Field[string]            `json:"valueName,omitzero"`
	ValueNames       Field[map[string]string] `json:"valueNames,omitzero"`
	ValueOptionData  Field[Option]            `json:"valueOptionData,omitzero"`
	ValueOptionsData Field[[]Option]          `json:"valueOptionsData,omitzero"`
	ValueAllUnits    Field[[]Unit]            `json:"valueAllUnits,omitzero"`
	ValuePathsData   Field[PathsData]         `json:"valuePathsData,omitzero"`

	AttributeType             AttributeType `json:"attributeType,omitempty"`
	AttributeExtensibleEnumID Field[string] `json:"attributeExtensibleEnumId,omitzero"`

	StoredValue
}

// StripDisplayFields removes every display-only field.
func (p *ValuePayload) StripDisplayFields() {
	p.ValueName.Unset()
	p.ValueNames.Unset()
	p.ValueOptionData.Unset()
	p.ValueOptionsData.Unset()
	p.ValueAllUnits.Unset()
	p.ValuePathsData.Unset()
}

// HasDisplayFields reports whether any display-only field is present.
func (p *ValuePayload) HasDisplayFields() bool {
	return p.ValueName.IsPresent() || p.ValueNames.IsPresent() ||
		p.ValueOptionData.IsPresent() || p.ValueOptionsData.IsPresent() ||
		p.ValueAllUnits.IsPresent() || p.ValuePathsData.IsPresent()
}

// VirtualValue is a copy of the canonical payload fields taken before a
// write rewrites them.
type VirtualValue struct {
	Value         Field[any]    `json:"value,omitzero"`
	ValueUnitID   Field[string] `json:"valueUnitId,omitzero"`
	ValueID       Field[string] `json:"valueId,omitzero"`
	ValueFrom     Field[any]    `json:"valueFrom,omitzero"`
	ValueTo       Field[any]    `json:"valueTo,omitzero"`
	ValueCurrency Field[string] `json:"valueCurrency,omitzero"`
}

// CaptureVirtualValue snapshots the canonical fields of p.
func CaptureVirtualValue(p *ValuePayload) VirtualValue {
	return VirtualValue{
		Value:         p.Value,
		ValueUnitID:   p.ValueUnitID,
		ValueID:       p.ValueID,
		ValueFrom:     p.ValueFrom,
		ValueTo:       p.ValueTo,
		ValueCurrency: p.ValueCurrency,
	}
}

// Entity is a loosely typed row of another entity (link targets, attachments).
type Entity struct {
	Type   string
	ID     string
	Fields map[string]any
}

// Get looks a field up by its camelCase name, then by its snake_case column.
func (e *Entity) Get(field string) (any, bool) {
	if e == nil || e.Fields == nil {
		return nil, false
	}
	if v, ok := e.Fields[field]; ok {
		return v, true
	}
	v, ok := e.Fields[ToSnakeCase(field)]
	return v, ok
}

// GetString returns the field as a string, or "" when missing or not a string.
func (e *Entity) GetString(field string) string {
	v, ok := e.Get(field)
	if !ok {
		return ""
	}
	s, _ := v.(string)
	return s
}

// HasTemplateMarkers reports whether s contains template delimiters.
func HasTemplateMarkers(s string) bool {
	open := strings.Index(s, "{{")
	return open >= 0 && strings.Contains(s[open:], "}}")
}
