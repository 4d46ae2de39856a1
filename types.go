package pim

import (
	"strings"
	"unicode"
)

// AttributeType identifies how an attribute's value is stored and presented.
type AttributeType string

const (
	AttributeTypeExtensibleEnum      AttributeType = "extensibleEnum"
	AttributeTypeExtensibleMultiEnum AttributeType = "extensibleMultiEnum"
	AttributeTypeArray               AttributeType = "array"
	AttributeTypeText                AttributeType = "text"
	AttributeTypeWysiwyg             AttributeType = "wysiwyg"
	AttributeTypeBool                AttributeType = "bool"
	AttributeTypeInt                 AttributeType = "int"
	AttributeTypeRangeInt            AttributeType = "rangeInt"
	AttributeTypeCurrency            AttributeType = "currency"
	AttributeTypeFloat               AttributeType = "float"
	AttributeTypeRangeFloat          AttributeType = "rangeFloat"
	AttributeTypeDate                AttributeType = "date"
	AttributeTypeDatetime            AttributeType = "datetime"
	AttributeTypeAsset               AttributeType = "asset"
	AttributeTypeLink                AttributeType = "link"
	AttributeTypeVarchar             AttributeType = "varchar"
)

// StoredColumn names one of the ten typed storage columns.
type StoredColumn string

const (
	ColumnBool      StoredColumn = "boolValue"
	ColumnInt       StoredColumn = "intValue"
	ColumnInt1      StoredColumn = "intValue1"
	ColumnFloat     StoredColumn = "floatValue"
	ColumnFloat1    StoredColumn = "floatValue1"
	ColumnVarchar   StoredColumn = "varcharValue"
	ColumnText      StoredColumn = "textValue"
	ColumnDate      StoredColumn = "dateValue"
	ColumnDatetime  StoredColumn = "datetimeValue"
	ColumnReference StoredColumn = "referenceValue"
)

var storedColumns = []StoredColumn{
	ColumnBool, ColumnInt, ColumnInt1, ColumnFloat, ColumnFloat1,
	ColumnVarchar, ColumnText, ColumnDate, ColumnDatetime, ColumnReference,
}

// StoredColumns returns all ten columns in storage order.
func StoredColumns() []StoredColumn {
	out := make([]StoredColumn, len(storedColumns))
	copy(out, storedColumns)
	return out
}

// DBName returns the snake_case database column name.
func (c StoredColumn) DBName() string {
	return ToSnakeCase(string(c))
}

var attributeTypeColumns = map[AttributeType][]StoredColumn{
	AttributeTypeExtensibleEnum:      {ColumnReference},
	AttributeTypeExtensibleMultiEnum: {ColumnText},
	AttributeTypeArray:               {ColumnText},
	AttributeTypeText:                {ColumnText},
	AttributeTypeWysiwyg:             {ColumnText},
	AttributeTypeBool:                {ColumnBool},
	AttributeTypeInt:                 {ColumnInt, ColumnReference},
	AttributeTypeRangeInt:            {ColumnInt, ColumnInt1, ColumnReference},
	AttributeTypeCurrency:            {ColumnFloat, ColumnVarchar},
	AttributeTypeFloat:               {ColumnFloat, ColumnReference},
	AttributeTypeRangeFloat:          {ColumnFloat, ColumnFloat1, ColumnReference},
	AttributeTypeDate:                {ColumnDate},
	AttributeTypeDatetime:            {ColumnDatetime},
	AttributeTypeAsset:               {ColumnReference},
	AttributeTypeLink:                {ColumnReference},
	AttributeTypeVarchar:             {ColumnVarchar, ColumnReference},
}

var fallbackColumns = []StoredColumn{ColumnVarchar}

// AttributeTypes returns every known attribute type.
func AttributeTypes() []AttributeType {
	return []AttributeType{
		AttributeTypeExtensibleEnum,
		AttributeTypeExtensibleMultiEnum,
		AttributeTypeArray,
		AttributeTypeText,
		AttributeTypeWysiwyg,
		AttributeTypeBool,
		AttributeTypeInt,
		AttributeTypeRangeInt,
		AttributeTypeCurrency,
		AttributeTypeFloat,
		AttributeTypeRangeFloat,
		AttributeTypeDate,
		AttributeTypeDatetime,
		AttributeTypeAsset,
		AttributeTypeLink,
		AttributeTypeVarchar,
	}
}

// Known reports whether t is one of the registered types.
func (t AttributeType) Known() bool {
	_, ok := attributeTypeColumns[t]
	return ok
}

// Columns returns the storage columns claimed by t. Unknown types claim the
// varchar column.
func (t AttributeType) Columns() []StoredColumn {
	cols, ok := attributeTypeColumns[t]
	if !ok {
		cols = fallbackColumns
	}
	out := make([]StoredColumn, len(cols))
	copy(out, cols)
	return out
}

// IsRange reports types carried as valueFrom/valueTo.
func (t AttributeType) IsRange() bool {
	return t == AttributeTypeRangeInt || t == AttributeTypeRangeFloat
}

// HasUnit reports types whose valueUnitId lives in referenceValue.
func (t AttributeType) HasUnit() bool {
	switch t {
	case AttributeTypeInt, AttributeTypeRangeInt, AttributeTypeFloat, AttributeTypeRangeFloat, AttributeTypeVarchar:
		return true
	}
	return false
}

// Attribute describes the attribute a value belongs to.
type Attribute struct {
	ID               string         `json:"id"`
	Name             string         `json:"name,omitempty"`
	Type             AttributeType  `json:"type"`
	ExtensibleEnumID string         `json:"extensibleEnumId,omitempty"`
	MeasureID        string         `json:"measureId,omitempty"`
	EntityType       string         `json:"entityType,omitempty"`
	EntityField      string         `json:"entityField,omitempty"`
	DefaultValue     string         `json:"defaultValue,omitempty"`
	DefaultDate      string         `json:"defaultDate,omitempty"`
	IsMultilang      bool           `json:"isMultilang,omitempty"`
	Data             map[string]any `json:"data,omitempty"`
}

// ConversionMode selects how much ConvertFrom does beyond mapping columns.
type ConversionMode uint8

const (
	// ModeDefault resolves display data (option names, link names, paths).
	ModeDefault ConversionMode = iota
	// ModeExport skips display enrichment.
	ModeExport
)

func (m ConversionMode) String() string {
	if m == ModeExport {
		return "export"
	}
	return "default"
}

// Enrich reports whether display data should be resolved.
func (m ConversionMode) Enrich() bool {
	return m != ModeExport
}

// ModeFor derives the mode from an export job registry. A nil flag means
// ModeDefault.
func ModeFor(flag ExportFlag) ConversionMode {
	if flag != nil && flag.IsExportActive() {
		return ModeExport
	}
	return ModeDefault
}

// ConvertFromOptions controls ConvertFrom. The zero value enriches and clears
// the stored columns afterwards.
type ConvertFromOptions struct {
	Mode ConversionMode
	// Preserve keeps the ten stored columns on the record.
	Preserve bool
}

// ToSnakeCase converts camelCase or PascalCase names to snake_case.
func ToSnakeCase(s string) string {
	var b strings.Builder
	runes := []rune(s)
	for i, r := range runes {
		if unicode.IsUpper(r) {
			if i > 0 && (unicode.IsLower(runes[i-1]) || unicode.IsDigit(runes[i-1]) ||
				(i+1 < len(runes) && unicode.IsLower(runes[i+1]) && unicode.IsUpper(runes[i-1]))) {
				b.WriteByte('_')
			}
			b.WriteRune(unicode.ToLower(r))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
