package internal

import (
	"context"
	"fmt"

	"github.com/lychee-technology/pim"
)

const (
	resolverUnit           = "unit"
	resolverExtensibleEnum = "extensible_enum"
	resolverEntity         = "entity"
	resolverAttachment     = "attachment"

	attachmentEntityType = "Attachment"
)

// ValueConverter converts attribute values between the API payload shape and
// the typed storage columns. It holds no mutable state.
type ValueConverter struct {
	units       pim.MeasureUnitResolver
	enums       pim.ExtensibleEnumResolver
	entities    pim.EntityResolver
	attachments pim.AttachmentResolver
	templates   pim.TemplateRenderer
	dates       pim.DateModifier

	entityField    string
	dateLayout     string
	datetimeLayout string
}

var _ pim.ValueConverter = (*ValueConverter)(nil)

// NewValueConverter builds a converter. Missing template and date
// collaborators fall back to the text/template renderer and the relative
// date modifier.
func NewValueConverter(collab pim.Collaborators, cfg pim.ConversionConfig) *ValueConverter {
	c := &ValueConverter{
		units:          collab.Units,
		enums:          collab.Enums,
		entities:       collab.Entities,
		attachments:    collab.Attachments,
		templates:      collab.Templates,
		dates:          collab.Dates,
		entityField:    cfg.DefaultEntityField,
		dateLayout:     cfg.DateLayout,
		datetimeLayout: cfg.DatetimeLayout,
	}
	if c.templates == nil {
		c.templates = NewTextTemplateRenderer()
	}
	if c.dates == nil {
		c.dates = NewRelativeDateModifier()
	}
	if c.entityField == "" {
		c.entityField = "name"
	}
	if c.dateLayout == "" {
		c.dateLayout = "2006-01-02"
	}
	if c.datetimeLayout == "" {
		c.datetimeLayout = "2006-01-02 15:04:05"
	}
	return c
}

type inboundRule func(c *ValueConverter, ctx context.Context, p *pim.ValuePayload, attr *pim.Attribute) error

type outboundRule func(c *ValueConverter, ctx context.Context, r *pim.ValuePayload, attr *pim.Attribute, mode pim.ConversionMode) error

var inboundRules = map[pim.AttributeType]inboundRule{
	pim.AttributeTypeExtensibleEnum:      (*ValueConverter).toExtensibleEnum,
	pim.AttributeTypeExtensibleMultiEnum: (*ValueConverter).toExtensibleMultiEnum,
	pim.AttributeTypeArray:               (*ValueConverter).toText,
	pim.AttributeTypeText:                (*ValueConverter).toText,
	pim.AttributeTypeWysiwyg:             (*ValueConverter).toText,
	pim.AttributeTypeBool:                (*ValueConverter).toBool,
	pim.AttributeTypeInt:                 (*ValueConverter).toInt,
	pim.AttributeTypeRangeInt:            (*ValueConverter).toRangeInt,
	pim.AttributeTypeCurrency:            (*ValueConverter).toCurrency,
	pim.AttributeTypeFloat:               (*ValueConverter).toFloat,
	pim.AttributeTypeRangeFloat:          (*ValueConverter).toRangeFloat,
	pim.AttributeTypeDate:                (*ValueConverter).toDate,
	pim.AttributeTypeDatetime:            (*ValueConverter).toDatetime,
	pim.AttributeTypeAsset:               (*ValueConverter).toReference,
	pim.AttributeTypeLink:                (*ValueConverter).toReference,
	pim.AttributeTypeVarchar:             (*ValueConverter).toVarchar,
}

var outboundRules = map[pim.AttributeType]outboundRule{
	pim.AttributeTypeExtensibleEnum:      (*ValueConverter).fromExtensibleEnum,
	pim.AttributeTypeExtensibleMultiEnum: (*ValueConverter).fromExtensibleMultiEnum,
	pim.AttributeTypeArray:               (*ValueConverter).fromArray,
	pim.AttributeTypeText:                (*ValueConverter).fromText,
	pim.AttributeTypeWysiwyg:             (*ValueConverter).fromText,
	pim.AttributeTypeBool:                (*ValueConverter).fromBool,
	pim.AttributeTypeInt:                 (*ValueConverter).fromInt,
	pim.AttributeTypeRangeInt:            (*ValueConverter).fromRangeInt,
	pim.AttributeTypeCurrency:            (*ValueConverter).fromCurrency,
	pim.AttributeTypeFloat:               (*ValueConverter).fromFloat,
	pim.AttributeTypeRangeFloat:          (*ValueConverter).fromRangeFloat,
	pim.AttributeTypeDate:                (*ValueConverter).fromDate,
	pim.AttributeTypeDatetime:            (*ValueConverter).fromDatetime,
	pim.AttributeTypeAsset:               (*ValueConverter).fromAsset,
	pim.AttributeTypeLink:                (*ValueConverter).fromLink,
	pim.AttributeTypeVarchar:             (*ValueConverter).fromVarchar,
}

func inboundRuleFor(t pim.AttributeType) inboundRule {
	if rule, ok := inboundRules[t]; ok {
		return rule
	}
	return (*ValueConverter).toFallback
}

func outboundRuleFor(t pim.AttributeType) outboundRule {
	if rule, ok := outboundRules[t]; ok {
		return rule
	}
	return (*ValueConverter).fromFallback
}

func validateAttribute(attr *pim.Attribute) error {
	if attr == nil {
		return pim.NewInvalidAttributeError("", "attribute is required")
	}
	if attr.Type == "" {
		return pim.NewInvalidAttributeError(attr.ID, "attribute type is required")
	}
	return nil
}

// ConvertTo rewrites the API fields of payload into stored columns.
func (c *ValueConverter) ConvertTo(ctx context.Context, payload *pim.ValuePayload, attr *pim.Attribute) (pim.VirtualValue, error) {
	if err := validateAttribute(attr); err != nil {
		return pim.VirtualValue{}, err
	}
	if payload == nil {
		return pim.VirtualValue{}, pim.NewValidationError("payload", "payload is required")
	}

	if err := c.normalizeLegacyUnit(ctx, payload, attr); err != nil {
		return pim.VirtualValue{}, err
	}

	virtual := pim.CaptureVirtualValue(payload)

	if err := inboundRuleFor(attr.Type)(c, ctx, payload, attr); err != nil {
		return virtual, err
	}

	payload.StripDisplayFields()
	EmitConversion(ctx, "to", string(attr.Type))
	return virtual, nil
}

// ConvertFrom rewrites stored columns of record into API fields.
func (c *ValueConverter) ConvertFrom(ctx context.Context, record *pim.ValuePayload, attr *pim.Attribute, opts pim.ConvertFromOptions) error {
	if err := validateAttribute(attr); err != nil {
		return err
	}
	if record == nil {
		return pim.NewValidationError("record", "record is required")
	}

	record.AttributeType = attr.Type

	if err := outboundRuleFor(attr.Type)(c, ctx, record, attr, opts.Mode); err != nil {
		return err
	}

	if !opts.Preserve {
		record.StoredValue.Clear()
	}
	EmitConversion(ctx, "from", string(attr.Type))
	return nil
}

// normalizeLegacyUnit turns a unit name into a unit id. valueUnit never
// survives this step.
func (c *ValueConverter) normalizeLegacyUnit(ctx context.Context, p *pim.ValuePayload, attr *pim.Attribute) error {
	if !p.ValueUnit.IsPresent() {
		return nil
	}
	defer p.ValueUnit.Unset()

	name, ok := p.ValueUnit.Get()
	if !ok || p.ValueUnitID.IsPresent() || c.units == nil || attr.MeasureID == "" {
		return nil
	}

	units, err := c.units.ListUnits(ctx, attr.MeasureID)
	miss := pim.IsResolutionMiss(err)
	if err != nil && !miss {
		EmitResolution(ctx, resolverUnit, OutcomeError)
		return pim.NewResolverError(resolverUnit, err).WithAttribute(attr.ID)
	}
	for _, unit := range units {
		if unit.Name == name {
			p.ValueUnitID.Set(unit.ID)
			EmitResolution(ctx, resolverUnit, OutcomeHit)
			return nil
		}
	}
	EmitResolution(ctx, resolverUnit, OutcomeMiss)
	return nil
}

// findOption resolves an option by id or code. Empty keys never match.
func (c *ValueConverter) findOption(ctx context.Context, attr *pim.Attribute, key string) (pim.Option, bool, error) {
	if key == "" || c.enums == nil {
		return pim.Option{}, false, nil
	}
	opt, err := c.enums.FindOptionByIDOrCode(ctx, attr.ExtensibleEnumID, key)
	return resolvedAs(ctx, resolverExtensibleEnum, attr, opt, err)
}

func (c *ValueConverter) preparedOption(ctx context.Context, attr *pim.Attribute, id string) (pim.Option, bool, error) {
	if id == "" || c.enums == nil {
		return pim.Option{}, false, nil
	}
	opt, err := c.enums.GetPreparedOption(ctx, attr.ExtensibleEnumID, id)
	return resolvedAs(ctx, resolverExtensibleEnum, attr, opt, err)
}

func (c *ValueConverter) entity(ctx context.Context, attr *pim.Attribute, entityType, id string) (*pim.Entity, bool, error) {
	if id == "" || entityType == "" || c.entities == nil {
		return nil, false, nil
	}
	e, err := c.entities.GetEntity(ctx, entityType, id)
	if err == nil && e == nil {
		err = fmt.Errorf("%s %q: %w", entityType, id, pim.ErrResolutionMiss)
	}
	return resolvedAs(ctx, resolverEntity, attr, e, err)
}

// resolvedAs maps a lookup result to found / not found / failure.
func resolvedAs[T any](ctx context.Context, resolver string, attr *pim.Attribute, v T, err error) (T, bool, error) {
	var zero T
	if err == nil {
		EmitResolution(ctx, resolver, OutcomeHit)
		return v, true, nil
	}
	if pim.IsResolutionMiss(err) {
		EmitResolution(ctx, resolver, OutcomeMiss)
		return zero, false, nil
	}
	EmitResolution(ctx, resolver, OutcomeError)
	return zero, false, pim.NewResolverError(resolver, err).WithAttribute(attr.ID)
}
