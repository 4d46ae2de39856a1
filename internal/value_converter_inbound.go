package internal

import (
	"context"
	"encoding/json"

	"github.com/lychee-technology/pim"
)

func (c *ValueConverter) toExtensibleEnum(ctx context.Context, p *pim.ValuePayload, attr *pim.Attribute) error {
	if !p.Value.IsPresent() {
		return nil
	}
	p.ReferenceValue.SetNull()

	raw, _ := p.Value.Get()
	if !isEmptyValue(raw) {
		opt, found, err := c.findOption(ctx, attr, scalarString(raw))
		if err != nil {
			return err
		}
		if found {
			p.ReferenceValue.Set(opt.ID)
		}
	}
	p.Value.Unset()
	return nil
}

func (c *ValueConverter) toExtensibleMultiEnum(ctx context.Context, p *pim.ValuePayload, attr *pim.Attribute) error {
	if !p.Value.IsPresent() {
		return nil
	}

	raw, _ := p.Value.Get()
	values := make([]any, 0)
	for _, item := range decodeList(raw) {
		opt, found, err := c.findOption(ctx, attr, scalarString(item))
		if err != nil {
			return err
		}
		if found {
			values = append(values, opt.ID)
			continue
		}
		values = append(values, item)
	}

	encoded, err := json.Marshal(values)
	if err != nil {
		return pim.NewInternalError("encode extensible multi enum value", err).WithAttribute(attr.ID)
	}
	p.TextValue.Set(string(encoded))
	p.Value.Unset()
	return nil
}

func (c *ValueConverter) toText(_ context.Context, p *pim.ValuePayload, _ *pim.Attribute) error {
	if !p.Value.IsPresent() {
		return nil
	}
	raw, _ := p.Value.Get()
	if text, ok := textForColumn(raw); ok {
		p.TextValue.Set(text)
	} else {
		p.TextValue.SetNull()
	}
	p.Value.Unset()
	return nil
}

func (c *ValueConverter) toBool(_ context.Context, p *pim.ValuePayload, _ *pim.Attribute) error {
	if !p.Value.IsPresent() {
		return nil
	}
	raw, _ := p.Value.Get()
	p.BoolValue.Set(isTruthy(raw))
	p.Value.Unset()
	return nil
}

func (c *ValueConverter) toInt(_ context.Context, p *pim.ValuePayload, _ *pim.Attribute) error {
	if p.Value.IsPresent() {
		raw, _ := p.Value.Get()
		setInt(&p.IntValue, raw)
		p.Value.Unset()
	}
	moveUnit(p)
	return nil
}

func (c *ValueConverter) toRangeInt(_ context.Context, p *pim.ValuePayload, _ *pim.Attribute) error {
	if p.ValueFrom.IsPresent() {
		raw, _ := p.ValueFrom.Get()
		setInt(&p.IntValue, raw)
		p.ValueFrom.Unset()
	}
	if p.ValueTo.IsPresent() {
		raw, _ := p.ValueTo.Get()
		setInt(&p.IntValue1, raw)
		p.ValueTo.Unset()
	}
	moveUnit(p)
	return nil
}

func (c *ValueConverter) toFloat(_ context.Context, p *pim.ValuePayload, _ *pim.Attribute) error {
	if p.Value.IsPresent() {
		raw, _ := p.Value.Get()
		setFloat(&p.FloatValue, raw)
		p.Value.Unset()
	}
	moveUnit(p)
	return nil
}

func (c *ValueConverter) toRangeFloat(_ context.Context, p *pim.ValuePayload, _ *pim.Attribute) error {
	if p.ValueFrom.IsPresent() {
		raw, _ := p.ValueFrom.Get()
		setFloat(&p.FloatValue, raw)
		p.ValueFrom.Unset()
	}
	if p.ValueTo.IsPresent() {
		raw, _ := p.ValueTo.Get()
		setFloat(&p.FloatValue1, raw)
		p.ValueTo.Unset()
	}
	moveUnit(p)
	return nil
}

// toCurrency stores the amount and the currency code. An explicit
// valueCurrency overrides data.currency.
func (c *ValueConverter) toCurrency(_ context.Context, p *pim.ValuePayload, _ *pim.Attribute) error {
	if p.Value.IsPresent() {
		raw, _ := p.Value.Get()
		setFloat(&p.FloatValue, raw)
		p.Value.Unset()
	}
	if data, ok := p.Data.Get(); ok && data.Currency.IsPresent() {
		copyString(&p.VarcharValue, data.Currency)
	}
	if p.ValueCurrency.IsPresent() {
		copyString(&p.VarcharValue, p.ValueCurrency)
		p.ValueCurrency.Unset()
	}
	return nil
}

func (c *ValueConverter) toDate(_ context.Context, p *pim.ValuePayload, _ *pim.Attribute) error {
	if !p.Value.IsPresent() {
		return nil
	}
	raw, _ := p.Value.Get()
	setString(&p.DateValue, raw)
	p.Value.Unset()
	return nil
}

func (c *ValueConverter) toDatetime(_ context.Context, p *pim.ValuePayload, _ *pim.Attribute) error {
	if !p.Value.IsPresent() {
		return nil
	}
	raw, _ := p.Value.Get()
	setString(&p.DatetimeValue, raw)
	p.Value.Unset()
	return nil
}

// toReference stores the id of a linked entity or asset. valueId wins over
// value; both are removed.
func (c *ValueConverter) toReference(_ context.Context, p *pim.ValuePayload, _ *pim.Attribute) error {
	switch {
	case p.ValueID.IsPresent():
		copyString(&p.ReferenceValue, p.ValueID)
	case p.Value.IsPresent():
		raw, _ := p.Value.Get()
		setString(&p.ReferenceValue, raw)
	default:
		return nil
	}
	p.ValueID.Unset()
	p.Value.Unset()
	return nil
}

func (c *ValueConverter) toVarchar(_ context.Context, p *pim.ValuePayload, attr *pim.Attribute) error {
	switch {
	case p.Value.IsPresent():
		raw, _ := p.Value.Get()
		setString(&p.VarcharValue, raw)
		p.Value.Unset()
	case p.VarcharValue.OrZero() == "" && attr.DefaultValue != "":
		p.VarcharValue.Set(c.renderDefault(attr))
	}
	moveUnit(p)
	return nil
}

func (c *ValueConverter) toFallback(_ context.Context, p *pim.ValuePayload, _ *pim.Attribute) error {
	if !p.Value.IsPresent() {
		return nil
	}
	raw, _ := p.Value.Get()
	setString(&p.VarcharValue, raw)
	p.Value.Unset()
	return nil
}

// renderDefault renders a templated default. Render failures keep the raw
// default.
func (c *ValueConverter) renderDefault(attr *pim.Attribute) string {
	if !pim.HasTemplateMarkers(attr.DefaultValue) {
		return attr.DefaultValue
	}
	out, err := c.templates.Render(attr.DefaultValue, map[string]any{"attribute": attr})
	if err != nil {
		return attr.DefaultValue
	}
	return out
}

// moveUnit carries valueUnitId into referenceValue.
func moveUnit(p *pim.ValuePayload) {
	if !p.ValueUnitID.IsPresent() {
		return
	}
	copyString(&p.ReferenceValue, p.ValueUnitID)
	p.ValueUnitID.Unset()
}
