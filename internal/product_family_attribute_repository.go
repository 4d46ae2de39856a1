package internal

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/lychee-technology/pim"
)

const (
	ScopeGlobal  = "Global"
	ScopeChannel = "Channel"
)

// ProductFamilyAttribute binds an attribute to a product family.
type ProductFamilyAttribute struct {
	ID              string
	ProductFamilyID string
	AttributeID     string
	Scope           string
	ChannelID       *string
	Language        string
	IsRequired      bool
}

// AttributeLookup is satisfied by PostgresAttributeRepository.
type AttributeLookup interface {
	GetAttribute(ctx context.Context, id string) (*pim.Attribute, error)
}

type ProductFamilyAttributeRepository struct {
	db         Querier
	tables     pim.TableNames
	attributes AttributeLookup
}

func NewProductFamilyAttributeRepository(db Querier, tables pim.TableNames, attributes AttributeLookup) *ProductFamilyAttributeRepository {
	return &ProductFamilyAttributeRepository{db: db, tables: tables, attributes: attributes}
}

func (r *ProductFamilyAttributeRepository) Get(ctx context.Context, id string) (*ProductFamilyAttribute, error) {
	query := fmt.Sprintf(
		"SELECT id, COALESCE(product_family_id, ''), attribute_id, scope, channel_id, COALESCE(language, ''), is_required "+
			"FROM %s WHERE id = $1 AND deleted = false",
		sanitizeIdentifier(r.tables.ProductFamilyAttribute),
	)
	var pfa ProductFamilyAttribute
	err := r.db.QueryRow(ctx, query, id).Scan(
		&pfa.ID, &pfa.ProductFamilyID, &pfa.AttributeID, &pfa.Scope, &pfa.ChannelID, &pfa.Language, &pfa.IsRequired,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("product family attribute %q: %w", id, pim.ErrResolutionMiss)
	}
	if err != nil {
		return nil, fmt.Errorf("get product family attribute: %w", err)
	}
	return &pfa, nil
}

// GetInheritedPavIDs lists the product attribute values of the family's
// products that were inherited from the product family attribute id.
func (r *ProductFamilyAttributeRepository) GetInheritedPavIDs(ctx context.Context, id string) ([]string, error) {
	pfa, err := r.Get(ctx, id)
	if pim.IsResolutionMiss(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if pfa.ProductFamilyID == "" {
		return nil, nil
	}

	query := fmt.Sprintf(
		"SELECT pav.id FROM %s pav JOIN %s p ON p.id = pav.product_id AND p.deleted = false "+
			"WHERE pav.deleted = false AND p.product_family_id = $1 AND pav.attribute_id = $2 AND pav.scope = $3",
		sanitizeIdentifier(r.tables.ProductAttributeValue), sanitizeIdentifier(r.tables.Product),
	)
	args := []any{pfa.ProductFamilyID, pfa.AttributeID, pfa.Scope}
	if pfa.Scope == ScopeChannel {
		args = append(args, derefString(pfa.ChannelID))
		query += fmt.Sprintf(" AND pav.channel_id = $%d", len(args))
	}

	if r.attributes != nil {
		attr, err := r.attributes.GetAttribute(ctx, pfa.AttributeID)
		switch {
		case err == nil && attr.IsMultilang:
			args = append(args, pfa.Language)
			query += fmt.Sprintf(" AND pav.language = $%d", len(args))
		case err != nil && !pim.IsResolutionMiss(err):
			return nil, err
		}
	}
	query += " ORDER BY pav.id"

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query inherited product attribute values: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var pavID string
		if err := rows.Scan(&pavID); err != nil {
			return nil, fmt.Errorf("scan product attribute value id: %w", err)
		}
		ids = append(ids, pavID)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate product attribute value ids: %w", err)
	}
	return ids, nil
}

// GetAvailableChannelsForPavs maps every product of the family to its
// channels. Products without channels map to an empty slice.
func (r *ProductFamilyAttributeRepository) GetAvailableChannelsForPavs(ctx context.Context, productFamilyID string) (map[string][]string, error) {
	query := fmt.Sprintf(
		"SELECT p.id, pc.channel_id FROM %s p LEFT JOIN %s pc ON p.id = pc.product_id AND pc.deleted = false "+
			"WHERE p.product_family_id = $1 AND p.deleted = false ORDER BY p.id",
		sanitizeIdentifier(r.tables.Product), sanitizeIdentifier(r.tables.ProductChannel),
	)
	rows, err := r.db.Query(ctx, query, productFamilyID)
	if err != nil {
		return nil, fmt.Errorf("query product channels: %w", err)
	}
	defer rows.Close()

	channels := make(map[string][]string)
	for rows.Next() {
		var (
			productID string
			channelID *string
		)
		if err := rows.Scan(&productID, &channelID); err != nil {
			return nil, fmt.Errorf("scan product channel: %w", err)
		}
		if _, ok := channels[productID]; !ok {
			channels[productID] = []string{}
		}
		if channelID != nil {
			channels[productID] = append(channels[productID], *channelID)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate product channels: %w", err)
	}
	return channels, nil
}

// BeforeSave normalizes the channel of globally scoped bindings.
func (r *ProductFamilyAttributeRepository) BeforeSave(pfa *ProductFamilyAttribute) {
	if pfa.Scope == ScopeGlobal || pfa.ChannelID == nil {
		empty := ""
		pfa.ChannelID = &empty
	}
}

// Save upserts pfa after BeforeSave.
func (r *ProductFamilyAttributeRepository) Save(ctx context.Context, pfa *ProductFamilyAttribute) error {
	if pfa.ID == "" || pfa.AttributeID == "" {
		return pim.NewValidationError("id", "product family attribute requires id and attributeId")
	}
	r.BeforeSave(pfa)

	query := fmt.Sprintf(
		"INSERT INTO %s (id, product_family_id, attribute_id, scope, channel_id, language, is_required, deleted) "+
			"VALUES ($1, $2, $3, $4, $5, $6, $7, false) "+
			"ON CONFLICT (id) DO UPDATE SET product_family_id = EXCLUDED.product_family_id, attribute_id = EXCLUDED.attribute_id, "+
			"scope = EXCLUDED.scope, channel_id = EXCLUDED.channel_id, language = EXCLUDED.language, is_required = EXCLUDED.is_required",
		sanitizeIdentifier(r.tables.ProductFamilyAttribute),
	)
	var familyID any
	if pfa.ProductFamilyID != "" {
		familyID = pfa.ProductFamilyID
	}
	zap.S().Debugw("save product family attribute", "id", pfa.ID, "scope", pfa.Scope)
	if _, err := r.db.Exec(ctx, query,
		pfa.ID, familyID, pfa.AttributeID, pfa.Scope, *pfa.ChannelID, pfa.Language, pfa.IsRequired,
	); err != nil {
		return fmt.Errorf("save product family attribute: %w", err)
	}
	return nil
}
