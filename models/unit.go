package models

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/openretail/backoffice_backend/config"
	"github.com/openretail/backoffice_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type UnitType string

const (
	UnitTypeCount  UnitType = "count"
	UnitTypeWeight UnitType = "weight"
	UnitTypeVolume UnitType = "volume"
	UnitTypeLength UnitType = "length"
	UnitTypeArea   UnitType = "area"
	UnitTypeCustom UnitType = "custom"
)

// Unit is a unit of measure owned by a company. Its decimal rules drive how
// quantities are displayed and rounded.
type Unit struct {
	ID            int       `gorm:"primary_key" json:"id"`
	CompanyId     string    `gorm:"index;size:36;not null" json:"company_id"`
	Name          string    `gorm:"size:100;not null" json:"name" validate:"required"`
	Symbol        string    `gorm:"size:20;not null" json:"symbol" validate:"required"`
	Type          UnitType  `gorm:"type:enum('count','weight','volume','length','area','custom');default:custom" json:"type"`
	AllowDecimals *bool     `gorm:"not null;default:false" json:"allow_decimals"`
	DecimalPlaces int32     `gorm:"default:0" json:"decimal_places"`
	Active        *bool     `gorm:"not null;default:true" json:"active"`
	CreatedAt     time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewUnit struct {
	Name          string   `json:"name" validate:"required"`
	Symbol        string   `json:"symbol" validate:"required"`
	Type          UnitType `json:"type"`
	AllowDecimals *bool    `json:"allow_decimals"`
	DecimalPlaces int32    `json:"decimal_places" validate:"gte=0,lte=6"`
}

// FormatQuantity applies the unit's decimal rules to a raw quantity:
// truncate to a whole number when decimals are not allowed, otherwise round
// to the unit's precision.
func (u Unit) FormatQuantity(quantity decimal.Decimal) decimal.Decimal {
	if u.AllowDecimals == nil || !*u.AllowDecimals {
		return quantity.Truncate(0)
	}
	return quantity.Round(u.DecimalPlaces)
}

// DisplayQuantity renders "qty symbol" for humans.
func (u Unit) DisplayQuantity(quantity decimal.Decimal) string {
	return fmt.Sprintf("%s %s", u.FormatQuantity(quantity).String(), u.Symbol)
}

func (u Unit) DisplayName() string {
	return fmt.Sprintf("%s (%s)", u.Name, u.Symbol)
}

func CreateUnit(ctx context.Context, input *NewUnit) (*Unit, error) {
	companyId, ok := utils.GetCompanyIdFromContext(ctx)
	if !ok || companyId == "" {
		return nil, errors.New("company id is required")
	}
	if err := utils.ValidateStruct(input); err != nil {
		return nil, err
	}
	if err := utils.ValidateUnique[Unit](ctx, companyId, "name", input.Name, 0); err != nil {
		return nil, err
	}

	unitType := input.Type
	if unitType == "" {
		unitType = UnitTypeCustom
	}
	allowDecimals := input.AllowDecimals
	if allowDecimals == nil {
		allowDecimals = utils.NewFalse()
	}

	unit := Unit{
		CompanyId:     companyId,
		Name:          input.Name,
		Symbol:        input.Symbol,
		Type:          unitType,
		AllowDecimals: allowDecimals,
		DecimalPlaces: input.DecimalPlaces,
		Active:        utils.NewTrue(),
	}

	db := config.GetDB()
	if err := db.WithContext(ctx).Create(&unit).Error; err != nil {
		return nil, utils.WrapPersistence(err)
	}
	return &unit, nil
}

func GetUnit(ctx context.Context, id int) (*Unit, error) {
	companyId, ok := utils.GetCompanyIdFromContext(ctx)
	if !ok || companyId == "" {
		return nil, errors.New("company id is required")
	}
	return utils.FetchModel[Unit](ctx, companyId, id)
}

// SeedDefaultUnits installs the standard unit catalog for a new company.
func SeedDefaultUnits(tx *gorm.DB, companyId string) error {
	type seed struct {
		name          string
		symbol        string
		unitType      UnitType
		allowDecimals bool
		places        int32
	}
	defaults := []seed{
		// Count units (no decimals)
		{"Pieces", "pcs", UnitTypeCount, false, 0},
		{"Dozen", "doz", UnitTypeCount, false, 0},
		{"Box", "box", UnitTypeCount, false, 0},
		{"Pack", "pack", UnitTypeCount, false, 0},
		// Weight units
		{"Kilogram", "kg", UnitTypeWeight, true, 3},
		{"Gram", "g", UnitTypeWeight, true, 2},
		{"Pound", "lb", UnitTypeWeight, true, 3},
		{"Ounce", "oz", UnitTypeWeight, true, 2},
		// Volume units
		{"Liter", "L", UnitTypeVolume, true, 3},
		{"Milliliter", "ml", UnitTypeVolume, true, 2},
		{"Gallon", "gal", UnitTypeVolume, true, 3},
		// Length units
		{"Meter", "m", UnitTypeLength, true, 3},
		{"Centimeter", "cm", UnitTypeLength, true, 2},
		{"Foot", "ft", UnitTypeLength, true, 2},
		{"Inch", "in", UnitTypeLength, true, 2},
		// Area units
		{"Square Meter", "m²", UnitTypeArea, true, 3},
		// Custom units
		{"Roll", "roll", UnitTypeCustom, false, 0},
		{"Sheet", "sheet", UnitTypeCustom, false, 0},
		{"Bottle", "btl", UnitTypeCustom, false, 0},
		{"Can", "can", UnitTypeCustom, false, 0},
		{"Bag", "bag", UnitTypeCustom, false, 0},
	}

	for _, s := range defaults {
		allow := s.allowDecimals
		unit := Unit{
			CompanyId:     companyId,
			Name:          s.name,
			Symbol:        s.symbol,
			Type:          s.unitType,
			AllowDecimals: &allow,
			DecimalPlaces: s.places,
			Active:        utils.NewTrue(),
		}
		if err := tx.Create(&unit).Error; err != nil {
			return utils.WrapPersistence(err)
		}
	}
	return nil
}
