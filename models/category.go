package models

// BudgetCategory is the internal spend bucket a transaction is filed under.
type BudgetCategory string

const (
	CategoryEquipment          BudgetCategory = "EQUIPMENT"
	CategoryPartsAndMaterials  BudgetCategory = "PARTS_AND_MATERIALS"
	CategoryTravel             BudgetCategory = "TRAVEL"
	CategoryTraining           BudgetCategory = "TRAINING"
	CategoryMarketing          BudgetCategory = "MARKETING"
	CategoryDiamondInventory   BudgetCategory = "DIAMOND_INVENTORY"
	CategorySecurity           BudgetCategory = "SECURITY"
	CategoryInsurance          BudgetCategory = "INSURANCE"
	CategoryFabricAndMaterials BudgetCategory = "FABRIC_AND_MATERIALS"
	CategoryManufacturing      BudgetCategory = "MANUFACTURING"
	CategoryRetailSpace        BudgetCategory = "RETAIL_SPACE"
)

// DefaultBudgetCategory is assigned to merchant codes with no explicit mapping.
const DefaultBudgetCategory = CategoryPartsAndMaterials

var allBudgetCategories = []BudgetCategory{
	CategoryEquipment,
	CategoryPartsAndMaterials,
	CategoryTravel,
	CategoryTraining,
	CategoryMarketing,
	CategoryDiamondInventory,
	CategorySecurity,
	CategoryInsurance,
	CategoryFabricAndMaterials,
	CategoryManufacturing,
	CategoryRetailSpace,
}

// AllBudgetCategories returns every budget category in declaration order.
func AllBudgetCategories() []BudgetCategory {
	out := make([]BudgetCategory, len(allBudgetCategories))
	copy(out, allBudgetCategories)
	return out
}

// IsValid reports whether c is one of the declared categories.
func (c BudgetCategory) IsValid() bool {
	for _, known := range allBudgetCategories {
		if c == known {
			return true
		}
	}
	return false
}

func (c BudgetCategory) String() string {
	return string(c)
}
