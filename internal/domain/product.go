package domain

import (
	"errors"
	"sort"
	"strings"
)

// ProductCategory classifies a product in the catalog
type ProductCategory string

const (
	CategoryFruits     ProductCategory = "fruits"
	CategoryVegetables ProductCategory = "vegetables"
	CategoryGrains     ProductCategory = "grains"
	CategoryDairy      ProductCategory = "dairy"
	CategoryMeat       ProductCategory = "meat"
	CategoryHerbs      ProductCategory = "herbs"
)

// Categories lists every valid product category
func Categories() []ProductCategory {
	return []ProductCategory{
		CategoryFruits,
		CategoryVegetables,
		CategoryGrains,
		CategoryDairy,
		CategoryMeat,
		CategoryHerbs,
	}
}

// Valid reports whether the category is one of the known values
func (c ProductCategory) Valid() bool {
	switch c {
	case CategoryFruits, CategoryVegetables, CategoryGrains, CategoryDairy, CategoryMeat, CategoryHerbs:
		return true
	}
	return false
}

// UnitType is the unit a product is sold in
type UnitType string

const (
	UnitKilogram UnitType = "kg"
	UnitGram     UnitType = "gram"
	UnitPiece    UnitType = "piece"
	UnitBunch    UnitType = "bunch"
	UnitLiter    UnitType = "liter"
)

// Valid reports whether the unit is one of the known values
func (u UnitType) Valid() bool {
	switch u {
	case UnitKilogram, UnitGram, UnitPiece, UnitBunch, UnitLiter:
		return true
	}
	return false
}

var (
	ErrInvalidCategory = errors.New("invalid product category")
	ErrInvalidUnit     = errors.New("invalid unit type")
	ErrNegativePrice   = errors.New("price must be non-negative")
	ErrNegativeQty     = errors.New("quantity must be non-negative")
	ErrEmptyName       = errors.New("product name is required")
	ErrEmptySellerID   = errors.New("seller id is required")
)

// ProductDraft is a product that has not been persisted yet. It carries no
// identifier; the catalog assigns one on creation and returns a Product.
type ProductDraft struct {
	Name         string          `json:"name"`
	Description  string          `json:"description"`
	Image        string          `json:"image,omitempty"`
	SellerID     string          `json:"sellerId"`
	ProductType  ProductCategory `json:"productType"`
	Price        float64         `json:"price"`
	Quantity     int             `json:"quantity"`
	Unit         UnitType        `json:"unit"`
	IsOrganic    bool            `json:"isOrganic"`
	IsOutOfStock bool            `json:"isOutOfStock"`
	IsFeatured   bool            `json:"isFeatured"`
}

// Validate checks the invariants every catalog entry must satisfy
func (d ProductDraft) Validate() error {
	if strings.TrimSpace(d.Name) == "" {
		return ErrEmptyName
	}
	if d.SellerID == "" {
		return ErrEmptySellerID
	}
	if !d.ProductType.Valid() {
		return ErrInvalidCategory
	}
	if !d.Unit.Valid() {
		return ErrInvalidUnit
	}
	if d.Price < 0 {
		return ErrNegativePrice
	}
	if d.Quantity < 0 {
		return ErrNegativeQty
	}
	return nil
}

// Saved attaches the store-assigned identifier, producing a persisted Product
func (d ProductDraft) Saved(id string) Product {
	return Product{ID: id, ProductDraft: d}
}

// Product is a persisted catalog entry. ID is always set.
type Product struct {
	ID string `json:"id"`
	ProductDraft
}

// SortOrder selects a catalog list ordering
type SortOrder string

const (
	SortPriceAscending  SortOrder = "priceAscending"
	SortPriceDescending SortOrder = "priceDescending"
	SortDateAscending   SortOrder = "dateAscending"
	SortDateDescending  SortOrder = "dateDescending"
)

// SortProducts returns a sorted copy of the list. Date orderings compare ids
// lexicographically, which is only a rough proxy for creation time.
func SortProducts(products []Product, order SortOrder) []Product {
	sorted := make([]Product, len(products))
	copy(sorted, products)

	switch order {
	case SortPriceAscending:
		sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Price < sorted[j].Price })
	case SortPriceDescending:
		sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Price > sorted[j].Price })
	case SortDateAscending:
		sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].ID < sorted[j].ID })
	case SortDateDescending:
		sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].ID > sorted[j].ID })
	}

	return sorted
}

// FilterByCategory returns the products matching the given category
func FilterByCategory(products []Product, category ProductCategory) []Product {
	filtered := []Product{}
	for _, p := range products {
		if p.ProductType == category {
			filtered = append(filtered, p)
		}
	}
	return filtered
}
