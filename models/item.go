package models

import "github.com/shopspring/decimal"

// Item is a purchasable offering (a ticket tier). Items referenced by
// issued tickets cannot be deleted.
type Item struct {
	ID     string          `json:"id" db:"id"`
	Name   string          `json:"name" db:"name"`
	Price  decimal.Decimal `json:"price_eur"`
	Active bool            `json:"is_active" db:"is_active"`
}
