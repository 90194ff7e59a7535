package models

import "github.com/shopspring/decimal"

// Bid is an immutable offer on an auction listing. Placement rules are enforced
// before the row exists.
type Bid struct {
	BaseModel

	ListingID string          `gorm:"type:varchar(36);not null;index" json:"listing_id"`
	Listing   *Listing        `gorm:"foreignKey:ListingID;constraint:OnDelete:CASCADE" json:"-"`
	BidderID  string          `gorm:"type:varchar(64);not null;index" json:"bidder_id"`
	Amount    decimal.Decimal `gorm:"type:decimal(14,2);not null" json:"amount"`
}
