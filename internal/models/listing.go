package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// Sale modes.
const (
	SaleModeCash     = "cash"
	SaleModeAuction  = "auction"
	SaleModeExchange = "exchange"
)

// Listing lifecycle statuses touched by the worker.
const (
	ListingStatusActive  = "active"
	ListingStatusSold    = "sold"
	ListingStatusExpired = "expired"
)

// Auction sub-states. Both ended states are terminal.
const (
	AuctionStatusActive      = "active"
	AuctionStatusEndedWinner = "ended_winner"
	AuctionStatusEndedNoBids = "ended_no_bids"
)

// Listing is a marketplace item post. The worker only mutates the status and auction
// fields plus UpdatedAt; content fields belong to the listing flows.
type Listing struct {
	BaseModel

	OwnerID       string              `gorm:"type:varchar(64);not null;index" json:"owner_id"`
	Title         string              `gorm:"type:varchar(255);not null" json:"title"`
	SaleMode      string              `gorm:"type:varchar(16);not null;index" json:"sale_mode"`
	Status        string              `gorm:"type:varchar(16);not null;default:'active';index" json:"status"`
	AuctionStatus string              `gorm:"type:varchar(16);index" json:"auction_status,omitempty"`
	WinnerID      *string             `gorm:"type:varchar(64)" json:"winner_id,omitempty"`
	AuctionEndsAt *time.Time          `gorm:"index" json:"auction_ends_at,omitempty"`
	ExpiresAt     *time.Time          `gorm:"index" json:"expires_at,omitempty"`
	CategoryID    string              `gorm:"type:varchar(64);index" json:"category_id"`
	SubcategoryID string              `gorm:"type:varchar(64)" json:"subcategory_id,omitempty"`
	Attributes    datatypes.JSONMap   `json:"attributes,omitempty"`
	Governorate   string              `gorm:"type:varchar(64)" json:"governorate,omitempty"`
	Price         decimal.NullDecimal `gorm:"type:decimal(14,2)" json:"price"`

	FavoritesCount int `gorm:"default:0" json:"favorites_count"`
	ViewsCount     int `gorm:"default:0" json:"views_count"`
}

// IsAuction reports whether the listing is sold by auction.
func (l *Listing) IsAuction() bool {
	return l != nil && l.SaleMode == SaleModeAuction
}

// Attribute returns the string form of a category attribute, or "".
func (l *Listing) Attribute(key string) string {
	if l == nil {
		return ""
	}
	return stringValue(l.Attributes[key])
}
