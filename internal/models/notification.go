package models

import (
	"time"

	"gorm.io/datatypes"
)

// Notification types emitted by the worker.
const (
	NotificationAuctionWon        = "auction_won"
	NotificationAuctionEnded      = "auction_ended"
	NotificationAuctionEnding     = "auction_ending"
	NotificationSellerInterest    = "seller_interest"
	NotificationNewMatch          = "new_match"
	NotificationFavoritePriceDrop = "favorite_price_drop"
	NotificationSystem            = "system"
)

// Notification is an in-app notification for a user. Append-only from the worker.
type Notification struct {
	BaseModel

	UserID    string         `gorm:"type:varchar(64);not null;index:idx_notifications_user_type" json:"user_id"`
	Type      string         `gorm:"type:varchar(64);not null;index:idx_notifications_user_type;index:idx_notifications_type_listing" json:"type"`
	Title     string         `gorm:"type:varchar(255);not null" json:"title"`
	Body      string         `gorm:"type:text" json:"body"`
	ListingID *string        `gorm:"type:varchar(36);index:idx_notifications_type_listing" json:"listing_id,omitempty"`
	Payload   datatypes.JSON `json:"payload,omitempty"`

	IsRead bool       `gorm:"default:false;index" json:"is_read"`
	ReadAt *time.Time `json:"read_at,omitempty"`
}
