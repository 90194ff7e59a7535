package models

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// Signal kinds recorded by client instrumentation.
const (
	SignalView          = "view"
	SignalSearch        = "search"
	SignalFavorite      = "favorite"
	SignalChatInitiated = "chat_initiated"
	SignalSavedSearch   = "saved_search"
)

// Signal is a recorded user behaviour event. Append-only; purged by the retention sweep.
type Signal struct {
	BaseModel

	UserID      string            `gorm:"type:varchar(64);not null;index" json:"user_id"`
	ListingID   *string           `gorm:"type:varchar(36);index" json:"listing_id,omitempty"`
	CategoryID  string            `gorm:"type:varchar(64);index" json:"category_id"`
	Kind        string            `gorm:"type:varchar(32);not null;index" json:"kind"`
	Data        datatypes.JSONMap `json:"data,omitempty"`
	Governorate string            `gorm:"type:varchar(64)" json:"governorate,omitempty"`
}

// DataString returns a data field as a trimmed string, or "".
func (s *Signal) DataString(key string) string {
	if s == nil {
		return ""
	}
	return stringValue(s.Data[key])
}

// ObservedPrice returns the price recorded in the signal data, if any.
func (s *Signal) ObservedPrice() (decimal.Decimal, bool) {
	if s == nil || s.Data == nil {
		return decimal.Decimal{}, false
	}
	raw, ok := s.Data["price"]
	if !ok || raw == nil {
		return decimal.Decimal{}, false
	}

	var (
		price decimal.Decimal
		err   error
	)
	switch v := raw.(type) {
	case json.Number:
		price, err = decimal.NewFromString(v.String())
	case float64:
		price = decimal.NewFromFloat(v)
	case int:
		price = decimal.NewFromInt(int64(v))
	case int64:
		price = decimal.NewFromInt(v)
	case string:
		price, err = decimal.NewFromString(strings.TrimSpace(v))
	default:
		return decimal.Decimal{}, false
	}
	if err != nil || !price.IsPositive() {
		return decimal.Decimal{}, false
	}
	return price, true
}

func stringValue(raw any) string {
	switch v := raw.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(v)
	case json.Number:
		return v.String()
	default:
		return strings.TrimSpace(fmt.Sprint(v))
	}
}
