package models

// PushSubscription is a browser push endpoint registered by a user.
type PushSubscription struct {
	BaseModel

	UserID   string `gorm:"type:varchar(64);not null;index" json:"user_id"`
	Endpoint string `gorm:"type:varchar(512);not null;uniqueIndex" json:"endpoint"`
	P256dh   string `gorm:"type:varchar(255);not null" json:"p256dh"`
	Auth     string `gorm:"type:varchar(255);not null" json:"auth"`
}
