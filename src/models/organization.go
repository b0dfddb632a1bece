package models

import (
	"ers/src/types"
)

type Organization struct {
	ID           uint    `gorm:"primarykey;uniqueIndex:slugid" json:"id"`
	Name         string  `json:"name,omitempty"`
	About        string  `json:"about,omitempty"`
	ContactEmail string  `json:"email,omitempty"`
	Slug         string  `gorm:"uniqueIndex:slugid" json:"slug"`
	OwnerID      uint    `json:"owner_id,omitempty"`

	// Legacy toggle kept for organizations created before notification
	// preferences moved into the settings table. Consulted only when no
	// preference row exists.
	WhatsappNotifications *bool `json:"whatsapp_notifications,omitempty"`

	Events []Event `gorm:"foreignKey:organization_id" json:"-"`
	Owner  User    `gorm:"foreignKey:owner_id" json:"-"`

	types.Timestamps
}
