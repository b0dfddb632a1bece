package models

import (
	"ers/src/types"

	"github.com/google/uuid"
)

// Setting rows are scoped by organization; OrganizationID 0 is system
// scope. Values are stored loosely (plain string or JSON-encoded) and
// parsed once at the settings-read boundary.
type Setting struct {
	ID             uuid.UUID `gorm:"primarykey;type:uuid;default:gen_random_uuid()" json:"id"`
	SettingKey     string    `gorm:"uniqueIndex:keyscope" json:"setting_key"`
	OrganizationID uint      `gorm:"uniqueIndex:keyscope" json:"organization_id"`
	SettingValue   string    `json:"setting_value"`

	types.Timestamps
}
