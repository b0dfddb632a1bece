package models

import (
	"ers/src/config"
	"ers/src/types"
	"time"
)

type Event struct {
	ID                  uint                  `gorm:"primarykey" json:"id"`
	OrganizationID      uint                  `json:"organization_id,omitempty"`
	Title               string                `json:"title,omitempty"`
	Slug                string                `json:"slug,omitempty"`
	Description         *string               `json:"description,omitempty"`
	Location            string                `json:"location,omitempty"`
	EventDate           string                `json:"event_date,omitempty"`
	EventTime           string                `json:"event_time,omitempty"`
	Capacity            *uint                 `json:"capacity,omitempty"`
	Mode                types.EventMode       `gorm:"default:'free'" json:"mode,omitempty"`
	Status              types.EventStatus     `gorm:"default:'draft'" json:"status,omitempty"`
	Visibility          types.EventVisibility `gorm:"default:'public'" json:"visibility,omitempty"`
	AutoClose           bool                  `gorm:"default:false" json:"auto_close"`
	PaymentInstructions string                `json:"payment_instructions,omitempty"`
	CreatedBy           uint                  `json:"created_by,omitempty"`

	Organization Organization       `gorm:"foreignKey:organization_id" json:"-"`
	Creator      User               `gorm:"foreignKey:created_by" json:"-"`
	TicketTypes  []TicketType       `gorm:"foreignKey:event_id" json:"ticket_types,omitempty"`
	CustomFields []EventCustomField `gorm:"foreignKey:event_id" json:"custom_fields,omitempty"`
	Participants []Participant      `gorm:"foreignKey:event_id" json:"-"`

	types.Timestamps
}

// StartTime resolves the stored civil date + time in WIB.
func (e *Event) StartTime() (time.Time, error) {
	return time.ParseInLocation(
		config.DATE_PARSE_FORMAT+" "+config.TIME_PARSE_FORMAT,
		e.EventDate+" "+e.EventTime,
		config.TimezoneWIB,
	)
}

// EffectiveStatus computes closure at read time: an open event is closed
// one hour past its start without waiting for the janitor to persist it.
func (e *Event) EffectiveStatus(now time.Time) types.EventStatus {
	if e.Status != types.EVENT_OPEN {
		return e.Status
	}
	start, err := e.StartTime()
	if err != nil {
		return e.Status
	}
	if now.After(start.Add(config.AUTO_CLOSE_AFTER)) {
		return types.EVENT_CLOSED
	}
	return types.EVENT_OPEN
}

type TicketType struct {
	ID      uint    `gorm:"primarykey" json:"id"`
	EventID uint    `json:"event_id,omitempty"`
	Name    string  `json:"name,omitempty"`
	Price   float64 `json:"price"`
	Quota   *uint   `json:"quota,omitempty"`

	Event Event `json:"-"`

	types.Timestamps
}

type EventCustomField struct {
	ID       uint             `gorm:"primarykey" json:"id"`
	EventID  uint             `json:"event_id,omitempty"`
	Label    string           `json:"label,omitempty"`
	Type     types.FieldType  `gorm:"default:'text'" json:"type,omitempty"`
	Options  types.JSONBArray `gorm:"type:jsonb" json:"options,omitempty"`
	Required bool             `gorm:"default:false" json:"required"`
	Position uint             `json:"position"`

	Event Event `json:"-"`

	types.Timestamps
}
