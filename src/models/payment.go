package models

import (
	"ers/src/types"

	"github.com/google/uuid"
)

type Payment struct {
	ID            uint                `gorm:"primarykey" json:"id"`
	ParticipantID uuid.UUID           `gorm:"type:uuid;index" json:"participant_id,omitempty"`
	OrderID       uuid.UUID           `gorm:"type:uuid;index" json:"order_id,omitempty"`
	Amount        float64             `json:"amount"`
	Status        types.PaymentStatus `gorm:"default:'pending'" json:"status,omitempty"`
	PaymentType   *string             `json:"payment_type,omitempty"`
	RawPayload    types.JSONB         `gorm:"type:jsonb" json:"raw_payload,omitempty"`

	Participant Participant `gorm:"foreignKey:participant_id" json:"-"`

	types.Timestamps
}
