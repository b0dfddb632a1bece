package models

import (
	"ers/src/lib"
	"ers/src/types"
	"log"
	"time"

	"github.com/google/uuid"
)

type Participant struct {
	ID             uuid.UUID            `gorm:"primarykey;type:uuid" json:"id"`
	EventID        uint                 `json:"event_id,omitempty"`
	TicketTypeID   *uint                `json:"ticket_type_id,omitempty"`
	RegistrationID string               `gorm:"index" json:"registration_id,omitempty"`
	QRCode         string               `gorm:"index" json:"qr_code,omitempty"`
	OrderID        uuid.UUID            `gorm:"index;type:uuid" json:"order_id,omitempty"`
	FullName       string               `json:"full_name,omitempty"`
	Email          string               `json:"email,omitempty"`
	Phone          string               `json:"phone,omitempty"`
	PaymentStatus  types.PaymentStatus  `gorm:"default:'pending'" json:"payment_status,omitempty"`
	CheckInStatus  types.CheckInStatus  `gorm:"default:'not_arrived'" json:"check_in_status,omitempty"`
	CheckInTime    *time.Time           `json:"check_in_time,omitempty"`
	AttendanceType types.AttendanceType `gorm:"default:'offline'" json:"attendance_type,omitempty"`
	WhatsappStatus *types.WhatsAppStatus `json:"whatsapp_status,omitempty"`
	WhatsappSentAt *time.Time           `json:"whatsapp_sent_at,omitempty"`
	WhatsappError  *string              `json:"whatsapp_error,omitempty"`

	Event          Event                      `gorm:"foreignKey:event_id" json:"event,omitempty"`
	TicketType     *TicketType                `gorm:"foreignKey:ticket_type_id" json:"ticket_type,omitempty"`
	FieldResponses []ParticipantFieldResponse `gorm:"foreignKey:participant_id" json:"field_responses,omitempty"`

	types.Timestamps
}

type ParticipantFieldResponse struct {
	ID            uint      `gorm:"primarykey" json:"id"`
	ParticipantID uuid.UUID `gorm:"type:uuid;index" json:"participant_id,omitempty"`
	FieldID       uint      `json:"field_id,omitempty"`
	Response      string    `json:"response,omitempty"`

	Field EventCustomField `gorm:"foreignKey:field_id" json:"field,omitempty"`

	types.Timestamps
}

func ParticipantRegisteredProducer(payload map[string]any) error {
	err := lib.KafkaProduceMessage("participants_registered_producer", "participants-registered", payload)
	if err != nil {
		log.Printf("Error on producing message: %s\n", err.Error())
		return err
	}
	return nil
}

func ParticipantCheckedInProducer(payload map[string]any) error {
	err := lib.KafkaProduceMessage("participants_checked_in_producer", "participants-checked-in", payload)
	if err != nil {
		log.Printf("Error on producing message: %s\n", err.Error())
		return err
	}
	return nil
}
