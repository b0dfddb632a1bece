package types

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"gorm.io/gorm"
)

type Timestamps struct {
	CreatedAt time.Time      `gorm:"autoCreateTime:nano" json:"created_at,omitempty"`
	UpdatedAt time.Time      `gorm:"autoUpdateTime:nano" json:"updated_at,omitempty"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty,omitnil"`
}

type JSONB map[string]any
type JSONBArray []any

func (a JSONB) Value() (driver.Value, error) {
	valueString, err := json.Marshal(a)
	return string(valueString), err
}
func (a *JSONB) Scan(value any) error {
	b, ok := value.([]byte)
	if !ok {
		return errors.New("type assertion to []byte failed")
	}
	if err := json.Unmarshal(b, &a); err != nil {
		return err
	}
	return nil
}

func (a JSONBArray) Value() (driver.Value, error) {
	valueString, err := json.Marshal(a)
	return string(valueString), err
}
func (a *JSONBArray) Scan(value any) error {
	b, ok := value.([]byte)
	if !ok {
		return errors.New("type assertion to []byte failed")
	}
	if err := json.Unmarshal(b, &a); err != nil {
		return err
	}
	return nil
}

type Claims struct {
	Email string `json:"email"`
	Role  string `json:"role"`
	Org   uint   `json:"org"`
	jwt.RegisteredClaims
}

type EventStatus string
type EventMode string
type EventVisibility string
type PaymentStatus string
type CheckInStatus string
type AttendanceType string
type WhatsAppStatus string
type FieldType string

const (
	EVENT_DRAFT  EventStatus = "draft"
	EVENT_OPEN   EventStatus = "open"
	EVENT_CLOSED EventStatus = "closed"

	EVENT_FREE EventMode = "free"
	EVENT_PAID EventMode = "paid"

	EVENT_PUBLIC  EventVisibility = "public"
	EVENT_PRIVATE EventVisibility = "private"

	PAYMENT_PENDING  PaymentStatus = "pending"
	PAYMENT_PAID     PaymentStatus = "paid"
	PAYMENT_FAILED   PaymentStatus = "failed"
	PAYMENT_REFUNDED PaymentStatus = "refunded"

	CHECKIN_NOT_ARRIVED CheckInStatus = "not_arrived"
	CHECKIN_CHECKED_IN  CheckInStatus = "checked_in"

	ATTENDANCE_OFFLINE AttendanceType = "offline"
	ATTENDANCE_ONLINE  AttendanceType = "online"

	WHATSAPP_SENT   WhatsAppStatus = "sent"
	WHATSAPP_FAILED WhatsAppStatus = "failed"

	FIELD_TEXT        FieldType = "text"
	FIELD_SELECT      FieldType = "select"
	FIELD_MULTISELECT FieldType = "multiselect"
)

// Settings rows with OrganizationID 0 hold system scope values.
const SETTING_SCOPE_SYSTEM uint = 0

type Handler func(payload string)

type SimpleRequestParams struct {
	ID uint `uri:"id" binding:"required"`
}

type CreateTicketTypeRequestBody struct {
	Name  string  `json:"name" binding:"required"`
	Price float64 `json:"price"`
	Quota *uint   `json:"quota,omitempty"`
}

type CreateCustomFieldRequestBody struct {
	Label    string     `json:"label" binding:"required"`
	Type     FieldType  `json:"type,omitempty"`
	Options  JSONBArray `json:"options,omitempty"`
	Required bool       `json:"required"`
	Position uint       `json:"position"`
}

type CreateEventRequestBody struct {
	Title               string                         `json:"title" binding:"required"`
	Description         string                         `json:"description,omitempty"`
	Location            string                         `json:"location,omitempty"`
	EventDate           string                         `json:"event_date" binding:"required,eventdate"`
	EventTime           string                         `json:"event_time" binding:"required,eventtime"`
	Capacity            *uint                          `json:"capacity,omitempty"`
	Mode                EventMode                      `json:"mode,omitempty"`
	Visibility          EventVisibility                `json:"visibility,omitempty"`
	AutoClose           bool                           `json:"auto_close,omitempty"`
	Publish             bool                           `json:"publish,omitempty"`
	PaymentInstructions string                         `json:"payment_instructions,omitempty"`
	TicketTypes         []CreateTicketTypeRequestBody  `json:"ticket_types,omitempty"`
	CustomFields        []CreateCustomFieldRequestBody `json:"custom_fields,omitempty"`
}

type CustomFieldAnswer struct {
	FieldID  uint `json:"field_id"`
	Response any  `json:"response"`
}

type RegisterParticipantEntry struct {
	EventID        uint                `json:"event_id,omitempty"`
	FullName       string              `json:"full_name"`
	Email          string              `json:"email"`
	Phone          string              `json:"phone,omitempty"`
	TicketTypeID   *uint               `json:"ticket_type_id,omitempty"`
	AttendanceType AttendanceType      `json:"attendance_type,omitempty"`
	Donation       float64             `json:"donation,omitempty"`
	CustomFields   []CustomFieldAnswer `json:"custom_fields,omitempty"`
}

type RegisterRequestBody struct {
	EventID      uint                       `json:"event_id"`
	Donation     float64                    `json:"donation,omitempty"`
	Participants []RegisterParticipantEntry `json:"participants"`
}

type CheckInRequestBody struct {
	Code    string `json:"code" binding:"required"`
	EventID *uint  `json:"event_id,omitempty"`
}

type CreatePaymentRequestBody struct {
	OrderID string `json:"order_id" binding:"required,uuid"`
}

// PaymentNotificationPayload is the gateway webhook body. Unknown fields
// are kept in the raw payload column verbatim.
type PaymentNotificationPayload struct {
	OrderID           string `json:"order_id"`
	TransactionStatus string `json:"transaction_status"`
	FraudStatus       string `json:"fraud_status,omitempty"`
	PaymentType       string `json:"payment_type,omitempty"`
	GrossAmount       string `json:"gross_amount,omitempty"`
	StatusCode        string `json:"status_code,omitempty"`
	SignatureKey      string `json:"signature_key,omitempty"`
}

type CreateSettingRequestBody struct {
	Key            string `json:"key" binding:"required"`
	Value          string `json:"value"`
	OrganizationID uint   `json:"organization_id"`
}
