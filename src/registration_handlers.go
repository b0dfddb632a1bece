package main

import (
	"encoding/json"
	"errors"
	"ers/src/common"
	"ers/src/db"
	"ers/src/models"
	"ers/src/types"
	"ers/src/utils"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/tidwall/gjson"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var errCapacityExceeded = errors.New("event capacity has been reached")

// normalizeRegistrationBody accepts the three request shapes the public
// form has shipped over time: a bare array of entries, a
// {participants: [...]} wrapper, and a single entry object. All shapes
// reduce to one event id plus a flat entry list.
func normalizeRegistrationBody(raw []byte) (uint, []types.RegisterParticipantEntry, bool, error) {
	if !gjson.ValidBytes(raw) {
		return 0, nil, false, errors.New("request body is not valid JSON")
	}
	parsed := gjson.ParseBytes(raw)

	var entries []types.RegisterParticipantEntry
	var eventId uint
	var donation bool

	switch {
	case parsed.IsArray():
		if err := json.Unmarshal(raw, &entries); err != nil {
			return 0, nil, false, err
		}
		if len(entries) > 0 {
			eventId = entries[0].EventID
		}
	case parsed.Get("participants").Exists():
		var body types.RegisterRequestBody
		if err := json.Unmarshal(raw, &body); err != nil {
			return 0, nil, false, err
		}
		entries = body.Participants
		eventId = body.EventID
		if eventId == 0 && len(entries) > 0 {
			eventId = entries[0].EventID
		}
		donation = body.Donation > 0
	default:
		var entry types.RegisterParticipantEntry
		if err := json.Unmarshal(raw, &entry); err != nil {
			return 0, nil, false, err
		}
		entries = []types.RegisterParticipantEntry{entry}
		eventId = entry.EventID
	}

	for _, entry := range entries {
		if entry.Donation > 0 {
			donation = true
		}
	}
	return eventId, entries, donation, nil
}

// initialPaymentStatus decides what a fresh registration starts as. Free
// events settle immediately unless the registrant pledged a donation,
// which routes the batch through the payment flow like a paid event.
func initialPaymentStatus(mode types.EventMode, donation bool) types.PaymentStatus {
	if mode == types.EVENT_FREE && !donation {
		return types.PAYMENT_PAID
	}
	return types.PAYMENT_PENDING
}

// ticketDispatchTargets picks the freshly registered participants whose
// ticket goes out right away: the batch settled as paid, and the entry
// supplied a phone number.
func ticketDispatchTargets(participants []models.Participant, status types.PaymentStatus) []uuid.UUID {
	if status != types.PAYMENT_PAID {
		return nil
	}
	ids := make([]uuid.UUID, 0, len(participants))
	for _, p := range participants {
		if p.Phone == "" {
			continue
		}
		ids = append(ids, p.ID)
	}
	return ids
}

func fieldResponseToString(response any) string {
	switch v := response.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(v)
	case []any:
		var parts []string
		for _, item := range v {
			s := strings.TrimSpace(fmt.Sprintf("%v", item))
			if s != "" {
				parts = append(parts, s)
			}
		}
		return strings.Join(parts, ", ")
	default:
		return strings.TrimSpace(fmt.Sprintf("%v", v))
	}
}

// validateRequiredFields returns the first missing required field as an
// error naming the 1-based participant index and the field label. One
// miss rejects the whole batch.
func validateRequiredFields(entries []types.RegisterParticipantEntry, fields []models.EventCustomField) error {
	for i, entry := range entries {
		for _, field := range fields {
			if !field.Required {
				continue
			}
			answered := false
			for _, answer := range entry.CustomFields {
				if answer.FieldID != field.ID {
					continue
				}
				if fieldResponseToString(answer.Response) != "" {
					answered = true
				}
				break
			}
			if !answered {
				return fmt.Errorf("participant %d is missing required field %q", i+1, field.Label)
			}
		}
	}
	return nil
}

func registrationHandlers(g *gin.RouterGroup) *gin.RouterGroup {
	g.
		POST("/registrations", func(ctx *gin.Context) {
			raw, err := io.ReadAll(ctx.Request.Body)
			if err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			eventId, entries, donation, err := normalizeRegistrationBody(raw)
			if err != nil {
				log.Printf("Error normalizing registration body: %s\n", err.Error())
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			if eventId == 0 {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": "event_id is required"})
				return
			}
			if len(entries) == 0 {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": "at least one participant is required"})
				return
			}
			for i, entry := range entries {
				if entry.FullName == "" || entry.Email == "" {
					ctx.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("participant %d is missing a name or email", i+1)})
					return
				}
			}

			d := db.GetDb()
			var event models.Event
			if err := d.
				Where(&models.Event{ID: eventId}).
				First(&event).
				Error; err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					ctx.JSON(http.StatusNotFound, gin.H{"error": "Event does not exist"})
					return
				}
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			if event.EffectiveStatus(time.Now()) != types.EVENT_OPEN {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": "Event is not open for registration"})
				return
			}

			var fields []models.EventCustomField
			if err := d.
				Where(&models.EventCustomField{EventID: event.ID}).
				Order("position asc").
				Find(&fields).
				Error; err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			if err := validateRequiredFields(entries, fields); err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}

			orderId := uuid.New()
			paymentStatus := initialPaymentStatus(event.Mode, donation)

			now := time.Now()
			participants := make([]models.Participant, 0, len(entries))
			responses := make([]models.ParticipantFieldResponse, 0)
			for _, entry := range entries {
				participantId := uuid.New()
				registrationId := utils.GenerateRegistrationID(now)
				attendance := entry.AttendanceType
				if attendance == "" {
					attendance = types.ATTENDANCE_OFFLINE
				}
				participants = append(participants, models.Participant{
					ID:             participantId,
					EventID:        event.ID,
					TicketTypeID:   entry.TicketTypeID,
					RegistrationID: registrationId,
					QRCode:         utils.BuildQRToken(event.ID, participantId, registrationId),
					OrderID:        orderId,
					FullName:       entry.FullName,
					Email:          entry.Email,
					Phone:          entry.Phone,
					PaymentStatus:  paymentStatus,
					CheckInStatus:  types.CHECKIN_NOT_ARRIVED,
					AttendanceType: attendance,
				})
				for _, answer := range entry.CustomFields {
					response := fieldResponseToString(answer.Response)
					if response == "" {
						continue
					}
					responses = append(responses, models.ParticipantFieldResponse{
						ParticipantID: participantId,
						FieldID:       answer.FieldID,
						Response:      response,
					})
				}
			}

			// The capacity check runs inside the insert transaction with
			// the event row locked, so two concurrent batches cannot both
			// pass the check and overshoot together.
			err = d.Transaction(func(tx *gorm.DB) error {
				var locked models.Event
				if err := tx.
					Clauses(clause.Locking{Strength: "UPDATE"}).
					Where("id = ?", event.ID).
					First(&locked).
					Error; err != nil {
					return err
				}
				if locked.Capacity != nil {
					var current int64
					if err := tx.
						Model(&models.Participant{}).
						Where("event_id = ?", locked.ID).
						Count(&current).
						Error; err != nil {
						return err
					}
					if uint(current)+uint(len(participants)) > *locked.Capacity {
						return errCapacityExceeded
					}
				}
				if err := tx.Create(&participants).Error; err != nil {
					return err
				}
				if len(responses) > 0 {
					if err := tx.Create(&responses).Error; err != nil {
						return err
					}
				}
				return nil
			})
			if err != nil {
				log.Printf("Error registering participants for event %d: %s\n", event.ID, err.Error())
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}

			for _, participantId := range ticketDispatchTargets(participants, paymentStatus) {
				go common.SendRegistrationNotification(participantId)
			}

			if os.Getenv("KAFKA_BROKER") != "" {
				go models.ParticipantRegisteredProducer(map[string]any{
					"event_id":       event.ID,
					"order_id":       orderId.String(),
					"count":          len(participants),
					"payment_status": paymentStatus,
				})
			}

			summaries := make([]gin.H, 0, len(participants))
			for _, p := range participants {
				summaries = append(summaries, gin.H{
					"full_name":       p.FullName,
					"registration_id": p.RegistrationID,
				})
			}
			response := gin.H{
				"order_id":          orderId.String(),
				"participant_count": len(participants),
				"payment_status":    paymentStatus,
				"event_title":       event.Title,
				"redirect_url":      fmt.Sprintf("/payment/%s", orderId),
				"participants":      summaries,
			}
			// Flattened fields kept for older clients that submit one
			// participant at a time.
			if len(participants) == 1 {
				response["full_name"] = participants[0].FullName
				response["registration_id"] = participants[0].RegistrationID
				response["qr_code"] = participants[0].QRCode
			}
			ctx.JSON(http.StatusCreated, response)
		})
	return g
}
