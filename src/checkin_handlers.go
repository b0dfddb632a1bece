package main

import (
	"errors"
	"ers/src/config"
	"ers/src/db"
	"ers/src/models"
	"ers/src/types"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// findParticipantByIdentifier resolves a scan/lookup value against the
// internal id, the human registration id, then the qr token. First
// match wins.
func findParticipantByIdentifier(d *gorm.DB, code string) (*models.Participant, error) {
	var participant models.Participant
	if id, err := uuid.Parse(code); err == nil {
		if err := d.Where("id = ?", id).First(&participant).Error; err == nil {
			return &participant, nil
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}
	}
	if err := d.Where(&models.Participant{RegistrationID: code}).First(&participant).Error; err == nil {
		return &participant, nil
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}
	if err := d.Where(&models.Participant{QRCode: code}).First(&participant).Error; err == nil {
		return &participant, nil
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}
	return nil, gorm.ErrRecordNotFound
}

func checkinHandlers(g *gin.RouterGroup) *gin.RouterGroup {
	g.
		POST("/check-in", func(ctx *gin.Context) {
			var body types.CheckInRequestBody
			if err := ctx.ShouldBindJSON(&body); err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}

			d := db.GetDb()
			participant, err := findParticipantByIdentifier(d, body.Code)
			if err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					ctx.JSON(http.StatusNotFound, gin.H{"error": "Participant not found"})
					return
				}
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}

			// Guards against scanning another event's QR at a
			// multi-event venue.
			if body.EventID != nil && *body.EventID != participant.EventID {
				ctx.JSON(http.StatusBadRequest, gin.H{
					"error":    "Participant belongs to a different event",
					"event_id": participant.EventID,
				})
				return
			}

			var event models.Event
			if err := d.
				Where(&models.Event{ID: participant.EventID}).
				First(&event).
				Error; err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			start, err := event.StartTime()
			if err != nil {
				log.Printf("Event %d has an unparsable schedule: %s\n", event.ID, err.Error())
				ctx.JSON(http.StatusBadRequest, gin.H{"error": "Event schedule is invalid"})
				return
			}
			opensAt := start.Add(-config.CHECKIN_OPEN_BEFORE)
			now := time.Now().In(config.TimezoneWIB)
			if now.Before(opensAt) {
				ctx.JSON(http.StatusBadRequest, gin.H{
					"error":    "Check-in is not open yet",
					"opens_at": opensAt.Format(time.RFC3339),
				})
				return
			}

			if participant.CheckInStatus == types.CHECKIN_CHECKED_IN {
				res := gin.H{"error": "Participant is already checked in"}
				if participant.CheckInTime != nil {
					res["check_in_time"] = participant.CheckInTime.In(config.TimezoneWIB).Format(time.RFC3339)
				}
				ctx.JSON(http.StatusBadRequest, res)
				return
			}
			if participant.PaymentStatus != types.PAYMENT_PAID {
				ctx.JSON(http.StatusBadRequest, gin.H{
					"error":          "Payment is not completed",
					"payment_status": participant.PaymentStatus,
				})
				return
			}

			checkInTime := now
			if err := d.Transaction(func(tx *gorm.DB) error {
				return tx.
					Model(&models.Participant{}).
					Where("id = ?", participant.ID).
					Updates(map[string]any{
						"check_in_status": types.CHECKIN_CHECKED_IN,
						"check_in_time":   checkInTime,
					}).
					Error
			}); err != nil {
				log.Printf("Error on participant check-in [%s]: %s\n", participant.ID, err.Error())
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}

			if os.Getenv("KAFKA_BROKER") != "" {
				go models.ParticipantCheckedInProducer(map[string]any{
					"participant_id":  participant.ID.String(),
					"event_id":        participant.EventID,
					"registration_id": participant.RegistrationID,
				})
			}

			ctx.JSON(http.StatusOK, gin.H{"data": gin.H{
				"id":              participant.ID,
				"registration_id": participant.RegistrationID,
				"full_name":       participant.FullName,
				"event_id":        participant.EventID,
				"check_in_status": types.CHECKIN_CHECKED_IN,
				"check_in_time":   checkInTime.Format(time.RFC3339),
			}})
		})
	return g
}
