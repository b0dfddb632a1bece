package main

import (
	"errors"
	"ers/src/common"
	"ers/src/db"
	"ers/src/models"
	"ers/src/types"
	"fmt"
	"log"
	"net/http"
	"os"
	"path"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/yeqown/go-qrcode"
	"gorm.io/gorm"
)

// ticketRoutes serves the public ticket page data and the QR image.
// These are reachable from the link sent over WhatsApp, so no auth.
func ticketRoutes(g *gin.Engine) *gin.RouterGroup {
	apiv1 := apiv1Group(g)
	apiv1.
		GET("/tickets/:registration_id", func(ctx *gin.Context) {
			registrationId := ctx.Param("registration_id")
			var participant models.Participant
			d := db.GetDb()
			if err := d.
				Where(&models.Participant{RegistrationID: registrationId}).
				Preload("Event").
				Preload("TicketType").
				Preload("FieldResponses").
				Preload("FieldResponses.Field").
				First(&participant).
				Error; err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					ctx.JSON(http.StatusNotFound, gin.H{"error": "Ticket not found"})
					return
				}
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			ctx.JSON(http.StatusOK, gin.H{"data": &participant})
		}).
		GET("/tickets/:registration_id/qr", func(ctx *gin.Context) {
			registrationId := ctx.Param("registration_id")
			var participant models.Participant
			d := db.GetDb()
			if err := d.
				Where(&models.Participant{RegistrationID: registrationId}).
				First(&participant).
				Error; err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					ctx.JSON(http.StatusNotFound, gin.H{"error": "Ticket not found"})
					return
				}
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}

			qrc, err := qrcode.New(participant.QRCode)
			if err != nil {
				log.Printf("Error generating qrcode for [%s]: %s\n", participant.RegistrationID, err.Error())
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			filepath := path.Join(os.TempDir(), fmt.Sprintf("%s.jpeg", participant.RegistrationID))
			if err := qrc.Save(filepath); err != nil {
				log.Printf("Could not save qrcode to file [%s]: %s\n", filepath, err.Error())
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			ctx.FileAttachment(filepath, fmt.Sprintf("%s.jpeg", participant.RegistrationID))
		})
	return apiv1
}

func participantHandlers(g *gin.RouterGroup) *gin.RouterGroup {
	g.
		GET("/participants/:id", func(ctx *gin.Context) {
			participantId, err := uuid.Parse(ctx.Param("id"))
			if err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			var participant models.Participant
			d := db.GetDb()
			if err := d.
				Where("id = ?", participantId).
				Preload("Event").
				Preload("TicketType").
				Preload("FieldResponses").
				Preload("FieldResponses.Field").
				First(&participant).
				Error; err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					ctx.JSON(http.StatusNotFound, gin.H{"error": "Participant not found"})
					return
				}
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			ctx.JSON(http.StatusOK, gin.H{"data": &participant})
		}).
		POST("/participants/:id/notifications", func(ctx *gin.Context) {
			participantId, err := uuid.Parse(ctx.Param("id"))
			if err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			var participant models.Participant
			d := db.GetDb()
			if err := d.
				Where("id = ?", participantId).
				First(&participant).
				Error; err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					ctx.JSON(http.StatusNotFound, gin.H{"error": "Participant not found"})
					return
				}
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			if participant.Phone == "" {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": "Participant has no phone number"})
				return
			}

			// Resends run in the request so the operator sees relay
			// failures immediately instead of a silent background drop.
			var result common.NotifyResult
			if participant.PaymentStatus == types.PAYMENT_PAID {
				result = common.SendRegistrationNotification(participantId)
			} else {
				result = common.SendPaymentPendingNotification(participantId)
			}
			if !result.Success {
				ctx.JSON(http.StatusBadGateway, gin.H{"error": result.Error})
				return
			}
			ctx.JSON(http.StatusOK, gin.H{"data": gin.H{
				"message_id": result.MessageID,
				"status":     types.WHATSAPP_SENT,
			}})
		}).
		DELETE("/participants/:id", func(ctx *gin.Context) {
			role := ctx.GetString("role")
			if role != "admin" {
				ctx.AbortWithStatus(http.StatusForbidden)
				return
			}
			participantId, err := uuid.Parse(ctx.Param("id"))
			if err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			d := db.GetDb()
			if err := d.Transaction(func(tx *gorm.DB) error {
				var participant models.Participant
				if err := tx.
					Where("id = ?", participantId).
					First(&participant).
					Error; err != nil {
					return err
				}
				if err := tx.
					Where("participant_id = ?", participantId).
					Delete(&models.ParticipantFieldResponse{}).
					Error; err != nil {
					return err
				}
				return tx.Delete(&participant).Error
			}); err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					ctx.JSON(http.StatusNotFound, gin.H{"error": "Participant not found"})
					return
				}
				log.Printf("Error deleting participant [%s]: %s\n", participantId, err.Error())
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			ctx.Status(http.StatusNoContent)
		}).
		GET("/events/:id/participants", func(ctx *gin.Context) {
			var params types.SimpleRequestParams
			if err := ctx.ShouldBindUri(&params); err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			var participants []models.Participant
			d := db.GetDb()
			query := d.
				Where(&models.Participant{EventID: params.ID}).
				Preload("TicketType").
				Order("created_at asc")
			if status := ctx.Query("payment_status"); status != "" {
				query = query.Where("payment_status = ?", status)
			}
			if status := ctx.Query("check_in_status"); status != "" {
				query = query.Where("check_in_status = ?", status)
			}
			if err := query.Find(&participants).Error; err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			ctx.JSON(http.StatusOK, gin.H{"data": participants})
		})
	return g
}
