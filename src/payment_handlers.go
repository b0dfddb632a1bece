package main

import (
	"encoding/json"
	"errors"
	"ers/src/common"
	"ers/src/db"
	"ers/src/lib"
	"ers/src/models"
	"ers/src/types"
	"io"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// MapTransactionStatus translates the gateway's transaction + fraud
// status pair into the internal payment status. Unknown statuses map to
// pending so a new gateway value never flips records to a wrong final
// state.
func MapTransactionStatus(transactionStatus string, fraudStatus string) types.PaymentStatus {
	switch transactionStatus {
	case "capture", "settlement":
		if fraudStatus == "" || fraudStatus == "accept" {
			return types.PAYMENT_PAID
		}
		return types.PAYMENT_PENDING
	case "cancel", "deny", "expire":
		return types.PAYMENT_FAILED
	case "pending":
		return types.PAYMENT_PENDING
	case "refund":
		return types.PAYMENT_REFUNDED
	default:
		return types.PAYMENT_PENDING
	}
}

// paymentRowsFor builds one pending payment per participant carrying
// that participant's own ticket price. The rows sum to the order total,
// so reconciliation exports never multiply it by the party size.
func paymentRowsFor(orderId uuid.UUID, participants []models.Participant) []models.Payment {
	rows := make([]models.Payment, 0, len(participants))
	for _, p := range participants {
		var amount float64
		if p.TicketType != nil {
			amount = p.TicketType.Price
		}
		rows = append(rows, models.Payment{
			ParticipantID: p.ID,
			OrderID:       orderId,
			Amount:        amount,
			Status:        types.PAYMENT_PENDING,
		})
	}
	return rows
}

// participantsToNotify picks who gets a ticket message after a webhook
// lands. The rows hold the pre-update state, so a participant already
// in paid means this notification is a gateway retry and sending again
// would deliver the same ticket twice.
func participantsToNotify(prior []models.Participant, newStatus types.PaymentStatus) []uuid.UUID {
	if newStatus != types.PAYMENT_PAID {
		return nil
	}
	ids := make([]uuid.UUID, 0, len(prior))
	for _, p := range prior {
		if p.Phone == "" || p.PaymentStatus == types.PAYMENT_PAID {
			continue
		}
		ids = append(ids, p.ID)
	}
	return ids
}

func paymentHandlers(g *gin.RouterGroup) *gin.RouterGroup {
	g.
		POST("/payments", func(ctx *gin.Context) {
			var body types.CreatePaymentRequestBody
			if err := ctx.ShouldBindJSON(&body); err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			orderId, err := uuid.Parse(body.OrderID)
			if err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}

			d := db.GetDb()
			var participants []models.Participant
			if err := d.
				Where(&models.Participant{OrderID: orderId}).
				Preload("TicketType").
				Preload("Event").
				Find(&participants).
				Error; err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			if len(participants) == 0 {
				ctx.JSON(http.StatusNotFound, gin.H{"error": "No registration found for this order"})
				return
			}

			var gross float64
			items := make([]lib.SnapItemDetail, 0, len(participants))
			for _, p := range participants {
				if p.TicketType == nil {
					continue
				}
				gross += p.TicketType.Price
				items = append(items, lib.SnapItemDetail{
					ID:       p.RegistrationID,
					Name:     p.TicketType.Name,
					Price:    p.TicketType.Price,
					Quantity: 1,
				})
			}
			first := participants[0]
			out, err := lib.CreateSnapTransaction(&lib.SnapTransactionInput{
				OrderID:     orderId.String(),
				GrossAmount: gross,
				Items:       items,
				Customer: lib.SnapCustomerDetail{
					FirstName: first.FullName,
					Email:     first.Email,
					Phone:     first.Phone,
				},
			})
			if err != nil {
				ctx.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
				return
			}

			payments := paymentRowsFor(orderId, participants)
			if err := d.Transaction(func(tx *gorm.DB) error {
				return tx.Create(&payments).Error
			}); err != nil {
				log.Printf("Error recording payments for order %s: %s\n", orderId, err.Error())
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}

			ctx.JSON(http.StatusOK, gin.H{
				"token":        out.Token,
				"redirect_url": out.RedirectURL,
			})
		})
	return g
}

func paymentWebhookRoute(g *gin.Engine) *gin.RouterGroup {
	apiv1 := apiv1Group(g)
	apiv1.POST("/webhook/payment", func(ctx *gin.Context) {
		payload, err := io.ReadAll(ctx.Request.Body)
		if err != nil {
			log.Printf("Error reading request body: %s\n", err.Error())
			ctx.Status(http.StatusServiceUnavailable)
			return
		}
		var notification types.PaymentNotificationPayload
		if err := json.Unmarshal(payload, &notification); err != nil || notification.OrderID == "" {
			// The gateway retries on non-2xx; a payload this system
			// cannot read is acknowledged and dropped.
			log.Printf("[webhook] Ignoring malformed notification: %s\n", string(payload))
			ctx.JSON(http.StatusOK, gin.H{"status": "ignored"})
			return
		}
		if !lib.VerifyGatewaySignature(notification.OrderID, notification.StatusCode, notification.GrossAmount, notification.SignatureKey) {
			log.Printf("[webhook] Invalid signature for order %s\n", notification.OrderID)
			ctx.JSON(http.StatusForbidden, gin.H{"error": "invalid signature"})
			return
		}

		orderId, err := uuid.Parse(notification.OrderID)
		if err != nil {
			log.Printf("[webhook] Unparsable order id %q\n", notification.OrderID)
			ctx.JSON(http.StatusOK, gin.H{"status": "ignored"})
			return
		}

		newStatus := MapTransactionStatus(notification.TransactionStatus, notification.FraudStatus)
		log.Printf("[webhook] order %s: %s/%s -> %s\n", orderId, notification.TransactionStatus, notification.FraudStatus, newStatus)

		var raw types.JSONB
		json.Unmarshal(payload, &raw)

		var participants []models.Participant
		d := db.GetDb()
		if err := d.Transaction(func(tx *gorm.DB) error {
			if err := tx.
				Where(&models.Participant{OrderID: orderId}).
				Find(&participants).
				Error; err != nil {
				return err
			}
			if len(participants) == 0 {
				return gorm.ErrRecordNotFound
			}
			updates := models.Payment{Status: newStatus, RawPayload: raw}
			if notification.PaymentType != "" {
				updates.PaymentType = &notification.PaymentType
			}
			if err := tx.
				Model(&models.Payment{}).
				Where("order_id = ?", orderId).
				Updates(&updates).
				Error; err != nil {
				return err
			}
			if err := tx.
				Model(&models.Participant{}).
				Where("order_id = ?", orderId).
				Update("payment_status", newStatus).
				Error; err != nil {
				return err
			}
			return nil
		}); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				log.Printf("[webhook] No registration for order %s\n", orderId)
				ctx.JSON(http.StatusOK, gin.H{"status": "ignored"})
				return
			}
			log.Printf("[webhook] Error applying notification for order %s: %s\n", orderId, err.Error())
			ctx.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		// Ticket delivery runs after the ack; the gateway requires a
		// fast response and retries otherwise.
		for _, participantId := range participantsToNotify(participants, newStatus) {
			go common.SendRegistrationNotification(participantId)
		}

		ctx.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	return apiv1
}
