package main

import (
	"errors"
	"ers/src/db"
	"ers/src/models"
	"ers/src/types"
	"ers/src/utils"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// publicEventRoutes exposes the registration form's read side. Private
// events are only reachable by slug, never listed.
func publicEventRoutes(g *gin.Engine) *gin.RouterGroup {
	apiv1 := apiv1Group(g)
	apiv1.
		GET("/public/events", func(ctx *gin.Context) {
			var events []models.Event
			d := db.GetDb()
			if err := d.
				Where(&models.Event{Status: types.EVENT_OPEN, Visibility: types.EVENT_PUBLIC}).
				Order("event_date asc").
				Find(&events).
				Error; err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			now := time.Now()
			open := make([]models.Event, 0, len(events))
			for _, event := range events {
				if event.EffectiveStatus(now) == types.EVENT_OPEN {
					open = append(open, event)
				}
			}
			ctx.JSON(http.StatusOK, gin.H{"data": open})
		}).
		GET("/public/events/:slug", func(ctx *gin.Context) {
			slug := ctx.Param("slug")
			var event models.Event
			d := db.GetDb()
			if err := d.
				Where(&models.Event{Slug: slug}).
				Preload("TicketTypes").
				Preload("CustomFields", func(db *gorm.DB) *gorm.DB {
					return db.Order("position asc")
				}).
				First(&event).
				Error; err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					ctx.JSON(http.StatusNotFound, gin.H{"error": "Event not found"})
					return
				}
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			status := event.EffectiveStatus(time.Now())
			if status == types.EVENT_DRAFT {
				ctx.JSON(http.StatusNotFound, gin.H{"error": "Event not found"})
				return
			}
			event.Status = status
			ctx.JSON(http.StatusOK, gin.H{"data": &event})
		})
	return apiv1
}

func eventHandlers(g *gin.RouterGroup) *gin.RouterGroup {
	g.
		GET("/events", func(ctx *gin.Context) {
			org := ctx.GetUint("org")
			var events []models.Event
			d := db.GetDb()
			if err := d.
				Where(&models.Event{OrganizationID: org}).
				Order("event_date desc").
				Find(&events).
				Error; err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			now := time.Now()
			for i := range events {
				events[i].Status = events[i].EffectiveStatus(now)
			}
			ctx.JSON(http.StatusOK, gin.H{"data": events})
		}).
		GET("/events/:id", func(ctx *gin.Context) {
			var params types.SimpleRequestParams
			if err := ctx.ShouldBindUri(&params); err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			org := ctx.GetUint("org")
			var event models.Event
			d := db.GetDb()
			if err := d.
				Where(&models.Event{ID: params.ID, OrganizationID: org}).
				Preload("TicketTypes").
				Preload("CustomFields", func(db *gorm.DB) *gorm.DB {
					return db.Order("position asc")
				}).
				First(&event).
				Error; err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					ctx.JSON(http.StatusNotFound, gin.H{"error": "Event not found"})
					return
				}
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			event.Status = event.EffectiveStatus(time.Now())
			ctx.JSON(http.StatusOK, gin.H{"data": &event})
		}).
		POST("/events", func(ctx *gin.Context) {
			var body types.CreateEventRequestBody
			if err := ctx.ShouldBindJSON(&body); err != nil {
				log.Printf("Error in validating request: %s\n", err.Error())
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			org := ctx.GetUint("org")
			uid := ctx.GetUint("id")

			status := types.EVENT_DRAFT
			if body.Publish {
				status = types.EVENT_OPEN
			}
			var description *string
			if body.Description != "" {
				description = &body.Description
			}
			event := models.Event{
				OrganizationID:      org,
				Title:               body.Title,
				Slug:                utils.MakeEventSlug(body.Title),
				Description:         description,
				Location:            body.Location,
				EventDate:           body.EventDate,
				EventTime:           body.EventTime,
				Capacity:            body.Capacity,
				Mode:                body.Mode,
				Status:              status,
				Visibility:          body.Visibility,
				AutoClose:           body.AutoClose,
				PaymentInstructions: body.PaymentInstructions,
				CreatedBy:           uid,
			}
			d := db.GetDb()
			if err := d.Transaction(func(tx *gorm.DB) error {
				if err := tx.Create(&event).Error; err != nil {
					return err
				}
				for _, tt := range body.TicketTypes {
					ticketType := models.TicketType{
						EventID: event.ID,
						Name:    tt.Name,
						Price:   tt.Price,
						Quota:   tt.Quota,
					}
					if err := tx.Create(&ticketType).Error; err != nil {
						return err
					}
				}
				for _, cf := range body.CustomFields {
					fieldType := cf.Type
					if fieldType == "" {
						fieldType = types.FIELD_TEXT
					}
					field := models.EventCustomField{
						EventID:  event.ID,
						Label:    cf.Label,
						Type:     fieldType,
						Options:  cf.Options,
						Required: cf.Required,
						Position: cf.Position,
					}
					if err := tx.Create(&field).Error; err != nil {
						return err
					}
				}
				return nil
			}); err != nil {
				log.Printf("Error creating event: %s\n", err.Error())
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			ctx.JSON(http.StatusCreated, gin.H{"data": &event})
		}).
		PUT("/events/:id", func(ctx *gin.Context) {
			var params types.SimpleRequestParams
			if err := ctx.ShouldBindUri(&params); err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			var body types.CreateEventRequestBody
			if err := ctx.ShouldBindJSON(&body); err != nil {
				log.Printf("Error in validating request: %s\n", err.Error())
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			org := ctx.GetUint("org")

			d := db.GetDb()
			var event models.Event
			if err := d.
				Where(&models.Event{ID: params.ID, OrganizationID: org}).
				First(&event).
				Error; err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					ctx.JSON(http.StatusNotFound, gin.H{"error": "Event not found"})
					return
				}
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}

			if err := d.Transaction(func(tx *gorm.DB) error {
				var description *string
				if body.Description != "" {
					description = &body.Description
				}
				updates := map[string]any{
					"title":                body.Title,
					"description":          description,
					"location":             body.Location,
					"event_date":           body.EventDate,
					"event_time":           body.EventTime,
					"capacity":             body.Capacity,
					"auto_close":           body.AutoClose,
					"payment_instructions": body.PaymentInstructions,
				}
				if body.Mode != "" {
					updates["mode"] = body.Mode
				}
				if body.Visibility != "" {
					updates["visibility"] = body.Visibility
				}
				if body.Publish && event.Status == types.EVENT_DRAFT {
					updates["status"] = types.EVENT_OPEN
				}
				if err := tx.
					Model(&models.Event{}).
					Where("id = ?", event.ID).
					Updates(updates).
					Error; err != nil {
					return err
				}

				// Ticket types are replaced wholesale. Existing
				// registrations keep their rows; their ticket reference
				// is cleared first so the delete cannot orphan them.
				if body.TicketTypes != nil {
					if err := tx.
						Model(&models.Participant{}).
						Where("event_id = ?", event.ID).
						Update("ticket_type_id", nil).
						Error; err != nil {
						return err
					}
					if err := tx.
						Where("event_id = ?", event.ID).
						Delete(&models.TicketType{}).
						Error; err != nil {
						return err
					}
					for _, tt := range body.TicketTypes {
						ticketType := models.TicketType{
							EventID: event.ID,
							Name:    tt.Name,
							Price:   tt.Price,
							Quota:   tt.Quota,
						}
						if err := tx.Create(&ticketType).Error; err != nil {
							return err
						}
					}
				}

				if body.CustomFields != nil {
					var oldFields []models.EventCustomField
					if err := tx.
						Where(&models.EventCustomField{EventID: event.ID}).
						Find(&oldFields).
						Error; err != nil {
						return err
					}
					if len(oldFields) > 0 {
						oldIds := make([]uint, 0, len(oldFields))
						for _, field := range oldFields {
							oldIds = append(oldIds, field.ID)
						}
						if err := tx.
							Where("field_id IN ?", oldIds).
							Delete(&models.ParticipantFieldResponse{}).
							Error; err != nil {
							return err
						}
						if err := tx.
							Where("event_id = ?", event.ID).
							Delete(&models.EventCustomField{}).
							Error; err != nil {
							return err
						}
					}
					for _, cf := range body.CustomFields {
						fieldType := cf.Type
						if fieldType == "" {
							fieldType = types.FIELD_TEXT
						}
						field := models.EventCustomField{
							EventID:  event.ID,
							Label:    cf.Label,
							Type:     fieldType,
							Options:  cf.Options,
							Required: cf.Required,
							Position: cf.Position,
						}
						if err := tx.Create(&field).Error; err != nil {
							return err
						}
					}
				}
				return nil
			}); err != nil {
				log.Printf("Error updating event %d: %s\n", event.ID, err.Error())
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			ctx.JSON(http.StatusOK, gin.H{"data": gin.H{"id": event.ID}})
		}).
		POST("/events/:id/publish", func(ctx *gin.Context) {
			var params types.SimpleRequestParams
			if err := ctx.ShouldBindUri(&params); err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			org := ctx.GetUint("org")
			d := db.GetDb()
			res := d.
				Model(&models.Event{}).
				Where(&models.Event{ID: params.ID, OrganizationID: org, Status: types.EVENT_DRAFT}).
				Update("status", types.EVENT_OPEN)
			if res.Error != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": res.Error.Error()})
				return
			}
			if res.RowsAffected == 0 {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": "Event cannot be published"})
				return
			}
			ctx.JSON(http.StatusOK, gin.H{"data": gin.H{"id": params.ID, "status": types.EVENT_OPEN}})
		}).
		POST("/events/:id/close", func(ctx *gin.Context) {
			var params types.SimpleRequestParams
			if err := ctx.ShouldBindUri(&params); err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			org := ctx.GetUint("org")
			d := db.GetDb()
			res := d.
				Model(&models.Event{}).
				Where(&models.Event{ID: params.ID, OrganizationID: org, Status: types.EVENT_OPEN}).
				Update("status", types.EVENT_CLOSED)
			if res.Error != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": res.Error.Error()})
				return
			}
			if res.RowsAffected == 0 {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": "Event is not open"})
				return
			}
			ctx.JSON(http.StatusOK, gin.H{"data": gin.H{"id": params.ID, "status": types.EVENT_CLOSED}})
		})
	return g
}
