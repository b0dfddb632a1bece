package main

import (
	"context"
	"errors"
	"ers/src/common"
	"ers/src/db"
	"ers/src/lib"
	"ers/src/models"
	"ers/src/types"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/tidwall/gjson"
	"gorm.io/gorm/clause"
)

const wahaStatusCacheTTL = 30 * time.Second

func settingsHandlers(g *gin.RouterGroup) *gin.RouterGroup {
	g.
		GET("/settings", func(ctx *gin.Context) {
			org := ctx.GetUint("org")
			scope := org
			if ctx.Query("scope") == "system" {
				if ctx.GetString("role") != "admin" {
					ctx.AbortWithStatus(http.StatusForbidden)
					return
				}
				scope = types.SETTING_SCOPE_SYSTEM
			}
			var settings []models.Setting
			d := db.GetDb()
			if err := d.
				Where("organization_id = ?", scope).
				Order("setting_key asc").
				Find(&settings).
				Error; err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			ctx.JSON(http.StatusOK, gin.H{"data": settings})
		}).
		POST("/settings", func(ctx *gin.Context) {
			var body types.CreateSettingRequestBody
			if err := ctx.ShouldBindJSON(&body); err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			org := ctx.GetUint("org")
			scope := org
			if body.OrganizationID != org {
				// Writing another scope is an admin operation. System
				// scope rows carry organization id 0.
				if ctx.GetString("role") != "admin" {
					ctx.AbortWithStatus(http.StatusForbidden)
					return
				}
				scope = body.OrganizationID
			}
			if body.Key == common.SettingNotificationPreferences && body.Value != "" {
				if !gjson.Valid(body.Value) {
					ctx.JSON(http.StatusBadRequest, gin.H{"error": "value must be a JSON document"})
					return
				}
			}

			setting := models.Setting{
				SettingKey:     body.Key,
				SettingValue:   body.Value,
				OrganizationID: scope,
			}
			d := db.GetDb()
			if err := d.
				Clauses(clause.OnConflict{
					Columns:   []clause.Column{{Name: "setting_key"}, {Name: "organization_id"}},
					DoUpdates: clause.AssignmentColumns([]string{"setting_value", "updated_at"}),
				}).
				Create(&setting).
				Error; err != nil {
				log.Printf("Error upserting setting %q: %s\n", body.Key, err.Error())
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			ctx.JSON(http.StatusOK, gin.H{"data": &setting})
		}).
		GET("/settings/whatsapp/status", func(ctx *gin.Context) {
			org := ctx.GetUint("org")
			cfg, err := common.ResolveWahaConfig(org)
			if err != nil {
				var unavailable *common.WahaUnavailableError
				if errors.As(err, &unavailable) {
					ctx.JSON(http.StatusOK, gin.H{"data": gin.H{
						"available": false,
						"reason":    unavailable.Reason,
						"detail":    unavailable.Detail,
					}})
					return
				}
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}

			// Status probes hit the relay, so successive dashboard
			// refreshes read the cached answer instead.
			cacheKey := fmt.Sprintf("waha:status:%d", org)
			rd := lib.GetRedisClient()
			if rd != nil {
				if cached, err := rd.Get(context.Background(), cacheKey).Result(); err == nil {
					ctx.JSON(http.StatusOK, gin.H{"data": gin.H{
						"available": true,
						"isolated":  cfg.Isolated,
						"session":   cfg.Session,
						"status":    cached,
						"cached":    true,
					}})
					return
				}
			}

			client := lib.NewWahaClient(cfg.BaseURL, cfg.APIKey, cfg.Session)
			status, err := client.SessionStatus()
			if err != nil {
				log.Printf("[waha] Status probe failed for org %d: %s\n", org, err.Error())
				ctx.JSON(http.StatusOK, gin.H{"data": gin.H{
					"available": false,
					"reason":    "unreachable",
					"detail":    err.Error(),
				}})
				return
			}
			if rd != nil {
				rd.SetEx(context.Background(), cacheKey, status, wahaStatusCacheTTL)
			}
			ctx.JSON(http.StatusOK, gin.H{"data": gin.H{
				"available": true,
				"isolated":  cfg.Isolated,
				"session":   cfg.Session,
				"status":    status,
			}})
		})
	return g
}
