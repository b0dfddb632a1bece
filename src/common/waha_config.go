package common

import (
	"ers/src/db"
	"ers/src/models"
	"ers/src/types"
	"ers/src/utils"
	"fmt"

	"github.com/tidwall/gjson"
)

const (
	SettingNotificationPreferences = "notification_preferences"
	SettingWahaBaseURL             = "waha_base_url"
	SettingWahaAPIKey              = "waha_api_key"
	SettingWahaSession             = "waha_session"
	SettingWahaEnabled             = "waha_enabled"
	SettingBankTransferDetails     = "bank_transfer_details"

	defaultWahaSession = "default"
)

type WahaConfig struct {
	BaseURL  string
	APIKey   string
	Session  string
	Isolated bool
}

type WahaUnavailableReason string

const (
	WahaOrgDisabled      WahaUnavailableReason = "org_disabled"
	WahaGloballyDisabled WahaUnavailableReason = "globally_disabled"
	WahaMisconfigured    WahaUnavailableReason = "misconfigured"
)

type WahaUnavailableError struct {
	Reason WahaUnavailableReason
	Detail string
}

func (e *WahaUnavailableError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("whatsapp unavailable (%s): %s", e.Reason, e.Detail)
	}
	return fmt.Sprintf("whatsapp unavailable (%s)", e.Reason)
}

// decideWhatsAppEnabled is the ordered precedence chain: explicit
// notification preference, then the legacy organization column (only
// when no preference record exists), then the global flag. Everything
// unset means enabled, which keeps organizations created before the
// preference rollout working.
func decideWhatsAppEnabled(pref *bool, legacy *bool, global *bool) bool {
	if pref != nil {
		return *pref
	}
	if legacy != nil {
		return *legacy
	}
	if global != nil {
		return *global
	}
	return true
}

func loadSettingsMap(orgId uint) (map[string]string, map[string]string, error) {
	var rows []models.Setting
	d := db.GetDb()
	if err := d.
		Where("organization_id IN ?", []uint{orgId, types.SETTING_SCOPE_SYSTEM}).
		Find(&rows).
		Error; err != nil {
		return nil, nil, err
	}
	orgVals := map[string]string{}
	sysVals := map[string]string{}
	for _, row := range rows {
		if row.OrganizationID == types.SETTING_SCOPE_SYSTEM {
			sysVals[row.SettingKey] = row.SettingValue
		} else {
			orgVals[row.SettingKey] = row.SettingValue
		}
	}
	return orgVals, sysVals, nil
}

// ResolveWahaConfig determines how (or whether) the organization can
// reach the messaging relay. First match wins: notification preference,
// legacy column fallback, isolated per-organization credentials, global
// system credentials.
func ResolveWahaConfig(orgId uint) (*WahaConfig, error) {
	orgVals, sysVals, err := loadSettingsMap(orgId)
	if err != nil {
		return nil, err
	}

	var pref *bool
	if raw, ok := orgVals[SettingNotificationPreferences]; ok {
		enabled := true
		if v := gjson.Get(raw, "whatsapp_enabled"); v.Exists() && !v.Bool() {
			enabled = false
		}
		pref = &enabled
	}

	var legacy *bool
	if pref == nil {
		var org models.Organization
		d := db.GetDb()
		if err := d.
			Model(&models.Organization{}).
			Where("id = ?", orgId).
			First(&org).
			Error; err == nil {
			legacy = org.WhatsappNotifications
		}
	}

	if !decideWhatsAppEnabled(pref, legacy, nil) {
		return nil, &WahaUnavailableError{Reason: WahaOrgDisabled}
	}

	// Isolated mode: organization-scoped credentials win over global.
	if orgVals[SettingWahaBaseURL] != "" && orgVals[SettingWahaAPIKey] != "" {
		session := orgVals[SettingWahaSession]
		if session == "" {
			session = defaultWahaSession
		}
		return &WahaConfig{
			BaseURL:  utils.NormalizeBaseURL(orgVals[SettingWahaBaseURL]),
			APIKey:   orgVals[SettingWahaAPIKey],
			Session:  session,
			Isolated: true,
		}, nil
	}

	if sysVals[SettingWahaEnabled] == "false" {
		return nil, &WahaUnavailableError{Reason: WahaGloballyDisabled}
	}
	if sysVals[SettingWahaBaseURL] == "" {
		return nil, &WahaUnavailableError{Reason: WahaMisconfigured, Detail: "missing " + SettingWahaBaseURL}
	}
	if sysVals[SettingWahaAPIKey] == "" {
		return nil, &WahaUnavailableError{Reason: WahaMisconfigured, Detail: "missing " + SettingWahaAPIKey}
	}
	session := sysVals[SettingWahaSession]
	if session == "" {
		session = defaultWahaSession
	}
	return &WahaConfig{
		BaseURL: utils.NormalizeBaseURL(sysVals[SettingWahaBaseURL]),
		APIKey:  sysVals[SettingWahaAPIKey],
		Session: session,
	}, nil
}
