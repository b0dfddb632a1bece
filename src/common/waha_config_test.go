package common

import (
	"ers/src/db"
	"log"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func newMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	mockdb, mock, err := sqlmock.New()
	if err != nil {
		log.Fatalf("An error '%s' was not expected when opening a stub database connection", err)
	}
	gormDB, err := gorm.Open(postgres.New(postgres.Config{Conn: mockdb}), &gorm.Config{})
	if err != nil {
		log.Fatalf("An error '%s' was not expected when opening gorm database", err)
	}
	t.Cleanup(func() { db.NewDB(nil) })
	db.NewDB(gormDB)
	return gormDB, mock
}

func boolPtr(b bool) *bool { return &b }

func TestDecideWhatsAppEnabled(t *testing.T) {
	cases := []struct {
		name     string
		pref     *bool
		legacy   *bool
		global   *bool
		expected bool
	}{
		{"everything unset defaults to enabled", nil, nil, nil, true},
		{"preference wins over legacy and global", boolPtr(false), boolPtr(true), boolPtr(true), false},
		{"preference enables despite legacy off", boolPtr(true), boolPtr(false), boolPtr(false), true},
		{"legacy consulted when no preference", nil, boolPtr(false), boolPtr(true), false},
		{"global consulted last", nil, nil, boolPtr(false), false},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			assert.Equal(t, c.expected, decideWhatsAppEnabled(c.pref, c.legacy, c.global))
		})
	}
}

func settingsRows(rows [][3]any) *sqlmock.Rows {
	r := sqlmock.NewRows([]string{"setting_key", "organization_id", "setting_value"})
	for _, row := range rows {
		r.AddRow(row[0], row[1], row[2])
	}
	return r
}

func TestResolveWahaConfigIsolatedMode(t *testing.T) {
	_, mock := newMockDB(t)

	// Org credentials present: isolated mode wins even though the global
	// flag is off.
	mock.ExpectQuery(`SELECT \* FROM "settings"`).WillReturnRows(settingsRows([][3]any{
		{SettingNotificationPreferences, uint(7), `{"whatsapp_enabled": true}`},
		{SettingWahaBaseURL, uint(7), "waha.acme.org/"},
		{SettingWahaAPIKey, uint(7), "org-key"},
		{SettingWahaEnabled, uint(0), "false"},
	}))

	cfg, err := ResolveWahaConfig(7)
	assert.Nil(t, err)
	assert.True(t, cfg.Isolated)
	assert.Equal(t, "https://waha.acme.org", cfg.BaseURL)
	assert.Equal(t, "org-key", cfg.APIKey)
	assert.Equal(t, "default", cfg.Session)
	assert.Nil(t, mock.ExpectationsWereMet())
}

func TestResolveWahaConfigGlobalFallback(t *testing.T) {
	_, mock := newMockDB(t)

	mock.ExpectQuery(`SELECT \* FROM "settings"`).WillReturnRows(settingsRows([][3]any{
		{SettingNotificationPreferences, uint(7), `{"whatsapp_enabled": true}`},
		{SettingWahaBaseURL, uint(0), "https://waha.example.com"},
		{SettingWahaAPIKey, uint(0), "system-key"},
		{SettingWahaSession, uint(0), "main"},
	}))

	cfg, err := ResolveWahaConfig(7)
	assert.Nil(t, err)
	assert.False(t, cfg.Isolated)
	assert.Equal(t, "https://waha.example.com", cfg.BaseURL)
	assert.Equal(t, "system-key", cfg.APIKey)
	assert.Equal(t, "main", cfg.Session)
	assert.Nil(t, mock.ExpectationsWereMet())
}

func TestResolveWahaConfigOrgDisabled(t *testing.T) {
	_, mock := newMockDB(t)

	mock.ExpectQuery(`SELECT \* FROM "settings"`).WillReturnRows(settingsRows([][3]any{
		{SettingNotificationPreferences, uint(7), `{"whatsapp_enabled": false}`},
		{SettingWahaBaseURL, uint(0), "https://waha.example.com"},
		{SettingWahaAPIKey, uint(0), "system-key"},
	}))

	cfg, err := ResolveWahaConfig(7)
	assert.Nil(t, cfg)
	var unavailable *WahaUnavailableError
	assert.ErrorAs(t, err, &unavailable)
	assert.Equal(t, WahaOrgDisabled, unavailable.Reason)
	assert.Nil(t, mock.ExpectationsWereMet())
}

func TestResolveWahaConfigPreferenceRecordWithoutFlag(t *testing.T) {
	_, mock := newMockDB(t)

	// A preference record that never mentions whatsapp_enabled counts as
	// enabled, not as unset.
	mock.ExpectQuery(`SELECT \* FROM "settings"`).WillReturnRows(settingsRows([][3]any{
		{SettingNotificationPreferences, uint(7), `{"email_enabled": false}`},
		{SettingWahaBaseURL, uint(0), "https://waha.example.com"},
		{SettingWahaAPIKey, uint(0), "system-key"},
	}))

	cfg, err := ResolveWahaConfig(7)
	assert.Nil(t, err)
	assert.NotNil(t, cfg)
	assert.Nil(t, mock.ExpectationsWereMet())
}

func TestResolveWahaConfigGloballyDisabled(t *testing.T) {
	_, mock := newMockDB(t)

	mock.ExpectQuery(`SELECT \* FROM "settings"`).WillReturnRows(settingsRows([][3]any{
		{SettingNotificationPreferences, uint(7), `{"whatsapp_enabled": true}`},
		{SettingWahaEnabled, uint(0), "false"},
		{SettingWahaBaseURL, uint(0), "https://waha.example.com"},
		{SettingWahaAPIKey, uint(0), "system-key"},
	}))

	cfg, err := ResolveWahaConfig(7)
	assert.Nil(t, cfg)
	var unavailable *WahaUnavailableError
	assert.ErrorAs(t, err, &unavailable)
	assert.Equal(t, WahaGloballyDisabled, unavailable.Reason)
	assert.Nil(t, mock.ExpectationsWereMet())
}

func TestResolveWahaConfigMisconfigured(t *testing.T) {
	_, mock := newMockDB(t)

	mock.ExpectQuery(`SELECT \* FROM "settings"`).WillReturnRows(settingsRows([][3]any{
		{SettingNotificationPreferences, uint(7), `{"whatsapp_enabled": true}`},
		{SettingWahaBaseURL, uint(0), "https://waha.example.com"},
	}))

	cfg, err := ResolveWahaConfig(7)
	assert.Nil(t, cfg)
	var unavailable *WahaUnavailableError
	assert.ErrorAs(t, err, &unavailable)
	assert.Equal(t, WahaMisconfigured, unavailable.Reason)
	assert.Contains(t, unavailable.Detail, SettingWahaAPIKey)
	assert.Nil(t, mock.ExpectationsWereMet())
}

func TestResolveWahaConfigLegacyColumnFallback(t *testing.T) {
	_, mock := newMockDB(t)

	// No preference record: the legacy organization column is consulted.
	mock.ExpectQuery(`SELECT \* FROM "settings"`).WillReturnRows(settingsRows([][3]any{
		{SettingWahaBaseURL, uint(0), "https://waha.example.com"},
		{SettingWahaAPIKey, uint(0), "system-key"},
	}))
	mock.ExpectQuery(`SELECT \* FROM "organizations"`).WillReturnRows(
		sqlmock.NewRows([]string{"id", "name", "whatsapp_notifications"}).
			AddRow(uint(7), "Acme", false),
	)

	cfg, err := ResolveWahaConfig(7)
	assert.Nil(t, cfg)
	var unavailable *WahaUnavailableError
	assert.ErrorAs(t, err, &unavailable)
	assert.Equal(t, WahaOrgDisabled, unavailable.Reason)
	assert.Nil(t, mock.ExpectationsWereMet())
}
