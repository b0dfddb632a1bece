package main

import (
	"encoding/json"
	"ers/src/config"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/tidwall/gjson"
)

func checkinTestRouter() *gin.Engine {
	router := setupRouter()
	apiv1 := apiv1Group(router)
	checkinHandlers(apiv1)
	return router
}

func postCheckIn(router *gin.Engine, body map[string]any) *httptest.ResponseRecorder {
	sbody, _ := json.Marshal(&body)
	w := httptest.NewRecorder()
	req, _ := http.NewRequest("POST", "/api/v1/check-in", strings.NewReader(string(sbody)))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)
	return w
}

func participantRow(id uuid.UUID, eventId uint, paymentStatus string, checkInStatus string, checkInTime any) *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "event_id", "registration_id", "qr_code", "full_name",
		"payment_status", "check_in_status", "check_in_time",
	}).AddRow(
		id.String(), eventId, "REG-2025-00042", "qr-token", "Budi Santoso",
		paymentStatus, checkInStatus, checkInTime,
	)
}

func eventRow(id uint, start time.Time) *sqlmock.Rows {
	inWIB := start.In(config.TimezoneWIB)
	return sqlmock.NewRows([]string{
		"id", "organization_id", "title", "event_date", "event_time", "status",
	}).AddRow(
		id, uint(1), "Tech Conference 2025",
		inWIB.Format(config.DATE_PARSE_FORMAT), inWIB.Format(config.TIME_PARSE_FORMAT),
		"open",
	)
}

func TestCheckInUnknownCode(t *testing.T) {
	_, mock := NewMockDBInjected(t)
	empty := func() *sqlmock.Rows {
		return sqlmock.NewRows([]string{"id"})
	}
	mock.ExpectQuery(`SELECT \* FROM "participants"`).WillReturnRows(empty())
	mock.ExpectQuery(`SELECT \* FROM "participants"`).WillReturnRows(empty())

	w := postCheckIn(checkinTestRouter(), map[string]any{"code": "NO-SUCH-CODE"})
	assert.Equal(t, 404, w.Code)
	assert.Nil(t, mock.ExpectationsWereMet())
}

func TestCheckInWrongEvent(t *testing.T) {
	_, mock := NewMockDBInjected(t)
	pid := uuid.New()
	mock.ExpectQuery(`SELECT \* FROM "participants"`).
		WillReturnRows(participantRow(pid, 3, "paid", "not_arrived", nil))

	w := postCheckIn(checkinTestRouter(), map[string]any{"code": "REG-2025-00042", "event_id": 99})
	assert.Equal(t, 400, w.Code)
	assert.Equal(t, int64(3), gjson.Get(w.Body.String(), "event_id").Int())
	assert.Nil(t, mock.ExpectationsWereMet())
}

func TestCheckInBeforeWindowOpens(t *testing.T) {
	_, mock := NewMockDBInjected(t)
	pid := uuid.New()
	start := time.Now().Add(48 * time.Hour)
	mock.ExpectQuery(`SELECT \* FROM "participants"`).
		WillReturnRows(participantRow(pid, 3, "paid", "not_arrived", nil))
	mock.ExpectQuery(`SELECT \* FROM "events"`).
		WillReturnRows(eventRow(3, start))

	w := postCheckIn(checkinTestRouter(), map[string]any{"code": "REG-2025-00042"})
	assert.Equal(t, 400, w.Code)
	assert.NotEmpty(t, gjson.Get(w.Body.String(), "opens_at").String())
	assert.Nil(t, mock.ExpectationsWereMet())
}

func TestCheckInAlreadyCheckedIn(t *testing.T) {
	_, mock := NewMockDBInjected(t)
	pid := uuid.New()
	prior := time.Now().Add(-10 * time.Minute)
	start := time.Now().Add(-30 * time.Minute)
	mock.ExpectQuery(`SELECT \* FROM "participants"`).
		WillReturnRows(participantRow(pid, 3, "paid", "checked_in", prior))
	mock.ExpectQuery(`SELECT \* FROM "events"`).
		WillReturnRows(eventRow(3, start))

	w := postCheckIn(checkinTestRouter(), map[string]any{"code": "REG-2025-00042"})
	assert.Equal(t, 400, w.Code)
	assert.NotEmpty(t, gjson.Get(w.Body.String(), "check_in_time").String())
	assert.Nil(t, mock.ExpectationsWereMet())
}

func TestCheckInUnpaidParticipant(t *testing.T) {
	_, mock := NewMockDBInjected(t)
	pid := uuid.New()
	start := time.Now().Add(-30 * time.Minute)
	mock.ExpectQuery(`SELECT \* FROM "participants"`).
		WillReturnRows(participantRow(pid, 3, "pending", "not_arrived", nil))
	mock.ExpectQuery(`SELECT \* FROM "events"`).
		WillReturnRows(eventRow(3, start))

	w := postCheckIn(checkinTestRouter(), map[string]any{"code": "REG-2025-00042"})
	assert.Equal(t, 400, w.Code)
	assert.Equal(t, "pending", gjson.Get(w.Body.String(), "payment_status").String())
	assert.Nil(t, mock.ExpectationsWereMet())
}

func TestCheckInSuccess(t *testing.T) {
	_, mock := NewMockDBInjected(t)
	pid := uuid.New()
	start := time.Now().Add(-30 * time.Minute)
	mock.ExpectQuery(`SELECT \* FROM "participants"`).
		WillReturnRows(participantRow(pid, 3, "paid", "not_arrived", nil))
	mock.ExpectQuery(`SELECT \* FROM "events"`).
		WillReturnRows(eventRow(3, start))
	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE "participants"`).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	w := postCheckIn(checkinTestRouter(), map[string]any{"code": "REG-2025-00042"})
	assert.Equal(t, 200, w.Code)
	body := w.Body.String()
	assert.Equal(t, "checked_in", gjson.Get(body, "data.check_in_status").String())
	assert.Equal(t, pid.String(), gjson.Get(body, "data.id").String())
	assert.Nil(t, mock.ExpectationsWereMet())
}

func TestCheckInByInternalID(t *testing.T) {
	_, mock := NewMockDBInjected(t)
	pid := uuid.New()
	start := time.Now().Add(-30 * time.Minute)
	// A uuid-shaped code is tried against the internal id first.
	mock.ExpectQuery(`SELECT \* FROM "participants"`).
		WillReturnRows(participantRow(pid, 3, "paid", "not_arrived", nil))
	mock.ExpectQuery(`SELECT \* FROM "events"`).
		WillReturnRows(eventRow(3, start))
	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE "participants"`).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	w := postCheckIn(checkinTestRouter(), map[string]any{"code": pid.String()})
	assert.Equal(t, 200, w.Code)
	assert.Nil(t, mock.ExpectationsWereMet())
}

func TestCheckInWindowConstants(t *testing.T) {
	assert.Equal(t, 60*time.Minute, config.CHECKIN_OPEN_BEFORE)
	assert.Equal(t, time.Hour, config.AUTO_CLOSE_AFTER)
}
