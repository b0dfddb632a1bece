package main

import (
	"encoding/json"
	"ers/src/db"
	"log"
	"net/http"
	"net/http/httptest"
	"os"
	"path"
	"strings"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/suite"
	"github.com/tidwall/gjson"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

type TestSuite struct {
	suite.Suite
	DB   *gorm.DB
	Mock sqlmock.Sqlmock
}

func NewMockDB() (*gorm.DB, sqlmock.Sqlmock) {
	mockdb, mock, err := sqlmock.New()
	if err != nil {
		log.Fatalf("An error '%s' was not expected when opening a stub database connection", err)
	}

	gormDB, err := gorm.Open(postgres.New(postgres.Config{Conn: mockdb}), &gorm.Config{})
	if err != nil {
		log.Fatalf("An error '%s' was not expected when opening gorm database", err)
	}

	return gormDB, mock
}

// NewMockDBInjected swaps the package db singleton for a fresh mock and
// restores it when the test ends.
func NewMockDBInjected(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	gormDB, mock := NewMockDB()
	db.NewDB(gormDB)
	t.Cleanup(func() { db.NewDB(nil) })
	return gormDB, mock
}

func (s *TestSuite) SetupSuite() {
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		v.RegisterValidation("eventdate", eventDateValidatorFunc)
		v.RegisterValidation("eventtime", eventTimeValidatorFunc)
	}
}

func (s *TestSuite) SetupTest() {
	d, mock := NewMockDB()
	db.NewDB(d)
	s.DB = d
	s.Mock = mock
}

func (s *TestSuite) TestPingRoute() {
	router := setupRouter()

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/", nil)
	router.ServeHTTP(w, req)

	assert.Equal(s.T(), 200, w.Code)
}

func (s *TestSuite) TestMaintenanceMode() {
	s.T().Setenv("MAINTENANCE_MODE", "true")

	router := setupRouter()
	router = maintenanceModeMiddleware(router)
	apiv1Group(router)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/api/v1", nil)
	router.ServeHTTP(w, req)

	assert.Equal(s.T(), 503, w.Code)
}

func (s *TestSuite) TestAuthLoginUnknownUser() {
	router := setupRouter()
	guestAuthRoutes(router)

	s.Mock.ExpectQuery(`SELECT \* FROM "users"`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	jbody := map[string]any{"email": "nobody@example.com"}
	sbody, _ := json.Marshal(&jbody)
	w := httptest.NewRecorder()
	req, _ := http.NewRequest("POST", "/api/v1/auth/login", strings.NewReader(string(sbody)))
	router.ServeHTTP(w, req)

	assert.Equal(s.T(), 401, w.Code)
	assert.Nil(s.T(), s.Mock.ExpectationsWereMet())
}

func (s *TestSuite) TestRegistrationValidation() {
	router := setupRouter()
	apiv1 := apiv1Group(router)
	registrationHandlers(apiv1)

	s.Run("Should reject a body without an event id", func() {
		w := httptest.NewRecorder()
		body := `{"full_name": "Budi", "email": "budi@example.com"}`
		req, _ := http.NewRequest("POST", "/api/v1/registrations", strings.NewReader(body))
		router.ServeHTTP(w, req)

		assert.Equal(s.T(), 400, w.Code)
		assert.Contains(s.T(), gjson.Get(w.Body.String(), "error").String(), "event_id")
	})

	s.Run("Should reject an empty participant list", func() {
		w := httptest.NewRecorder()
		body := `{"event_id": 3, "participants": []}`
		req, _ := http.NewRequest("POST", "/api/v1/registrations", strings.NewReader(body))
		router.ServeHTTP(w, req)

		assert.Equal(s.T(), 400, w.Code)
	})

	s.Run("Should reject a participant without name or email", func() {
		w := httptest.NewRecorder()
		body := `{"event_id": 3, "participants": [{"full_name": "Budi"}]}`
		req, _ := http.NewRequest("POST", "/api/v1/registrations", strings.NewReader(body))
		router.ServeHTTP(w, req)

		assert.Equal(s.T(), 400, w.Code)
		assert.Contains(s.T(), gjson.Get(w.Body.String(), "error").String(), "participant 1")
	})
}

func (s *TestSuite) TestCheckInValidation() {
	router := setupRouter()
	apiv1 := apiv1Group(router)
	checkinHandlers(apiv1)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("POST", "/api/v1/check-in", strings.NewReader(`{}`))
	router.ServeHTTP(w, req)

	assert.Equal(s.T(), 400, w.Code)
}

func (s *TestSuite) TestPaymentWebhook() {
	router := setupRouter()
	paymentWebhookRoute(router)

	s.Run("Should acknowledge a malformed payload without touching the database", func() {
		w := httptest.NewRecorder()
		req, _ := http.NewRequest("POST", "/api/v1/webhook/payment", strings.NewReader(`{not json`))
		router.ServeHTTP(w, req)

		assert.Equal(s.T(), 200, w.Code)
		assert.Equal(s.T(), "ignored", gjson.Get(w.Body.String(), "status").String())
		assert.Nil(s.T(), s.Mock.ExpectationsWereMet())
	})

	s.Run("Should acknowledge a notification for an unknown order", func() {
		s.Mock.ExpectBegin()
		s.Mock.ExpectQuery(`SELECT \* FROM "participants"`).
			WillReturnRows(sqlmock.NewRows([]string{"id"}))
		s.Mock.ExpectRollback()

		payload := map[string]any{
			"order_id":           "b3c9c1de-94c2-4c63-92c7-9c1de94c2b3c",
			"transaction_status": "settlement",
		}
		sbody, _ := json.Marshal(&payload)
		w := httptest.NewRecorder()
		req, _ := http.NewRequest("POST", "/api/v1/webhook/payment", strings.NewReader(string(sbody)))
		router.ServeHTTP(w, req)

		assert.Equal(s.T(), 200, w.Code)
		assert.Equal(s.T(), "ignored", gjson.Get(w.Body.String(), "status").String())
		assert.Nil(s.T(), s.Mock.ExpectationsWereMet())
	})
}

func TestInitLoggerCreatesLogDir(t *testing.T) {
	t.Chdir(t.TempDir())
	initLogger()

	_, err := os.Stat(path.Join("logs", "api.log"))
	assert.Nil(t, err)
}

func TestRunner(t *testing.T) {
	suite.Run(t, new(TestSuite))
}
