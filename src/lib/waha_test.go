package lib

import (
	"crypto/sha512"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWahaClientSendText(t *testing.T) {
	var gotBody map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/sendText", r.URL.Path)
		assert.Equal(t, "secret", r.Header.Get("X-Api-Key"))
		raw, _ := io.ReadAll(r.Body)
		json.Unmarshal(raw, &gotBody)
		w.Write([]byte(`{"id": "true_6281234567890@c.us_AAA"}`))
	}))
	defer server.Close()

	client := NewWahaClient(server.URL, "secret", "main")
	messageId, err := client.SendText("6281234567890@c.us", "Halo!")
	assert.Nil(t, err)
	assert.Equal(t, "true_6281234567890@c.us_AAA", messageId)
	assert.Equal(t, "main", gotBody["session"])
	assert.Equal(t, "6281234567890@c.us", gotBody["chatId"])
	assert.Equal(t, "Halo!", gotBody["text"])
}

func TestWahaClientSendTextNestedMessageID(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"key": {"id": "BBB"}}`))
	}))
	defer server.Close()

	client := NewWahaClient(server.URL, "secret", "default")
	messageId, err := client.SendText("6281234567890@c.us", "Halo!")
	assert.Nil(t, err)
	assert.Equal(t, "BBB", messageId)
}

func TestWahaClientRelayErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
	}))
	defer server.Close()

	client := NewWahaClient(server.URL, "secret", "default")
	_, err := client.SendText("6281234567890@c.us", "Halo!")
	assert.NotNil(t, err)
	assert.Contains(t, err.Error(), "422")
}

func TestWahaClientSessionStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/sessions/main", r.URL.Path)
		w.Write([]byte(`{"name": "main", "status": "WORKING"}`))
	}))
	defer server.Close()

	client := NewWahaClient(server.URL, "secret", "main")
	status, err := client.SessionStatus()
	assert.Nil(t, err)
	assert.Contains(t, status, "WORKING")
}

func TestVerifyGatewaySignature(t *testing.T) {
	t.Run("accepts everything when no server key is set", func(t *testing.T) {
		t.Setenv("MIDTRANS_SERVER_KEY", "")
		assert.True(t, VerifyGatewaySignature("order-1", "200", "150000.00", "whatever"))
	})

	t.Run("validates the sha512 chain", func(t *testing.T) {
		t.Setenv("MIDTRANS_SERVER_KEY", "sk-test")
		sum := sha512.Sum512([]byte("order-1" + "200" + "150000.00" + "sk-test"))
		valid := hex.EncodeToString(sum[:])

		assert.True(t, VerifyGatewaySignature("order-1", "200", "150000.00", valid))
		assert.False(t, VerifyGatewaySignature("order-1", "200", "150000.00", "forged"))
	})
}
