package lib

import (
	"bytes"
	"crypto/sha512"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"time"
)

type SnapItemDetail struct {
	ID       string  `json:"id"`
	Name     string  `json:"name"`
	Price    float64 `json:"price"`
	Quantity uint    `json:"quantity"`
}

type SnapCustomerDetail struct {
	FirstName string `json:"first_name"`
	Email     string `json:"email"`
	Phone     string `json:"phone,omitempty"`
}

type SnapTransactionInput struct {
	OrderID     string
	GrossAmount float64
	Items       []SnapItemDetail
	Customer    SnapCustomerDetail
}

type SnapTransactionOutput struct {
	Token       string `json:"token"`
	RedirectURL string `json:"redirect_url"`
}

// CreateSnapTransaction registers the order with the payment gateway and
// returns the token + redirect URL the frontend hands to the payer.
func CreateSnapTransaction(input *SnapTransactionInput) (*SnapTransactionOutput, error) {
	baseURL := os.Getenv("MIDTRANS_BASE_URL")
	serverKey := os.Getenv("MIDTRANS_SERVER_KEY")
	if baseURL == "" || serverKey == "" {
		return nil, fmt.Errorf("payment gateway is not configured")
	}
	payload := map[string]any{
		"transaction_details": map[string]any{
			"order_id":     input.OrderID,
			"gross_amount": input.GrossAmount,
		},
		"item_details":     input.Items,
		"customer_details": input.Customer,
	}
	body, err := json.Marshal(&payload)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequest(http.MethodPost, fmt.Sprintf("%s/snap/v1/transactions", baseURL), bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	auth := base64.StdEncoding.EncodeToString([]byte(serverKey + ":"))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", fmt.Sprintf("Basic %s", auth))

	client := &http.Client{Timeout: 30 * time.Second}
	res, err := client.Do(req)
	if err != nil {
		log.Printf("[midtrans] Error creating transaction for order %s: %s\n", input.OrderID, err.Error())
		return nil, err
	}
	defer res.Body.Close()
	resBody, _ := io.ReadAll(res.Body)
	if res.StatusCode < 200 || res.StatusCode > 299 {
		log.Printf("[midtrans] gateway returned HTTP %d: %s\n", res.StatusCode, string(resBody))
		return nil, fmt.Errorf("gateway returned HTTP %d", res.StatusCode)
	}
	var out SnapTransactionOutput
	if err := json.Unmarshal(resBody, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// VerifyGatewaySignature checks the webhook signature_key:
// sha512(order_id + status_code + gross_amount + server_key).
// Returns true when no server key is configured so local setups without
// a gateway account still accept notifications.
func VerifyGatewaySignature(orderId string, statusCode string, grossAmount string, signature string) bool {
	serverKey := os.Getenv("MIDTRANS_SERVER_KEY")
	if serverKey == "" {
		return true
	}
	sum := sha512.Sum512([]byte(orderId + statusCode + grossAmount + serverKey))
	expected := hex.EncodeToString(sum[:])
	return subtle.ConstantTimeCompare([]byte(expected), []byte(signature)) == 1
}
