package lib

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/tidwall/gjson"
)

// WahaClient talks to a WAHA-compatible messaging relay. All endpoints
// take {session, chatId, [text]} JSON bodies and an X-Api-Key header.
type WahaClient struct {
	BaseURL string
	APIKey  string
	Session string

	httpClient *http.Client
}

func NewWahaClient(baseURL string, apiKey string, session string) *WahaClient {
	return &WahaClient{
		BaseURL: baseURL,
		APIKey:  apiKey,
		Session: session,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

func (c *WahaClient) post(path string, payload map[string]any) (string, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}
	url := fmt.Sprintf("%s%s", c.BaseURL, path)
	req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Api-Key", c.APIKey)
	res, err := c.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer res.Body.Close()
	resBody, _ := io.ReadAll(res.Body)
	if res.StatusCode < 200 || res.StatusCode > 299 {
		return string(resBody), fmt.Errorf("relay returned HTTP %d", res.StatusCode)
	}
	return string(resBody), nil
}

func (c *WahaClient) SendSeen(chatId string) error {
	_, err := c.post("/api/sendSeen", map[string]any{
		"session": c.Session,
		"chatId":  chatId,
	})
	if err != nil {
		log.Printf("[waha] sendSeen failed for %s: %s\n", chatId, err.Error())
	}
	return err
}

func (c *WahaClient) StartTyping(chatId string) error {
	_, err := c.post("/api/startTyping", map[string]any{
		"session": c.Session,
		"chatId":  chatId,
	})
	if err != nil {
		log.Printf("[waha] startTyping failed for %s: %s\n", chatId, err.Error())
	}
	return err
}

// SendText delivers the message and returns the relay's message id when
// the response carries one.
func (c *WahaClient) SendText(chatId string, text string) (string, error) {
	res, err := c.post("/api/sendText", map[string]any{
		"session": c.Session,
		"chatId":  chatId,
		"text":    text,
	})
	if err != nil {
		return "", err
	}
	messageId := gjson.Get(res, "id").String()
	if messageId == "" {
		messageId = gjson.Get(res, "key.id").String()
	}
	return messageId, nil
}

// SessionStatus probes GET /api/sessions/{session} for health display.
func (c *WahaClient) SessionStatus() (string, error) {
	url := fmt.Sprintf("%s/api/sessions/%s", c.BaseURL, c.Session)
	req, err := http.NewRequest(http.MethodGet, url, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("X-Api-Key", c.APIKey)
	res, err := c.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer res.Body.Close()
	body, _ := io.ReadAll(res.Body)
	if res.StatusCode < 200 || res.StatusCode > 299 {
		return string(body), fmt.Errorf("relay returned HTTP %d", res.StatusCode)
	}
	return string(body), nil
}
