package common

import (
	"encoding/json"
	"ers/src/lib"
	awslib "ers/src/lib/aws"
	"ers/src/utils"
	"log"
	"os"
)

// SQSConsumers wires the queue listeners. Only the email queue exists
// today; WhatsApp dispatch stays in-process since the relay pacing
// already serializes it.
func SQSConsumers() {
	emailQueue := os.Getenv("EMAIL_QUEUE")
	if emailQueue == "" {
		return
	}
	emails := awslib.NewSQSConsumer(utils.WithSuffix(emailQueue), EmailQueueHandler)
	emails.Listen()
}

func EmailQueueHandler(payload string) {
	var body struct {
		From     string   `json:"from"`
		FromName string   `json:"from-name"`
		To       []string `json:"to"`
		Cc       []string `json:"cc"`
		Bcc      []string `json:"bcc"`
		ReplyTo  string   `json:"reply-to"`
		Body     string   `json:"body"`
		Html     bool     `json:"html"`
		Subject  string   `json:"subject"`
	}
	if err := json.Unmarshal([]byte(payload), &body); err != nil {
		log.Printf("[emails] Error decoding queued message: %s\n", err.Error())
		return
	}
	if err := lib.SendMail(&lib.SendMailInput{
		From:     body.From,
		FromName: body.FromName,
		To:       body.To,
		Cc:       body.Cc,
		Bcc:      body.Bcc,
		ReplyTo:  body.ReplyTo,
		Subject:  body.Subject,
		Body:     body.Body,
		Html:     body.Html,
	}); err != nil {
		log.Printf("[emails] Error sending queued message: %s\n", err.Error())
	}
}
