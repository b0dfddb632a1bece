package common

import (
	"ers/src/db"
	"ers/src/lib"
	"ers/src/lib/mailer"
	"ers/src/models"
	"ers/src/types"
	"ers/src/utils"
	"fmt"
	"log"
	"math/rand"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type NotifyResult struct {
	Success   bool   `json:"success"`
	MessageID string `json:"message_id,omitempty"`
	Error     string `json:"error,omitempty"`
}

// Delay bounds for the human-pacing sequence. Package vars so tests can
// zero them.
var (
	preSendDelayMin = 8 * time.Second
	preSendDelayMax = 15 * time.Second
	typingDelayMin  = 3 * time.Second
	typingDelayMax  = 6 * time.Second

	sleepFn = time.Sleep
)

func humanDelay(min time.Duration, max time.Duration) {
	if max <= min {
		sleepFn(min)
		return
	}
	sleepFn(min + time.Duration(rand.Int63n(int64(max-min))))
}

// counterpartMessagedFirst reports whether the recipient messaged this
// number before we did, in which case marking the chat seen looks more
// natural. Chat history lookup is not implemented, so this is always
// false for now.
func counterpartMessagedFirst(chatId string) bool {
	return false
}

func recordWhatsAppSent(participantId uuid.UUID) {
	now := time.Now()
	status := types.WHATSAPP_SENT
	d := db.GetDb()
	if err := d.
		Model(&models.Participant{}).
		Where("id = ?", participantId).
		Updates(map[string]any{
			"whatsapp_status":  status,
			"whatsapp_sent_at": now,
			"whatsapp_error":   nil,
		}).
		Error; err != nil {
		log.Printf("[waha] Error recording sent status for participant %s: %s\n", participantId, err.Error())
	}
}

func recordWhatsAppFailed(participantId uuid.UUID, reason string) {
	status := types.WHATSAPP_FAILED
	d := db.GetDb()
	if err := d.
		Model(&models.Participant{}).
		Where("id = ?", participantId).
		Updates(map[string]any{
			"whatsapp_status": status,
			"whatsapp_error":  reason,
		}).
		Error; err != nil {
		log.Printf("[waha] Error recording failed status for participant %s: %s\n", participantId, err.Error())
	}
}

// SendWhatsAppMessage delivers one message through the relay with
// simulated human pacing and records the outcome on the participant row.
// It never panics or returns an error to its caller; every failure mode
// is folded into the result value.
func SendWhatsAppMessage(orgId uint, participantId uuid.UUID, phone string, message string) (result NotifyResult) {
	defer func() {
		if r := recover(); r != nil {
			reason := fmt.Sprintf("panic during dispatch: %v", r)
			log.Printf("[waha] %s\n", reason)
			recordWhatsAppFailed(participantId, reason)
			result = NotifyResult{Success: false, Error: reason}
		}
	}()

	cfg, err := ResolveWahaConfig(orgId)
	if err != nil {
		var unavailable *WahaUnavailableError
		if uerr, ok := err.(*WahaUnavailableError); ok {
			unavailable = uerr
		}
		// Deliberately disabled channels are not delivery failures and
		// leave the participant row untouched.
		if unavailable == nil || unavailable.Reason == WahaMisconfigured {
			recordWhatsAppFailed(participantId, err.Error())
		}
		return NotifyResult{Success: false, Error: err.Error()}
	}

	chatId := utils.NormalizePhoneNumber(phone)
	client := lib.NewWahaClient(cfg.BaseURL, cfg.APIKey, cfg.Session)

	humanDelay(preSendDelayMin, preSendDelayMax)
	if counterpartMessagedFirst(chatId) {
		client.SendSeen(chatId)
	}
	client.StartTyping(chatId)
	humanDelay(typingDelayMin, typingDelayMax)

	messageId, err := client.SendText(chatId, message)
	if err != nil {
		recordWhatsAppFailed(participantId, err.Error())
		return NotifyResult{Success: false, Error: err.Error()}
	}
	recordWhatsAppSent(participantId)
	return NotifyResult{Success: true, MessageID: messageId}
}

type MessageFieldPair struct {
	Label    string
	Response string
}

type RegistrationMessageInput struct {
	EventTitle     string
	FullName       string
	RegistrationID string
	TicketURL      string
	TicketName     string
	TicketPrice    *float64
	CustomFields   []MessageFieldPair
}

// GenerateRegistrationMessage renders the fixed-structure confirmation
// sent after a registration is paid.
func GenerateRegistrationMessage(in *RegistrationMessageInput) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Halo %s!\n\n", in.FullName)
	fmt.Fprintf(&b, "Pendaftaran kamu untuk *%s* sudah dikonfirmasi.\n\n", in.EventTitle)
	fmt.Fprintf(&b, "Nomor registrasi: *%s*\n", in.RegistrationID)
	if in.TicketName != "" {
		if in.TicketPrice != nil {
			fmt.Fprintf(&b, "Tiket: %s (%s)\n", in.TicketName, utils.FormatIDR(*in.TicketPrice))
		} else {
			fmt.Fprintf(&b, "Tiket: %s\n", in.TicketName)
		}
	}
	for _, field := range in.CustomFields {
		fmt.Fprintf(&b, "%s: %s\n", field.Label, field.Response)
	}
	fmt.Fprintf(&b, "\nE-tiket dengan kode QR bisa dilihat di sini:\n%s\n", in.TicketURL)
	b.WriteString("\nTunjukkan kode QR ini di pintu masuk ya. Sampai jumpa di acara!")
	return b.String()
}

type PaymentPendingMessageInput struct {
	EventTitle     string
	FullName       string
	RegistrationID string
	Amount         float64
	PaymentURL     string
	BankDetails    string
}

// GeneratePaymentPendingMessage renders the reminder used when a paid
// event's participant has not completed payment yet.
func GeneratePaymentPendingMessage(in *PaymentPendingMessageInput) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Halo %s!\n\n", in.FullName)
	fmt.Fprintf(&b, "Pendaftaran kamu untuk *%s* sudah kami terima dengan nomor registrasi *%s*.\n\n", in.EventTitle, in.RegistrationID)
	fmt.Fprintf(&b, "Untuk mengamankan tempatmu, selesaikan pembayaran sebesar *%s* melalui tautan berikut:\n%s\n", utils.FormatIDR(in.Amount), in.PaymentURL)
	if in.BankDetails != "" {
		fmt.Fprintf(&b, "\nAtau transfer langsung ke:\n%s\n", in.BankDetails)
	}
	b.WriteString("\nE-tiket akan dikirim otomatis setelah pembayaran dikonfirmasi.")
	return b.String()
}

func ticketPageURL(registrationId string) string {
	return fmt.Sprintf("%s/tickets/%s", os.Getenv("APP_HOST"), registrationId)
}

func paymentPageURL(orderId uuid.UUID) string {
	return fmt.Sprintf("%s/payment/%s", os.Getenv("APP_HOST"), orderId)
}

func loadParticipantForNotify(participantId uuid.UUID) (*models.Participant, error) {
	var participant models.Participant
	d := db.GetDb()
	err := d.
		Where("id = ?", participantId).
		Preload("Event").
		Preload("TicketType").
		Preload("FieldResponses").
		Preload("FieldResponses.Field").
		First(&participant).
		Error
	if err != nil {
		return nil, err
	}
	return &participant, nil
}

// SendRegistrationNotification composes and dispatches the confirmation
// for one participant. Handlers run it in a goroutine after the
// response; the resend action calls it synchronously.
func SendRegistrationNotification(participantId uuid.UUID) NotifyResult {
	participant, err := loadParticipantForNotify(participantId)
	if err != nil {
		log.Printf("[notify] Could not load participant %s: %s\n", participantId, err.Error())
		return NotifyResult{Success: false, Error: err.Error()}
	}

	in := &RegistrationMessageInput{
		EventTitle:     participant.Event.Title,
		FullName:       participant.FullName,
		RegistrationID: participant.RegistrationID,
		TicketURL:      ticketPageURL(participant.RegistrationID),
	}
	if participant.TicketType != nil {
		in.TicketName = participant.TicketType.Name
		if participant.TicketType.Price > 0 {
			price := participant.TicketType.Price
			in.TicketPrice = &price
		}
	}
	for _, resp := range participant.FieldResponses {
		if resp.Response == "" {
			continue
		}
		in.CustomFields = append(in.CustomFields, MessageFieldPair{
			Label:    resp.Field.Label,
			Response: resp.Response,
		})
	}
	message := GenerateRegistrationMessage(in)

	go sendTicketEmailCopy(participant)

	if participant.Phone == "" {
		return NotifyResult{Success: false, Error: "participant has no phone number"}
	}
	return SendWhatsAppMessage(participant.Event.OrganizationID, participant.ID, participant.Phone, message)
}

// SendPaymentPendingNotification reminds a pending participant to pay,
// including bank transfer details when the organization configured them.
func SendPaymentPendingNotification(participantId uuid.UUID) NotifyResult {
	participant, err := loadParticipantForNotify(participantId)
	if err != nil {
		log.Printf("[notify] Could not load participant %s: %s\n", participantId, err.Error())
		return NotifyResult{Success: false, Error: err.Error()}
	}

	var amount float64
	if participant.TicketType != nil {
		amount = participant.TicketType.Price
	}
	bankDetails := ""
	var setting models.Setting
	d := db.GetDb()
	if err := d.
		Where(&models.Setting{SettingKey: SettingBankTransferDetails, OrganizationID: participant.Event.OrganizationID}).
		First(&setting).
		Error; err == nil {
		bankDetails = setting.SettingValue
	} else if err != gorm.ErrRecordNotFound {
		log.Printf("[notify] Error reading bank details: %s\n", err.Error())
	}

	message := GeneratePaymentPendingMessage(&PaymentPendingMessageInput{
		EventTitle:     participant.Event.Title,
		FullName:       participant.FullName,
		RegistrationID: participant.RegistrationID,
		Amount:         amount,
		PaymentURL:     paymentPageURL(participant.OrderID),
		BankDetails:    bankDetails,
	})

	if participant.Phone == "" {
		return NotifyResult{Success: false, Error: "participant has no phone number"}
	}
	return SendWhatsAppMessage(participant.Event.OrganizationID, participant.ID, participant.Phone, message)
}

func sendTicketEmailCopy(participant *models.Participant) {
	if participant.Email == "" {
		return
	}
	senderFrom := os.Getenv("SMTP_FROM")
	if senderFrom == "" {
		return
	}
	input := &lib.SendMailInput{
		Subject:  fmt.Sprintf("Your ticket for %s", participant.Event.Title),
		From:     senderFrom,
		FromName: "noreply",
		To:       []string{participant.Email},
		Body: fmt.Sprintf(`
			<p>Hi %s,</p>
			<p>Your registration for <b>%s</b> is confirmed.</p>
			<p>Registration number: <b>%s</b></p>
			<p>View your e-ticket and QR code <a href="%s">here</a>.</p>
			<p>This is a system-generated message. Do not reply to this email.</p>
			`,
			participant.FullName,
			participant.Event.Title,
			participant.RegistrationID,
			ticketPageURL(participant.RegistrationID),
		),
		Html: true,
	}
	if err := mailer.NewMailerMessage(input); err != nil {
		log.Printf("[mailer] Error sending message: %s\n", err.Error())
	}
}
