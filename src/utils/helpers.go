package utils

import (
	"fmt"
	"math/rand"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gosimple/slug"
)

func IsProd() bool {
	return os.Getenv("API_ENV") == "production"
}

// WithSuffix appends the deployment suffix to a queue/topic name.
func WithSuffix(name string) string {
	suffix := os.Getenv("QUEUE_SUFFIX")
	if suffix == "" {
		return name
	}
	return fmt.Sprintf("%s-%s", name, suffix)
}

func MakeEventSlug(title string) string {
	return slug.Make(title)
}

// GenerateRegistrationID produces the human-readable id printed on
// tickets, REG-<year>-<5 digits>. Not guaranteed globally unique but
// practically so; the internal uuid is the real key.
func GenerateRegistrationID(now time.Time) string {
	return fmt.Sprintf("REG-%d-%05d", now.Year(), rand.Intn(100000))
}

// BuildQRToken builds the opaque scan token: event id + participant id +
// registration id concatenated. A compound lookup key, not a signature.
func BuildQRToken(eventId uint, participantId uuid.UUID, registrationId string) string {
	pid := strings.ReplaceAll(participantId.String(), "-", "")
	return fmt.Sprintf("%d%s%s", eventId, pid, strings.ReplaceAll(registrationId, "-", ""))
}

const chatAddressSuffix = "@c.us"

// NormalizePhoneNumber converts a raw phone number into the relay's
// chat-address form: digits with the 62 country prefix plus the suffix.
func NormalizePhoneNumber(phone string) string {
	var digits strings.Builder
	for _, r := range phone {
		if r >= '0' && r <= '9' {
			digits.WriteRune(r)
		}
	}
	number := digits.String()
	if !strings.HasPrefix(number, "62") {
		if strings.HasPrefix(number, "0") {
			number = "62" + number[1:]
		} else {
			number = "62" + number
		}
	}
	return number + chatAddressSuffix
}

// FormatIDR renders an amount as localized currency, e.g. "Rp 150.000".
func FormatIDR(amount float64) string {
	n := int64(amount)
	sign := ""
	if n < 0 {
		sign = "-"
		n = -n
	}
	s := fmt.Sprintf("%d", n)
	var parts []string
	for len(s) > 3 {
		parts = append([]string{s[len(s)-3:]}, parts...)
		s = s[:len(s)-3]
	}
	parts = append([]string{s}, parts...)
	return fmt.Sprintf("Rp %s%s", sign, strings.Join(parts, "."))
}

// NormalizeBaseURL strips trailing slashes and assumes HTTPS for
// scheme-less URLs. Used consistently wherever a relay URL is consumed.
func NormalizeBaseURL(raw string) string {
	url := strings.TrimRight(strings.TrimSpace(raw), "/")
	if url == "" {
		return url
	}
	if !strings.HasPrefix(url, "http://") && !strings.HasPrefix(url, "https://") {
		url = "https://" + url
	}
	return url
}
