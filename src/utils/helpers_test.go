package utils

import (
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestNormalizePhoneNumber(t *testing.T) {
	cases := map[string]string{
		"081234567890":     "6281234567890@c.us",
		"+62 812-3456-789": "628123456789@c.us",
		"8123456789":       "628123456789@c.us",
		"6281234567890":    "6281234567890@c.us",
		"(0812) 3456 7890": "6281234567890@c.us",
	}
	for input, expected := range cases {
		assert.Equal(t, expected, NormalizePhoneNumber(input), "input: %s", input)
	}
}

func TestFormatIDR(t *testing.T) {
	assert.Equal(t, "Rp 150.000", FormatIDR(150000))
	assert.Equal(t, "Rp 0", FormatIDR(0))
	assert.Equal(t, "Rp 999", FormatIDR(999))
	assert.Equal(t, "Rp 1.000", FormatIDR(1000))
	assert.Equal(t, "Rp 1.500.000", FormatIDR(1500000))
}

func TestGenerateRegistrationID(t *testing.T) {
	now := time.Date(2025, time.March, 10, 9, 0, 0, 0, time.UTC)
	pattern := regexp.MustCompile(`^REG-2025-\d{5}$`)
	for i := 0; i < 50; i++ {
		id := GenerateRegistrationID(now)
		assert.Regexp(t, pattern, id)
	}
}

func TestBuildQRToken(t *testing.T) {
	pid := uuid.MustParse("5f1c6f39-9d9a-4a0f-8d4d-3a8f0a2b1c3d")
	token := BuildQRToken(42, pid, "REG-2025-00123")

	assert.True(t, strings.HasPrefix(token, "42"))
	assert.Contains(t, token, "5f1c6f399d9a4a0f8d4d3a8f0a2b1c3d")
	assert.Contains(t, token, "REG202500123")
	assert.NotContains(t, token, "-")
}

func TestNormalizeBaseURL(t *testing.T) {
	assert.Equal(t, "https://waha.example.com", NormalizeBaseURL("waha.example.com/"))
	assert.Equal(t, "https://waha.example.com", NormalizeBaseURL("https://waha.example.com"))
	assert.Equal(t, "http://localhost:3000", NormalizeBaseURL("http://localhost:3000/"))
	assert.Equal(t, "", NormalizeBaseURL("   "))
}

func TestMakeEventSlug(t *testing.T) {
	assert.Equal(t, "tech-conference-2025", MakeEventSlug("Tech Conference 2025"))
}

func TestWithSuffix(t *testing.T) {
	t.Setenv("QUEUE_SUFFIX", "")
	assert.Equal(t, "email-queue", WithSuffix("email-queue"))
	t.Setenv("QUEUE_SUFFIX", "staging")
	assert.Equal(t, "email-queue-staging", WithSuffix("email-queue"))
}
