package services

import (
	"context"
	"log"
)

// OTPSender delivers a one-time code to a phone number.
type OTPSender interface {
	SendOTP(ctx context.Context, phone, code string) error
}

// LogSender writes codes to the process log instead of delivering them.
// The code itself is only printed when reveal is set.
type LogSender struct {
	reveal bool
}

// NewLogSender constructs a LogSender.
func NewLogSender(reveal bool) *LogSender {
	return &LogSender{reveal: reveal}
}

// SendOTP logs the code.
func (s *LogSender) SendOTP(ctx context.Context, phone, code string) error {
	if s.reveal {
		log.Printf("[otp] code for %s: %s", MaskPhone(phone), code)
		return nil
	}
	log.Printf("[otp] code issued for %s", MaskPhone(phone))
	return nil
}

// MaskPhone keeps the last four digits of a phone number.
func MaskPhone(phone string) string {
	if len(phone) <= 4 {
		return "****"
	}
	masked := make([]byte, len(phone))
	for i := range phone {
		if i < len(phone)-4 && phone[i] != '+' {
			masked[i] = '*'
		} else {
			masked[i] = phone[i]
		}
	}
	return string(masked)
}
