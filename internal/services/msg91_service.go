package services

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// MSG91Config holds the credentials of the MSG91 OTP API.
type MSG91Config struct {
	BaseURL    string
	AuthKey    string
	TemplateID string
}

// MSG91Service delivers OTP codes through MSG91.
type MSG91Service struct {
	cfg    MSG91Config
	client *http.Client
}

// NewMSG91Service creates a new MSG91Service.
func NewMSG91Service(cfg MSG91Config, timeout time.Duration) *MSG91Service {
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &MSG91Service{
		cfg:    cfg,
		client: &http.Client{Timeout: timeout},
	}
}

// SendOTP asks MSG91 to deliver code to phone using the configured template.
func (s *MSG91Service) SendOTP(ctx context.Context, phone, code string) error {
	if s.cfg.AuthKey == "" {
		return fmt.Errorf("msg91: auth key not configured")
	}

	query := url.Values{}
	query.Set("template_id", s.cfg.TemplateID)
	query.Set("mobile", strings.TrimPrefix(phone, "+"))
	query.Set("otp", code)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.cfg.BaseURL+"?"+query.Encode(), strings.NewReader("{}"))
	if err != nil {
		return fmt.Errorf("msg91 request build: %w", err)
	}
	req.Header.Set("accept", "application/json")
	req.Header.Set("content-type", "application/json")
	req.Header.Set("authkey", s.cfg.AuthKey)

	resp, err := s.client.Do(req)
	if err != nil {
		log.Printf("[msg91] Failed to send otp to %s: %v", MaskPhone(phone), err)
		return fmt.Errorf("msg91 request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("msg91 returned status %d: %s", resp.StatusCode, string(body))
	}

	return nil
}
