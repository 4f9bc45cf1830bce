package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"fleetgov.org/internal/auth"
	"fleetgov.org/internal/config"
)

// SMSSender posts one-time codes to an HTTP SMS gateway.
type SMSSender struct {
	client   *http.Client
	url      string
	apiKey   string
	senderID string
}

var _ auth.Sender = (*SMSSender)(nil)

func NewSMSSender(cfg config.SMSConfig) *SMSSender {
	return &SMSSender{
		client:   &http.Client{Timeout: 10 * time.Second},
		url:      cfg.GatewayURL,
		apiKey:   cfg.APIKey,
		senderID: cfg.SenderID,
	}
}

type smsRequest struct {
	To      string `json:"to"`
	From    string `json:"from"`
	Message string `json:"message"`
}

func (s *SMSSender) Send(ctx context.Context, _ auth.Channel, recipient, code string) error {
	body, err := json.Marshal(smsRequest{
		To:      recipient,
		From:    s.senderID,
		Message: fmt.Sprintf("Fleet management sign-in code: %s. Expires in 5 minutes.", code),
	})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.apiKey)

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("sms gateway: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("sms gateway: status %d", resp.StatusCode)
	}
	return nil
}
