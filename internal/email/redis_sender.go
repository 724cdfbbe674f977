package email

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/rodrigomacsantos/PieceSwap/internal/config"
)

// RedisSender implements the Sender interface by storing emails in Redis.
// Used under MOCK_SERVICES so end-to-end tests can retrieve what would have
// been delivered.
type RedisSender struct {
	client *redis.Client
	cfg    *config.Config
}

// NewRedisSender creates a new RedisSender.
func NewRedisSender(client *redis.Client, cfg *config.Config) Sender {
	return &RedisSender{
		client: client,
		cfg:    cfg,
	}
}

// Send stores a representation of the email in Redis instead of delivering it.
func (s *RedisSender) Send(ctx context.Context, to []string, subject string, rawMessage []byte) error {
	// Classify by subject so tests can address the key deterministically.
	kind := "unknown"
	switch {
	case strings.Contains(subject, "partnership"):
		kind = "partnership"
	case strings.Contains(subject, "Welcome"):
		kind = "welcome"
	case strings.Contains(subject, "match"):
		kind = "match"
	}

	primaryTo := ""
	if len(to) > 0 {
		primaryTo = to[0]
	}

	emailData := map[string]interface{}{
		"to":      strings.Join(to, ", "),
		"from":    s.cfg.SmtpFromAddress,
		"subject": subject,
		"body":    string(rawMessage),
		"sent_at": time.Now().UTC().Format(time.RFC3339Nano),
		"kind":    kind,
	}

	jsonData, err := json.Marshal(emailData)
	if err != nil {
		return fmt.Errorf("failed to marshal email data: %w", err)
	}

	key := fmt.Sprintf("mockemail:%s:%s", primaryTo, kind)
	ttl := 5 * time.Minute

	if err := s.client.Set(ctx, key, jsonData, ttl).Err(); err != nil {
		return fmt.Errorf("failed to store email in Redis key '%s': %w", key, err)
	}

	log.Printf("Mock email stored in Redis key '%s' (TTL: %v, To: %s, Subject: %s)", key, ttl, strings.Join(to, ", "), subject)
	return nil
}
