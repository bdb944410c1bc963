package auth

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

var (
	ErrMissingToken = errors.New("missing access token")
	ErrInvalidToken = errors.New("invalid access token")
	ErrExpiredToken = errors.New("access token expired")
)

// Manager issues and verifies access tokens for conversations. A token
// carries the conversation ID and its issue time, signed with HMAC-SHA256.
type Manager struct {
	secret []byte
	maxAge time.Duration
}

func New(secret string, maxAge time.Duration) (*Manager, error) {
	if strings.TrimSpace(secret) == "" {
		generated := make([]byte, 32)
		if _, err := rand.Read(generated); err != nil {
			return nil, fmt.Errorf("generate auth secret: %w", err)
		}
		secret = base64.RawURLEncoding.EncodeToString(generated)
	}
	return &Manager{secret: []byte(secret), maxAge: maxAge}, nil
}

func (m *Manager) MaxAge() time.Duration {
	return m.maxAge
}

func (m *Manager) Issue(conversationID string, now time.Time) (string, error) {
	id := strings.TrimSpace(conversationID)
	if id == "" || strings.Contains(id, "|") {
		return "", errors.New("conversation id must be non-empty and must not contain '|'")
	}
	payload := id + "|" + strconv.FormatInt(now.Unix(), 10)
	token := payload + "|" + m.sign(payload)
	return base64.RawURLEncoding.EncodeToString([]byte(token)), nil
}

// Parse verifies token and returns the conversation ID it grants access to.
func (m *Manager) Parse(token string, now time.Time) (string, error) {
	if token == "" {
		return "", ErrMissingToken
	}
	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return "", ErrInvalidToken
	}
	parts := strings.Split(string(raw), "|")
	if len(parts) != 3 {
		return "", ErrInvalidToken
	}
	payload := parts[0] + "|" + parts[1]
	if !m.verify(payload, parts[2]) {
		return "", ErrInvalidToken
	}
	timestamp, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		return "", ErrInvalidToken
	}
	if m.maxAge > 0 && now.Sub(time.Unix(timestamp, 0)) > m.maxAge {
		return "", ErrExpiredToken
	}
	return parts[0], nil
}

// Authorize checks that token grants access to conversationID.
func (m *Manager) Authorize(token, conversationID string, now time.Time) error {
	id, err := m.Parse(token, now)
	if err != nil {
		return err
	}
	if !hmac.Equal([]byte(id), []byte(conversationID)) {
		return ErrInvalidToken
	}
	return nil
}

func (m *Manager) sign(payload string) string {
	mac := hmac.New(sha256.New, m.secret)
	mac.Write([]byte(payload))
	return base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}

func (m *Manager) verify(payload, signature string) bool {
	expected := m.sign(payload)
	return hmac.Equal([]byte(expected), []byte(signature))
}
