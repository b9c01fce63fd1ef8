package optout

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"orientia/backend/pkg/config"
)

// Un UnsubscribeToken es un payload firmado y sin estado, con formato
// base64url(json{email,exp}).base64url(hmac-sha256). No hay revocación más
// allá de la expiración: su único efecto posible es añadir a la lista de
// exclusión, que es idempotente.

const UnsubscribeTokenTTL = 30 * 24 * time.Hour

type unsubscribePayload struct {
	Email string `json:"email"`
	Exp   int64  `json:"exp"`
}

// ParseResult es el resultado de verificar un token de unsubscribe.
type ParseResult struct {
	OK     bool
	Email  string
	Reason string // "invalid_format" | "invalid_signature" | "expired"
}

var unsubscribeSecret func() []byte = func() []byte {
	return []byte(config.Cfg.UnsubscribeSecret)
}

// SetUnsubscribeSecretForTests fija el secreto directamente. Solo para tests.
func SetUnsubscribeSecretForTests(secret string) {
	unsubscribeSecret = func() []byte { return []byte(secret) }
}

func sign(payload []byte) []byte {
	mac := hmac.New(sha256.New, unsubscribeSecret())
	mac.Write(payload)
	return mac.Sum(nil)
}

// CreateUnsubscribeToken genera un token firmado para email, normalizado a
// minúsculas, válido durante UnsubscribeTokenTTL.
func CreateUnsubscribeToken(email string) (string, error) {
	if len(unsubscribeSecret()) == 0 {
		return "", fmt.Errorf("UNSUBSCRIBE_SECRET not configured")
	}
	payload := unsubscribePayload{
		Email: normalizeEmail(email),
		Exp:   time.Now().Add(UnsubscribeTokenTTL).Unix(),
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}
	encoded := base64.RawURLEncoding.EncodeToString(data)
	signature := base64.RawURLEncoding.EncodeToString(sign(data))
	return encoded + "." + signature, nil
}

// ParseUnsubscribeToken verifica firma y expiración de un token.
func ParseUnsubscribeToken(token string) ParseResult {
	parts := strings.Split(token, ".")
	if len(parts) != 2 {
		return ParseResult{Reason: "invalid_format"}
	}
	data, err := base64.RawURLEncoding.DecodeString(parts[0])
	if err != nil {
		return ParseResult{Reason: "invalid_format"}
	}
	signature, err := base64.RawURLEncoding.DecodeString(parts[1])
	if err != nil {
		return ParseResult{Reason: "invalid_format"}
	}
	if !hmac.Equal(signature, sign(data)) {
		return ParseResult{Reason: "invalid_signature"}
	}

	var payload unsubscribePayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return ParseResult{Reason: "invalid_format"}
	}
	if time.Now().Unix() >= payload.Exp {
		return ParseResult{Reason: "expired"}
	}
	return ParseResult{OK: true, Email: normalizeEmail(payload.Email)}
}
