// Package turnstile verifica tokens anti-bot contra el endpoint siteverify
// de Cloudflare Turnstile.
package turnstile

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"orientia/backend/pkg/config"
	orilog "orientia/backend/pkg/log"

	"go.uber.org/zap"
)

// VerifyEndpoint es variable para poder apuntarlo a un httptest.Server.
var VerifyEndpoint = "https://challenges.cloudflare.com/turnstile/v0/siteverify"

var httpClient = &http.Client{Timeout: 10 * time.Second}

type siteverifyResponse struct {
	Success    bool     `json:"success"`
	ErrorCodes []string `json:"error-codes"`
}

// Verify valida un token de Turnstile. Sin secreto configurado en
// desarrollo, la verificación se omite; en producción falla cerrado.
func Verify(ctx context.Context, token, remoteIP string) (bool, error) {
	secret := config.Cfg.TurnstileSecret
	if secret == "" {
		if config.Cfg.Environment == "development" {
			orilog.L.Warn("TURNSTILE_SECRET_KEY not set, skipping bot verification (development only)")
			return true, nil
		}
		return false, fmt.Errorf("TURNSTILE_SECRET_KEY not configured")
	}
	if token == "" {
		return false, nil
	}

	form := url.Values{}
	form.Set("secret", secret)
	form.Set("response", token)
	if remoteIP != "" {
		form.Set("remoteip", remoteIP)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, VerifyEndpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return false, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := httpClient.Do(req)
	if err != nil {
		return false, fmt.Errorf("turnstile siteverify request failed: %w", err)
	}
	defer resp.Body.Close()

	var result siteverifyResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return false, fmt.Errorf("failed to decode turnstile response: %w", err)
	}
	if !result.Success {
		orilog.L.Info("Turnstile verification rejected", zap.Strings("error_codes", result.ErrorCodes))
	}
	return result.Success, nil
}
