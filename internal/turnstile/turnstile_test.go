package turnstile

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"orientia/backend/pkg/config"

	"github.com/stretchr/testify/assert"
)

func withSiteverifyServer(t *testing.T, handler http.HandlerFunc) {
	t.Helper()
	server := httptest.NewServer(handler)
	originalEndpoint := VerifyEndpoint
	VerifyEndpoint = server.URL
	t.Cleanup(func() {
		VerifyEndpoint = originalEndpoint
		server.Close()
	})
}

func withSecret(t *testing.T, secret, environment string) {
	t.Helper()
	originalSecret := config.Cfg.TurnstileSecret
	originalEnv := config.Cfg.Environment
	config.Cfg.TurnstileSecret = secret
	config.Cfg.Environment = environment
	t.Cleanup(func() {
		config.Cfg.TurnstileSecret = originalSecret
		config.Cfg.Environment = originalEnv
	})
}

func TestVerify_Success(t *testing.T) {
	withSecret(t, "test-secret", "production")
	withSiteverifyServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.NoError(t, r.ParseForm())
		assert.Equal(t, "test-secret", r.PostForm.Get("secret"))
		assert.Equal(t, "client-token", r.PostForm.Get("response"))
		assert.Equal(t, "1.2.3.4", r.PostForm.Get("remoteip"))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"success":true}`))
	})

	ok, err := Verify(context.Background(), "client-token", "1.2.3.4")
	assert.NoError(t, err)
	assert.True(t, ok)
}

func TestVerify_Rejected(t *testing.T) {
	withSecret(t, "test-secret", "production")
	withSiteverifyServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"success":false,"error-codes":["invalid-input-response"]}`))
	})

	ok, err := Verify(context.Background(), "bad-token", "")
	assert.NoError(t, err)
	assert.False(t, ok)
}

func TestVerify_EmptyToken(t *testing.T) {
	withSecret(t, "test-secret", "production")

	ok, err := Verify(context.Background(), "", "")
	assert.NoError(t, err)
	assert.False(t, ok)
}

func TestVerify_NoSecret(t *testing.T) {
	// En desarrollo sin secreto la verificación se omite.
	withSecret(t, "", "development")
	ok, err := Verify(context.Background(), "anything", "")
	assert.NoError(t, err)
	assert.True(t, ok)

	// En producción sin secreto falla cerrado.
	config.Cfg.Environment = "production"
	_, err = Verify(context.Background(), "anything", "")
	assert.Error(t, err)
}
