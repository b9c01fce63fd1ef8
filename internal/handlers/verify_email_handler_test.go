package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"regexp"
	"testing"
	"time"

	"orientia/backend/internal/tokens"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"gorm.io/gorm"
)

func performVerifyEmail(t *testing.T, token string) *httptest.ResponseRecorder {
	t.Helper()
	router := gin.New()
	router.POST("/api/verify-email", VerifyEmailHandler)

	jsonPayload, _ := json.Marshal(VerifyEmailPayload{Token: token})
	req, _ := http.NewRequest(http.MethodPost, "/api/verify-email", bytes.NewBuffer(jsonPayload))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	return rr
}

func TestVerifyEmailHandler_Success(t *testing.T) {
	smock := setupHandlerTestDB(t)
	userID := uuid.New()
	raw := "verify-raw-token"

	smock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "email_verification_tokens" WHERE token_hash = $1`)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "token_hash", "expires_at", "used_at", "created_at"}).
			AddRow(uuid.New(), userID, tokens.HashToken(raw), time.Now().Add(12*time.Hour), nil, time.Now()))
	smock.ExpectBegin()
	smock.ExpectExec(regexp.QuoteMeta(`UPDATE "email_verification_tokens"`)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	smock.ExpectCommit()

	smock.ExpectBegin()
	smock.ExpectExec(regexp.QuoteMeta(`UPDATE "users"`)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	smock.ExpectCommit()

	rr := performVerifyEmail(t, raw)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.NoError(t, smock.ExpectationsWereMet())
}

func TestVerifyEmailHandler_ExpiredFlagsResend(t *testing.T) {
	smock := setupHandlerTestDB(t)
	raw := "expired-verify-token"

	smock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "email_verification_tokens"`)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "token_hash", "expires_at", "used_at", "created_at"}).
			AddRow(uuid.New(), uuid.New(), tokens.HashToken(raw), time.Now().Add(-time.Hour), nil, time.Now().Add(-25*time.Hour)))
	smock.ExpectBegin()
	smock.ExpectExec(regexp.QuoteMeta(`DELETE FROM "email_verification_tokens"`)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	smock.ExpectCommit()

	rr := performVerifyEmail(t, raw)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	var response map[string]interface{}
	assert.NoError(t, json.Unmarshal(rr.Body.Bytes(), &response))
	assert.Equal(t, true, response["expired"])
}

func TestVerifyEmailHandler_AlreadyUsed(t *testing.T) {
	smock := setupHandlerTestDB(t)
	raw := "used-verify-token"
	usedAt := time.Now().Add(-time.Hour)

	smock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "email_verification_tokens"`)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "token_hash", "expires_at", "used_at", "created_at"}).
			AddRow(uuid.New(), uuid.New(), tokens.HashToken(raw), time.Now().Add(time.Hour), usedAt, time.Now().Add(-2*time.Hour)))

	rr := performVerifyEmail(t, raw)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Contains(t, rr.Body.String(), "already been used")
}

func TestVerifyEmailHandler_InvalidToken(t *testing.T) {
	smock := setupHandlerTestDB(t)

	smock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "email_verification_tokens"`)).
		WillReturnError(gorm.ErrRecordNotFound)

	rr := performVerifyEmail(t, "bogus")
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Contains(t, rr.Body.String(), "Invalid verification link")
}

func TestResendVerificationHandler_SameResponseShape(t *testing.T) {
	smock := setupHandlerTestDB(t)
	router := gin.New()
	router.POST("/api/resend-verification", ResendVerificationHandler)

	send := func(email string) *httptest.ResponseRecorder {
		jsonPayload, _ := json.Marshal(ResendVerificationPayload{Email: email})
		req, _ := http.NewRequest(http.MethodPost, "/api/resend-verification", bytes.NewBuffer(jsonPayload))
		req.Header.Set("Content-Type", "application/json")
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)
		return rr
	}

	// Cuenta sin verificar: emite token nuevo.
	smock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "users" WHERE LOWER(email) = $1`)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "email", "email_verified_at"}).
			AddRow(uuid.New(), "Pending", "pending@example.com", nil))
	smock.ExpectBegin()
	smock.ExpectExec(regexp.QuoteMeta(`INSERT INTO "email_verification_tokens"`)).
		WillReturnResult(sqlmock.NewResult(1, 1))
	smock.ExpectCommit()
	unverified := send("pending@example.com")

	// Cuenta inexistente.
	smock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "users" WHERE LOWER(email) = $1`)).
		WillReturnError(gorm.ErrRecordNotFound)
	unknown := send("unknown@example.com")

	// Cuenta ya verificada: tampoco revela nada.
	smock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "users" WHERE LOWER(email) = $1`)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "email", "email_verified_at"}).
			AddRow(uuid.New(), "Done", "done@example.com", time.Now()))
	verified := send("done@example.com")

	assert.Equal(t, http.StatusOK, unverified.Code)
	assert.Equal(t, http.StatusOK, unknown.Code)
	assert.Equal(t, http.StatusOK, verified.Code)
	assert.JSONEq(t, unverified.Body.String(), unknown.Body.String())
	assert.JSONEq(t, unverified.Body.String(), verified.Body.String())
}
