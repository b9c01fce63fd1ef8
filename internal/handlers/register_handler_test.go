package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"gorm.io/gorm"
)

func performRegister(t *testing.T, payload RegisterPayload) *httptest.ResponseRecorder {
	t.Helper()
	router := gin.New()
	router.POST("/api/register", RegisterHandler)

	jsonPayload, _ := json.Marshal(payload)
	req, _ := http.NewRequest(http.MethodPost, "/api/register", bytes.NewBuffer(jsonPayload))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	return rr
}

func TestRegisterHandler_Success(t *testing.T) {
	smock := setupHandlerTestDB(t)

	smock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "users" WHERE LOWER(email) = $1`)).
		WillReturnError(gorm.ErrRecordNotFound)
	smock.ExpectBegin()
	smock.ExpectExec(regexp.QuoteMeta(`INSERT INTO "users"`)).
		WillReturnResult(sqlmock.NewResult(1, 1))
	smock.ExpectCommit()
	smock.ExpectBegin()
	smock.ExpectExec(regexp.QuoteMeta(`INSERT INTO "email_verification_tokens"`)).
		WillReturnResult(sqlmock.NewResult(1, 1))
	smock.ExpectCommit()

	rr := performRegister(t, RegisterPayload{
		Name:     "Nueva Orientadora",
		Email:    "Nueva@Example.com",
		Password: "Sup3rSecreta!",
	})

	assert.Equal(t, http.StatusCreated, rr.Code)
	var response map[string]interface{}
	assert.NoError(t, json.Unmarshal(rr.Body.Bytes(), &response))
	assert.NotEmpty(t, response["user_id"])
	assert.NoError(t, smock.ExpectationsWereMet())
}

func TestRegisterHandler_DuplicateEmail(t *testing.T) {
	smock := setupHandlerTestDB(t)

	smock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "users" WHERE LOWER(email) = $1`)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "email"}).
			AddRow(uuid.New(), "existing@example.com"))

	rr := performRegister(t, RegisterPayload{
		Name:     "Duplicada",
		Email:    "Existing@Example.com",
		Password: "Sup3rSecreta!",
	})

	assert.Equal(t, http.StatusConflict, rr.Code)
	assert.Contains(t, rr.Body.String(), "already exists")
}

func TestRegisterHandler_WeakPassword(t *testing.T) {
	setupHandlerTestDB(t)

	rr := performRegister(t, RegisterPayload{
		Name:     "Usuario",
		Email:    "weak@example.com",
		Password: "abc",
	})

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	var response struct {
		Violations []string `json:"violations"`
	}
	assert.NoError(t, json.Unmarshal(rr.Body.Bytes(), &response))
	assert.NotEmpty(t, response.Violations)
}

func TestRegisterHandler_InvalidPayload(t *testing.T) {
	setupHandlerTestDB(t)
	router := gin.New()
	router.POST("/api/register", RegisterHandler)

	req, _ := http.NewRequest(http.MethodPost, "/api/register", bytes.NewBufferString(`{"email":"x"}`))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestPasswordPolicy(t *testing.T) {
	cases := []struct {
		password   string
		violations int
	}{
		{"Sup3rSecreta!", 0},
		{"short", 4},
		{"alllowercase1!", 1},
		{"ALLUPPERCASE1!", 1},
		{"NoDigitsHere!", 1},
		{"NoSymbols123A", 1},
		{"", 5},
	}
	for _, tc := range cases {
		got := ValidatePasswordPolicy(tc.password)
		assert.Len(t, got, tc.violations, "password %q", tc.password)
	}
}
