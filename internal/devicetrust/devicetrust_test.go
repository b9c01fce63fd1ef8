package devicetrust

import (
	"net/http"
	"net/http/httptest"
	"regexp"
	"testing"
	"time"

	"orientia/backend/pkg/config"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func setupDeviceTestDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, smock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("Failed to create sqlmock: %v", err)
	}
	gormDB, err := gorm.Open(postgres.New(postgres.Config{Conn: db}), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("Failed to open gorm with sqlmock: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return gormDB, smock
}

func TestIsTrusted(t *testing.T) {
	gormDB, smock := setupDeviceTestDB(t)
	userID := uuid.New()

	smock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "trusted_devices" WHERE user_id = $1 AND device_id = $2`)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "device_id", "last_seen_at"}).
			AddRow(uuid.New(), userID, "device-abc", time.Now()))

	trusted, err := IsTrusted(gormDB, userID, "device-abc")
	assert.NoError(t, err)
	assert.True(t, trusted)

	smock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "trusted_devices"`)).
		WillReturnError(gorm.ErrRecordNotFound)

	trusted, err = IsTrusted(gormDB, userID, "device-unknown")
	assert.NoError(t, err)
	assert.False(t, trusted)

	// Device id vacío nunca es de confianza y no toca la base.
	trusted, err = IsTrusted(gormDB, userID, "")
	assert.NoError(t, err)
	assert.False(t, trusted)
}

func TestTrust_Idempotent(t *testing.T) {
	gormDB, smock := setupDeviceTestDB(t)
	userID := uuid.New()

	// Ya registrado: no hay insert.
	smock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "trusted_devices"`)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "device_id", "last_seen_at"}).
			AddRow(uuid.New(), userID, "device-abc", time.Now()))

	assert.NoError(t, Trust(gormDB, userID, "device-abc"))
	assert.NoError(t, smock.ExpectationsWereMet())

	// Nuevo: se inserta.
	smock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "trusted_devices"`)).
		WillReturnError(gorm.ErrRecordNotFound)
	smock.ExpectBegin()
	smock.ExpectExec(regexp.QuoteMeta(`INSERT INTO "trusted_devices"`)).
		WillReturnResult(sqlmock.NewResult(1, 1))
	smock.ExpectCommit()

	assert.NoError(t, Trust(gormDB, userID, "device-new"))
	assert.NoError(t, smock.ExpectationsWereMet())
}

func TestDeviceIDFromRequest(t *testing.T) {
	gin.SetMode(gin.TestMode)

	newContext := func(req *http.Request) *gin.Context {
		c, _ := gin.CreateTestContext(httptest.NewRecorder())
		c.Request = req
		return c
	}

	// La cookie tiene prioridad sobre el header.
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: CookieName, Value: "from-cookie"})
	req.Header.Set("X-Device-Id", "from-header")
	assert.Equal(t, "from-cookie", DeviceIDFromRequest(newContext(req)))

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Device-Id", "from-header")
	assert.Equal(t, "from-header", DeviceIDFromRequest(newContext(req)))

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	assert.Equal(t, "", DeviceIDFromRequest(newContext(req)))
}

func TestSetDeviceCookie(t *testing.T) {
	gin.SetMode(gin.TestMode)
	rr := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rr)
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)

	SetDeviceCookie(c, "device-xyz")

	cookies := rr.Result().Cookies()
	assert.Len(t, cookies, 1)
	cookie := cookies[0]
	assert.Equal(t, CookieName, cookie.Name)
	assert.Equal(t, "device-xyz", cookie.Value)
	assert.Equal(t, cookieMaxAge, cookie.MaxAge)
	assert.False(t, cookie.HttpOnly)
	assert.Equal(t, http.SameSiteLaxMode, cookie.SameSite)
}

func TestRequireTrustedDevice(t *testing.T) {
	gormDB, smock := setupDeviceTestDB(t)
	userID := uuid.New()

	originalBypass := config.Cfg.DeviceGateBypass
	config.Cfg.DeviceGateBypass = false
	t.Cleanup(func() { config.Cfg.DeviceGateBypass = originalBypass })

	router := gin.New()
	router.Use(func(c *gin.Context) {
		c.Set("userID", userID)
		c.Next()
	})
	router.Use(RequireTrustedDevice(func() *gorm.DB { return gormDB }))
	router.GET("/gated", func(c *gin.Context) { c.Status(http.StatusOK) })

	// Sin device id: rechazado con código propio.
	req := httptest.NewRequest(http.MethodGet, "/gated", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusForbidden, rr.Code)
	assert.Contains(t, rr.Body.String(), "DEVICE_NOT_VERIFIED")

	// Device id desconocido: rechazado.
	smock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "trusted_devices"`)).
		WillReturnError(gorm.ErrRecordNotFound)
	req = httptest.NewRequest(http.MethodGet, "/gated", nil)
	req.AddCookie(&http.Cookie{Name: CookieName, Value: "stranger"})
	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusForbidden, rr.Code)

	// Device de confianza: pasa.
	smock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "trusted_devices"`)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "device_id", "last_seen_at"}).
			AddRow(uuid.New(), userID, "known", time.Now()))
	req = httptest.NewRequest(http.MethodGet, "/gated", nil)
	req.AddCookie(&http.Cookie{Name: CookieName, Value: "known"})
	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusOK, rr.Code)

	// Con bypass activo no se consulta nada.
	config.Cfg.DeviceGateBypass = true
	req = httptest.NewRequest(http.MethodGet, "/gated", nil)
	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusOK, rr.Code)
}
