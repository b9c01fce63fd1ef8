package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"orientia/backend/internal/filestorage"
	"orientia/backend/internal/notifications"
	"orientia/backend/internal/optout"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

// fakeStorage es un Provider en memoria para la lista de opt-out.
type fakeStorage struct {
	objects map[string][]byte
}

func (f *fakeStorage) UploadFile(ctx context.Context, objectName string, fileContent io.Reader) (string, error) {
	data, err := io.ReadAll(fileContent)
	if err != nil {
		return "", err
	}
	f.objects[objectName] = data
	return objectName, nil
}

func (f *fakeStorage) DeleteFile(ctx context.Context, objectName string) error {
	delete(f.objects, objectName)
	return nil
}

func (f *fakeStorage) GetSignedURL(ctx context.Context, objectName string, durationMinutes int) (string, error) {
	return "https://example.invalid/" + objectName, nil
}

func (f *fakeStorage) ReadObject(ctx context.Context, objectName string) ([]byte, error) {
	data, ok := f.objects[objectName]
	if !ok {
		return nil, filestorage.ErrObjectNotFound
	}
	return data, nil
}

func (f *fakeStorage) WriteObject(ctx context.Context, objectName string, data []byte) error {
	f.objects[objectName] = data
	return nil
}

// recordingNotifier registra los envíos y puede fallar para direcciones
// concretas.
type recordingNotifier struct {
	sent    []string
	failFor map[string]bool
}

func (r *recordingNotifier) Send(ctx context.Context, to, subject, bodyHTML string) error {
	if r.failFor[to] {
		return fmt.Errorf("smtp rejected %s", to)
	}
	r.sent = append(r.sent, to)
	return nil
}

func setupCommunicationsTest(t *testing.T, failFor map[string]bool) (*recordingNotifier, *fakeStorage) {
	t.Helper()
	setupHandlerTestDB(t)

	originalProvider := filestorage.DefaultProvider
	storage := &fakeStorage{objects: make(map[string][]byte)}
	filestorage.DefaultProvider = storage
	originalNotifier := notifications.DefaultEmailNotifier
	notifier := &recordingNotifier{failFor: failFor}
	notifications.DefaultEmailNotifier = notifier
	optout.SetUnsubscribeSecretForTests("comms_test_secret")
	t.Cleanup(func() {
		filestorage.DefaultProvider = originalProvider
		notifications.DefaultEmailNotifier = originalNotifier
	})
	return notifier, storage
}

func performSendCommunications(t *testing.T, payload SendCommunicationsPayload) *httptest.ResponseRecorder {
	t.Helper()
	router := gin.New()
	router.POST("/api/v1/admin/communications/send", SendCommunicationsHandler)

	jsonPayload, _ := json.Marshal(payload)
	req, _ := http.NewRequest(http.MethodPost, "/api/v1/admin/communications/send", bytes.NewBuffer(jsonPayload))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	return rr
}

func TestSendCommunications_DedupesAndSkipsOptOuts(t *testing.T) {
	notifier, _ := setupCommunicationsTest(t, nil)

	_, err := optout.AddOptOutEmail(context.Background(), "optedout@example.com", "user_preference", "settings")
	assert.NoError(t, err)

	rr := performSendCommunications(t, SendCommunicationsPayload{
		Subject:  "Novedades de Orientia",
		BodyHTML: "<p>Hola</p>",
		Recipients: []string{
			"a@example.com",
			"A@Example.com", // duplicado con otra capitalización
			"optedout@example.com",
			"b@example.com",
			"",
		},
	})

	assert.Equal(t, http.StatusOK, rr.Code)
	var result SendCommunicationsResult
	assert.NoError(t, json.Unmarshal(rr.Body.Bytes(), &result))
	assert.Equal(t, 2, result.Sent)
	assert.Equal(t, 0, result.Failed)
	assert.Equal(t, 1, result.SkippedOptOut)
	assert.Empty(t, result.Failures)
	assert.Equal(t, []string{"a@example.com", "b@example.com"}, notifier.sent)
}

func TestSendCommunications_PartialFailure(t *testing.T) {
	setupCommunicationsTest(t, map[string]bool{"broken@example.com": true})

	rr := performSendCommunications(t, SendCommunicationsPayload{
		Subject:    "Novedades",
		BodyHTML:   "<p>Hola</p>",
		Recipients: []string{"ok@example.com", "broken@example.com"},
	})

	// Éxito parcial: 207 con los fallos detallados por destinatario.
	assert.Equal(t, http.StatusMultiStatus, rr.Code)
	var result SendCommunicationsResult
	assert.NoError(t, json.Unmarshal(rr.Body.Bytes(), &result))
	assert.Equal(t, 1, result.Sent)
	assert.Equal(t, 1, result.Failed)
	assert.Len(t, result.Failures, 1)
	assert.Equal(t, "broken@example.com", result.Failures[0].Email)
	assert.NotEmpty(t, result.Failures[0].Error)
}

func TestSendCommunications_AllFail(t *testing.T) {
	setupCommunicationsTest(t, map[string]bool{"x@example.com": true, "y@example.com": true})

	rr := performSendCommunications(t, SendCommunicationsPayload{
		Subject:    "Novedades",
		BodyHTML:   "<p>Hola</p>",
		Recipients: []string{"x@example.com", "y@example.com"},
	})

	assert.Equal(t, http.StatusBadGateway, rr.Code)
}

func TestSendCommunications_RequiresRecipients(t *testing.T) {
	setupCommunicationsTest(t, nil)

	rr := performSendCommunications(t, SendCommunicationsPayload{
		Subject:  "Sin destinatarios",
		BodyHTML: "<p>Hola</p>",
	})
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestUnsubscribeHandler_EndToEnd(t *testing.T) {
	_, storage := setupCommunicationsTest(t, nil)

	router := gin.New()
	router.GET("/api/communications/unsubscribe", UnsubscribeHandler)

	token, err := optout.CreateUnsubscribeToken("leaver@example.com")
	assert.NoError(t, err)

	do := func(tok string) *httptest.ResponseRecorder {
		req, _ := http.NewRequest(http.MethodGet, "/api/communications/unsubscribe?token="+tok, nil)
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)
		return rr
	}

	rr := do(token)
	assert.Equal(t, http.StatusOK, rr.Code)

	set, err := optout.GetOptOutEmailSet(context.Background())
	assert.NoError(t, err)
	assert.True(t, set["leaver@example.com"])

	// La entrada persistida registra el origen de la baja.
	var entries []optout.Entry
	assert.NoError(t, json.Unmarshal(storage.objects[optout.ObjectName], &entries))
	assert.Len(t, entries, 1)
	assert.Equal(t, "unsubscribe_link", entries[0].Source)

	// Repetir el mismo link es inocuo.
	rr = do(token)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "already")

	// Token manipulado: rechazado con el motivo.
	rr = do(token + "x")
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	var response map[string]interface{}
	assert.NoError(t, json.Unmarshal(rr.Body.Bytes(), &response))
	assert.Equal(t, "invalid_signature", response["reason"])
}
