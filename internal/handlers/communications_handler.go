package handlers

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"orientia/backend/internal/auth"
	"orientia/backend/internal/database"
	"orientia/backend/internal/models"
	"orientia/backend/internal/notifications"
	"orientia/backend/internal/optout"
	"orientia/backend/internal/ratelimit"
	"orientia/backend/pkg/config"
	orilog "orientia/backend/pkg/log"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// UnsubscribeHandler procesa el enlace de baja incluido en cada
// comunicación. El token es autocontenido (HMAC), no requiere sesión.
// Acepta GET con ?token= (clic desde el correo) y POST con {"token": ...}.
func UnsubscribeHandler(c *gin.Context) {
	log := orilog.L.Named("UnsubscribeHandler")

	token := c.Query("token")
	if token == "" && c.Request.Method == http.MethodPost {
		var payload struct {
			Token string `json:"token"`
		}
		if err := c.ShouldBindJSON(&payload); err == nil {
			token = payload.Token
		}
	}
	if token == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing unsubscribe token"})
		return
	}

	rl := ratelimit.Allow("unsubscribe:"+clientIP(c), 30, time.Hour)
	if !rl.Allowed {
		rateLimited(c, "unsubscribe", rl)
		return
	}

	result := optout.ParseUnsubscribeToken(token)
	if !result.OK {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid unsubscribe link", "reason": result.Reason})
		return
	}

	// Idempotente: darse de baja dos veces es un no-op.
	alreadyExisted, err := optout.AddOptOutEmail(c.Request.Context(), result.Email, "user_request", "unsubscribe_link")
	if err != nil {
		log.Error("Failed to record unsubscribe", zap.Error(err), zap.String("email", result.Email))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to process unsubscribe request"})
		return
	}

	message := "You have been unsubscribed from Orientia communications."
	if alreadyExisted {
		message = "You were already unsubscribed from Orientia communications."
	}
	c.JSON(http.StatusOK, gin.H{"message": message, "email": result.Email})
}

// CommunicationPreferencesHandler devuelve el estado de suscripción del
// usuario autenticado.
func CommunicationPreferencesHandler(c *gin.Context) {
	userID, ok := auth.CurrentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	var user models.User
	if err := database.GetDB().First(&user, "id = ?", userID).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
		return
	}

	optedOut, err := isOptedOut(c, user.Email)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load communication preferences"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"email": user.Email, "subscribed": !optedOut})
}

type UpdatePreferencesPayload struct {
	Subscribed *bool `json:"subscribed" binding:"required"`
}

// UpdateCommunicationPreferencesHandler permite al usuario autenticado
// darse de alta o de baja de las comunicaciones.
func UpdateCommunicationPreferencesHandler(c *gin.Context) {
	log := orilog.L.Named("UpdateCommunicationPreferencesHandler")

	userID, ok := auth.CurrentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	var payload UpdatePreferencesPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request payload"})
		return
	}

	var user models.User
	if err := database.GetDB().First(&user, "id = ?", userID).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
		return
	}

	var err error
	if *payload.Subscribed {
		_, err = optout.RemoveOptOutEmail(c.Request.Context(), user.Email)
	} else {
		_, err = optout.AddOptOutEmail(c.Request.Context(), user.Email, "user_preference", "settings")
	}
	if err != nil {
		log.Error("Failed to update communication preferences", zap.Error(err), zap.String("email", user.Email))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update communication preferences"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"email": user.Email, "subscribed": *payload.Subscribed})
}

type AdminPreferencesPayload struct {
	Email      string `json:"email" binding:"required,email"`
	Subscribed *bool  `json:"subscribed" binding:"required"`
}

// AdminUpdatePreferencesHandler permite a un admin cambiar la suscripción
// de cualquier dirección.
func AdminUpdatePreferencesHandler(c *gin.Context) {
	log := orilog.L.Named("AdminUpdatePreferencesHandler")

	var payload AdminPreferencesPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request payload"})
		return
	}

	var err error
	if *payload.Subscribed {
		_, err = optout.RemoveOptOutEmail(c.Request.Context(), payload.Email)
	} else {
		_, err = optout.AddOptOutEmail(c.Request.Context(), payload.Email, "admin_action", "admin")
	}
	if err != nil {
		log.Error("Failed to update preferences as admin", zap.Error(err), zap.String("email", payload.Email))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update communication preferences"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"email": strings.ToLower(strings.TrimSpace(payload.Email)), "subscribed": *payload.Subscribed})
}

// ListCommunicationUsersHandler lista los usuarios con su estado de
// suscripción, paginado.
func ListCommunicationUsersHandler(c *gin.Context) {
	log := orilog.L.Named("ListCommunicationUsersHandler")
	db := database.GetDB()

	page, pageSize := GetPaginationParams(c)

	var totalItems int64
	if err := db.Model(&models.User{}).Count(&totalItems).Error; err != nil {
		log.Error("Failed to count users", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list users"})
		return
	}

	var users []models.User
	if err := db.Scopes(PaginateScope(page, pageSize)).Order("created_at DESC").Find(&users).Error; err != nil {
		log.Error("Failed to list users", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list users"})
		return
	}

	optOuts, err := optout.GetOptOutEmailSet(c.Request.Context())
	if err != nil {
		log.Error("Failed to load opt-out set", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load communication preferences"})
		return
	}

	type userRow struct {
		UserID     string `json:"user_id"`
		Name       string `json:"name"`
		Email      string `json:"email"`
		Subscribed bool   `json:"subscribed"`
	}
	items := make([]userRow, 0, len(users))
	for _, u := range users {
		items = append(items, userRow{
			UserID:     u.ID.String(),
			Name:       u.Name,
			Email:      u.Email,
			Subscribed: !optOuts[strings.ToLower(u.Email)],
		})
	}

	c.JSON(http.StatusOK, PaginatedResponse{
		Items:      items,
		TotalItems: totalItems,
		TotalPages: totalPages(totalItems, pageSize),
		Page:       page,
		PageSize:   pageSize,
	})
}

type SendCommunicationsPayload struct {
	Subject    string   `json:"subject" binding:"required"`
	BodyHTML   string   `json:"body_html" binding:"required"`
	Recipients []string `json:"recipients"`
	AllUsers   bool     `json:"all_users"`
}

type CommunicationFailure struct {
	Email string `json:"email"`
	Error string `json:"error"`
}

type SendCommunicationsResult struct {
	Sent          int                    `json:"sent"`
	Failed        int                    `json:"failed"`
	SkippedOptOut int                    `json:"skipped_opt_out"`
	Failures      []CommunicationFailure `json:"failures"`
}

// SendCommunicationsHandler envía una comunicación a un conjunto de
// destinatarios: deduplica, salta bajas y reporta fallos por destinatario
// sin abortar el lote.
func SendCommunicationsHandler(c *gin.Context) {
	log := orilog.L.Named("SendCommunicationsHandler")

	var payload SendCommunicationsPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request payload: " + err.Error()})
		return
	}
	if !payload.AllUsers && len(payload.Recipients) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Either recipients or all_users must be provided"})
		return
	}

	db := database.GetDB()
	recipients := payload.Recipients
	if payload.AllUsers {
		var users []models.User
		if err := db.Select("email").Find(&users).Error; err != nil {
			log.Error("Failed to list users for communication", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to resolve recipients"})
			return
		}
		recipients = recipients[:0:0]
		for _, u := range users {
			recipients = append(recipients, u.Email)
		}
	}

	optOuts, err := optout.GetOptOutEmailSet(c.Request.Context())
	if err != nil {
		log.Error("Failed to load opt-out set", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load opt-out registry"})
		return
	}

	result := SendCommunicationsResult{Failures: []CommunicationFailure{}}
	seen := make(map[string]bool, len(recipients))
	for _, raw := range recipients {
		email := strings.ToLower(strings.TrimSpace(raw))
		if email == "" || seen[email] {
			continue
		}
		seen[email] = true

		if optOuts[email] {
			result.SkippedOptOut++
			continue
		}

		unsubToken, tokenErr := optout.CreateUnsubscribeToken(email)
		if tokenErr != nil {
			result.Failed++
			result.Failures = append(result.Failures, CommunicationFailure{Email: email, Error: "failed to build unsubscribe link"})
			continue
		}
		unsubLink := fmt.Sprintf("%s/api/communications/unsubscribe?token=%s",
			strings.TrimSuffix(config.Cfg.AppRootURL, "/"), unsubToken)
		body := payload.BodyHTML + fmt.Sprintf(
			`<hr><p style="font-size:12px;color:#888">¿No quieres recibir estos correos? <a href="%s">Darse de baja</a></p>`,
			unsubLink)

		if sendErr := notifications.SendEmail(c.Request.Context(), "communication", email, payload.Subject, body); sendErr != nil {
			log.Warn("Failed to send communication", zap.Error(sendErr), zap.String("email", email))
			result.Failed++
			result.Failures = append(result.Failures, CommunicationFailure{Email: email, Error: sendErr.Error()})
			continue
		}
		result.Sent++
	}

	status := http.StatusOK
	if result.Failed > 0 && result.Sent > 0 {
		status = http.StatusMultiStatus
	} else if result.Failed > 0 && result.Sent == 0 {
		status = http.StatusBadGateway
	}
	c.JSON(status, result)
}

func isOptedOut(c *gin.Context, email string) (bool, error) {
	set, err := optout.GetOptOutEmailSet(c.Request.Context())
	if err != nil {
		return false, err
	}
	return set[strings.ToLower(strings.TrimSpace(email))], nil
}
