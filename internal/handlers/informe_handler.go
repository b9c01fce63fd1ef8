package handlers

import (
	"errors"
	"net/http"
	"strings"

	"orientia/backend/internal/auth"
	"orientia/backend/internal/database"
	"orientia/backend/internal/llm"
	"orientia/backend/internal/models"
	orilog "orientia/backend/pkg/log"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type InformePayload struct {
	Title       string `json:"title" binding:"required"`
	StudentName string `json:"student_name" binding:"required"`
	Content     string `json:"content"`
}

// CreateInformeHandler crea un informe en estado borrador.
func CreateInformeHandler(c *gin.Context) {
	log := orilog.L.Named("CreateInformeHandler")

	userID, ok := auth.CurrentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	var payload InformePayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request payload: " + err.Error()})
		return
	}

	informe := models.Informe{
		UserID:      userID,
		Title:       strings.TrimSpace(payload.Title),
		StudentName: strings.TrimSpace(payload.StudentName),
		Content:     payload.Content,
		Status:      models.InformeBorrador,
	}
	if err := database.GetDB().Create(&informe).Error; err != nil {
		log.Error("Failed to create informe", zap.Error(err), zap.String("user_id", userID.String()))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create informe"})
		return
	}

	c.JSON(http.StatusCreated, informe)
}

// ListInformesHandler lista los informes del usuario autenticado, paginados.
func ListInformesHandler(c *gin.Context) {
	log := orilog.L.Named("ListInformesHandler")

	userID, ok := auth.CurrentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	db := database.GetDB()
	page, pageSize := GetPaginationParams(c)

	query := db.Model(&models.Informe{}).Where("user_id = ?", userID)
	if status := c.Query("status"); status != "" {
		query = query.Where("status = ?", status)
	}

	var totalItems int64
	if err := query.Count(&totalItems).Error; err != nil {
		log.Error("Failed to count informes", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list informes"})
		return
	}

	var informes []models.Informe
	if err := query.Scopes(PaginateScope(page, pageSize)).Order("updated_at DESC").Find(&informes).Error; err != nil {
		log.Error("Failed to list informes", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list informes"})
		return
	}

	c.JSON(http.StatusOK, PaginatedResponse{
		Items:      informes,
		TotalItems: totalItems,
		TotalPages: totalPages(totalItems, pageSize),
		Page:       page,
		PageSize:   pageSize,
	})
}

// informeForRequest carga un informe por id verificando que pertenece al
// usuario autenticado.
func informeForRequest(c *gin.Context) (*models.Informe, bool) {
	userID, ok := auth.CurrentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return nil, false
	}

	informeID, err := uuid.Parse(c.Param("informeId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid informe ID format"})
		return nil, false
	}

	var informe models.Informe
	err = database.GetDB().Where("id = ? AND user_id = ?", informeID, userID).First(&informe).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Informe not found"})
		} else {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load informe"})
		}
		return nil, false
	}
	return &informe, true
}

// GetInformeHandler devuelve un informe propio.
func GetInformeHandler(c *gin.Context) {
	informe, ok := informeForRequest(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, informe)
}

type UpdateInformePayload struct {
	Title       *string `json:"title"`
	StudentName *string `json:"student_name"`
	Content     *string `json:"content"`
	Status      *string `json:"status"`
}

// UpdateInformeHandler actualiza campos de un informe propio.
func UpdateInformeHandler(c *gin.Context) {
	log := orilog.L.Named("UpdateInformeHandler")

	informe, ok := informeForRequest(c)
	if !ok {
		return
	}

	var payload UpdateInformePayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request payload"})
		return
	}

	if payload.Title != nil {
		informe.Title = strings.TrimSpace(*payload.Title)
	}
	if payload.StudentName != nil {
		informe.StudentName = strings.TrimSpace(*payload.StudentName)
	}
	if payload.Content != nil {
		informe.Content = *payload.Content
	}
	if payload.Status != nil {
		status := models.InformeStatus(*payload.Status)
		if status != models.InformeBorrador && status != models.InformeFinalizado {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid status"})
			return
		}
		informe.Status = status
	}

	if err := database.GetDB().Save(informe).Error; err != nil {
		log.Error("Failed to update informe", zap.Error(err), zap.String("informe_id", informe.ID.String()))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update informe"})
		return
	}
	c.JSON(http.StatusOK, informe)
}

// DeleteInformeHandler borra un informe propio.
func DeleteInformeHandler(c *gin.Context) {
	log := orilog.L.Named("DeleteInformeHandler")

	informe, ok := informeForRequest(c)
	if !ok {
		return
	}

	if err := database.GetDB().Delete(informe).Error; err != nil {
		log.Error("Failed to delete informe", zap.Error(err), zap.String("informe_id", informe.ID.String()))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete informe"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Informe deleted successfully"})
}

type GenerateInformePayload struct {
	StudentName  string   `json:"student_name" binding:"required"`
	Age          int      `json:"age"`
	Observations string   `json:"observations" binding:"required"`
	FocusAreas   []string `json:"focus_areas"`
}

// GenerateInformeHandler pide al proveedor de LLM un borrador de informe
// a partir de las observaciones del orientador. El resultado es solo un
// punto de partida; no se persiste hasta que el usuario guarda.
func GenerateInformeHandler(c *gin.Context) {
	log := orilog.L.Named("GenerateInformeHandler")

	if _, ok := auth.CurrentUserID(c); !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	var payload GenerateInformePayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request payload: " + err.Error()})
		return
	}

	if llm.DefaultClient == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Draft generation is not configured"})
		return
	}

	draft, err := llm.DefaultClient.GenerateInformeDraft(c.Request.Context(), llm.DraftRequest{
		StudentName:  payload.StudentName,
		Age:          payload.Age,
		Observations: payload.Observations,
		FocusAreas:   payload.FocusAreas,
	})
	if err != nil {
		log.Error("Failed to generate informe draft", zap.Error(err))
		c.JSON(http.StatusBadGateway, gin.H{"error": "Draft generation failed. Please try again."})
		return
	}

	c.JSON(http.StatusOK, gin.H{"draft": draft})
}
