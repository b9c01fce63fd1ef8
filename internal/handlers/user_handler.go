package handlers

import (
	"errors"
	"net/http"

	"orientia/backend/internal/auth"
	"orientia/backend/internal/database"
	"orientia/backend/internal/devicetrust"
	"orientia/backend/internal/models"
	orilog "orientia/backend/pkg/log"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// userFromParam carga el usuario referido por el parámetro de ruta.
func userFromParam(c *gin.Context) (*models.User, bool) {
	userID, err := uuid.Parse(c.Param("userId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid user ID format"})
		return nil, false
	}

	var user models.User
	if err := database.GetDB().First(&user, "id = ?", userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
		} else {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load user"})
		}
		return nil, false
	}
	return &user, true
}

// ListUsersHandler lista usuarios, paginado. Solo admins.
func ListUsersHandler(c *gin.Context) {
	log := orilog.L.Named("ListUsersHandler")
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

	type userRow struct {
		UserID   string          `json:"user_id"`
		Name     string          `json:"name"`
		Email    string          `json:"email"`
		Role     models.UserRole `json:"role"`
		Verified bool            `json:"verified"`
		Provider string          `json:"sso_provider,omitempty"`
	}
	items := make([]userRow, 0, len(users))
	for _, u := range users {
		items = append(items, userRow{
			UserID:   u.ID.String(),
			Name:     u.Name,
			Email:    u.Email,
			Role:     u.Role,
			Verified: u.IsVerified(),
			Provider: u.SSOProvider,
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

type UpdateUserRolePayload struct {
	Role models.UserRole `json:"role" binding:"required"`
}

// UpdateUserRoleHandler cambia el rol de un usuario. Solo admins.
func UpdateUserRoleHandler(c *gin.Context) {
	log := orilog.L.Named("UpdateUserRoleHandler")

	user, ok := userFromParam(c)
	if !ok {
		return
	}

	var payload UpdateUserRolePayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request payload"})
		return
	}
	if payload.Role != models.RoleAdmin && payload.Role != models.RoleUsuario {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid role"})
		return
	}

	// Un admin no puede degradarse a sí mismo: evita quedarse sin admins.
	if adminID, ok := auth.CurrentUserID(c); ok && adminID == user.ID && payload.Role != models.RoleAdmin {
		c.JSON(http.StatusBadRequest, gin.H{"error": "You cannot change your own role"})
		return
	}

	user.Role = payload.Role
	if err := database.GetDB().Save(user).Error; err != nil {
		log.Error("Failed to update user role", zap.Error(err), zap.String("user_id", user.ID.String()))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update user role"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "User role updated successfully", "user_id": user.ID.String(), "role": user.Role})
}

// DeleteUserHandler elimina un usuario y sus datos asociados. Solo admins.
func DeleteUserHandler(c *gin.Context) {
	log := orilog.L.Named("DeleteUserHandler")

	user, ok := userFromParam(c)
	if !ok {
		return
	}

	if adminID, ok := auth.CurrentUserID(c); ok && adminID == user.ID {
		c.JSON(http.StatusBadRequest, gin.H{"error": "You cannot delete your own account"})
		return
	}

	// Tokens, dispositivos e informes caen por ON DELETE CASCADE.
	if err := database.GetDB().Delete(user).Error; err != nil {
		log.Error("Failed to delete user", zap.Error(err), zap.String("user_id", user.ID.String()))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete user"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "User deleted successfully"})
}

// RevokeUserDevicesHandler revoca todos los dispositivos de confianza de
// un usuario, forzando una nueva verificación. Solo admins.
func RevokeUserDevicesHandler(c *gin.Context) {
	log := orilog.L.Named("RevokeUserDevicesHandler")

	user, ok := userFromParam(c)
	if !ok {
		return
	}

	if err := devicetrust.RevokeAll(database.GetDB(), user.ID); err != nil {
		log.Error("Failed to revoke trusted devices", zap.Error(err), zap.String("user_id", user.ID.String()))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to revoke trusted devices"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Trusted devices revoked successfully"})
}
