package handlers

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	dbutil "github.com/unigw/unigw/internal/db"
	"github.com/unigw/unigw/internal/models"
	"github.com/unigw/unigw/internal/security"
	"gorm.io/gorm"
)

// KeyHandler manages gateway access key endpoints.
type KeyHandler struct {
	db *gorm.DB
}

// NewKeyHandler constructs a KeyHandler.
func NewKeyHandler(db *gorm.DB) *KeyHandler {
	return &KeyHandler{db: db}
}

// keyJSON renders an access key row.
func keyJSON(row models.AccessKey) gin.H {
	return gin.H{
		"id":          row.ID,
		"key":         row.Key,
		"name":        row.Name,
		"rate_limit":  row.RateLimit,
		"usage_limit": row.UsageLimit,
		"usage_count": row.UsageCount,
		"is_active":   row.IsActive,
		"is_hidden":   row.IsHidden,
		"created_at":  row.CreatedAt,
	}
}

// createKeyRequest defines the request body for key creation.
type createKeyRequest struct {
	Name       string `json:"name"`
	CustomKey  string `json:"custom_key"`
	RateLimit  int    `json:"rate_limit"`
	UsageLimit int64  `json:"usage_limit"`
}

// Create issues a new access key, honoring a custom value when supplied.
func (h *KeyHandler) Create(c *gin.Context) {
	var body createKeyRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	name := strings.TrimSpace(body.Name)
	if name == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing name"})
		return
	}
	if body.RateLimit < 0 || body.UsageLimit < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "negative limit"})
		return
	}

	keyValue := strings.TrimSpace(body.CustomKey)
	if keyValue == "" {
		generated, errGenerate := security.GenerateAccessKey()
		if errGenerate != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "generate key failed"})
			return
		}
		keyValue = generated
	}

	now := time.Now().UTC()
	row := models.AccessKey{
		Key:        keyValue,
		Name:       name,
		RateLimit:  body.RateLimit,
		UsageLimit: body.UsageLimit,
		IsActive:   true,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if errCreate := h.db.WithContext(c.Request.Context()).Create(&row).Error; errCreate != nil {
		if dbutil.IsUniqueViolation(errCreate) {
			c.JSON(http.StatusConflict, gin.H{"error": "key already exists"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "create key failed"})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"key": row.Key})
}

// List returns all access keys, optionally filtered by name.
func (h *KeyHandler) List(c *gin.Context) {
	q := h.db.WithContext(c.Request.Context()).Model(&models.AccessKey{})
	if nameQ := strings.TrimSpace(c.Query("name")); nameQ != "" {
		pattern := dbutil.NormalizeLikePattern(h.db, "%"+nameQ+"%")
		q = q.Where(dbutil.CaseInsensitiveLikeExpr(h.db, "name"), pattern)
	}

	var rows []models.AccessKey
	if errFind := q.Order("created_at DESC, id DESC").Find(&rows).Error; errFind != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list keys failed"})
		return
	}
	out := make([]gin.H, 0, len(rows))
	for _, row := range rows {
		out = append(out, keyJSON(row))
	}
	c.JSON(http.StatusOK, out)
}

// updateKeyRequest defines the request body for key updates.
type updateKeyRequest struct {
	Name       *string `json:"name"`
	RateLimit  *int    `json:"rate_limit"`
	UsageLimit *int64  `json:"usage_limit"`
	IsActive   *bool   `json:"is_active"`
}

// Update modifies an access key. The key value itself never changes.
func (h *KeyHandler) Update(c *gin.Context) {
	keyValue := strings.TrimSpace(c.Param("key"))
	if keyValue == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid key"})
		return
	}
	var body updateKeyRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	updates := map[string]any{"updated_at": time.Now().UTC()}
	if body.Name != nil {
		name := strings.TrimSpace(*body.Name)
		if name == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "missing name"})
			return
		}
		updates["name"] = name
	}
	if body.RateLimit != nil {
		if *body.RateLimit < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "negative limit"})
			return
		}
		updates["rate_limit"] = *body.RateLimit
	}
	if body.UsageLimit != nil {
		if *body.UsageLimit < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "negative limit"})
			return
		}
		updates["usage_limit"] = *body.UsageLimit
	}
	if body.IsActive != nil {
		updates["is_active"] = *body.IsActive
	}

	res := h.db.WithContext(c.Request.Context()).Model(&models.AccessKey{}).
		Where("key = ?", keyValue).Updates(updates)
	if res.Error != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "update key failed"})
		return
	}
	if res.RowsAffected == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		return
	}

	var row models.AccessKey
	if errFind := h.db.WithContext(c.Request.Context()).
		Where("key = ?", keyValue).First(&row).Error; errFind != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}
	c.JSON(http.StatusOK, keyJSON(row))
}

// Delete removes an access key. The master tracker record is protected.
func (h *KeyHandler) Delete(c *gin.Context) {
	keyValue := strings.TrimSpace(c.Param("key"))
	if keyValue == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid key"})
		return
	}

	var row models.AccessKey
	if errFind := h.db.WithContext(c.Request.Context()).
		Where("key = ?", keyValue).First(&row).Error; errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}
	if row.IsHidden {
		c.JSON(http.StatusForbidden, gin.H{"error": "master key cannot be deleted"})
		return
	}

	if errDelete := h.db.WithContext(c.Request.Context()).Delete(&row).Error; errDelete != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "delete key failed"})
		return
	}
	c.Status(http.StatusNoContent)
}
