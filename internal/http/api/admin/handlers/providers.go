package handlers

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	dbutil "github.com/unigw/unigw/internal/db"
	"github.com/unigw/unigw/internal/models"
	"gorm.io/gorm"
)

// SecretUnchanged is the sentinel edit value that keeps a stored credential.
const SecretUnchanged = "unchanged"

// ProviderHandler manages upstream provider endpoints.
type ProviderHandler struct {
	db *gorm.DB
}

// NewProviderHandler constructs a ProviderHandler.
func NewProviderHandler(db *gorm.DB) *ProviderHandler {
	return &ProviderHandler{db: db}
}

// providerJSON renders a provider with its credential masked.
func providerJSON(row models.Provider) gin.H {
	masked := ""
	if len(row.APIKey) >= 8 {
		masked = row.APIKey[:8] + "········" + row.APIKey[len(row.APIKey)-4:]
	}
	return gin.H{
		"id":            row.ID,
		"name":          row.Name,
		"provider_type": row.ProviderType,
		"base_url":      row.BaseURL,
		"api_key":       masked,
		"created_at":    row.CreatedAt,
		"updated_at":    row.UpdatedAt,
	}
}

// createProviderRequest defines the request body for provider creation.
type createProviderRequest struct {
	Name         string `json:"name"`
	ProviderType string `json:"provider_type"`
	BaseURL      string `json:"base_url"`
	APIKey       string `json:"api_key"`
}

// Create registers a new upstream provider.
func (h *ProviderHandler) Create(c *gin.Context) {
	var body createProviderRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	name := strings.TrimSpace(body.Name)
	if name == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing name"})
		return
	}
	providerType := strings.TrimSpace(body.ProviderType)
	if providerType == "" {
		providerType = models.ProviderTypeOpenAI
	}
	if !models.ValidProviderType(providerType) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid provider type"})
		return
	}
	apiKey := strings.TrimSpace(body.APIKey)
	if apiKey == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing api key"})
		return
	}

	now := time.Now().UTC()
	row := models.Provider{
		Name:         name,
		ProviderType: providerType,
		BaseURL:      strings.TrimSpace(body.BaseURL),
		APIKey:       apiKey,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if errCreate := h.db.WithContext(c.Request.Context()).Create(&row).Error; errCreate != nil {
		if dbutil.IsUniqueViolation(errCreate) {
			c.JSON(http.StatusConflict, gin.H{"error": "provider already exists"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "create provider failed"})
		return
	}
	c.JSON(http.StatusCreated, providerJSON(row))
}

// List returns all providers, optionally filtered by name.
func (h *ProviderHandler) List(c *gin.Context) {
	q := h.db.WithContext(c.Request.Context()).Model(&models.Provider{})
	if nameQ := strings.TrimSpace(c.Query("name")); nameQ != "" {
		pattern := dbutil.NormalizeLikePattern(h.db, "%"+nameQ+"%")
		q = q.Where(dbutil.CaseInsensitiveLikeExpr(h.db, "name"), pattern)
	}

	var rows []models.Provider
	if errFind := q.Order("created_at DESC, id DESC").Find(&rows).Error; errFind != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list providers failed"})
		return
	}
	out := make([]gin.H, 0, len(rows))
	for _, row := range rows {
		out = append(out, providerJSON(row))
	}
	c.JSON(http.StatusOK, out)
}

// updateProviderRequest defines the request body for provider updates.
type updateProviderRequest struct {
	ProviderType *string `json:"provider_type"`
	BaseURL      *string `json:"base_url"`
	APIKey       *string `json:"api_key"`
}

// Update modifies a provider. The stored credential is kept unless the body
// carries a new value distinct from the unchanged sentinel.
func (h *ProviderHandler) Update(c *gin.Context) {
	name := strings.TrimSpace(c.Param("name"))
	if name == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid name"})
		return
	}
	var body updateProviderRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	updates := map[string]any{"updated_at": time.Now().UTC()}
	if body.ProviderType != nil {
		providerType := strings.TrimSpace(*body.ProviderType)
		if !models.ValidProviderType(providerType) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid provider type"})
			return
		}
		updates["provider_type"] = providerType
	}
	if body.BaseURL != nil {
		updates["base_url"] = strings.TrimSpace(*body.BaseURL)
	}
	if body.APIKey != nil {
		apiKey := strings.TrimSpace(*body.APIKey)
		if apiKey != "" && apiKey != SecretUnchanged {
			updates["api_key"] = apiKey
		}
	}

	res := h.db.WithContext(c.Request.Context()).Model(&models.Provider{}).
		Where("name = ?", name).Updates(updates)
	if res.Error != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "update provider failed"})
		return
	}
	if res.RowsAffected == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		return
	}

	var row models.Provider
	if errFind := h.db.WithContext(c.Request.Context()).
		Where("name = ?", name).First(&row).Error; errFind != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}
	c.JSON(http.StatusOK, providerJSON(row))
}

// Delete removes a provider and any group members targeting it.
func (h *ProviderHandler) Delete(c *gin.Context) {
	name := strings.TrimSpace(c.Param("name"))
	if name == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid name"})
		return
	}

	errTx := h.db.WithContext(c.Request.Context()).Transaction(func(tx *gorm.DB) error {
		var row models.Provider
		if errFind := tx.Where("name = ?", name).First(&row).Error; errFind != nil {
			return errFind
		}
		if errMembers := tx.Where("provider_id = ?", row.ID).
			Delete(&models.GroupMember{}).Error; errMembers != nil {
			return errMembers
		}
		return tx.Delete(&row).Error
	})
	if errTx != nil {
		if errors.Is(errTx, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "delete provider failed"})
		return
	}
	c.Status(http.StatusNoContent)
}
