package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	dbutil "github.com/unigw/unigw/internal/db"
	"github.com/unigw/unigw/internal/models"
	"gorm.io/gorm"
)

// GroupHandler manages routing group and member endpoints.
type GroupHandler struct {
	db *gorm.DB
}

// NewGroupHandler constructs a GroupHandler.
func NewGroupHandler(db *gorm.DB) *GroupHandler {
	return &GroupHandler{db: db}
}

// memberJSON renders a group member with its provider name resolved.
func memberJSON(row models.GroupMember, providerNames map[uint64]string) gin.H {
	return gin.H{
		"id":            row.ID,
		"group_id":      row.GroupID,
		"provider_id":   row.ProviderID,
		"provider_name": providerNames[row.ProviderID],
		"target_model":  row.TargetModel,
		"weight":        row.Weight,
	}
}

// groupJSON renders a routing group with its members.
func groupJSON(row models.RoutingGroup, providerNames map[uint64]string) gin.H {
	members := make([]gin.H, 0, len(row.Members))
	for _, member := range row.Members {
		members = append(members, memberJSON(member, providerNames))
	}
	return gin.H{
		"id":         row.ID,
		"name":       row.Name,
		"strategy":   row.Strategy,
		"members":    members,
		"created_at": row.CreatedAt,
	}
}

// providerNames loads the provider id to name mapping for member rendering.
func (h *GroupHandler) providerNames(c *gin.Context) (map[uint64]string, error) {
	var rows []models.Provider
	if errFind := h.db.WithContext(c.Request.Context()).
		Select("id", "name").Find(&rows).Error; errFind != nil {
		return nil, errFind
	}
	names := make(map[uint64]string, len(rows))
	for _, row := range rows {
		names[row.ID] = row.Name
	}
	return names, nil
}

// createGroupRequest defines the request body for group creation.
type createGroupRequest struct {
	Name     string `json:"name"`
	Strategy string `json:"strategy"`
}

// Create registers a new routing group alias.
func (h *GroupHandler) Create(c *gin.Context) {
	var body createGroupRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	name := strings.TrimSpace(body.Name)
	if name == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing name"})
		return
	}
	strategy := strings.TrimSpace(body.Strategy)
	if strategy == "" {
		strategy = models.StrategyRoundRobin
	}
	if !models.ValidStrategy(strategy) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid strategy"})
		return
	}

	now := time.Now().UTC()
	row := models.RoutingGroup{
		Name:      name,
		Strategy:  strategy,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if errCreate := h.db.WithContext(c.Request.Context()).Create(&row).Error; errCreate != nil {
		if dbutil.IsUniqueViolation(errCreate) {
			c.JSON(http.StatusConflict, gin.H{"error": "group already exists"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "create group failed"})
		return
	}
	c.JSON(http.StatusCreated, groupJSON(row, nil))
}

// List returns all routing groups with members, optionally filtered by name.
func (h *GroupHandler) List(c *gin.Context) {
	q := h.db.WithContext(c.Request.Context()).Model(&models.RoutingGroup{})
	if nameQ := strings.TrimSpace(c.Query("name")); nameQ != "" {
		pattern := dbutil.NormalizeLikePattern(h.db, "%"+nameQ+"%")
		q = q.Where(dbutil.CaseInsensitiveLikeExpr(h.db, "name"), pattern)
	}

	var rows []models.RoutingGroup
	if errFind := q.
		Preload("Members", func(db *gorm.DB) *gorm.DB { return db.Order("id ASC") }).
		Order("created_at DESC, id DESC").
		Find(&rows).Error; errFind != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list groups failed"})
		return
	}

	names, errNames := h.providerNames(c)
	if errNames != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list groups failed"})
		return
	}

	out := make([]gin.H, 0, len(rows))
	for _, row := range rows {
		out = append(out, groupJSON(row, names))
	}
	c.JSON(http.StatusOK, out)
}

// updateGroupRequest defines the request body for group updates.
type updateGroupRequest struct {
	Name     *string `json:"name"`
	Strategy *string `json:"strategy"`
}

// Update modifies a routing group.
func (h *GroupHandler) Update(c *gin.Context) {
	id, errParse := strconv.ParseUint(strings.TrimSpace(c.Param("id")), 10, 64)
	if errParse != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}
	var body updateGroupRequest
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
	if body.Strategy != nil {
		strategy := strings.TrimSpace(*body.Strategy)
		if !models.ValidStrategy(strategy) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid strategy"})
			return
		}
		updates["strategy"] = strategy
	}

	res := h.db.WithContext(c.Request.Context()).Model(&models.RoutingGroup{}).
		Where("id = ?", id).Updates(updates)
	if res.Error != nil {
		if dbutil.IsUniqueViolation(res.Error) {
			c.JSON(http.StatusConflict, gin.H{"error": "group already exists"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "update group failed"})
		return
	}
	if res.RowsAffected == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// Delete removes a routing group and its members.
func (h *GroupHandler) Delete(c *gin.Context) {
	id, errParse := strconv.ParseUint(strings.TrimSpace(c.Param("id")), 10, 64)
	if errParse != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}

	errTx := h.db.WithContext(c.Request.Context()).Transaction(func(tx *gorm.DB) error {
		if errMembers := tx.Where("group_id = ?", id).
			Delete(&models.GroupMember{}).Error; errMembers != nil {
			return errMembers
		}
		res := tx.Delete(&models.RoutingGroup{}, id)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return nil
	})
	if errTx != nil {
		if errors.Is(errTx, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "delete group failed"})
		return
	}
	c.Status(http.StatusNoContent)
}

// ListMembers returns all group members.
func (h *GroupHandler) ListMembers(c *gin.Context) {
	var rows []models.GroupMember
	if errFind := h.db.WithContext(c.Request.Context()).
		Order("group_id ASC, id ASC").Find(&rows).Error; errFind != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list members failed"})
		return
	}

	names, errNames := h.providerNames(c)
	if errNames != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list members failed"})
		return
	}

	out := make([]gin.H, 0, len(rows))
	for _, row := range rows {
		out = append(out, memberJSON(row, names))
	}
	c.JSON(http.StatusOK, out)
}

// createMemberRequest defines the request body for member creation.
type createMemberRequest struct {
	GroupID     uint64 `json:"group_id"`
	ProviderID  uint64 `json:"provider_id"`
	TargetModel string `json:"target_model"`
	Weight      int    `json:"weight"`
}

// CreateMember adds a weighted provider target to a routing group.
func (h *GroupHandler) CreateMember(c *gin.Context) {
	var body createMemberRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	targetModel := strings.TrimSpace(body.TargetModel)
	if targetModel == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing target model"})
		return
	}
	if body.Weight < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid weight"})
		return
	}
	weight := body.Weight
	if weight == 0 {
		weight = 1
	}

	var group models.RoutingGroup
	if errFind := h.db.WithContext(c.Request.Context()).
		First(&group, body.GroupID).Error; errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "group not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}
	var provider models.Provider
	if errFind := h.db.WithContext(c.Request.Context()).
		First(&provider, body.ProviderID).Error; errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "provider not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}

	now := time.Now().UTC()
	row := models.GroupMember{
		GroupID:     group.ID,
		ProviderID:  provider.ID,
		TargetModel: targetModel,
		Weight:      weight,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if errCreate := h.db.WithContext(c.Request.Context()).Create(&row).Error; errCreate != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "create member failed"})
		return
	}
	c.JSON(http.StatusCreated, memberJSON(row, map[uint64]string{provider.ID: provider.Name}))
}

// DeleteMember removes a group member by id.
func (h *GroupHandler) DeleteMember(c *gin.Context) {
	id, errParse := strconv.ParseUint(strings.TrimSpace(c.Param("id")), 10, 64)
	if errParse != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}

	res := h.db.WithContext(c.Request.Context()).Delete(&models.GroupMember{}, id)
	if res.Error != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "delete member failed"})
		return
	}
	if res.RowsAffected == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		return
	}
	c.Status(http.StatusNoContent)
}
