package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/unigw/unigw/internal/config"
	"github.com/unigw/unigw/internal/security"
	"github.com/unigw/unigw/internal/settings"
)

// SessionCookieName is the cookie holding the console session token.
const SessionCookieName = "unigw_session"

// AuthHandler manages console login and logout.
type AuthHandler struct {
	jwtCfg config.JWTConfig
}

// NewAuthHandler constructs an AuthHandler.
func NewAuthHandler(jwtCfg config.JWTConfig) *AuthHandler {
	return &AuthHandler{jwtCfg: jwtCfg}
}

// Login checks the master key and opens a console session.
func (h *AuthHandler) Login(c *gin.Context) {
	// body holds the login request payload.
	var body struct {
		MasterKey string `json:"master_key"`
	}
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	masterKey := strings.TrimSpace(body.MasterKey)
	if masterKey == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing master key"})
		return
	}

	hash := settings.StringValue(settings.MasterKeyHashKey, "")
	if hash == "" || !security.CheckMasterKey(hash, masterKey) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid master key"})
		return
	}

	token, errSign := security.SignAdminToken(h.jwtCfg.Secret, h.jwtCfg.Expiry, time.Now().UTC())
	if errSign != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "open session failed"})
		return
	}

	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(SessionCookieName, token, int(h.jwtCfg.Expiry/time.Second), "/", "", false, true)
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Logout clears the console session cookie.
func (h *AuthHandler) Logout(c *gin.Context) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(SessionCookieName, "", -1, "/", "", false, true)
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
