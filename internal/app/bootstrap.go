package app

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/unigw/unigw/internal/config"
	"github.com/unigw/unigw/internal/db"
	"github.com/unigw/unigw/internal/models"
	"github.com/unigw/unigw/internal/security"
	internalsettings "github.com/unigw/unigw/internal/settings"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// syncMasterKey keeps the stored bcrypt hash of the master key in step with
// the configured value. An empty configured key leaves any stored hash alone.
func syncMasterKey(conn *gorm.DB, masterKey string) error {
	if conn == nil {
		return fmt.Errorf("sync master key: nil connection")
	}
	masterKey = strings.TrimSpace(masterKey)

	stored, errLoad := storedMasterKeyHash(conn)
	if errLoad != nil {
		return errLoad
	}

	if masterKey == "" {
		if stored == "" {
			log.Warn("master key not configured, console login is disabled")
		}
		return nil
	}
	if stored != "" && security.CheckMasterKey(stored, masterKey) {
		return nil
	}

	hash, errHash := security.HashMasterKey(masterKey)
	if errHash != nil {
		return fmt.Errorf("hash master key: %w", errHash)
	}
	if errStore := db.UpsertSetting(conn, internalsettings.MasterKeyHashKey, hash); errStore != nil {
		return errStore
	}
	log.Info("master key hash updated")
	return nil
}

// storedMasterKeyHash reads the current hash straight from the settings table.
// The in-memory settings snapshot is not loaded yet at boot.
func storedMasterKeyHash(conn *gorm.DB) (string, error) {
	var row models.Setting
	errFind := conn.Where("key = ?", internalsettings.MasterKeyHashKey).First(&row).Error
	if errors.Is(errFind, gorm.ErrRecordNotFound) {
		return "", nil
	}
	if errFind != nil {
		return "", fmt.Errorf("query master key hash: %w", errFind)
	}

	var hash string
	if errUnmarshal := json.Unmarshal(row.Value, &hash); errUnmarshal != nil {
		log.WithError(errUnmarshal).Warn("stored master key hash unreadable, reseeding")
		return "", nil
	}
	return strings.TrimSpace(hash), nil
}

// ensureJWTSecret generates a per-boot secret when config omits one. Sessions
// signed with a generated secret do not survive restarts.
func ensureJWTSecret(cfg *config.Config) error {
	if strings.TrimSpace(cfg.JWT.Secret) != "" {
		return nil
	}
	secret, errGen := security.GenerateRandomString(32)
	if errGen != nil {
		return fmt.Errorf("generate jwt secret: %w", errGen)
	}
	cfg.JWT.Secret = secret
	log.Warn("jwt secret not configured, generated one for this run")
	return nil
}
