package app

import (
	"encoding/json"
	"errors"
	"path/filepath"
	"testing"

	"github.com/unigw/unigw/internal/config"
	"github.com/unigw/unigw/internal/db"
	"github.com/unigw/unigw/internal/models"
	"github.com/unigw/unigw/internal/security"
	internalsettings "github.com/unigw/unigw/internal/settings"
	"gorm.io/gorm"
)

func openMigratedDB(t *testing.T) *gorm.DB {
	t.Helper()
	conn, err := db.Open("file:" + filepath.Join(t.TempDir(), "unigw-test.db"))
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if errMigrate := db.Migrate(conn); errMigrate != nil {
		t.Fatalf("migrate: %v", errMigrate)
	}
	return conn
}

func readStoredHash(t *testing.T, conn *gorm.DB) string {
	t.Helper()
	var row models.Setting
	if errFind := conn.Where("key = ?", internalsettings.MasterKeyHashKey).First(&row).Error; errFind != nil {
		t.Fatalf("find hash setting: %v", errFind)
	}
	var hash string
	if errUnmarshal := json.Unmarshal(row.Value, &hash); errUnmarshal != nil {
		t.Fatalf("decode hash: %v", errUnmarshal)
	}
	return hash
}

func TestSyncMasterKeySeedsHash(t *testing.T) {
	conn := openMigratedDB(t)

	if errSync := syncMasterKey(conn, "first-master"); errSync != nil {
		t.Fatalf("syncMasterKey: %v", errSync)
	}

	hash := readStoredHash(t, conn)
	if !security.CheckMasterKey(hash, "first-master") {
		t.Fatalf("stored hash does not verify the configured key")
	}
	if security.CheckMasterKey(hash, "other-key") {
		t.Fatalf("stored hash verifies a different key")
	}
}

func TestSyncMasterKeyKeepsMatchingHash(t *testing.T) {
	conn := openMigratedDB(t)

	if errSync := syncMasterKey(conn, "stable-master"); errSync != nil {
		t.Fatalf("first sync: %v", errSync)
	}
	first := readStoredHash(t, conn)

	if errSync := syncMasterKey(conn, "stable-master"); errSync != nil {
		t.Fatalf("second sync: %v", errSync)
	}
	second := readStoredHash(t, conn)

	if first != second {
		t.Fatalf("hash rewritten for an unchanged key")
	}
}

func TestSyncMasterKeyRotatesOnChange(t *testing.T) {
	conn := openMigratedDB(t)

	if errSync := syncMasterKey(conn, "old-master"); errSync != nil {
		t.Fatalf("seed old key: %v", errSync)
	}
	if errSync := syncMasterKey(conn, "new-master"); errSync != nil {
		t.Fatalf("rotate key: %v", errSync)
	}

	hash := readStoredHash(t, conn)
	if !security.CheckMasterKey(hash, "new-master") {
		t.Fatalf("stored hash does not verify the new key")
	}
	if security.CheckMasterKey(hash, "old-master") {
		t.Fatalf("stored hash still verifies the old key")
	}
}

func TestSyncMasterKeyEmptyKeyLeavesSettings(t *testing.T) {
	conn := openMigratedDB(t)

	if errSync := syncMasterKey(conn, ""); errSync != nil {
		t.Fatalf("syncMasterKey: %v", errSync)
	}

	var row models.Setting
	errFind := conn.Where("key = ?", internalsettings.MasterKeyHashKey).First(&row).Error
	if !errors.Is(errFind, gorm.ErrRecordNotFound) {
		t.Fatalf("expected no stored hash, got err=%v value=%s", errFind, row.Value)
	}
}

func TestEnsureJWTSecret(t *testing.T) {
	cfg := config.Config{}
	if errSecret := ensureJWTSecret(&cfg); errSecret != nil {
		t.Fatalf("ensureJWTSecret: %v", errSecret)
	}
	if cfg.JWT.Secret == "" {
		t.Fatalf("expected a generated secret")
	}

	fixed := config.Config{JWT: config.JWTConfig{Secret: "configured"}}
	if errSecret := ensureJWTSecret(&fixed); errSecret != nil {
		t.Fatalf("ensureJWTSecret with configured secret: %v", errSecret)
	}
	if fixed.JWT.Secret != "configured" {
		t.Fatalf("configured secret overwritten: %q", fixed.JWT.Secret)
	}
}
