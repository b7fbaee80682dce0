package catalog

import (
	"database/sql"
	"errors"
	"time"

	"github.com/harborctl/sentinel/internal/apperr"
)

// SetAppSetting upserts a single string-valued key, used for the
// "last reconciled at" marker written by the Reconciler (SPEC_FULL
// §Catalog expansion).
func (c *Catalog) SetAppSetting(key, value string) error {
	_, err := c.db.Exec(`INSERT INTO app_settings (key, value, updated_at) VALUES (?,?,?)
		ON CONFLICT(key) DO UPDATE SET value=excluded.value, updated_at=excluded.updated_at`,
		key, value, time.Now().UTC().Format(time.RFC3339Nano))
	if err != nil {
		return apperr.Wrap(apperr.KindInternal, "set app setting", err)
	}
	return nil
}

// GetAppSetting returns a setting's value, or ("", apperr.KindNotFound)
// if unset.
func (c *Catalog) GetAppSetting(key string) (string, error) {
	var value string
	err := c.db.QueryRow(`SELECT value FROM app_settings WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", apperr.New(apperr.KindNotFound, "setting not found")
	}
	if err != nil {
		return "", apperr.Wrap(apperr.KindInternal, "get app setting", err)
	}
	return value, nil
}
