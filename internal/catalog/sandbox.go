package catalog

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/harborctl/sentinel/internal/apperr"
	"github.com/harborctl/sentinel/internal/types"
)

// CreateSandboxProfile inserts a profile. If isDefault is true, any
// existing default is atomically cleared first so exactly one profile
// has is_default=true (spec §4.1, testable property §8.10).
func (c *Catalog) CreateSandboxProfile(p *types.SandboxProfile) error {
	if strings.TrimSpace(p.Name) == "" {
		return apperr.New(apperr.KindValidation, "sandbox profile name is required")
	}
	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	p.CreatedAt = time.Now().UTC()

	return c.withTx(func(tx *sql.Tx) error {
		if p.IsDefault {
			if _, err := tx.Exec(`UPDATE sandbox_profiles SET is_default = 0`); err != nil {
				return apperr.Wrap(apperr.KindInternal, "clear existing default profile", err)
			}
		}
		_, err := tx.Exec(`INSERT INTO sandbox_profiles (id, name, is_default, created_at) VALUES (?,?,?,?)`,
			p.ID, p.Name, p.IsDefault, p.CreatedAt.Format(time.RFC3339Nano))
		if err != nil {
			if isUniqueViolation(err) {
				return apperr.Wrap(apperr.KindConflict, fmt.Sprintf("sandbox profile %q already exists", p.Name), err)
			}
			return apperr.Wrap(apperr.KindInternal, "insert sandbox profile", err)
		}
		return nil
	})
}

// SetDefaultSandboxProfile clears every other profile's default flag and
// sets this one, inside a single transaction.
func (c *Catalog) SetDefaultSandboxProfile(id string) error {
	return c.withTx(func(tx *sql.Tx) error {
		if _, err := tx.Exec(`UPDATE sandbox_profiles SET is_default = 0`); err != nil {
			return apperr.Wrap(apperr.KindInternal, "clear existing default profile", err)
		}
		res, err := tx.Exec(`UPDATE sandbox_profiles SET is_default = 1 WHERE id = ?`, id)
		if err != nil {
			return apperr.Wrap(apperr.KindInternal, "set default profile", err)
		}
		n, _ := res.RowsAffected()
		if n == 0 {
			return apperr.New(apperr.KindNotFound, fmt.Sprintf("sandbox profile %q not found", id))
		}
		return nil
	})
}

// ListSandboxProfiles returns every profile, default first.
func (c *Catalog) ListSandboxProfiles() ([]*types.SandboxProfile, error) {
	rows, err := c.db.Query(`SELECT id, name, is_default, created_at FROM sandbox_profiles ORDER BY is_default DESC, name`)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, "list sandbox profiles", err)
	}
	defer rows.Close()

	var out []*types.SandboxProfile
	for rows.Next() {
		var p types.SandboxProfile
		var createdAt string
		if err := rows.Scan(&p.ID, &p.Name, &p.IsDefault, &createdAt); err != nil {
			return nil, apperr.Wrap(apperr.KindInternal, "scan sandbox profile", err)
		}
		p.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
		out = append(out, &p)
	}
	return out, rows.Err()
}

// DefaultSandboxProfile returns the one profile with is_default=true, if
// any.
func (c *Catalog) DefaultSandboxProfile() (*types.SandboxProfile, error) {
	row := c.db.QueryRow(`SELECT id, name, is_default, created_at FROM sandbox_profiles WHERE is_default = 1`)
	var p types.SandboxProfile
	var createdAt string
	err := row.Scan(&p.ID, &p.Name, &p.IsDefault, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.New(apperr.KindNotFound, "no default sandbox profile configured")
	}
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, "scan default sandbox profile", err)
	}
	p.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
	return &p, nil
}

// DeleteSandboxProfile cascades to its rules and violations within one
// transaction (spec §4.1).
func (c *Catalog) DeleteSandboxProfile(id string) error {
	return c.withTx(func(tx *sql.Tx) error {
		if _, err := tx.Exec(`DELETE FROM sandbox_violations WHERE profile_id = ?`, id); err != nil {
			return apperr.Wrap(apperr.KindInternal, "delete violations for profile", err)
		}
		if _, err := tx.Exec(`DELETE FROM sandbox_rules WHERE profile_id = ?`, id); err != nil {
			return apperr.Wrap(apperr.KindInternal, "delete rules for profile", err)
		}
		res, err := tx.Exec(`DELETE FROM sandbox_profiles WHERE id = ?`, id)
		if err != nil {
			return apperr.Wrap(apperr.KindInternal, "delete sandbox profile", err)
		}
		n, _ := res.RowsAffected()
		if n == 0 {
			return apperr.New(apperr.KindNotFound, fmt.Sprintf("sandbox profile %q not found", id))
		}
		return nil
	})
}

// RulesForProfile returns every rule belonging to a profile.
func (c *Catalog) RulesForProfile(profileID string) ([]*types.SandboxRule, error) {
	rows, err := c.db.Query(`SELECT id, profile_id, operation, pattern_kind, pattern_value, enabled, platform_tags
		FROM sandbox_rules WHERE profile_id = ?`, profileID)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, "list sandbox rules", err)
	}
	defer rows.Close()

	var out []*types.SandboxRule
	for rows.Next() {
		var r types.SandboxRule
		var tags string
		if err := rows.Scan(&r.ID, &r.ProfileID, &r.Operation, &r.PatternKind, &r.PatternValue, &r.Enabled, &tags); err != nil {
			return nil, apperr.Wrap(apperr.KindInternal, "scan sandbox rule", err)
		}
		r.PlatformTags = splitTags(tags)
		out = append(out, &r)
	}
	return out, rows.Err()
}

// UpsertSandboxRule inserts or updates a rule by id.
func (c *Catalog) UpsertSandboxRule(r *types.SandboxRule) error {
	if r.ID == "" {
		r.ID = uuid.New().String()
	}
	_, err := c.db.Exec(`INSERT INTO sandbox_rules (id, profile_id, operation, pattern_kind, pattern_value, enabled, platform_tags)
		VALUES (?,?,?,?,?,?,?)
		ON CONFLICT(id) DO UPDATE SET profile_id=excluded.profile_id, operation=excluded.operation,
			pattern_kind=excluded.pattern_kind, pattern_value=excluded.pattern_value,
			enabled=excluded.enabled, platform_tags=excluded.platform_tags`,
		r.ID, r.ProfileID, r.Operation, r.PatternKind, r.PatternValue, r.Enabled, strings.Join(r.PlatformTags, ","))
	if err != nil {
		return apperr.Wrap(apperr.KindInternal, "upsert sandbox rule", err)
	}
	return nil
}

// DeleteSandboxRule removes one rule.
func (c *Catalog) DeleteSandboxRule(id string) error {
	res, err := c.db.Exec(`DELETE FROM sandbox_rules WHERE id = ?`, id)
	if err != nil {
		return apperr.Wrap(apperr.KindInternal, "delete sandbox rule", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return apperr.New(apperr.KindNotFound, fmt.Sprintf("sandbox rule %q not found", id))
	}
	return nil
}

func splitTags(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(s, ",")
}
