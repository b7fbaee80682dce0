package catalog

import (
	"time"

	"github.com/google/uuid"
	"github.com/harborctl/sentinel/internal/apperr"
	"github.com/harborctl/sentinel/internal/types"
)

// RecordViolation appends a denied-attempt record. Violations are never
// propagated as errors (spec §7); this is purely a durability sink for
// what the child process's OS-level denial already enforced.
func (c *Catalog) RecordViolation(v *types.Violation) error {
	if v.ID == "" {
		v.ID = uuid.New().String()
	}
	if v.CreatedAt.IsZero() {
		v.CreatedAt = time.Now().UTC()
	}
	_, err := c.db.Exec(`INSERT INTO sandbox_violations
		(id, profile_id, run_id, operation, pattern_value, process_name, pid, created_at)
		VALUES (?,?,?,?,?,?,?,?)`,
		v.ID, v.ProfileID, v.RunID, v.Operation, v.PatternValue, v.ProcessName, v.PID,
		v.CreatedAt.Format(time.RFC3339Nano))
	if err != nil {
		return apperr.Wrap(apperr.KindInternal, "record sandbox violation", err)
	}
	return nil
}

// ViolationsSince returns every violation recorded at or after since.
func (c *Catalog) ViolationsSince(since time.Time) ([]*types.Violation, error) {
	rows, err := c.db.Query(`SELECT id, profile_id, run_id, operation, pattern_value, process_name, pid, created_at
		FROM sandbox_violations WHERE created_at >= ? ORDER BY created_at`, since.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, "list sandbox violations", err)
	}
	defer rows.Close()

	var out []*types.Violation
	for rows.Next() {
		var v types.Violation
		var createdAt string
		if err := rows.Scan(&v.ID, &v.ProfileID, &v.RunID, &v.Operation, &v.PatternValue, &v.ProcessName, &v.PID, &createdAt); err != nil {
			return nil, apperr.Wrap(apperr.KindInternal, "scan sandbox violation", err)
		}
		v.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
		out = append(out, &v)
	}
	return out, rows.Err()
}
