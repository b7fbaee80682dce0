package catalog

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/harborctl/sentinel/internal/apperr"
	"github.com/harborctl/sentinel/internal/types"
)

// CreateRun inserts a new run row, defaulting status to pending.
func (c *Catalog) CreateRun(r *types.Run) error {
	if r.ID == "" {
		r.ID = uuid.New().String()
	}
	if r.Status == "" {
		r.Status = types.RunPending
	}
	if r.StartedAt.IsZero() {
		r.StartedAt = time.Now().UTC()
	}
	_, err := c.db.Exec(`INSERT INTO agent_runs
		(id, agent_id, display_name, icon, task, model, project_path, session_token, status, pid, started_at, completed_at, error)
		VALUES (?,?,?,?,?,?,?,?,?,?,?,NULL,?)`,
		r.ID, nullable(r.AgentID), r.DisplayName, r.Icon, r.Task, r.Model, r.ProjectPath,
		r.SessionToken, r.Status, r.PID, r.StartedAt.Format(time.RFC3339Nano), r.Error)
	if err != nil {
		return apperr.Wrap(apperr.KindInternal, "insert run", err)
	}
	return nil
}

func nullable(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

// GetRun fetches a single run by id.
func (c *Catalog) GetRun(id string) (*types.Run, error) {
	row := c.db.QueryRow(runSelectColumns+` FROM agent_runs WHERE id = ?`, id)
	r, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.New(apperr.KindNotFound, fmt.Sprintf("run %q not found", id))
	}
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, "scan run", err)
	}
	return r, nil
}

// RunningRuns returns every run currently recorded as status=running
// (used by the Live Registry reconciliation task, spec §4.4).
func (c *Catalog) RunningRuns() ([]*types.Run, error) {
	return c.queryRuns(runSelectColumns+` FROM agent_runs WHERE status = ? ORDER BY started_at`, types.RunRunning)
}

// RunsByAgent returns every run that references the given agent.
func (c *Catalog) RunsByAgent(agentID string) ([]*types.Run, error) {
	return c.queryRuns(runSelectColumns+` FROM agent_runs WHERE agent_id = ? ORDER BY started_at DESC`, agentID)
}

func (c *Catalog) queryRuns(query string, args ...interface{}) ([]*types.Run, error) {
	rows, err := c.db.Query(query, args...)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, "query runs", err)
	}
	defer rows.Close()

	var out []*types.Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, apperr.Wrap(apperr.KindInternal, "scan run row", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// UpdateRunStatus transitions a run's status, optionally setting pid,
// completed_at and an error string. Status advances monotonically per
// spec §3; callers are responsible for only calling this with a forward
// transition.
func (c *Catalog) UpdateRunStatus(id string, status types.RunStatus, pid int, errMsg string) error {
	var completedAt interface{}
	if status == types.RunCompleted || status == types.RunFailed || status == types.RunCancelled {
		completedAt = time.Now().UTC().Format(time.RFC3339Nano)
	}
	res, err := c.db.Exec(`UPDATE agent_runs SET status=?, pid=?, completed_at=?, error=? WHERE id=?`,
		status, pid, completedAt, errMsg, id)
	if err != nil {
		return apperr.Wrap(apperr.KindInternal, "update run status", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return apperr.New(apperr.KindNotFound, fmt.Sprintf("run %q not found", id))
	}
	return nil
}

// SetRunSessionToken records the external-session correlation token the
// first time it becomes known (spec §4.5 step 1d: "once").
func (c *Catalog) SetRunSessionToken(id, token string) error {
	res, err := c.db.Exec(`UPDATE agent_runs SET session_token=? WHERE id=? AND session_token=''`, token, id)
	if err != nil {
		return apperr.Wrap(apperr.KindInternal, "set run session token", err)
	}
	_, _ = res.RowsAffected()
	return nil
}

const runSelectColumns = `SELECT id, agent_id, display_name, icon, task, model, project_path,
	session_token, status, pid, started_at, completed_at, error`

func scanRun(row rowScanner) (*types.Run, error) {
	var r types.Run
	var agentID sql.NullString
	var startedAt string
	var completedAt sql.NullString
	if err := row.Scan(&r.ID, &agentID, &r.DisplayName, &r.Icon, &r.Task, &r.Model, &r.ProjectPath,
		&r.SessionToken, &r.Status, &r.PID, &startedAt, &completedAt, &r.Error); err != nil {
		return nil, err
	}
	r.AgentID = agentID.String
	r.StartedAt, _ = time.Parse(time.RFC3339Nano, startedAt)
	if completedAt.Valid {
		t, _ := time.Parse(time.RFC3339Nano, completedAt.String)
		r.CompletedAt = &t
	}
	return &r, nil
}
