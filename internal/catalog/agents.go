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

// isUniqueViolation recognizes a SQLite UNIQUE constraint failure by
// message, since driver-specific error codes vary between the cgo and
// pure-Go sqlite drivers.
func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint")
}

// CreateAgent inserts a new agent. Names are unique; a duplicate name
// fails with a typed Conflict error rather than a generic string (spec
// §4.1).
func (c *Catalog) CreateAgent(a *types.Agent) error {
	if strings.TrimSpace(a.Name) == "" {
		return apperr.New(apperr.KindValidation, "agent name is required")
	}
	if a.ID == "" {
		a.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	a.CreatedAt, a.UpdatedAt = now, now

	_, err := c.db.Exec(`INSERT INTO agents
		(id, name, icon, system_prompt, default_task, model, sandbox_enabled, file_read, file_write, network, created_at, updated_at)
		VALUES (?,?,?,?,?,?,?,?,?,?,?,?)`,
		a.ID, a.Name, a.Icon, a.SystemPrompt, a.DefaultTask, a.Model,
		a.SandboxEnabled, a.FileRead, a.FileWrite, a.Network,
		a.CreatedAt.Format(time.RFC3339Nano), a.UpdatedAt.Format(time.RFC3339Nano))
	if err != nil {
		if isUniqueViolation(err) {
			return apperr.Wrap(apperr.KindConflict, fmt.Sprintf("agent name %q already exists", a.Name), err)
		}
		return apperr.Wrap(apperr.KindInternal, "insert agent", err)
	}
	return nil
}

// GetAgent fetches a single agent by id.
func (c *Catalog) GetAgent(id string) (*types.Agent, error) {
	row := c.db.QueryRow(`SELECT id, name, icon, system_prompt, default_task, model,
		sandbox_enabled, file_read, file_write, network, created_at, updated_at
		FROM agents WHERE id = ?`, id)
	a, err := scanAgent(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.New(apperr.KindNotFound, fmt.Sprintf("agent %q not found", id))
	}
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, "scan agent", err)
	}
	return a, nil
}

// ListAgents returns every agent, ordered by name.
func (c *Catalog) ListAgents() ([]*types.Agent, error) {
	rows, err := c.db.Query(`SELECT id, name, icon, system_prompt, default_task, model,
		sandbox_enabled, file_read, file_write, network, created_at, updated_at
		FROM agents ORDER BY name`)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, "list agents", err)
	}
	defer rows.Close()

	var out []*types.Agent
	for rows.Next() {
		a, err := scanAgent(rows)
		if err != nil {
			return nil, apperr.Wrap(apperr.KindInternal, "scan agent row", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// UpdateAgent overwrites the mutable fields of an existing agent.
func (c *Catalog) UpdateAgent(a *types.Agent) error {
	a.UpdatedAt = time.Now().UTC()
	res, err := c.db.Exec(`UPDATE agents SET name=?, icon=?, system_prompt=?, default_task=?, model=?,
		sandbox_enabled=?, file_read=?, file_write=?, network=?, updated_at=? WHERE id=?`,
		a.Name, a.Icon, a.SystemPrompt, a.DefaultTask, a.Model,
		a.SandboxEnabled, a.FileRead, a.FileWrite, a.Network,
		a.UpdatedAt.Format(time.RFC3339Nano), a.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return apperr.Wrap(apperr.KindConflict, fmt.Sprintf("agent name %q already exists", a.Name), err)
		}
		return apperr.Wrap(apperr.KindInternal, "update agent", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return apperr.New(apperr.KindNotFound, fmt.Sprintf("agent %q not found", a.ID))
	}
	return nil
}

// DeleteAgent removes an agent. Per spec §3 an agent may only be deleted
// if no running run references it.
func (c *Catalog) DeleteAgent(id string) error {
	return c.withTx(func(tx *sql.Tx) error {
		var running int
		if err := tx.QueryRow(`SELECT COUNT(*) FROM agent_runs WHERE agent_id = ? AND status = ?`,
			id, types.RunRunning).Scan(&running); err != nil {
			return apperr.Wrap(apperr.KindInternal, "count running runs", err)
		}
		if running > 0 {
			return apperr.New(apperr.KindConflict, "agent has a running run and cannot be deleted")
		}
		res, err := tx.Exec(`DELETE FROM agents WHERE id = ?`, id)
		if err != nil {
			return apperr.Wrap(apperr.KindInternal, "delete agent", err)
		}
		n, _ := res.RowsAffected()
		if n == 0 {
			return apperr.New(apperr.KindNotFound, fmt.Sprintf("agent %q not found", id))
		}
		return nil
	})
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanAgent(row rowScanner) (*types.Agent, error) {
	var a types.Agent
	var createdAt, updatedAt string
	if err := row.Scan(&a.ID, &a.Name, &a.Icon, &a.SystemPrompt, &a.DefaultTask, &a.Model,
		&a.SandboxEnabled, &a.FileRead, &a.FileWrite, &a.Network, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	a.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
	a.UpdatedAt, _ = time.Parse(time.RFC3339Nano, updatedAt)
	return &a, nil
}
