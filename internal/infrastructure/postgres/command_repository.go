package postgres

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fleetdispatch/fleetdispatch/internal/domain/command"
)

// CommandRepository implements command.Repository.
type CommandRepository struct {
	pool *pgxpool.Pool
}

func NewCommandRepository(pool *pgxpool.Pool) *CommandRepository {
	return &CommandRepository{pool: pool}
}

const commandColumns = `id, vehicle_id, campaign_id, type, state, payload, measured_at, created_at, latest_send_at, updated_at`

const upsertCommand = `
	INSERT INTO commands (` + commandColumns + `)
	VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
	ON CONFLICT (id) DO UPDATE SET
		state=EXCLUDED.state, payload=EXCLUDED.payload,
		latest_send_at=EXCLUDED.latest_send_at, updated_at=EXCLUDED.updated_at
`

func commandArgs(c *command.Command) ([]any, error) {
	payload, err := json.Marshal(c.Payload)
	if err != nil {
		return nil, err
	}
	return []any{c.ID, c.VehicleID, c.CampaignID, c.Type, c.State, payload, c.MeasuredAt, c.CreatedAt, c.LatestSendAt, c.UpdatedAt}, nil
}

func (r *CommandRepository) Save(ctx context.Context, c *command.Command) error {
	args, err := commandArgs(c)
	if err != nil {
		return err
	}
	_, err = r.pool.Exec(ctx, upsertCommand, args...)
	return err
}

// SaveAll upserts every command in one transaction.
func (r *CommandRepository) SaveAll(ctx context.Context, cmds []*command.Command) error {
	if len(cmds) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, c := range cmds {
		args, err := commandArgs(c)
		if err != nil {
			return err
		}
		batch.Queue(upsertCommand, args...)
	}
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (r *CommandRepository) GetByID(ctx context.Context, id uuid.UUID) (*command.Command, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+commandColumns+` FROM commands WHERE id=$1`, id)
	c, err := scanCommand(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return c, err
}

var commandOrderColumns = map[string]string{
	command.OrderByCreatedAt:    "created_at",
	command.OrderByMeasuredAt:   "measured_at",
	command.OrderByLatestSendAt: "latest_send_at",
}

func (r *CommandRepository) List(ctx context.Context, filter command.Filter, order command.Order, limit int) ([]*command.Command, error) {
	var w where
	if filter.VehicleID != "" {
		w.add("vehicle_id = ?", filter.VehicleID)
	}
	if filter.CampaignID != nil {
		w.add("campaign_id = ?", *filter.CampaignID)
	}
	if len(filter.States) > 0 {
		w.add("state = ANY(?)", stringsOf(filter.States))
	}
	if len(filter.Types) > 0 {
		w.add("type = ANY(?)", stringsOf(filter.Types))
	}
	if filter.CreatedBefore != nil {
		w.add("created_at < ?", *filter.CreatedBefore)
	}
	if filter.SentOnly {
		w.conds = append(w.conds, "latest_send_at IS NOT NULL")
	}

	column, ok := commandOrderColumns[order.Field]
	if !ok {
		column = "created_at"
	}
	direction := " ASC"
	if order.Desc {
		direction = " DESC NULLS LAST"
	}
	query := `SELECT ` + commandColumns + ` FROM commands` + w.String() + ` ORDER BY ` + column + direction + `, id`
	query += w.limit(limit)

	rows, err := r.pool.Query(ctx, query, w.args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var cmds []*command.Command
	for rows.Next() {
		c, err := scanCommand(rows)
		if err != nil {
			return nil, err
		}
		cmds = append(cmds, c)
	}
	return cmds, rows.Err()
}

func scanCommand(row pgx.Row) (*command.Command, error) {
	var c command.Command
	var payload []byte
	if err := row.Scan(&c.ID, &c.VehicleID, &c.CampaignID, &c.Type, &c.State, &payload, &c.MeasuredAt, &c.CreatedAt, &c.LatestSendAt, &c.UpdatedAt); err != nil {
		return nil, err
	}
	if len(payload) > 0 {
		if err := json.Unmarshal(payload, &c.Payload); err != nil {
			return nil, err
		}
	}
	return &c, nil
}
