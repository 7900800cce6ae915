package storage

import (
	"context"

	"github.com/L1nMay/homeports/internal/model"
)

func (p *Postgres) AddScanRun(ctx context.Context, run *model.ScanRun) error {
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO scan_runs (
			id,
			kind,
			port_mode,
			speed_profile,
			started_at,
			finished_at,
			devices,
			open_ports,
			status,
			error
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
		ON CONFLICT (id) DO NOTHING
	`,
		run.ID,
		run.Kind,
		run.PortMode,
		run.SpeedProfile,
		run.StartedAt,
		run.FinishedAt,
		run.Devices,
		run.OpenPorts,
		run.Status,
		run.Error,
	)
	return err
}

func (p *Postgres) ListScanRuns(ctx context.Context, limit int) ([]model.ScanRun, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT
			id,
			kind,
			port_mode,
			speed_profile,
			started_at,
			finished_at,
			devices,
			open_ports,
			status,
			error
		FROM scan_runs
		ORDER BY started_at DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]model.ScanRun, 0)
	for rows.Next() {
		var r model.ScanRun
		if err := rows.Scan(
			&r.ID,
			&r.Kind,
			&r.PortMode,
			&r.SpeedProfile,
			&r.StartedAt,
			&r.FinishedAt,
			&r.Devices,
			&r.OpenPorts,
			&r.Status,
			&r.Error,
		); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
