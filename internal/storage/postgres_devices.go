package storage

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/L1nMay/homeports/internal/model"
)

// SaveDevices upserts every device and replaces its ports. Hosts missing
// from devices are kept as history.
func (p *Postgres) SaveDevices(devices []model.DeviceRecord) error {
	ctx, cancel := context.WithTimeout(context.Background(), pgTimeout)
	defer cancel()

	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	for _, d := range devices {
		id, err := upsertHost(ctx, tx, d)
		if err != nil {
			return fmt.Errorf("upsert host %s: %w", d.IP, err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM ports WHERE host_id = $1`, id); err != nil {
			return err
		}
		for _, port := range d.Ports {
			if err := insertPort(ctx, tx, id, port); err != nil {
				return fmt.Errorf("insert port %s:%d: %w", d.IP, port.Port, err)
			}
		}
	}
	return tx.Commit()
}

func upsertHost(ctx context.Context, tx *sql.Tx, d model.DeviceRecord) (int64, error) {
	var id int64
	err := tx.QueryRowContext(ctx, `
		INSERT INTO hosts (ip, mac, name, first_seen, last_seen)
		VALUES ($1, $2, $3, $4, $4)
		ON CONFLICT (ip)
		DO UPDATE SET mac = EXCLUDED.mac, name = EXCLUDED.name, last_seen = EXCLUDED.last_seen
		RETURNING id
	`, d.IP, d.MAC, d.Name, d.LastSeen).Scan(&id)
	return id, err
}

func insertPort(ctx context.Context, tx *sql.Tx, hostID int64, p model.PortRecord) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO ports (host_id, port, service, risk, risk_desc)
		VALUES ($1, $2, $3, $4, $5)
	`, hostID, p.Port, p.Service, string(p.Risk), p.RiskDesc)
	return err
}
