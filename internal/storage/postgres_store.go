package storage

import (
	"context"
	"database/sql"

	_ "github.com/lib/pq"

	"github.com/example/fleet-tracking/internal/models"
)

type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(dsn string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	// quick ping
	if err := db.Ping(); err != nil {
		return nil, err
	}
	return &PostgresStore{db: db}, nil
}

func (p *PostgresStore) AppendPosition(ctx context.Context, rec models.PositionRecord) error {
	_, err := p.db.ExecContext(ctx,
		`INSERT INTO positions(actor_id, latitude, longitude, reported_at) VALUES($1,$2,$3,$4)`,
		rec.ActorID, rec.Latitude, rec.Longitude, rec.Timestamp)
	return err
}

func (p *PostgresStore) LastPosition(ctx context.Context, actorID string) (models.PositionRecord, bool, error) {
	rec := models.PositionRecord{ActorID: actorID}
	err := p.db.QueryRowContext(ctx,
		`SELECT latitude, longitude, reported_at FROM positions WHERE actor_id=$1 ORDER BY reported_at DESC LIMIT 1`,
		actorID).Scan(&rec.Latitude, &rec.Longitude, &rec.Timestamp)
	if err == sql.ErrNoRows {
		return models.PositionRecord{}, false, nil
	}
	if err != nil {
		return models.PositionRecord{}, false, err
	}
	return rec, true, nil
}

func (p *PostgresStore) SaveAssignment(ctx context.Context, a *models.DeliveryAssignment) error {
	_, err := p.db.ExecContext(ctx,
		`INSERT INTO deliveries(id, driver_id, customer_id, status, assigned_at, payment_intent_id) VALUES($1,$2,$3,$4,$5,$6)`,
		a.ID, a.DriverID, a.CustomerID, a.Status, a.AssignedAt, a.PaymentIntentID)
	return err
}

func (p *PostgresStore) GetAssignment(ctx context.Context, id string) (models.DeliveryAssignment, error) {
	var a models.DeliveryAssignment
	err := p.db.QueryRowContext(ctx,
		`SELECT id, driver_id, customer_id, status, assigned_at, payment_intent_id FROM deliveries WHERE id=$1`,
		id).Scan(&a.ID, &a.DriverID, &a.CustomerID, &a.Status, &a.AssignedAt, &a.PaymentIntentID)
	if err == sql.ErrNoRows {
		return models.DeliveryAssignment{}, ErrNotFound
	}
	if err != nil {
		return models.DeliveryAssignment{}, err
	}
	return a, nil
}

func (p *PostgresStore) UpdateAssignmentStatus(ctx context.Context, id string, status models.DeliveryStatus) error {
	res, err := p.db.ExecContext(ctx, `UPDATE deliveries SET status=$1 WHERE id=$2`, status, id)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

func (p *PostgresStore) ActiveForActor(ctx context.Context, actorID string) ([]models.DeliveryAssignment, error) {
	rows, err := p.db.QueryContext(ctx,
		`SELECT id, driver_id, customer_id, status, assigned_at FROM deliveries
		 WHERE status IN ('assigned','in-transit') AND (driver_id=$1 OR customer_id=$1)
		 ORDER BY id`, actorID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []models.DeliveryAssignment
	for rows.Next() {
		var a models.DeliveryAssignment
		if err := rows.Scan(&a.ID, &a.DriverID, &a.CustomerID, &a.Status, &a.AssignedAt); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (p *PostgresStore) Close() error { return p.db.Close() }
