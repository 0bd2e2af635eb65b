package delivery

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/fjod/pos_cart/cart-service/internal/domain"
	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/google/uuid"
	"github.com/lib/pq"
)

type PostgresRepository struct {
	db *sql.DB
}

func NewPostgresRepository(cred *Credentials) (*PostgresRepository, error) {
	psqlconn := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		cred.Host,
		cred.Port,
		cred.User,
		cred.Password,
		cred.DBName)

	db, err := sql.Open("postgres", psqlconn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if e2 := db.Ping(); e2 != nil {
		return nil, fmt.Errorf("failed to ping database: %w", e2)
	}

	db.SetMaxOpenConns(50)
	db.SetMaxIdleConns(10)
	db.SetConnMaxIdleTime(5 * time.Minute)
	return &PostgresRepository{db: db}, nil
}

func (r *PostgresRepository) RunMigrations(cred *Credentials) error {
	driver, err := postgres.WithInstance(r.db, &postgres.Config{
		MigrationsTable: "delivery_schema_migrations",
	})
	if err != nil {
		return fmt.Errorf("could not create migration driver: %w", err)
	}

	m, err := migrate.NewWithDatabaseInstance(
		fmt.Sprintf("file://%s", cred.MigrationsDirPath),
		"postgres",
		driver,
	)
	if err != nil {
		return fmt.Errorf("could not create migrate instance: %w", err)
	}

	if e2 := m.Up(); e2 != nil && !errors.Is(e2, migrate.ErrNoChange) {
		return fmt.Errorf("could not run migrations: %w", e2)
	}
	return nil
}

func (r *PostgresRepository) Close() error {
	return r.db.Close()
}

func (r *PostgresRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func (r *PostgresRepository) Create(ctx context.Context, ds *domain.DeliveryStatus) (bool, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("begin create delivery status: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	query := `INSERT INTO tranlog_delivery_status
	          (event_id, published_at, tenant_id, store_code, terminal_no, business_date, open_counter,
	           transaction_no, shard_key, payload, overall_status, publish_attempts, last_publish_error, last_updated_at)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	          ON CONFLICT (event_id) DO NOTHING`

	res, err := tx.ExecContext(ctx, query,
		ds.EventID,
		ds.PublishedAt,
		ds.TenantID,
		ds.StoreCode,
		ds.TerminalNo,
		ds.BusinessDate,
		ds.OpenCounter,
		ds.TransactionNo,
		ds.ShardKey,
		string(ds.Payload),
		ds.OverallStatus,
		ds.PublishAttempts,
		ds.LastPublishError,
		ds.LastUpdatedAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return false, fmt.Errorf("%w: delivery record for transaction %d", domain.ErrDuplicateSubmission, ds.TransactionNo)
		}
		return false, fmt.Errorf("insert delivery status: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return false, nil
	}

	for _, s := range ds.Services {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO tranlog_delivery_service (event_id, service_name, status, received_at, message)
			 VALUES ($1, $2, $3, $4, $5)`,
			ds.EventID, s.ServiceName, s.Status, s.ReceivedAt, s.Message)
		if err != nil {
			return false, fmt.Errorf("insert delivery service %s: %w", s.ServiceName, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("commit delivery status: %w", err)
	}
	return true, nil
}

const selectStatus = `SELECT event_id, published_at, tenant_id, store_code, terminal_no, business_date, open_counter,
       transaction_no, shard_key, payload, overall_status, publish_attempts, last_publish_error, last_updated_at
FROM tranlog_delivery_status`

// checkEventID rejects ids that cannot exist before they reach the uuid column.
func checkEventID(eventID string) error {
	if _, err := uuid.Parse(eventID); err != nil {
		return domain.NotFoundf("delivery status %s", eventID)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanStatus(row rowScanner) (*domain.DeliveryStatus, error) {
	var ds domain.DeliveryStatus
	var payload []byte
	err := row.Scan(
		&ds.EventID,
		&ds.PublishedAt,
		&ds.TenantID,
		&ds.StoreCode,
		&ds.TerminalNo,
		&ds.BusinessDate,
		&ds.OpenCounter,
		&ds.TransactionNo,
		&ds.ShardKey,
		&payload,
		&ds.OverallStatus,
		&ds.PublishAttempts,
		&ds.LastPublishError,
		&ds.LastUpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	ds.Payload = payload
	return &ds, nil
}

type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// loadServices fills Services for every status in byID.
func loadServices(ctx context.Context, q querier, byID map[string]*domain.DeliveryStatus) error {
	if len(byID) == 0 {
		return nil
	}
	ids := make([]string, 0, len(byID))
	for id := range byID {
		ids = append(ids, id)
	}

	rows, err := q.QueryContext(ctx,
		`SELECT event_id, service_name, status, received_at, message
		 FROM tranlog_delivery_service WHERE event_id = ANY($1::uuid[]) ORDER BY event_id, service_name`,
		pq.Array(ids))
	if err != nil {
		return fmt.Errorf("query delivery services: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var eventID string
		var s domain.ServiceStatus
		var receivedAt sql.NullTime
		if err := rows.Scan(&eventID, &s.ServiceName, &s.Status, &receivedAt, &s.Message); err != nil {
			return fmt.Errorf("scan delivery service: %w", err)
		}
		if receivedAt.Valid {
			t := receivedAt.Time
			s.ReceivedAt = &t
		}
		if ds, ok := byID[eventID]; ok {
			ds.Services = append(ds.Services, s)
		}
	}
	return rows.Err()
}

func (r *PostgresRepository) Get(ctx context.Context, eventID string) (*domain.DeliveryStatus, error) {
	if err := checkEventID(eventID); err != nil {
		return nil, err
	}
	ds, err := scanStatus(r.db.QueryRowContext(ctx, selectStatus+` WHERE event_id = $1`, eventID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.NotFoundf("delivery status %s", eventID)
	}
	if err != nil {
		return nil, fmt.Errorf("query delivery status: %w", err)
	}
	if err := loadServices(ctx, r.db, map[string]*domain.DeliveryStatus{ds.EventID: ds}); err != nil {
		return nil, err
	}
	return ds, nil
}

func (r *PostgresRepository) Acknowledge(ctx context.Context, eventID, service string, status domain.DeliveryState, message string, at time.Time) (*domain.DeliveryStatus, error) {
	if err := checkEventID(eventID); err != nil {
		return nil, err
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin acknowledge: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	// the row lock serialises acknowledgements for one event
	ds, err := scanStatus(tx.QueryRowContext(ctx, selectStatus+` WHERE event_id = $1 FOR UPDATE`, eventID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.NotFoundf("delivery status %s", eventID)
	}
	if err != nil {
		return nil, fmt.Errorf("lock delivery status: %w", err)
	}
	if err := loadServices(ctx, tx, map[string]*domain.DeliveryStatus{ds.EventID: ds}); err != nil {
		return nil, err
	}

	if err := ds.Acknowledge(service, status, message, at); err != nil {
		return nil, err
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE tranlog_delivery_service SET status = $3, received_at = $4, message = $5
		 WHERE event_id = $1 AND service_name = $2`,
		eventID, service, status, at, message)
	if err != nil {
		return nil, fmt.Errorf("update delivery service: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE tranlog_delivery_status SET overall_status = $2, last_updated_at = $3 WHERE event_id = $1`,
		eventID, ds.OverallStatus, at)
	if err != nil {
		return nil, fmt.Errorf("update overall status: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit acknowledge: %w", err)
	}
	return ds, nil
}

func (r *PostgresRepository) RecordPublishAttempt(ctx context.Context, eventID string, publishErr error, at time.Time) error {
	msg := ""
	if publishErr != nil {
		msg = publishErr.Error()
	}
	res, err := r.db.ExecContext(ctx,
		`UPDATE tranlog_delivery_status
		 SET publish_attempts = publish_attempts + 1, last_publish_error = $2, last_updated_at = $3
		 WHERE event_id = $1`,
		eventID, msg, at)
	if err != nil {
		return fmt.Errorf("record publish attempt: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.NotFoundf("delivery status %s", eventID)
	}
	return nil
}

func (r *PostgresRepository) FindUndelivered(ctx context.Context, olderThan, since time.Time, limit int) ([]*domain.DeliveryStatus, error) {
	rows, err := r.db.QueryContext(ctx,
		selectStatus+` WHERE overall_status <> $1 AND published_at <= $2 AND published_at >= $3
		ORDER BY published_at LIMIT $4`,
		domain.DeliveryDelivered, olderThan, since, limit)
	if err != nil {
		return nil, fmt.Errorf("query undelivered: %w", err)
	}
	defer rows.Close()

	var out []*domain.DeliveryStatus
	byID := make(map[string]*domain.DeliveryStatus)
	for rows.Next() {
		ds, err := scanStatus(rows)
		if err != nil {
			return nil, fmt.Errorf("scan delivery status: %w", err)
		}
		out = append(out, ds)
		byID[ds.EventID] = ds
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate undelivered: %w", err)
	}

	if err := loadServices(ctx, r.db, byID); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *PostgresRepository) PruneDelivered(ctx context.Context, before time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM tranlog_delivery_status WHERE overall_status = $1 AND last_updated_at < $2`,
		domain.DeliveryDelivered, before)
	if err != nil {
		return 0, fmt.Errorf("prune delivered: %w", err)
	}
	return res.RowsAffected()
}
