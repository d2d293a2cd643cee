// Package postgresdb provides the PostgreSQL-backed implementation of the
// storage interface. Schema management is delegated to goose migrations;
// email uniqueness is enforced by a unique index and surfaced as
// models.ErrEmailTaken.
package postgresdb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"github.com/patric-chuzhbe/tinyapp/internal/models"
	"github.com/patric-chuzhbe/tinyapp/internal/user"
)

const uniqueViolationCode = "23505"

// PostgresDB is a PostgreSQL-backed implementation of the storage interface.
type PostgresDB struct {
	database          *sql.DB
	connectionTimeout time.Duration
}

type initOptions struct {
	DBPreReset bool
}

// InitOption customizes the behavior of New.
type InitOption func(*initOptions)

// WithDBPreReset makes New drop every table in the public schema before
// running migrations. It exists for integration tests only.
func WithDBPreReset(value bool) InitOption {
	return func(options *initOptions) {
		options.DBPreReset = value
	}
}

// New establishes a connection to the PostgreSQL database,
// runs schema migrations, and returns a configured PostgresDB instance.
func New(
	ctx context.Context,
	databaseDSN string,
	connectionTimeout time.Duration,
	migrationsDir string,
	optionsProto ...InitOption,
) (*PostgresDB, error) {
	options := &initOptions{}
	for _, protoOption := range optionsProto {
		protoOption(options)
	}

	database, err := sql.Open("pgx", databaseDSN)
	if err != nil {
		return nil, err
	}

	result := &PostgresDB{
		database:          database,
		connectionTimeout: connectionTimeout,
	}

	if options.DBPreReset {
		if err := result.resetDB(ctx); err != nil {
			return nil,
				fmt.Errorf(
					"in internal/db/postgresdb/postgresdb.go/New(): error while `result.resetDB()` calling: %w",
					err,
				)
		}
	}

	if err := goose.SetDialect("postgres"); err != nil {
		return nil,
			fmt.Errorf(
				"in internal/db/postgresdb/postgresdb.go/New(): error while `goose.SetDialect()` calling: %w",
				err,
			)
	}

	if err := goose.Up(result.database, migrationsDir); err != nil {
		return nil,
			fmt.Errorf(
				"in internal/db/postgresdb/postgresdb.go/New(): error while `goose.Up()` calling: %w",
				err,
			)
	}

	return result, nil
}

// CreateUser stores a new user and returns the database-assigned ID.
// A unique index violation on the email column maps to models.ErrEmailTaken.
func (db *PostgresDB) CreateUser(ctx context.Context, usr *user.User) (string, error) {
	row := db.database.QueryRowContext(
		ctx,
		`INSERT INTO users (email, password_hash) VALUES ($1, $2) RETURNING id`,
		usr.Email,
		usr.PasswordHash,
	)
	var userIDFromDB string
	err := row.Scan(&userIDFromDB)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolationCode {
			return "", models.ErrEmailTaken
		}
		return "", err
	}
	usr.ID = userIDFromDB

	return userIDFromDB, nil
}

// FindUserByID resolves a user by its ID.
func (db *PostgresDB) FindUserByID(ctx context.Context, userID string) (*user.User, bool, error) {
	if userID == "" {
		return nil, false, nil
	}

	row := db.database.QueryRowContext(
		ctx,
		`SELECT id, email, password_hash FROM users WHERE id = $1`,
		userID,
	)
	usr := &user.User{}
	err := row.Scan(&usr.ID, &usr.Email, &usr.PasswordHash)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, err
	}

	return usr, true, nil
}

// FindUserByEmail resolves a user by its email. The comparison is
// case-sensitive, matching the in-memory backends.
func (db *PostgresDB) FindUserByEmail(ctx context.Context, email string) (*user.User, bool, error) {
	row := db.database.QueryRowContext(
		ctx,
		`SELECT id, email, password_hash FROM users WHERE email = $1`,
		email,
	)
	usr := &user.User{}
	err := row.Scan(&usr.ID, &usr.Email, &usr.PasswordHash)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, err
	}

	return usr, true, nil
}

// InsertURL stores a URL record. An existing record under the same short
// key is overwritten, matching the in-memory backends.
func (db *PostgresDB) InsertURL(ctx context.Context, record models.URLRecord) error {
	_, err := db.database.ExecContext(
		ctx,
		`
			INSERT INTO urls (short_key, long_url, owner_user_id) VALUES ($1, $2, $3)
				ON CONFLICT (short_key)
					DO UPDATE SET long_url = EXCLUDED.long_url, owner_user_id = EXCLUDED.owner_user_id
		`,
		record.ShortKey,
		record.LongURL,
		record.OwnerUserID,
	)
	if err != nil {
		return err
	}

	return nil
}

// FindURLByShortKey resolves a URL record by its short key.
func (db *PostgresDB) FindURLByShortKey(ctx context.Context, shortKey string) (models.URLRecord, bool, error) {
	row := db.database.QueryRowContext(
		ctx,
		`SELECT short_key, long_url, owner_user_id FROM urls WHERE short_key = $1`,
		shortKey,
	)
	record := models.URLRecord{}
	err := row.Scan(&record.ShortKey, &record.LongURL, &record.OwnerUserID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.URLRecord{}, false, nil
		}
		return models.URLRecord{}, false, err
	}

	return record, true, nil
}

// UpdateURL replaces the long URL of an existing record.
func (db *PostgresDB) UpdateURL(ctx context.Context, shortKey, newLongURL string) error {
	result, err := db.database.ExecContext(
		ctx,
		`UPDATE urls SET long_url = $1 WHERE short_key = $2`,
		newLongURL,
		shortKey,
	)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return models.ErrNotFound
	}

	return nil
}

// DeleteURL removes a record from the URL directory.
func (db *PostgresDB) DeleteURL(ctx context.Context, shortKey string) error {
	result, err := db.database.ExecContext(
		ctx,
		`DELETE FROM urls WHERE short_key = $1`,
		shortKey,
	)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return models.ErrNotFound
	}

	return nil
}

// FindURLsByOwner returns every record owned by the given user.
func (db *PostgresDB) FindURLsByOwner(ctx context.Context, ownerUserID string) ([]models.URLRecord, error) {
	rows, err := db.database.QueryContext(
		ctx,
		`SELECT short_key, long_url, owner_user_id FROM urls WHERE owner_user_id = $1`,
		ownerUserID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := []models.URLRecord{}
	for rows.Next() {
		record := models.URLRecord{}
		err = rows.Scan(&record.ShortKey, &record.LongURL, &record.OwnerUserID)
		if err != nil {
			return nil, err
		}
		result = append(result, record)
	}

	err = rows.Err()
	if err != nil {
		return nil, err
	}

	return result, nil
}

// GetNumberOfShortenedURLs returns the size of the URL directory.
func (db *PostgresDB) GetNumberOfShortenedURLs(ctx context.Context) (int64, error) {
	row := db.database.QueryRowContext(ctx, `SELECT COUNT(*) FROM urls`)
	var count int64
	if err := row.Scan(&count); err != nil {
		return 0, err
	}

	return count, nil
}

// GetNumberOfUsers returns the size of the user directory.
func (db *PostgresDB) GetNumberOfUsers(ctx context.Context) (int64, error) {
	row := db.database.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`)
	var count int64
	if err := row.Scan(&count); err != nil {
		return 0, err
	}

	return count, nil
}

// Ping verifies the database connection within the configured timeout.
func (db *PostgresDB) Ping(ctx context.Context) error {
	pingCtx, cancel := context.WithTimeout(ctx, db.connectionTimeout)
	defer cancel()

	return db.database.PingContext(pingCtx)
}

// Close closes the database connection and releases any associated resources.
func (db *PostgresDB) Close() error {
	return db.database.Close()
}

func (db *PostgresDB) resetDB(ctx context.Context) error {
	_, err := db.database.ExecContext(
		ctx,
		`
			DO $$
			DECLARE
				r RECORD;
			BEGIN
				FOR r IN (SELECT tablename FROM pg_tables WHERE schemaname = 'public') LOOP
					EXECUTE 'DROP TABLE IF EXISTS ' || quote_ident(r.tablename) || ' CASCADE';
				END LOOP;
			END $$;
		`,
	)
	if err != nil {
		return fmt.Errorf(
			"in internal/db/postgresdb/postgresdb.go/resetDB(): error while `db.database.ExecContext()` calling: %w",
			err,
		)
	}
	return nil
}
