package store

import (
	"database/sql"
	"fmt"
	"log/slog"

	_ "embed"

	"github.com/BTreeMap/VoicePipe/internal/models"
	_ "github.com/lib/pq"
)

//go:embed migrations_postgres.sql
var postgresMigrations string

// PostgresVoicemailRepo persists voicemails to a Postgres database.
type PostgresVoicemailRepo struct {
	db *sql.DB
}

// NewPostgresVoicemailRepo connects to the database at dsn and runs
// migrations.
func NewPostgresVoicemailRepo(dsn string) (*PostgresVoicemailRepo, error) {
	if dsn == "" {
		return nil, fmt.Errorf("database DSN not set")
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open postgres database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}

	slog.Debug("Running Postgres migrations")
	if _, err := db.Exec(postgresMigrations); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	slog.Debug("Postgres migrations applied successfully")

	return &PostgresVoicemailRepo{db: db}, nil
}

// SaveVoicemail inserts vm into the voicemails table.
func (r *PostgresVoicemailRepo) SaveVoicemail(vm models.Voicemail) error {
	_, err := r.db.Exec(
		`INSERT INTO voicemails (call_sid, caller, recording_url, transcript, created_at) VALUES ($1, $2, $3, $4, $5)`,
		vm.CallSID, vm.Caller, vm.RecordingURL, vm.Transcript, vm.CreatedAt,
	)
	if err != nil {
		slog.Error("PostgresVoicemailRepo.SaveVoicemail failed", "error", err, "call_sid", vm.CallSID)
		return fmt.Errorf("failed to save voicemail: %w", err)
	}
	return nil
}

// ListVoicemails returns all recorded voicemails, oldest first.
func (r *PostgresVoicemailRepo) ListVoicemails() ([]models.Voicemail, error) {
	rows, err := r.db.Query(`SELECT call_sid, caller, recording_url, transcript, created_at FROM voicemails ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list voicemails: %w", err)
	}
	defer rows.Close()

	var out []models.Voicemail
	for rows.Next() {
		var vm models.Voicemail
		if err := rows.Scan(&vm.CallSID, &vm.Caller, &vm.RecordingURL, &vm.Transcript, &vm.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan voicemail row: %w", err)
		}
		out = append(out, vm)
	}
	return out, rows.Err()
}

// Close releases the underlying database handle.
func (r *PostgresVoicemailRepo) Close() error {
	return r.db.Close()
}
