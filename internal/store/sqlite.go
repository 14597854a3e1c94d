package store

import (
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	_ "embed"

	"github.com/BTreeMap/VoicePipe/internal/models"
	_ "github.com/mattn/go-sqlite3"
)

// DefaultDirPermissions defines the default permissions for database directories.
const DefaultDirPermissions = 0755

//go:embed migrations_sqlite.sql
var sqliteMigrations string

// SQLiteVoicemailRepo persists voicemails to a SQLite database file.
type SQLiteVoicemailRepo struct {
	db *sql.DB
}

// NewSQLiteVoicemailRepo opens (creating if needed) the SQLite database at
// dsn and runs migrations. The DSN is a file path; its directory is created
// when missing.
func NewSQLiteVoicemailRepo(dsn string) (*SQLiteVoicemailRepo, error) {
	if dsn == "" {
		return nil, fmt.Errorf("database DSN not set")
	}

	dir := filepath.Dir(dsn)
	if err := os.MkdirAll(dir, DefaultDirPermissions); err != nil {
		slog.Error("Failed to create database directory", "error", err, "dir", dir)
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}

	slog.Debug("Running SQLite migrations")
	if _, err := db.Exec(sqliteMigrations); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	slog.Debug("SQLite migrations applied successfully")

	return &SQLiteVoicemailRepo{db: db}, nil
}

// SaveVoicemail inserts vm into the voicemails table.
func (r *SQLiteVoicemailRepo) SaveVoicemail(vm models.Voicemail) error {
	_, err := r.db.Exec(
		`INSERT INTO voicemails (call_sid, caller, recording_url, transcript, created_at) VALUES (?, ?, ?, ?, ?)`,
		vm.CallSID, vm.Caller, vm.RecordingURL, vm.Transcript, vm.CreatedAt,
	)
	if err != nil {
		slog.Error("SQLiteVoicemailRepo.SaveVoicemail failed", "error", err, "call_sid", vm.CallSID)
		return fmt.Errorf("failed to save voicemail: %w", err)
	}
	return nil
}

// ListVoicemails returns all recorded voicemails, oldest first.
func (r *SQLiteVoicemailRepo) ListVoicemails() ([]models.Voicemail, error) {
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
func (r *SQLiteVoicemailRepo) Close() error {
	return r.db.Close()
}
