package repository

import (
	"context"
	"database/sql"
	"fmt"
)

// PostgresLocalStore はPostgreSQLを使用したセッションローカルストレージ。
type PostgresLocalStore struct {
	db *sql.DB
}

// NewPostgresLocalStore はPostgresLocalStoreを生成する。
func NewPostgresLocalStore(db *sql.DB) *PostgresLocalStore {
	return &PostgresLocalStore{db: db}
}

// Get は指定キーの値を取得する。存在しない場合はErrNotFoundを返す。
func (s *PostgresLocalStore) Get(ctx context.Context, sessionID, key string) (string, error) {
	var value string
	err := s.db.QueryRowContext(ctx,
		`SELECT value FROM local_entries WHERE session_id = $1 AND key = $2`,
		sessionID, key,
	).Scan(&value)

	if err == sql.ErrNoRows {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("failed to get local entry: %w", err)
	}

	return value, nil
}

// Set は指定キーの値を設定する。既存キーは上書きする。
func (s *PostgresLocalStore) Set(ctx context.Context, sessionID, key, value string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO local_entries (session_id, key, value, updated_at)
		 VALUES ($1, $2, $3, now())
		 ON CONFLICT (session_id, key)
		 DO UPDATE SET value = EXCLUDED.value, updated_at = now()`,
		sessionID, key, value,
	)
	if err != nil {
		return fmt.Errorf("failed to set local entry: %w", err)
	}
	return nil
}

// Remove は指定キーを削除する。存在しないキーの削除はエラーにならない。
func (s *PostgresLocalStore) Remove(ctx context.Context, sessionID, key string) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM local_entries WHERE session_id = $1 AND key = $2`,
		sessionID, key,
	)
	if err != nil {
		return fmt.Errorf("failed to remove local entry: %w", err)
	}
	return nil
}

// RemoveAll は指定セッションの全キーを削除する。
func (s *PostgresLocalStore) RemoveAll(ctx context.Context, sessionID string) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM local_entries WHERE session_id = $1`,
		sessionID,
	)
	if err != nil {
		return fmt.Errorf("failed to remove local entries: %w", err)
	}
	return nil
}

// compile-time interface check
var _ LocalStore = (*PostgresLocalStore)(nil)
