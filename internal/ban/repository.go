package ban

import (
	"context"
	"database/sql"
	"fmt"
	"net/netip"
	"time"
)

// SQLiteStore persists bans in the ip_bans table.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a ban store on an already migrated database.
func NewSQLiteStore(db *sql.DB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

// LoadBans returns every persisted ban.
func (s *SQLiteStore) LoadBans(ctx context.Context) ([]Ban, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT ip_address, banned_at, attempts FROM ip_bans ORDER BY banned_at")
	if err != nil {
		return nil, fmt.Errorf("querying ip bans: %w", err)
	}
	defer rows.Close()

	var bans []Ban
	for rows.Next() {
		var ipStr, bannedAt string
		var b Ban
		if err := rows.Scan(&ipStr, &bannedAt, &b.Attempts); err != nil {
			return nil, fmt.Errorf("scanning ip ban: %w", err)
		}
		if b.IP, err = netip.ParseAddr(ipStr); err != nil {
			return nil, fmt.Errorf("%w: stored ban %q: %w", ErrInvalidAddress, ipStr, err)
		}
		if b.BannedAt, err = time.Parse(time.RFC3339, bannedAt); err != nil {
			return nil, fmt.Errorf("parsing ban timestamp %q: %w", bannedAt, err)
		}
		bans = append(bans, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating ip bans: %w", err)
	}
	return bans, nil
}

// SaveBan inserts or replaces the ban for b.IP.
func (s *SQLiteStore) SaveBan(ctx context.Context, b Ban) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO ip_bans (ip_address, banned_at, attempts) VALUES (?, ?, ?)
		 ON CONFLICT(ip_address) DO UPDATE SET banned_at = excluded.banned_at, attempts = excluded.attempts`,
		b.IP.String(), b.BannedAt.UTC().Format(time.RFC3339), b.Attempts,
	)
	if err != nil {
		return fmt.Errorf("saving ip ban: %w", err)
	}
	return nil
}
