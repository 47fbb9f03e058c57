package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/paddlearena/realtime/domain"
)

// SQLite implements Store on a local SQLite database. It doubles as the
// fixture store for tests and single-node deployments; larger setups
// swap in an implementation backed by the main relational store.
type SQLite struct {
	conn *sql.DB
}

func NewSQLite(path string) (*SQLite, error) {
	conn, err := sql.Open("sqlite3", path+"?_foreign_keys=1&_journal_mode=WAL")
	if err != nil {
		return nil, err
	}

	s := &SQLite{conn: conn}
	if err := s.init(); err != nil {
		conn.Close()
		return nil, err
	}

	return s, nil
}

func (s *SQLite) Close() error {
	return s.conn.Close()
}

func (s *SQLite) init() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS users (
			login TEXT PRIMARY KEY,
			rating INTEGER NOT NULL DEFAULT 0
		)`,
		`CREATE TABLE IF NOT EXISTS channels (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			kind TEXT NOT NULL,
			owner TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS channel_members (
			channel_id INTEGER NOT NULL REFERENCES channels(id),
			login TEXT NOT NULL,
			is_admin INTEGER NOT NULL DEFAULT 0,
			UNIQUE(channel_id, login)
		)`,
		`CREATE TABLE IF NOT EXISTS blocks (
			blocker TEXT NOT NULL,
			blocked TEXT NOT NULL,
			UNIQUE(blocker, blocked)
		)`,
		`CREATE TABLE IF NOT EXISTS matches (
			session_id TEXT PRIMARY KEY,
			player1 TEXT NOT NULL,
			player2 TEXT NOT NULL,
			score1 INTEGER NOT NULL,
			score2 INTEGER NOT NULL,
			started_at TIMESTAMP,
			finished_at TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS messages (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			channel_id INTEGER NOT NULL REFERENCES channels(id),
			sender TEXT NOT NULL,
			content TEXT NOT NULL,
			sent_at TIMESTAMP NOT NULL
		)`,
	}

	for _, q := range queries {
		if _, err := s.conn.Exec(q); err != nil {
			return fmt.Errorf("store init: %w", err)
		}
	}
	return nil
}

func (s *SQLite) Channel(ctx context.Context, id int64) (*Channel, error) {
	ch := &Channel{ID: id}
	err := s.conn.QueryRowContext(ctx,
		`SELECT kind, owner FROM channels WHERE id = ?`, id,
	).Scan((*string)(&ch.Kind), &ch.OwnerLogin)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.Errorf(domain.NotFound, "channel %d not found", id)
	}
	if err != nil {
		return nil, err
	}

	rows, err := s.conn.QueryContext(ctx,
		`SELECT login, is_admin FROM channel_members WHERE channel_id = ? ORDER BY login`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var login string
		var isAdmin bool
		if err := rows.Scan(&login, &isAdmin); err != nil {
			return nil, err
		}
		ch.Members = append(ch.Members, login)
		if isAdmin {
			ch.Admins = append(ch.Admins, login)
		}
	}
	return ch, rows.Err()
}

func (s *SQLite) Memberships(ctx context.Context, login string) ([]int64, error) {
	rows, err := s.conn.QueryContext(ctx,
		`SELECT channel_id FROM channel_members WHERE login = ? ORDER BY channel_id`, login)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (s *SQLite) Blocks(ctx context.Context, login string) (blocked, blockedBy []string, err error) {
	rows, err := s.conn.QueryContext(ctx,
		`SELECT blocked FROM blocks WHERE blocker = ?`, login)
	if err != nil {
		return nil, nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var b string
		if err := rows.Scan(&b); err != nil {
			return nil, nil, err
		}
		blocked = append(blocked, b)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, err
	}

	back, err := s.conn.QueryContext(ctx,
		`SELECT blocker FROM blocks WHERE blocked = ?`, login)
	if err != nil {
		return nil, nil, err
	}
	defer back.Close()
	for back.Next() {
		var b string
		if err := back.Scan(&b); err != nil {
			return nil, nil, err
		}
		blockedBy = append(blockedBy, b)
	}
	return blocked, blockedBy, back.Err()
}

// SaveMatch stores the record and applies the rating update in one
// transaction. A session id seen before is a no-op.
func (s *SQLite) SaveMatch(ctx context.Context, rec MatchRecord) error {
	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`INSERT OR IGNORE INTO matches
			(session_id, player1, player2, score1, score2, started_at, finished_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		rec.SessionID, rec.Player1, rec.Player2, rec.Score1, rec.Score2,
		rec.StartedAt, rec.FinishedAt)
	if err != nil {
		return err
	}
	inserted, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if inserted == 0 {
		// Already persisted; ratings were applied with the first insert.
		return nil
	}

	winner, loser := rec.Player1, rec.Player2
	diff := rec.Score1 - rec.Score2
	if diff < 0 {
		winner, loser = loser, winner
		diff = -diff
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE users SET rating = rating + ? WHERE login = ?`, 3*diff, winner); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE users SET rating = MAX(rating - ?, 0) WHERE login = ?`, diff, loser); err != nil {
		return err
	}

	return tx.Commit()
}

func (s *SQLite) Rating(ctx context.Context, login string) (int, error) {
	var rating int
	err := s.conn.QueryRowContext(ctx,
		`SELECT rating FROM users WHERE login = ?`, login).Scan(&rating)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, domain.Errorf(domain.NotFound, "user %s not found", login)
	}
	return rating, err
}

func (s *SQLite) SaveMessage(ctx context.Context, channelID int64, sender, content string) (*Message, error) {
	sentAt := time.Now().UTC()
	res, err := s.conn.ExecContext(ctx,
		`INSERT INTO messages (channel_id, sender, content, sent_at) VALUES (?, ?, ?, ?)`,
		channelID, sender, content, sentAt)
	if err != nil {
		return nil, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}
	return &Message{
		ID:          id,
		ChannelID:   channelID,
		SenderLogin: sender,
		Content:     content,
		SentAt:      sentAt,
	}, nil
}

// Seeding helpers for the management plane and tests.

func (s *SQLite) EnsureUser(ctx context.Context, login string, rating int) error {
	_, err := s.conn.ExecContext(ctx,
		`INSERT INTO users (login, rating) VALUES (?, ?)
		 ON CONFLICT(login) DO UPDATE SET rating = excluded.rating`, login, rating)
	return err
}

func (s *SQLite) CreateChannel(ctx context.Context, kind ChannelKind, owner string, members ...string) (int64, error) {
	res, err := s.conn.ExecContext(ctx,
		`INSERT INTO channels (kind, owner) VALUES (?, ?)`, kind, owner)
	if err != nil {
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	for _, m := range members {
		isAdmin := m == owner
		if _, err := s.conn.ExecContext(ctx,
			`INSERT OR IGNORE INTO channel_members (channel_id, login, is_admin) VALUES (?, ?, ?)`,
			id, m, isAdmin); err != nil {
			return 0, err
		}
	}
	return id, nil
}

func (s *SQLite) SetAdmin(ctx context.Context, channelID int64, login string, isAdmin bool) error {
	_, err := s.conn.ExecContext(ctx,
		`UPDATE channel_members SET is_admin = ? WHERE channel_id = ? AND login = ?`,
		isAdmin, channelID, login)
	return err
}

func (s *SQLite) AddBlock(ctx context.Context, blocker, blocked string) error {
	_, err := s.conn.ExecContext(ctx,
		`INSERT OR IGNORE INTO blocks (blocker, blocked) VALUES (?, ?)`, blocker, blocked)
	return err
}

func (s *SQLite) RemoveBlock(ctx context.Context, blocker, blocked string) error {
	_, err := s.conn.ExecContext(ctx,
		`DELETE FROM blocks WHERE blocker = ? AND blocked = ?`, blocker, blocked)
	return err
}
