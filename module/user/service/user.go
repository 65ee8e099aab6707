package service

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pkg/errors"

	usermodel "CardArena/module/user/model"
)

const lookupTimeout = 2 * time.Second

const userCols = `id, user_code, auth_code, username, display_name, is_active`

// Store resolves users from the relational store. All lookups are
// time-bounded so a stalled database cannot wedge the relay's auth path.
type Store struct {
	pool *pgxpool.Pool
}

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

func Dial(ctx context.Context, databaseURL string) (*Store, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, errors.Wrap(err, "connect postgres")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, errors.Wrap(err, "ping postgres")
	}
	return &Store{pool: pool}, nil
}

func (s *Store) Close() {
	s.pool.Close()
}

// ActiveByAuthCode succeeds iff exactly one active user holds the code.
func (s *Store) ActiveByAuthCode(ctx context.Context, code string) (*usermodel.User, error) {
	ctx, cancel := context.WithTimeout(ctx, lookupTimeout)
	defer cancel()

	rows, err := s.pool.Query(ctx,
		`SELECT `+userCols+` FROM users WHERE auth_code = $1 AND is_active = TRUE LIMIT 2`, code)
	if err != nil {
		return nil, errors.Wrap(err, "query by auth code")
	}
	defer rows.Close()

	var matches []*usermodel.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		matches = append(matches, u)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "scan by auth code")
	}
	if len(matches) != 1 {
		return nil, errors.Errorf("auth code matched %d active users", len(matches))
	}
	return matches[0], nil
}

func (s *Store) ActiveByID(ctx context.Context, id int64) (*usermodel.User, error) {
	ctx, cancel := context.WithTimeout(ctx, lookupTimeout)
	defer cancel()

	row := s.pool.QueryRow(ctx,
		`SELECT `+userCols+` FROM users WHERE id = $1 AND is_active = TRUE`, id)
	return scanUser(row)
}

func (s *Store) ActiveByUserCode(ctx context.Context, code string) (*usermodel.User, error) {
	ctx, cancel := context.WithTimeout(ctx, lookupTimeout)
	defer cancel()

	row := s.pool.QueryRow(ctx,
		`SELECT `+userCols+` FROM users WHERE user_code = $1 AND is_active = TRUE`, code)
	return scanUser(row)
}

func scanUser(row pgx.Row) (*usermodel.User, error) {
	var u usermodel.User
	err := row.Scan(&u.ID, &u.UserCode, &u.AuthCode, &u.Username, &u.DisplayName, &u.IsActive)
	if err != nil {
		return nil, errors.Wrap(err, "scan user")
	}
	return &u, nil
}
