package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"vessel-trajectory-service/internal/domain"
	"vessel-trajectory-service/internal/domain/model"
	"vessel-trajectory-service/internal/domain/ports/repository"
)

var _ repository.UserRepository = (*PostgresUserRepo)(nil)

type PostgresUserRepo struct {
	pool *pgxpool.Pool
}

func NewPostgresUserRepo(pool *pgxpool.Pool) *PostgresUserRepo {
	return &PostgresUserRepo{pool: pool}
}

const userColumns = `id, email, username, role, credit_micros, registered_at`

func (r *PostgresUserRepo) Save(ctx context.Context, tx repository.Tx, u *model.User) error {
	const q = `
INSERT INTO users (id, email, username, role, credit_micros, registered_at)
VALUES ($1,$2,$3,$4,$5,$6)
ON CONFLICT (id) DO UPDATE SET
  email=$2, username=$3, role=$4;`

	_, err := execSQL(ctx, r.pool, tx, q, u.ID, u.Email, u.Username, u.Role, u.CreditMicros, u.RegisteredAt)
	return err
}

func (r *PostgresUserRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.User, error) {
	row, err := pickRow(ctx, r.pool, tx, `SELECT `+userColumns+` FROM users WHERE id=$1;`, id)
	if err != nil {
		return nil, err
	}
	return scanUser(row)
}

func (r *PostgresUserRepo) FindByEmail(ctx context.Context, tx repository.Tx, email string) (*model.User, error) {
	row, err := pickRow(ctx, r.pool, tx, `SELECT `+userColumns+` FROM users WHERE email=$1;`, strings.ToLower(email))
	if err != nil {
		return nil, err
	}
	return scanUser(row)
}

// FindByClaims matches on every non-empty claim field. The caller decides
// what to do with zero or multiple matches.
func (r *PostgresUserRepo) FindByClaims(ctx context.Context, tx repository.Tx, claims model.IdentityClaims) ([]*model.User, error) {
	var (
		conds []string
		args  []interface{}
	)
	if claims.Email != "" {
		args = append(args, strings.ToLower(claims.Email))
		conds = append(conds, fmt.Sprintf("email=$%d", len(args)))
	}
	if claims.Username != "" {
		args = append(args, claims.Username)
		conds = append(conds, fmt.Sprintf("username=$%d", len(args)))
	}
	if len(conds) == 0 {
		return nil, nil
	}

	q := `SELECT ` + userColumns + ` FROM users WHERE ` + strings.Join(conds, " AND ") + `;`
	rows, err := pickRows(ctx, r.pool, tx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []*model.User
	for rows.Next() {
		var u model.User
		if err := rows.Scan(&u.ID, &u.Email, &u.Username, &u.Role, &u.CreditMicros, &u.RegisteredAt); err != nil {
			return nil, domain.ErrReadDatabaseRow
		}
		users = append(users, &u)
	}
	return users, rows.Err()
}

// AdjustCredit applies the delta as one atomic increment.
func (r *PostgresUserRepo) AdjustCredit(ctx context.Context, tx repository.Tx, userID string, deltaMicros int64) (int64, error) {
	row, err := pickRow(ctx, r.pool, tx,
		`UPDATE users SET credit_micros = credit_micros + $2 WHERE id=$1 RETURNING credit_micros;`,
		userID, deltaMicros)
	if err != nil {
		return 0, err
	}
	var balance int64
	if err := row.Scan(&balance); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, domain.ErrNotFound
		}
		return 0, err
	}
	return balance, nil
}

// AdjustCreditWithFloor refuses any delta that would leave the balance
// negative. The condition lives in the statement itself, so two concurrent
// debits cannot both pass a stale balance check.
func (r *PostgresUserRepo) AdjustCreditWithFloor(ctx context.Context, tx repository.Tx, userID string, deltaMicros int64) (int64, error) {
	row, err := pickRow(ctx, r.pool, tx,
		`UPDATE users SET credit_micros = credit_micros + $2
		  WHERE id=$1 AND credit_micros + $2 >= 0
		  RETURNING credit_micros;`,
		userID, deltaMicros)
	if err != nil {
		return 0, err
	}
	var balance int64
	if err := row.Scan(&balance); err != nil {
		if !errors.Is(err, pgx.ErrNoRows) {
			return 0, err
		}
		// Either the user does not exist or the floor blocked the delta.
		exists, exErr := r.exists(ctx, tx, userID)
		if exErr != nil {
			return 0, exErr
		}
		if !exists {
			return 0, domain.ErrNotFound
		}
		return 0, domain.ErrInsufficientCredit
	}
	return balance, nil
}

func (r *PostgresUserRepo) Delete(ctx context.Context, tx repository.Tx, id string) error {
	tag, err := execSQL(ctx, r.pool, tx, `DELETE FROM users WHERE id=$1;`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *PostgresUserRepo) exists(ctx context.Context, tx repository.Tx, id string) (bool, error) {
	row, err := pickRow(ctx, r.pool, tx, `SELECT EXISTS(SELECT 1 FROM users WHERE id=$1);`, id)
	if err != nil {
		return false, err
	}
	var ok bool
	if err := row.Scan(&ok); err != nil {
		return false, err
	}
	return ok, nil
}

func scanUser(row pgx.Row) (*model.User, error) {
	var u model.User
	if err := row.Scan(&u.ID, &u.Email, &u.Username, &u.Role, &u.CreditMicros, &u.RegisteredAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return &u, nil
}
