package orders

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

type Repo struct {
	DB  *pgxpool.Pool
	Log *zap.Logger
}

var (
	ErrNotFound           = errors.New("not found")
	ErrEmailTaken         = errors.New("email already registered")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrInvalidTransition  = errors.New("invalid status transition")
)

const userColumns = `id, email, full_name, COALESCE(phone, ''), COALESCE(address, ''), created_at, updated_at`

const orderColumns = `id, user_id, items::text, total_price::text, status, payment_method, sender_account, address, created_at, updated_at`

func scanUser(row pgx.Row) (User, error) {
	var u User
	err := row.Scan(&u.ID, &u.Email, &u.FullName, &u.Phone, &u.Address, &u.CreatedAt, &u.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return User{}, ErrNotFound
	}
	return u, err
}

func (r *Repo) scanOrder(row pgx.Row) (Order, error) {
	var (
		o     Order
		items string
		total string
	)
	err := row.Scan(&o.ID, &o.UserID, &items, &total, &o.Status, &o.PaymentMethod,
		&o.SenderAccount, &o.Address, &o.CreatedAt, &o.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Order{}, ErrNotFound
	}
	if err != nil {
		return Order{}, err
	}
	if o.TotalPrice, err = decimal.NewFromString(total); err != nil {
		return Order{}, fmt.Errorf("total_price for order %s: %w", o.ID, err)
	}
	// snapshot rusak -> list kosong, order tetap tampil
	o.Items, err = DecodeItems([]byte(items))
	if err != nil && r.Log != nil {
		r.Log.Warn("order items unreadable, showing none", zap.String("order_id", o.ID), zap.Error(err))
	}
	return o, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func (r *Repo) CreateUser(ctx context.Context, in NewUser) (User, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return User{}, fmt.Errorf("hash password: %w", err)
	}
	row := r.DB.QueryRow(ctx, `
		INSERT INTO users(id, email, password_hash, full_name, phone, address)
		VALUES ($1, $2, $3, $4, NULLIF($5, ''), NULLIF($6, ''))
		RETURNING `+userColumns,
		uuid.NewString(), strings.ToLower(strings.TrimSpace(in.Email)), string(hash), in.FullName, in.Phone, in.Address)
	u, err := scanUser(row)
	if isUniqueViolation(err) {
		return User{}, ErrEmailTaken
	}
	return u, err
}

// Authenticate membandingkan hash bcrypt, bukan plaintext.
func (r *Repo) Authenticate(ctx context.Context, email, password string) (User, error) {
	var (
		id   string
		hash string
	)
	err := r.DB.QueryRow(ctx, `SELECT id, password_hash FROM users WHERE email=$1`,
		strings.ToLower(strings.TrimSpace(email))).Scan(&id, &hash)
	if errors.Is(err, pgx.ErrNoRows) {
		return User{}, ErrInvalidCredentials
	}
	if err != nil {
		return User{}, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		return User{}, ErrInvalidCredentials
	}
	return r.GetUser(ctx, id)
}

// VerifyPassword checks password against the stored hash of userID.
func (r *Repo) VerifyPassword(ctx context.Context, userID, password string) error {
	var hash string
	err := r.DB.QueryRow(ctx, `SELECT password_hash FROM users WHERE id=$1`, userID).Scan(&hash)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return err
	}
	if bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) != nil {
		return ErrInvalidCredentials
	}
	return nil
}

func (r *Repo) GetUser(ctx context.Context, id string) (User, error) {
	return scanUser(r.DB.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id=$1`, id))
}

func (r *Repo) UpdateUser(ctx context.Context, id string, p ProfileUpdate) (User, error) {
	row := r.DB.QueryRow(ctx, `
		UPDATE users SET full_name=$2, email=$3, phone=NULLIF($4, ''), address=NULLIF($5, ''), updated_at=now()
		WHERE id=$1
		RETURNING `+userColumns,
		id, p.FullName, strings.ToLower(strings.TrimSpace(p.Email)), p.Phone, p.Address)
	u, err := scanUser(row)
	if isUniqueViolation(err) {
		return User{}, ErrEmailTaken
	}
	return u, err
}

func (r *Repo) UpdatePassword(ctx context.Context, id, newPassword string) (User, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		return User{}, fmt.Errorf("hash password: %w", err)
	}
	return scanUser(r.DB.QueryRow(ctx, `
		UPDATE users SET password_hash=$2, updated_at=now() WHERE id=$1
		RETURNING `+userColumns, id, string(hash)))
}

func (r *Repo) CreateOrder(ctx context.Context, in NewOrder) (Order, error) {
	items, err := json.Marshal(in.Items)
	if err != nil {
		return Order{}, fmt.Errorf("encode items: %w", err)
	}
	return r.scanOrder(r.DB.QueryRow(ctx, `
		INSERT INTO orders(id, user_id, items, total_price, status, payment_method, sender_account, address)
		VALUES ($1, $2, $3::jsonb, $4::text::numeric, $5, $6, $7, $8)
		RETURNING `+orderColumns,
		uuid.NewString(), in.UserID, string(items), in.TotalPrice.String(),
		string(in.Status), string(in.PaymentMethod), in.SenderAccount, in.Address))
}

// ListByUser returns the user's orders, newest first.
func (r *Repo) ListByUser(ctx context.Context, userID string) ([]Order, error) {
	rows, err := r.DB.Query(ctx, `SELECT `+orderColumns+` FROM orders
	                               WHERE user_id=$1 ORDER BY created_at DESC, id`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Order{}
	for rows.Next() {
		o, err := r.scanOrder(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

// UpdateStatus: lock baris (FOR UPDATE) -> cek transisi -> update.
func (r *Repo) UpdateStatus(ctx context.Context, orderID string, to Status) (from Status, o Order, err error) {
	tx, err := r.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return "", Order{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var s string
	err = tx.QueryRow(ctx, `SELECT status FROM orders WHERE id=$1 FOR UPDATE`, orderID).Scan(&s)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", Order{}, ErrNotFound
	}
	if err != nil {
		return "", Order{}, err
	}
	from = Status(s)
	if !CanTransition(from, to) {
		return from, Order{}, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
	}
	o, err = r.scanOrder(tx.QueryRow(ctx, `
		UPDATE orders SET status=$2, updated_at=now() WHERE id=$1
		RETURNING `+orderColumns, orderID, string(to)))
	if err != nil {
		return from, Order{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return from, Order{}, err
	}
	return from, o, nil
}
