package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"cashbot/internal/core"

	_ "modernc.org/sqlite"
)

// ErrNotFound is returned when a lookup matches no row for the owner.
var ErrNotFound = errors.New("record not found")

// Timestamps are stored as fixed-width RFC3339 UTC strings so that range
// predicates in SQL compare correctly as text.
const timeLayout = time.RFC3339

const dateLayout = "2006-01-02"

type SQLiteRepository struct {
	db *sql.DB
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

func encodeTime(t time.Time) string { return t.UTC().Format(timeLayout) }

func decodeTime(s string) (time.Time, error) {
	return time.Parse(timeLayout, s)
}

// --- transactions ---

// CreateTransaction persists a validated transaction. A missing ID or
// CreatedAt is filled in here; new rows start in sync_status 'pending' so the
// export worker picks them up.
func (r *SQLiteRepository) CreateTransaction(ctx context.Context, t *core.Transaction) error {
	if err := t.Validate(); err != nil {
		return err
	}
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now()
	}

	tags, err := json.Marshal(t.Tags)
	if err != nil {
		return fmt.Errorf("encode tags: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO transactions (id, user_id, amount, description, category, type, notes, tags, receipt_path, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.UserID, t.Amount.String(), t.Description, string(t.Category),
		string(t.Type), t.Notes, string(tags), t.ReceiptPath, encodeTime(t.CreatedAt))
	if err != nil {
		return fmt.Errorf("insert transaction: %w", err)
	}

	slog.InfoContext(ctx, "Transaction saved",
		"id", t.ID,
		"type", t.Type,
		"category", t.Category,
		"amount", t.Amount.String())
	return nil
}

const transactionColumns = `id, user_id, amount, description, category, type, notes, tags, receipt_path, created_at`

func scanTransaction(row interface{ Scan(...any) error }) (core.Transaction, error) {
	var (
		t         core.Transaction
		amount    string
		tags      string
		createdAt string
	)
	err := row.Scan(&t.ID, &t.UserID, &amount, &t.Description, &t.Category,
		&t.Type, &t.Notes, &tags, &t.ReceiptPath, &createdAt)
	if err != nil {
		return core.Transaction{}, err
	}

	if t.Amount, err = decimal.NewFromString(amount); err != nil {
		return core.Transaction{}, fmt.Errorf("decode amount %q: %w", amount, err)
	}
	if err := json.Unmarshal([]byte(tags), &t.Tags); err != nil {
		return core.Transaction{}, fmt.Errorf("decode tags: %w", err)
	}
	if t.CreatedAt, err = decodeTime(createdAt); err != nil {
		return core.Transaction{}, fmt.Errorf("decode created_at: %w", err)
	}
	return t, nil
}

func (r *SQLiteRepository) GetTransaction(ctx context.Context, userID, id string) (core.Transaction, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+transactionColumns+` FROM transactions
		WHERE id = ? AND user_id = ?`, id, userID)

	t, err := scanTransaction(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Transaction{}, ErrNotFound
	}
	if err != nil {
		return core.Transaction{}, fmt.Errorf("get transaction: %w", err)
	}
	return t, nil
}

// ListTransactions returns the owner's transactions with CreatedAt in
// [from, to), newest first.
func (r *SQLiteRepository) ListTransactions(ctx context.Context, userID string, from, to time.Time) ([]core.Transaction, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+transactionColumns+` FROM transactions
		WHERE user_id = ? AND created_at >= ? AND created_at < ?
		ORDER BY created_at DESC`,
		userID, encodeTime(from), encodeTime(to))
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	defer rows.Close()

	var out []core.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate transactions: %w", err)
	}
	return out, nil
}

// UpdateTransaction replaces the mutable fields of an owned transaction and
// re-queues it for export.
func (r *SQLiteRepository) UpdateTransaction(ctx context.Context, t core.Transaction) error {
	if err := t.Validate(); err != nil {
		return err
	}
	tags, err := json.Marshal(t.Tags)
	if err != nil {
		return fmt.Errorf("encode tags: %w", err)
	}

	res, err := r.db.ExecContext(ctx, `
		UPDATE transactions
		SET amount = ?, description = ?, category = ?, type = ?, notes = ?, tags = ?, receipt_path = ?, sync_status = 'pending'
		WHERE id = ? AND user_id = ?`,
		t.Amount.String(), t.Description, string(t.Category), string(t.Type),
		t.Notes, string(tags), t.ReceiptPath, t.ID, t.UserID)
	if err != nil {
		return fmt.Errorf("update transaction: %w", err)
	}
	return affectedOrNotFound(res)
}

func (r *SQLiteRepository) DeleteTransaction(ctx context.Context, userID, id string) error {
	res, err := r.db.ExecContext(ctx, `
		DELETE FROM transactions WHERE id = ? AND user_id = ?`, id, userID)
	if err != nil {
		return fmt.Errorf("delete transaction: %w", err)
	}
	return affectedOrNotFound(res)
}

func affectedOrNotFound(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// --- recurring rules ---

func (r *SQLiteRepository) CreateRecurringRule(ctx context.Context, rule *core.RecurringRule) error {
	if err := rule.Validate(); err != nil {
		return err
	}
	if rule.ID == "" {
		rule.ID = uuid.NewString()
	}
	if rule.CreatedAt.IsZero() {
		rule.CreatedAt = time.Now()
	}

	var startDate string
	if !rule.StartDate.IsZero() {
		startDate = rule.StartDate.Format(dateLayout)
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO recurring_rules (id, user_id, amount, description, category, type, frequency, day_of_month, day_of_week, active, start_date, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rule.ID, rule.UserID, rule.Amount.String(), rule.Description,
		string(rule.Category), string(rule.Type), string(rule.Frequency),
		rule.DayOfMonth, rule.DayOfWeek, rule.Active, startDate, encodeTime(rule.CreatedAt))
	if err != nil {
		return fmt.Errorf("insert recurring rule: %w", err)
	}

	slog.InfoContext(ctx, "Recurring rule saved",
		"id", rule.ID,
		"frequency", rule.Frequency,
		"amount", rule.Amount.String())
	return nil
}

// ListRecurringRules returns all of the owner's rules, active or not.
func (r *SQLiteRepository) ListRecurringRules(ctx context.Context, userID string) ([]core.RecurringRule, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, user_id, amount, description, category, type, frequency, day_of_month, day_of_week, active, start_date, created_at
		FROM recurring_rules
		WHERE user_id = ?
		ORDER BY created_at`, userID)
	if err != nil {
		return nil, fmt.Errorf("list recurring rules: %w", err)
	}
	defer rows.Close()

	var out []core.RecurringRule
	for rows.Next() {
		var (
			rule      core.RecurringRule
			amount    string
			startDate string
			createdAt string
		)
		err := rows.Scan(&rule.ID, &rule.UserID, &amount, &rule.Description,
			&rule.Category, &rule.Type, &rule.Frequency,
			&rule.DayOfMonth, &rule.DayOfWeek, &rule.Active, &startDate, &createdAt)
		if err != nil {
			return nil, fmt.Errorf("scan recurring rule: %w", err)
		}
		if rule.Amount, err = decimal.NewFromString(amount); err != nil {
			return nil, fmt.Errorf("decode amount %q: %w", amount, err)
		}
		if startDate != "" {
			if rule.StartDate, err = time.Parse(dateLayout, startDate); err != nil {
				return nil, fmt.Errorf("decode start_date: %w", err)
			}
		}
		if rule.CreatedAt, err = decodeTime(createdAt); err != nil {
			return nil, fmt.Errorf("decode created_at: %w", err)
		}
		out = append(out, rule)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate recurring rules: %w", err)
	}
	return out, nil
}

func (r *SQLiteRepository) UpdateRecurringRule(ctx context.Context, rule core.RecurringRule) error {
	if err := rule.Validate(); err != nil {
		return err
	}
	var startDate string
	if !rule.StartDate.IsZero() {
		startDate = rule.StartDate.Format(dateLayout)
	}

	res, err := r.db.ExecContext(ctx, `
		UPDATE recurring_rules
		SET amount = ?, description = ?, category = ?, type = ?, frequency = ?, day_of_month = ?, day_of_week = ?, active = ?, start_date = ?
		WHERE id = ? AND user_id = ?`,
		rule.Amount.String(), rule.Description, string(rule.Category),
		string(rule.Type), string(rule.Frequency), rule.DayOfMonth,
		rule.DayOfWeek, rule.Active, startDate, rule.ID, rule.UserID)
	if err != nil {
		return fmt.Errorf("update recurring rule: %w", err)
	}
	return affectedOrNotFound(res)
}

// SetRecurringRuleActive flips a rule on or off without touching anything
// else.
func (r *SQLiteRepository) SetRecurringRuleActive(ctx context.Context, userID, id string, active bool) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE recurring_rules SET active = ? WHERE id = ? AND user_id = ?`,
		active, id, userID)
	if err != nil {
		return fmt.Errorf("toggle recurring rule: %w", err)
	}
	return affectedOrNotFound(res)
}

func (r *SQLiteRepository) DeleteRecurringRule(ctx context.Context, userID, id string) error {
	res, err := r.db.ExecContext(ctx, `
		DELETE FROM recurring_rules WHERE id = ? AND user_id = ?`, id, userID)
	if err != nil {
		return fmt.Errorf("delete recurring rule: %w", err)
	}
	return affectedOrNotFound(res)
}

// --- profiles ---

// GetProfile returns the owner's profile; a user without one yet gets zero
// settings, not an error.
func (r *SQLiteRepository) GetProfile(ctx context.Context, userID string) (core.Profile, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT user_id, monthly_salary, telegram_chat_id FROM profiles WHERE user_id = ?`, userID)

	p, err := scanProfile(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Profile{UserID: userID, MonthlySalary: decimal.Zero}, nil
	}
	if err != nil {
		return core.Profile{}, fmt.Errorf("get profile: %w", err)
	}
	return p, nil
}

// GetProfileByChatID resolves a linked chat back to its owner.
func (r *SQLiteRepository) GetProfileByChatID(ctx context.Context, chatID int64) (core.Profile, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT user_id, monthly_salary, telegram_chat_id FROM profiles WHERE telegram_chat_id = ?`, chatID)

	p, err := scanProfile(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Profile{}, ErrNotFound
	}
	if err != nil {
		return core.Profile{}, fmt.Errorf("get profile by chat: %w", err)
	}
	return p, nil
}

func scanProfile(row interface{ Scan(...any) error }) (core.Profile, error) {
	var (
		p      core.Profile
		salary string
	)
	if err := row.Scan(&p.UserID, &salary, &p.TelegramChatID); err != nil {
		return core.Profile{}, err
	}
	var err error
	if p.MonthlySalary, err = decimal.NewFromString(salary); err != nil {
		return core.Profile{}, fmt.Errorf("decode monthly_salary %q: %w", salary, err)
	}
	return p, nil
}

func (r *SQLiteRepository) SetMonthlySalary(ctx context.Context, userID string, salary decimal.Decimal) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO profiles (user_id, monthly_salary) VALUES (?, ?)
		ON CONFLICT (user_id) DO UPDATE SET monthly_salary = excluded.monthly_salary`,
		userID, salary.String())
	if err != nil {
		return fmt.Errorf("set monthly salary: %w", err)
	}
	return nil
}

// --- chat link codes ---

// CreateLinkCode stores a short-lived code the owner can send to the bot to
// tie a chat to their account.
func (r *SQLiteRepository) CreateLinkCode(ctx context.Context, userID, code string, expiresAt time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO link_codes (code, user_id, expires_at) VALUES (?, ?, ?)`,
		code, userID, encodeTime(expiresAt))
	if err != nil {
		return fmt.Errorf("insert link code: %w", err)
	}
	return nil
}

// ClaimLinkCode atomically consumes a valid code and points the owner's
// profile at the claiming chat. Expired or unknown codes yield ErrNotFound.
func (r *SQLiteRepository) ClaimLinkCode(ctx context.Context, code string, chatID int64, now time.Time) (string, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("begin claim: %w", err)
	}
	defer tx.Rollback()

	var userID string
	err = tx.QueryRowContext(ctx, `
		SELECT user_id FROM link_codes WHERE code = ? AND expires_at > ?`,
		code, encodeTime(now)).Scan(&userID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("look up link code: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM link_codes WHERE code = ?`, code); err != nil {
		return "", fmt.Errorf("consume link code: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO profiles (user_id, telegram_chat_id) VALUES (?, ?)
		ON CONFLICT (user_id) DO UPDATE SET telegram_chat_id = excluded.telegram_chat_id`,
		userID, chatID)
	if err != nil {
		return "", fmt.Errorf("link chat to profile: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("commit claim: %w", err)
	}

	slog.InfoContext(ctx, "Chat linked to account", "user_id", userID, "chat_id", chatID)
	return userID, nil
}

// --- export sync queue ---

// ListPendingSync returns up to limit transactions awaiting export, oldest
// first so the sheet stays chronological.
func (r *SQLiteRepository) ListPendingSync(ctx context.Context, limit int) ([]core.Transaction, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+transactionColumns+` FROM transactions
		WHERE sync_status = 'pending'
		ORDER BY created_at
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list pending sync: %w", err)
	}
	defer rows.Close()

	var out []core.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("scan pending transaction: %w", err)
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate pending sync: %w", err)
	}
	return out, nil
}

func (r *SQLiteRepository) MarkTransactionSynced(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE transactions SET sync_status = 'synced' WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("mark synced: %w", err)
	}
	return affectedOrNotFound(res)
}

func (r *SQLiteRepository) MarkTransactionSyncError(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `
		UPDATE transactions SET sync_status = 'error' WHERE id = ?`, id); err != nil {
		return fmt.Errorf("mark sync error: %w", err)
	}

	slog.WarnContext(ctx, "Transaction marked with sync error", "id", id)
	return nil
}
