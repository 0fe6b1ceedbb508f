/*
Package sqlite provides a SQLite-backed implementation of the storage interfaces.

PURPOSE:
  Implements loan.TxStore and contribution.Store using SQLite. In production
  the same patterns apply to PostgreSQL with minor dialect differences.

INTERFACES IMPLEMENTED:
  loan.Store / loan.TxStore: Loans and their repayments
  contribution.Store:        Members and monthly contributions

APPEND-ONLY ENFORCEMENT:
  - No UPDATE statements on the repayments table
  - No DELETE statements on the repayments table
  - Corrections are new repayments, never edits

KEY TABLES:
  loans:         One row per loan, guarded by a version column
  repayments:    Immutable payment history
  members:       Who owes contributions, and since when
  contributions: One row per (member, month)

INDEXES:
  - idx_repayments_loan_date: Loading a loan's history in order
  - idx_unique_member_month:  Enforces one contribution per member per month
  - idx_contributions_status: Overdue sweep

MONEY:
  Amounts are stored as TEXT decimal strings and parsed back with
  shopspring/decimal, so no value ever passes through float64.

CONCURRENCY:
  Uses sync.RWMutex for thread-safety and optimistic versioning on loans.
  The single-writer-per-loan guarantee comes from generic.Locker above the
  store; the version check catches anything that slips past it.

USAGE:
  store, err := sqlite.New("./data/accrual.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

  loans := loan.NewService(store, nil, cfg, policy)

MIGRATION:
  Schema is auto-migrated on New(). For production, use a proper
  migration tool (golang-migrate, goose) with versioned migrations.

SEE ALSO:
  - loan/store.go, contribution/store.go: Interface definitions
  - store/memory: In-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"
	"github.com/warp/accrual-engine/contribution"
	"github.com/warp/accrual-engine/generic"
	"github.com/warp/accrual-engine/loan"
)

// Store implements all storage interfaces using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// Every connection to ":memory:" is a separate database.
	db.SetMaxOpenConns(1)

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	-- Loans (mutable scalar state, optimistic version)
	CREATE TABLE IF NOT EXISTS loans (
		id TEXT PRIMARY KEY,
		borrower_id TEXT NOT NULL,
		purpose TEXT,
		requested_amount TEXT NOT NULL,
		approved_amount TEXT,
		interest_rate TEXT NOT NULL,
		status TEXT NOT NULL,
		request_date TEXT NOT NULL,
		approval_date TEXT,
		approval_date_corrected INTEGER NOT NULL DEFAULT 0,
		disbursement_date TEXT,
		actual_repayment_date TEXT,
		last_interest_paid_date TEXT,
		total_amount_due TEXT NOT NULL,
		amount_paid TEXT NOT NULL,
		remaining_balance TEXT NOT NULL,
		notes TEXT,
		version INTEGER NOT NULL DEFAULT 0,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_loans_borrower ON loans(borrower_id);
	CREATE INDEX IF NOT EXISTS idx_loans_status ON loans(status);

	-- Repayments (append-only)
	CREATE TABLE IF NOT EXISTS repayments (
		id TEXT PRIMARY KEY,
		loan_id TEXT NOT NULL REFERENCES loans(id),
		amount TEXT NOT NULL,
		payment_date TEXT NOT NULL,
		payment_method TEXT NOT NULL,
		payment_type TEXT NOT NULL,
		principal_component TEXT NOT NULL,
		interest_component TEXT NOT NULL,
		notes TEXT,
		receipt_number TEXT,
		recorded_by TEXT,
		seq INTEGER NOT NULL,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_repayments_loan_date
		ON repayments(loan_id, payment_date, seq);

	-- Members
	CREATE TABLE IF NOT EXISTS members (
		id TEXT PRIMARY KEY,
		name TEXT,
		join_date TEXT,
		created_at TEXT NOT NULL
	);

	-- Contributions
	CREATE TABLE IF NOT EXISTS contributions (
		id TEXT PRIMARY KEY,
		member_id TEXT NOT NULL,
		month TEXT NOT NULL,
		amount TEXT NOT NULL,
		status TEXT NOT NULL,
		paid_date TEXT,
		payment_method TEXT,
		recorded_by TEXT,
		notes TEXT,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	-- CRITICAL: at most one contribution per member per month
	CREATE UNIQUE INDEX IF NOT EXISTS idx_unique_member_month
		ON contributions(member_id, month);

	CREATE INDEX IF NOT EXISTS idx_contributions_status
		ON contributions(status, month);
	`

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// LOAN STORE (loan.Store interface)
// =============================================================================

func (s *Store) CreateLoan(ctx context.Context, l loan.Loan) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return createLoan(ctx, s.db, l)
}

func (s *Store) GetLoan(ctx context.Context, id generic.LoanID) (*loan.Loan, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return getLoan(ctx, s.db, id)
}

func (s *Store) ListLoans(ctx context.Context, f loan.Filter) ([]loan.Loan, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return listLoans(ctx, s.db, f)
}

func (s *Store) UpdateLoan(ctx context.Context, l loan.Loan) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return updateLoan(ctx, s.db, l)
}

func (s *Store) AppendRepayment(ctx context.Context, r loan.Repayment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return appendRepayment(ctx, s.db, r)
}

const loanColumns = `id, borrower_id, purpose, requested_amount, approved_amount, interest_rate,
	status, request_date, approval_date, approval_date_corrected, disbursement_date,
	actual_repayment_date, last_interest_paid_date, total_amount_due, amount_paid,
	remaining_balance, notes, version, created_at, updated_at`

func createLoan(ctx context.Context, q querier, l loan.Loan) error {
	query := `INSERT INTO loans (` + loanColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 0, ?, ?)`

	_, err := q.ExecContext(ctx, query,
		l.ID,
		l.BorrowerID,
		nullString(l.Purpose),
		l.RequestedAmount.String(),
		nullDecimal(l.ApprovedAmount),
		l.InterestRate.Percent.String(),
		l.Status,
		formatTime(l.RequestDate),
		nullTime(l.ApprovalDate),
		l.ApprovalDateCorrected,
		nullTime(l.DisbursementDate),
		nullTime(l.ActualRepaymentDate),
		nullTime(l.LastInterestPaidDate),
		l.TotalAmountDue.String(),
		l.AmountPaid.String(),
		l.RemainingBalance.String(),
		nullString(l.Notes),
		formatTime(l.CreatedAt),
		formatTime(l.UpdatedAt),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return &generic.InputError{Field: "loan_id", Reason: "already exists: " + string(l.ID)}
		}
		return fmt.Errorf("failed to create loan: %w", err)
	}
	return nil
}

func getLoan(ctx context.Context, q querier, id generic.LoanID) (*loan.Loan, error) {
	row := q.QueryRowContext(ctx, `SELECT `+loanColumns+` FROM loans WHERE id = ?`, id)
	l, err := scanLoan(row)
	if err == sql.ErrNoRows {
		return nil, &generic.NotFoundError{Kind: "loan", ID: string(id)}
	}
	if err != nil {
		return nil, err
	}

	l.Repayments, err = loadRepayments(ctx, q, id)
	if err != nil {
		return nil, err
	}
	return l, nil
}

func listLoans(ctx context.Context, q querier, f loan.Filter) ([]loan.Loan, error) {
	query := `SELECT ` + loanColumns + ` FROM loans WHERE 1=1`
	var args []any
	if f.BorrowerID != "" {
		query += ` AND borrower_id = ?`
		args = append(args, f.BorrowerID)
	}
	if f.Status != "" {
		query += ` AND status = ?`
		args = append(args, f.Status)
	}
	query += ` ORDER BY request_date DESC, id ASC`

	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query loans: %w", err)
	}
	var loans []loan.Loan
	for rows.Next() {
		l, err := scanLoan(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		loans = append(loans, *l)
	}
	err = rows.Err()
	rows.Close()
	if err != nil {
		return nil, err
	}

	// Repayments are loaded after the loan cursor is closed; the pool holds
	// a single connection.
	for i := range loans {
		loans[i].Repayments, err = loadRepayments(ctx, q, loans[i].ID)
		if err != nil {
			return nil, err
		}
	}
	return loans, nil
}

func updateLoan(ctx context.Context, q querier, l loan.Loan) error {
	query := `
		UPDATE loans SET
			purpose = ?, approved_amount = ?, interest_rate = ?, status = ?,
			approval_date = ?, approval_date_corrected = ?, disbursement_date = ?,
			actual_repayment_date = ?, last_interest_paid_date = ?,
			total_amount_due = ?, amount_paid = ?, remaining_balance = ?,
			notes = ?, updated_at = ?, version = version + 1
		WHERE id = ? AND version = ?
	`
	res, err := q.ExecContext(ctx, query,
		nullString(l.Purpose),
		nullDecimal(l.ApprovedAmount),
		l.InterestRate.Percent.String(),
		l.Status,
		nullTime(l.ApprovalDate),
		l.ApprovalDateCorrected,
		nullTime(l.DisbursementDate),
		nullTime(l.ActualRepaymentDate),
		nullTime(l.LastInterestPaidDate),
		l.TotalAmountDue.String(),
		l.AmountPaid.String(),
		l.RemainingBalance.String(),
		nullString(l.Notes),
		formatTime(l.UpdatedAt),
		l.ID,
		l.Version,
	)
	if err != nil {
		return fmt.Errorf("failed to update loan: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 1 {
		return nil
	}

	var exists int
	if err := q.QueryRowContext(ctx, `SELECT COUNT(*) FROM loans WHERE id = ?`, l.ID).Scan(&exists); err != nil {
		return err
	}
	if exists == 0 {
		return &generic.NotFoundError{Kind: "loan", ID: string(l.ID)}
	}
	return generic.ErrConcurrentModification
}

func scanLoan(sc interface{ Scan(...any) error }) (*loan.Loan, error) {
	var (
		l                                                        loan.Loan
		purpose, approvedAmount, notes                           sql.NullString
		requested, rate, due, paid, remaining                    string
		requestDate, createdAt, updatedAt                        string
		approvalDate, disbursementDate, repaidDate, interestDate sql.NullString
	)

	err := sc.Scan(
		&l.ID, &l.BorrowerID, &purpose, &requested, &approvedAmount, &rate,
		&l.Status, &requestDate, &approvalDate, &l.ApprovalDateCorrected, &disbursementDate,
		&repaidDate, &interestDate, &due, &paid,
		&remaining, &notes, &l.Version, &createdAt, &updatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan loan: %w", err)
	}

	l.Purpose = purpose.String
	l.Notes = notes.String
	l.RequestedAmount = parseDecimal(requested)
	if approvedAmount.Valid {
		l.ApprovedAmount = decimal.NewNullDecimal(parseDecimal(approvedAmount.String))
	}
	l.InterestRate = generic.NewRateFromDecimal(parseDecimal(rate))
	l.TotalAmountDue = parseDecimal(due)
	l.AmountPaid = parseDecimal(paid)
	l.RemainingBalance = parseDecimal(remaining)
	l.RequestDate = parseTime(requestDate)
	l.ApprovalDate = parseNullTime(approvalDate)
	l.DisbursementDate = parseNullTime(disbursementDate)
	l.ActualRepaymentDate = parseNullTime(repaidDate)
	l.LastInterestPaidDate = parseNullTime(interestDate)
	l.CreatedAt = parseTime(createdAt)
	l.UpdatedAt = parseTime(updatedAt)
	return &l, nil
}

// =============================================================================
// REPAYMENTS (append-only)
// =============================================================================

func appendRepayment(ctx context.Context, q querier, r loan.Repayment) error {
	var seq int
	if err := q.QueryRowContext(ctx, `SELECT COUNT(*) FROM repayments WHERE loan_id = ?`, r.LoanID).Scan(&seq); err != nil {
		return fmt.Errorf("failed to sequence repayment: %w", err)
	}

	query := `
		INSERT INTO repayments
		(id, loan_id, amount, payment_date, payment_method, payment_type,
		 principal_component, interest_component, notes, receipt_number, recorded_by, seq, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := q.ExecContext(ctx, query,
		r.ID,
		r.LoanID,
		r.Amount.String(),
		formatTime(r.PaymentDate),
		r.Method,
		r.Type,
		r.PrincipalComponent.String(),
		r.InterestComponent.String(),
		nullString(r.Notes),
		nullString(r.ReceiptNumber),
		nullString(r.RecordedBy),
		seq,
		formatTime(r.CreatedAt),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return &generic.InputError{Field: "repayment_id", Reason: "already exists: " + string(r.ID)}
		}
		if isForeignKeyError(err) {
			return &generic.NotFoundError{Kind: "loan", ID: string(r.LoanID)}
		}
		return fmt.Errorf("failed to append repayment: %w", err)
	}
	return nil
}

func loadRepayments(ctx context.Context, q querier, id generic.LoanID) ([]loan.Repayment, error) {
	query := `
		SELECT id, loan_id, amount, payment_date, payment_method, payment_type,
		       principal_component, interest_component, notes, receipt_number, recorded_by, created_at
		FROM repayments
		WHERE loan_id = ?
		ORDER BY payment_date ASC, seq ASC
	`
	rows, err := q.QueryContext(ctx, query, id)
	if err != nil {
		return nil, fmt.Errorf("failed to query repayments: %w", err)
	}
	defer rows.Close()

	var reps []loan.Repayment
	for rows.Next() {
		var (
			r                                loan.Repayment
			amount, principal, interest      string
			paymentDate, createdAt           string
			notes, receiptNumber, recordedBy sql.NullString
		)
		if err := rows.Scan(&r.ID, &r.LoanID, &amount, &paymentDate, &r.Method, &r.Type,
			&principal, &interest, &notes, &receiptNumber, &recordedBy, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan repayment: %w", err)
		}
		r.Amount = parseDecimal(amount)
		r.PrincipalComponent = parseDecimal(principal)
		r.InterestComponent = parseDecimal(interest)
		r.PaymentDate = parseTime(paymentDate)
		r.CreatedAt = parseTime(createdAt)
		r.Notes = notes.String
		r.ReceiptNumber = receiptNumber.String
		r.RecordedBy = recordedBy.String
		reps = append(reps, r)
	}
	return reps, rows.Err()
}

// =============================================================================
// TRANSACTIONAL STORE (loan.TxStore interface)
// =============================================================================

// WithTx executes a function within a database transaction.
func (s *Store) WithTx(ctx context.Context, fn func(store loan.Store) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	if err := fn(&txStore{tx: sqlTx}); err != nil {
		return err
	}

	return sqlTx.Commit()
}

type txStore struct {
	tx *sql.Tx
}

func (ts *txStore) CreateLoan(ctx context.Context, l loan.Loan) error {
	return createLoan(ctx, ts.tx, l)
}

func (ts *txStore) GetLoan(ctx context.Context, id generic.LoanID) (*loan.Loan, error) {
	return getLoan(ctx, ts.tx, id)
}

func (ts *txStore) ListLoans(ctx context.Context, f loan.Filter) ([]loan.Loan, error) {
	return listLoans(ctx, ts.tx, f)
}

func (ts *txStore) UpdateLoan(ctx context.Context, l loan.Loan) error {
	return updateLoan(ctx, ts.tx, l)
}

func (ts *txStore) AppendRepayment(ctx context.Context, r loan.Repayment) error {
	return appendRepayment(ctx, ts.tx, r)
}

// =============================================================================
// MEMBER STORE
// =============================================================================

func (s *Store) SaveMember(ctx context.Context, m contribution.Member) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO members (id, name, join_date, created_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			join_date = excluded.join_date
	`
	created := m.CreatedAt
	if created.IsZero() {
		created = time.Now().UTC()
	}
	var join sql.NullString
	if !m.JoinDate.IsZero() {
		join = sql.NullString{String: formatTime(m.JoinDate), Valid: true}
	}

	_, err := s.db.ExecContext(ctx, query, m.ID, nullString(m.Name), join, formatTime(created))
	if err != nil {
		return fmt.Errorf("failed to save member: %w", err)
	}
	return nil
}

func (s *Store) GetMember(ctx context.Context, id generic.MemberID) (*contribution.Member, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx, `SELECT id, name, join_date, created_at FROM members WHERE id = ?`, id)
	m, err := scanMember(row)
	if err == sql.ErrNoRows {
		return nil, &generic.NotFoundError{Kind: "member", ID: string(id)}
	}
	return m, err
}

func (s *Store) ListMembers(ctx context.Context) ([]contribution.Member, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `SELECT id, name, join_date, created_at FROM members ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query members: %w", err)
	}
	defer rows.Close()

	var members []contribution.Member
	for rows.Next() {
		m, err := scanMember(rows)
		if err != nil {
			return nil, err
		}
		members = append(members, *m)
	}
	return members, rows.Err()
}

func scanMember(sc interface{ Scan(...any) error }) (*contribution.Member, error) {
	var (
		m         contribution.Member
		name      sql.NullString
		joinDate  sql.NullString
		createdAt string
	)
	if err := sc.Scan(&m.ID, &name, &joinDate, &createdAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan member: %w", err)
	}
	m.Name = name.String
	if joinDate.Valid {
		m.JoinDate = parseTime(joinDate.String)
	}
	m.CreatedAt = parseTime(createdAt)
	return &m, nil
}

// =============================================================================
// CONTRIBUTION STORE (contribution.Store interface)
// =============================================================================

const contributionColumns = `id, member_id, month, amount, status, paid_date,
	payment_method, recorded_by, notes, created_at, updated_at`

func (s *Store) CreateContribution(ctx context.Context, c contribution.Contribution) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `INSERT INTO contributions (` + contributionColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := s.db.ExecContext(ctx, query,
		c.ID,
		c.MemberID,
		c.Month.String(),
		c.Amount.String(),
		c.Status,
		nullTime(c.PaidDate),
		nullString(string(c.PaymentMethod)),
		nullString(c.RecordedBy),
		nullString(c.Notes),
		formatTime(c.CreatedAt),
		formatTime(c.UpdatedAt),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			if strings.Contains(err.Error(), "contributions.member_id") || strings.Contains(err.Error(), "idx_unique_member_month") {
				return generic.ErrDuplicateContribution
			}
			return &generic.InputError{Field: "contribution_id", Reason: "already exists: " + string(c.ID)}
		}
		return fmt.Errorf("failed to create contribution: %w", err)
	}
	return nil
}

func (s *Store) GetContribution(ctx context.Context, id generic.ContributionID) (*contribution.Contribution, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx, `SELECT `+contributionColumns+` FROM contributions WHERE id = ?`, id)
	c, err := scanContribution(row)
	if err == sql.ErrNoRows {
		return nil, &generic.NotFoundError{Kind: "contribution", ID: string(id)}
	}
	return c, err
}

func (s *Store) UpdateContribution(ctx context.Context, c contribution.Contribution) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		UPDATE contributions SET
			amount = ?, status = ?, paid_date = ?, payment_method = ?,
			recorded_by = ?, notes = ?, updated_at = ?
		WHERE id = ?
	`
	res, err := s.db.ExecContext(ctx, query,
		c.Amount.String(),
		c.Status,
		nullTime(c.PaidDate),
		nullString(string(c.PaymentMethod)),
		nullString(c.RecordedBy),
		nullString(c.Notes),
		formatTime(c.UpdatedAt),
		c.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update contribution: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return &generic.NotFoundError{Kind: "contribution", ID: string(c.ID)}
	}
	return nil
}

func (s *Store) ListContributions(ctx context.Context, f contribution.Filter) ([]contribution.Contribution, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `SELECT ` + contributionColumns + ` FROM contributions WHERE 1=1`
	var args []any
	if f.MemberID != "" {
		query += ` AND member_id = ?`
		args = append(args, f.MemberID)
	}
	if f.Status != "" {
		query += ` AND status = ?`
		args = append(args, f.Status)
	}
	// "YYYY-MM" keys sort lexically in calendar order.
	if !f.Month.IsZero() {
		query += ` AND month = ?`
		args = append(args, f.Month.String())
	}
	if !f.Before.IsZero() {
		query += ` AND month < ?`
		args = append(args, f.Before.String())
	}
	query += ` ORDER BY month ASC, member_id ASC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query contributions: %w", err)
	}
	defer rows.Close()

	var out []contribution.Contribution
	for rows.Next() {
		c, err := scanContribution(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *c)
	}
	return out, rows.Err()
}

func scanContribution(sc interface{ Scan(...any) error }) (*contribution.Contribution, error) {
	var (
		c                           contribution.Contribution
		month, amount               string
		paidDate, method, by, notes sql.NullString
		createdAt, updatedAt        string
	)
	err := sc.Scan(&c.ID, &c.MemberID, &month, &amount, &c.Status, &paidDate,
		&method, &by, &notes, &createdAt, &updatedAt)
	if err == sql.ErrNoRows {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan contribution: %w", err)
	}

	m, err := generic.ParseMonth(month)
	if err != nil {
		return nil, fmt.Errorf("contribution %s: %w", c.ID, err)
	}
	c.Month = m
	c.Amount = parseDecimal(amount)
	c.PaidDate = parseNullTime(paidDate)
	c.PaymentMethod = generic.PaymentMethod(method.String)
	c.RecordedBy = by.String
	c.Notes = notes.String
	c.CreatedAt = parseTime(createdAt)
	c.UpdatedAt = parseTime(updatedAt)
	return &c, nil
}

// =============================================================================
// ADMIN
// =============================================================================

// Reset deletes all data. Used by tests and demo setups.
func (s *Store) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, table := range []string{"repayments", "loans", "contributions", "members"} {
		if _, err := s.db.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("failed to reset %s: %w", table, err)
		}
	}
	return nil
}

// Helper functions

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func nullDecimal(d decimal.NullDecimal) sql.NullString {
	if !d.Valid {
		return sql.NullString{}
	}
	return sql.NullString{String: d.Decimal.String(), Valid: true}
}

func nullTime(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: formatTime(*t), Valid: true}
}

// timeLayout is fixed width so stored times sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string { return t.UTC().Format(timeLayout) }

func parseTime(s string) time.Time {
	t, _ := time.Parse(time.RFC3339Nano, s)
	return t.UTC()
}

func parseNullTime(s sql.NullString) *time.Time {
	if !s.Valid {
		return nil
	}
	t := parseTime(s.String)
	return &t
}

// parseDecimal reads a value this store wrote. A malformed value reads as
// zero.
func parseDecimal(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

func isUniqueConstraintError(err error) bool {
	var se sqlite3.Error
	if errors.As(err, &se) {
		return se.ExtendedCode == sqlite3.ErrConstraintUnique || se.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	return err != nil && (strings.Contains(err.Error(), "UNIQUE constraint failed") ||
		strings.Contains(err.Error(), "duplicate key"))
}

func isForeignKeyError(err error) bool {
	var se sqlite3.Error
	if errors.As(err, &se) {
		return se.ExtendedCode == sqlite3.ErrConstraintForeignKey
	}
	return err != nil && strings.Contains(err.Error(), "FOREIGN KEY constraint failed")
}

var (
	_ loan.TxStore       = (*Store)(nil)
	_ contribution.Store = (*Store)(nil)
)
