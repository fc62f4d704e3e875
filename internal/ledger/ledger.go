// Package ledger maintains per-user point balances. Every balance change
// appends a points_history row in the same transaction that mutates the
// denormalized users.points column; the stored balance is canonical and
// the history is the audit trail.
package ledger

import (
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/choretab/choretab/internal/clock"
	"github.com/choretab/choretab/internal/model"
	"github.com/choretab/choretab/internal/store"
)

// Refs links a ledger entry back to whatever caused it.
type Refs struct {
	InstanceID    *int64
	ClaimID       *int64
	RewardClaimID *int64
}

type Ledger struct {
	db     *sql.DB
	clock  clock.Clock
	logger *slog.Logger
}

func New(db *sql.DB, clk clock.Clock, logger *slog.Logger) *Ledger {
	return &Ledger{db: db, clock: clk, logger: logger}
}

// Adjust applies delta to the user's balance and appends the matching
// history row in one transaction. Balances may go negative. Returns the
// new balance.
func (l *Ledger) Adjust(userID int64, delta int, reason string, createdBy *int64, refs Refs) (int, error) {
	var balance int
	err := store.Transact(l.db, func(tx *sql.Tx) error {
		return l.adjustTx(tx, userID, delta, reason, createdBy, refs, l.clock.Now().UTC(), &balance)
	})
	if err != nil {
		return 0, err
	}
	return balance, nil
}

// AdjustTx is Adjust running inside a caller-owned transaction, so state
// transitions and their ledger postings commit or roll back together.
func (l *Ledger) AdjustTx(tx *sql.Tx, userID int64, delta int, reason string, createdBy *int64, refs Refs, at time.Time) (int, error) {
	var balance int
	if err := l.adjustTx(tx, userID, delta, reason, createdBy, refs, at, &balance); err != nil {
		return 0, err
	}
	return balance, nil
}

func (l *Ledger) adjustTx(tx *sql.Tx, userID int64, delta int, reason string, createdBy *int64, refs Refs, at time.Time, balance *int) error {
	users := store.NewUserStore(tx)
	points := store.NewPointsStore(tx)

	b, err := users.AdjustPoints(userID, delta)
	if err != nil {
		if err == sql.ErrNoRows {
			return fmt.Errorf("adjust points: user %d: %w", userID, sql.ErrNoRows)
		}
		return err
	}

	if _, err := points.Append(model.PointsEntry{
		UserID:        userID,
		Delta:         delta,
		Reason:        reason,
		InstanceID:    refs.InstanceID,
		ClaimID:       refs.ClaimID,
		RewardClaimID: refs.RewardClaimID,
		CreatedBy:     createdBy,
		CreatedAt:     at,
	}); err != nil {
		return err
	}

	*balance = b
	return nil
}

// CalculateBalance sums the user's history independently of the stored
// balance. Used by the audit job and verification, never as the source
// of truth.
func (l *Ledger) CalculateBalance(userID int64) (int, error) {
	return store.NewPointsStore(l.db).SumByUser(userID)
}

// Verify compares the stored balance against the ledger sum. A mismatch
// is logged as a diagnostic and returned in the report; it is never
// repaired here.
func (l *Ledger) Verify(userID int64) (model.BalanceReport, error) {
	user, err := store.NewUserStore(l.db).GetByID(userID)
	if err != nil {
		return model.BalanceReport{}, err
	}
	if user == nil {
		return model.BalanceReport{}, fmt.Errorf("verify balance: user %d: %w", userID, sql.ErrNoRows)
	}

	sum, err := l.CalculateBalance(userID)
	if err != nil {
		return model.BalanceReport{}, err
	}

	report := model.BalanceReport{
		UserID:        userID,
		StoredBalance: user.Points,
		LedgerBalance: sum,
	}
	if !report.Balanced() {
		l.logger.Warn("imbalance detected",
			"user_id", userID,
			"stored", report.StoredBalance,
			"ledger", report.LedgerBalance,
		)
	}
	return report, nil
}

// VerifyAll runs Verify for every user and returns the reports that
// did not balance.
func (l *Ledger) VerifyAll() ([]model.BalanceReport, error) {
	users, err := store.NewUserStore(l.db).List()
	if err != nil {
		return nil, err
	}

	var imbalanced []model.BalanceReport
	for _, u := range users {
		report, err := l.Verify(u.ID)
		if err != nil {
			return nil, err
		}
		if !report.Balanced() {
			imbalanced = append(imbalanced, report)
		}
	}
	return imbalanced, nil
}
