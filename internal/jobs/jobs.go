package jobs

import (
	"context"
	"log/slog"
	"time"

	"github.com/choretab/choretab/internal/ledger"
	"github.com/choretab/choretab/internal/metrics"
	"github.com/choretab/choretab/internal/workflow"
)

// Generation materializes the next due instance for every active chore.
func Generation(svc *workflow.Service, logger *slog.Logger, interval time.Duration) Job {
	return Job{
		Name:     "generation",
		Interval: interval,
		Run: func(ctx context.Context) error {
			created, err := svc.GenerateAll()
			if err != nil {
				return err
			}
			if created > 0 {
				logger.Info("generated instances", "count", created)
			}
			return nil
		},
	}
}

// AutoApprove approves claimed instances whose chore-level review delay
// has elapsed.
func AutoApprove(svc *workflow.Service, logger *slog.Logger, interval time.Duration) Job {
	return Job{
		Name:     "auto_approve",
		Interval: interval,
		Run: func(ctx context.Context) error {
			approved, err := svc.SweepAutoApprove()
			if err != nil {
				return err
			}
			if approved > 0 {
				logger.Info("auto-approved instances", "count", approved)
			}
			return nil
		},
	}
}

// MissedSweep marks overdue assigned instances as missed.
func MissedSweep(svc *workflow.Service, logger *slog.Logger, interval time.Duration) Job {
	return Job{
		Name:     "missed",
		Interval: interval,
		Run: func(ctx context.Context) error {
			missed, err := svc.SweepMissed()
			if err != nil {
				return err
			}
			if missed > 0 {
				logger.Info("marked instances missed", "count", missed)
			}
			return nil
		},
	}
}

// RewardExpiry expires pending reward claims older than maxPending and
// refunds the points.
func RewardExpiry(svc *workflow.Service, logger *slog.Logger, interval, maxPending time.Duration) Job {
	return Job{
		Name:     "reward_expiry",
		Interval: interval,
		Run: func(ctx context.Context) error {
			expired, err := svc.SweepExpiredRewards(maxPending)
			if err != nil {
				return err
			}
			if expired > 0 {
				logger.Info("expired reward claims", "count", expired)
			}
			return nil
		},
	}
}

// BalanceAudit compares every user's stored balance against their ledger
// history and logs any divergence. It never repairs.
func BalanceAudit(lgr *ledger.Ledger, logger *slog.Logger, interval time.Duration) Job {
	return Job{
		Name:     "balance_audit",
		Interval: interval,
		Run: func(ctx context.Context) error {
			reports, err := lgr.VerifyAll()
			if err != nil {
				return err
			}
			for _, r := range reports {
				metrics.ImbalancesDetected.Inc()
				logger.Warn("balance imbalance",
					"user_id", r.UserID,
					"stored", r.StoredBalance,
					"ledger", r.LedgerBalance)
			}
			return nil
		},
	}
}

// Backuper is satisfied by the backup service.
type Backuper interface {
	Backup(ctx context.Context) error
}

// Backup snapshots the database and uploads it to object storage.
func Backup(b Backuper, logger *slog.Logger, interval time.Duration) Job {
	return Job{
		Name:     "backup",
		Interval: interval,
		Run: func(ctx context.Context) error {
			if err := b.Backup(ctx); err != nil {
				return err
			}
			logger.Info("backup completed")
			return nil
		},
	}
}
