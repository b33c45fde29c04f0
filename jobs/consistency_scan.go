package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

const (
	// TaskLedgerConsistencyScan triggers the nightly balance reconciliation.
	TaskLedgerConsistencyScan = "ledger:consistency_scan"
)

// ConsistencyScanPayload carries scheduling metadata.
type ConsistencyScanPayload struct {
	ScheduledFor time.Time `json:"scheduled_for"`
}

// NewConsistencyScanTask constructs an Asynq task for the balance scan.
func NewConsistencyScanTask(at time.Time) (*asynq.Task, error) {
	body, err := json.Marshal(ConsistencyScanPayload{ScheduledFor: at})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskLedgerConsistencyScan, body, asynq.Queue(QueueDefault)), nil
}

// ConsistencyScanJob recomputes every account balance from completed
// transactions and reports drift against the stored balance. The scan is
// read-only: drift is logged for operator follow-up, never auto-corrected.
type ConsistencyScanJob struct {
	Pool   *pgxpool.Pool
	Logger *slog.Logger
	clock  func() time.Time
}

// NewConsistencyScanJob initialises the scan handler.
func NewConsistencyScanJob(pool *pgxpool.Pool, logger *slog.Logger) *ConsistencyScanJob {
	return &ConsistencyScanJob{
		Pool:   pool,
		Logger: logger,
		clock: func() time.Time {
			return time.Now().UTC()
		},
	}
}

type balanceDrift struct {
	AccountID string
	Number    string
	Stored    decimal.Decimal
	Computed  decimal.Decimal
}

// Handle executes the consistency scan.
func (j *ConsistencyScanJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil {
		return errors.New("consistency scan: handler not configured")
	}
	var payload ConsistencyScanPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}

	start := j.now()
	logger := j.logger()
	logger.Info("starting ledger consistency scan")

	scanned, drifts, err := j.scan(ctx)
	if err != nil {
		logger.Error("scan failed", slog.Any("error", err))
		return err
	}

	for _, d := range drifts {
		j.reportDrift(logger, d)
	}

	logger.Info("completed ledger consistency scan",
		slog.Int("accounts", scanned),
		slog.Int("drifts", len(drifts)),
		slog.Duration("duration", time.Since(start)),
	)
	return nil
}

// reportDrift logs at error level: a drifted balance means the posting
// invariant was violated somewhere and an operator has to look at it.
func (j *ConsistencyScanJob) reportDrift(logger *slog.Logger, d balanceDrift) {
	logger.Error("balance drift detected",
		slog.String("account_id", d.AccountID),
		slog.String("account_number", d.Number),
		slog.String("stored", d.Stored.StringFixed(2)),
		slog.String("computed", d.Computed.StringFixed(2)),
		slog.String("delta", d.Stored.Sub(d.Computed).StringFixed(2)),
	)
}

func (j *ConsistencyScanJob) scan(ctx context.Context) (int, []balanceDrift, error) {
	if j.Pool == nil {
		return 0, nil, errors.New("consistency scan: pool not configured")
	}
	rows, err := j.Pool.Query(ctx, `
		SELECT a.id, a.account_number, a.balance::text,
		       COALESCE(SUM(CASE WHEN t.to_account_id = a.id THEN t.amount ELSE 0 END), 0)::text AS credits,
		       COALESCE(SUM(CASE WHEN t.from_account_id = a.id THEN t.amount ELSE 0 END), 0)::text AS debits
		FROM accounts a
		LEFT JOIN transactions t
		  ON (t.from_account_id = a.id OR t.to_account_id = a.id)
		 AND t.status = 'completed'
		GROUP BY a.id, a.account_number, a.balance
		ORDER BY a.account_number`)
	if err != nil {
		return 0, nil, err
	}
	defer rows.Close()

	scanned := 0
	drifts := make([]balanceDrift, 0)
	for rows.Next() {
		var id, number, storedRaw, creditsRaw, debitsRaw string
		if err := rows.Scan(&id, &number, &storedRaw, &creditsRaw, &debitsRaw); err != nil {
			return 0, nil, err
		}
		stored, err := decimal.NewFromString(storedRaw)
		if err != nil {
			return 0, nil, err
		}
		credits, err := decimal.NewFromString(creditsRaw)
		if err != nil {
			return 0, nil, err
		}
		debits, err := decimal.NewFromString(debitsRaw)
		if err != nil {
			return 0, nil, err
		}
		scanned++
		computed := credits.Sub(debits)
		if !stored.Equal(computed) {
			drifts = append(drifts, balanceDrift{
				AccountID: id,
				Number:    number,
				Stored:    stored,
				Computed:  computed,
			})
		}
	}
	if err := rows.Err(); err != nil {
		return 0, nil, err
	}
	return scanned, drifts, nil
}

func (j *ConsistencyScanJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskLedgerConsistencyScan))
	}
	return slog.Default().With(slog.String("job", TaskLedgerConsistencyScan))
}

func (j *ConsistencyScanJob) now() time.Time {
	if j.clock != nil {
		return j.clock()
	}
	return time.Now().UTC()
}
