package benchmark

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/fyrsmithlabs/birdsql/internal/orchestrator"
)

// Processor runs one question end to end. *orchestrator.Orchestrator
// satisfies it.
type Processor interface {
	ProcessQuestion(ctx context.Context, question, databaseID string) orchestrator.Result
}

// Record pairs a dataset entry with its pipeline result, one JSONL line in
// the results file.
type Record struct {
	QuestionID int                 `json:"question_id"`
	DatabaseID string              `json:"db_id"`
	GoldSQL    string              `json:"gold_sql,omitempty"`
	Result     orchestrator.Result `json:"result"`
	ElapsedMS  int64               `json:"elapsed_ms"`
}

// Summary aggregates a run.
type Summary struct {
	Total     int            `json:"total"`
	Validated int            `json:"validated"`
	ByStatus  map[string]int `json:"by_status"`
	Elapsed   time.Duration  `json:"-"`
}

// Runner fans a dataset out over a bounded worker pool. Results keep dataset
// order regardless of completion order.
type Runner struct {
	proc    Processor
	workers int
	logger  *zap.Logger
}

// NewRunner creates a runner. workers below 1 is treated as 1.
func NewRunner(proc Processor, workers int, logger *zap.Logger) *Runner {
	if workers < 1 {
		workers = 1
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{proc: proc, workers: workers, logger: logger.Named("benchmark")}
}

// Run processes every question and returns the per-question records in
// dataset order. It stops early only on context cancellation.
func (r *Runner) Run(ctx context.Context, questions []Question) ([]Record, Summary, error) {
	records := make([]Record, len(questions))
	start := time.Now()

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(r.workers)
	for i, q := range questions {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			turnStart := time.Now()
			res := r.proc.ProcessQuestion(ctx, q.Prompt(), q.DatabaseID)
			records[i] = Record{
				QuestionID: q.QuestionID,
				DatabaseID: q.DatabaseID,
				GoldSQL:    q.GoldSQL,
				Result:     res,
				ElapsedMS:  time.Since(turnStart).Milliseconds(),
			}
			r.logger.Info("question processed",
				zap.Int("question_id", q.QuestionID),
				zap.String("db_id", q.DatabaseID),
				zap.String("status", string(res.Status)))
			return nil
		})
	}
	err := g.Wait()

	summary := summarize(records)
	summary.Elapsed = time.Since(start)
	return records, summary, err
}

func summarize(records []Record) Summary {
	s := Summary{Total: len(records), ByStatus: make(map[string]int)}
	for _, rec := range records {
		s.ByStatus[string(rec.Result.Status)]++
		if rec.Result.Validated() {
			s.Validated++
		}
	}
	return s
}

// WriteRecords streams records as JSONL.
func WriteRecords(w io.Writer, records []Record) error {
	enc := json.NewEncoder(w)
	for _, rec := range records {
		if err := enc.Encode(rec); err != nil {
			return fmt.Errorf("write record %d: %w", rec.QuestionID, err)
		}
	}
	return nil
}
