package ingestion

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/poiesic/ronbun/arxiv"
)

// defaultSweepSchedule runs the discovery sweep daily at 06:00, after the
// arXiv OAI feed has settled for the previous day.
const defaultSweepSchedule = "0 6 * * *"

// ErrNoSweepSets is returned when a sweeper is created without category sets.
var ErrNoSweepSets = errors.New("at least one category set required")

// Lister is the slice of the OAI-PMH client the sweeper uses.
// Satisfied by *arxiv.OAIClient; tests substitute fakes.
type Lister interface {
	ListRecords(ctx context.Context, set string, from, until time.Time, resumptionToken string) (*arxiv.OAIPage, error)
}

var _ Lister = (*arxiv.OAIClient)(nil)

// Sweeper periodically discovers newly announced papers via OAI-PMH and
// submits each one to the pipeline.
type Sweeper struct {
	pipeline *Pipeline
	lister   Lister
	sets     []string
	schedule string
	cron     *cron.Cron
	logger   *slog.Logger
}

// SweepOption configures a Sweeper.
type SweepOption func(*Sweeper)

// WithSweepSchedule sets the cron schedule. Default is daily at 06:00.
func WithSweepSchedule(schedule string) SweepOption {
	return func(s *Sweeper) {
		if schedule != "" {
			s.schedule = schedule
		}
	}
}

// WithSweepLogger sets a custom logger.
func WithSweepLogger(logger *slog.Logger) SweepOption {
	return func(s *Sweeper) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewSweeper creates a sweeper submitting discoveries from the given
// category sets (for example "cs" or "physics:astro-ph").
func NewSweeper(pipeline *Pipeline, lister Lister, sets []string, opts ...SweepOption) (*Sweeper, error) {
	if pipeline == nil {
		return nil, ErrStoreRequired
	}
	if lister == nil {
		return nil, ErrCatalogRequired
	}
	if len(sets) == 0 {
		return nil, ErrNoSweepSets
	}

	s := &Sweeper{
		pipeline: pipeline,
		lister:   lister,
		sets:     sets,
		schedule: defaultSweepSchedule,
		cron:     cron.New(),
		logger:   slog.Default().With("component", "sweeper"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Start schedules the sweep job. The job itself covers the previous UTC day.
func (s *Sweeper) Start() error {
	_, err := s.cron.AddFunc(s.schedule, func() {
		s.logger.Info("running scheduled sweep")
		if err := s.Sweep(context.Background()); err != nil {
			s.logger.Error("scheduled sweep failed", "err", err)
		}
	})
	if err != nil {
		return err
	}
	s.cron.Start()
	return nil
}

// Stop halts the schedule and waits for a running sweep job to finish.
func (s *Sweeper) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
}

// Sweep lists the previous UTC day's records for every configured set and
// submits each paper. Per-paper failures are logged and skipped.
func (s *Sweeper) Sweep(ctx context.Context) error {
	until := time.Now().UTC().Truncate(24 * time.Hour)
	from := until.Add(-24 * time.Hour)

	var submitted, skipped int
	for _, set := range s.sets {
		token := ""
		for {
			page, err := s.lister.ListRecords(ctx, set, from, until, token)
			if err != nil {
				return err
			}
			for _, record := range page.Records {
				if _, err := s.pipeline.Submit(ctx, record.ArxivID); err != nil {
					s.logger.Warn("sweep submission failed, skipping",
						"arxiv_id", record.ArxivID, "err", err)
					skipped++
					continue
				}
				submitted++
			}
			token = page.ResumptionToken
			if token == "" {
				break
			}
		}
	}

	s.logger.Info("sweep complete",
		"from", from.Format("2006-01-02"),
		"submitted", submitted,
		"skipped", skipped)
	return nil
}
