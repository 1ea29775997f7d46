package enrichment

import (
	"context"
	"errors"
	"maps"
	"math/rand/v2"
	"net"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/octobees/enrichment-pipeline/internal/entity"
	"github.com/octobees/enrichment-pipeline/internal/redact"
)

// DefaultBatchSize bounds how many rows share one remote call.
const DefaultBatchSize = 5

const errNoResult = "no result returned for row"

// Options tunes remote dispatch. The zero value keeps the untuned behaviour:
// batches of five, no timeout, no retries, no pacing.
type Options struct {
	BatchSize int

	// BatchTimeout bounds each remote call. Zero leaves timeouts to the transport.
	BatchTimeout time.Duration

	// MaxRetries is the number of extra attempts for a transient whole-batch failure.
	MaxRetries int

	// BackoffInitial is the first sleep before a retry; BackoffMax caps the doubling.
	BackoffInitial time.Duration
	BackoffMax     time.Duration

	// RateLimitRPS paces remote calls. Set to <=0 to disable.
	RateLimitRPS float64
}

func (o Options) withDefaults() Options {
	if o.BatchSize <= 0 {
		o.BatchSize = DefaultBatchSize
	}
	if o.MaxRetries < 0 {
		o.MaxRetries = 0
	}
	if o.BackoffInitial <= 0 {
		o.BackoffInitial = 500 * time.Millisecond
	}
	if o.BackoffMax <= 0 {
		o.BackoffMax = 5 * time.Second
	}
	return o
}

// RowResult is the terminal state of one row after a run.
type RowResult struct {
	ContactID uuid.UUID               `json:"contact_id"`
	Outputs   map[string]string       `json:"outputs"`
	Status    entity.EnrichmentStatus `json:"status"`
	Error     string                  `json:"error,omitempty"`
}

// Report summarises a completed run. Results follow input row order.
type Report struct {
	RunID    string      `json:"run_id"`
	Results  []RowResult `json:"results"`
	Progress Progress    `json:"progress"`
	Done     int         `json:"done"`
	Failed   int         `json:"failed"`
}

// Dispatcher drives a recipe's step groups across a row set.
type Dispatcher struct {
	client  Client
	opts    Options
	limiter *rate.Limiter
	logger  *zap.Logger
}

// NewDispatcher builds a dispatcher backed by the given remote client.
func NewDispatcher(client Client, opts Options, logger *zap.Logger) *Dispatcher {
	opts = opts.withDefaults()
	if logger == nil {
		logger = zap.NewNop()
	}
	var limiter *rate.Limiter
	if opts.RateLimitRPS > 0 {
		limiter = rate.NewLimiter(rate.Limit(opts.RateLimitRPS), 1)
	}
	return &Dispatcher{
		client:  client,
		opts:    opts,
		limiter: limiter,
		logger:  logger,
	}
}

// run holds the state owned by a single Run invocation.
type run struct {
	id       string
	fields   map[uuid.UUID]Fields
	failed   map[uuid.UUID]string
	progress Progress
	notify   func(Progress)
}

func (r *run) emit() {
	if r.notify != nil {
		r.notify(r.progress)
	}
}

func (r *run) fail(id uuid.UUID, msg string) {
	if _, already := r.failed[id]; already {
		return
	}
	r.failed[id] = msg
	r.progress.Failed++
}

// Run executes steps over contacts and returns one result per contact.
//
// Groups run strictly in order; remote batches within a group run one at a time.
// A row that fails is skipped by every later group. Only cancellation of ctx
// aborts the run; remote failures are recorded on the affected rows.
func (d *Dispatcher) Run(ctx context.Context, steps []entity.Step, contacts []entity.Contact, onProgress func(Progress)) (Report, error) {
	groups := Partition(steps)
	r := &run{
		id:       RunIDFromContext(ctx),
		fields:   make(map[uuid.UUID]Fields, len(contacts)),
		failed:   make(map[uuid.UUID]string),
		progress: newProgress("", len(contacts), countRemote(groups)),
		notify:   onProgress,
	}
	if r.id == "" {
		r.id = ulid.Make().String()
	}
	r.progress.RunID = r.id
	for _, c := range contacts {
		r.fields[c.ID] = BuildFields(c)
	}

	log := d.logger.With(zap.String("run_id", r.id))
	log.Info("enrichment run start",
		zap.Int("rows", len(contacts)),
		zap.Int("steps", len(steps)),
		zap.Int("groups", len(groups)),
		zap.Int("remote_groups", r.progress.Groups),
		zap.Int("batch_size", d.opts.BatchSize),
	)
	start := time.Now()

	for gi, group := range groups {
		if err := ctx.Err(); err != nil {
			return Report{}, err
		}
		if !group.Remote {
			d.runLocal(r, group, contacts)
			continue
		}
		r.progress.Group++
		if err := d.runRemote(ctx, log.With(zap.Int("group", gi+1)), r, group, contacts); err != nil {
			return Report{}, err
		}
	}

	if r.progress.Groups == 0 {
		r.progress.Processed = r.progress.Total
		r.emit()
	}

	report := Report{
		RunID:    r.id,
		Results:  make([]RowResult, 0, len(contacts)),
		Progress: r.progress,
	}
	for _, c := range contacts {
		if msg, failed := r.failed[c.ID]; failed {
			report.Results = append(report.Results, RowResult{
				ContactID: c.ID,
				Outputs:   netNewFields(BaseFields(c), r.fields[c.ID]),
				Status:    entity.StatusFailed,
				Error:     msg,
			})
			report.Failed++
			continue
		}
		report.Results = append(report.Results, RowResult{
			ContactID: c.ID,
			Outputs:   netNewFields(BaseFields(c), r.fields[c.ID]),
			Status:    entity.StatusDone,
		})
		report.Done++
	}

	log.Info("enrichment run complete",
		zap.Int("done", report.Done),
		zap.Int("failed", report.Failed),
		zap.Duration("duration", time.Since(start).Round(time.Millisecond)),
	)
	return report, nil
}

func (d *Dispatcher) runLocal(r *run, group Group, contacts []entity.Contact) {
	for _, c := range contacts {
		if _, failed := r.failed[c.ID]; failed {
			continue
		}
		f := r.fields[c.ID]
		for _, step := range group.Steps {
			f = ExecuteLocal(f, step)
		}
		r.fields[c.ID] = f
	}
}

func (d *Dispatcher) runRemote(ctx context.Context, log *zap.Logger, r *run, group Group, contacts []entity.Contact) error {
	pending := make([]entity.Contact, 0, len(contacts))
	skipped := 0
	for _, c := range contacts {
		if _, failed := r.failed[c.ID]; failed {
			skipped++
			continue
		}
		pending = append(pending, c)
	}
	if skipped > 0 {
		r.progress.Processed += skipped
		r.emit()
	}

	for start := 0; start < len(pending); start += d.opts.BatchSize {
		if err := ctx.Err(); err != nil {
			return err
		}
		end := min(start+d.opts.BatchSize, len(pending))
		d.runBatch(ctx, log, r, group.Steps, pending[start:end])
		r.emit()
	}
	return nil
}

func (d *Dispatcher) runBatch(ctx context.Context, log *zap.Logger, r *run, steps []entity.Step, batch []entity.Contact) {
	req := BatchRequest{
		Rows:  make([]BatchRow, 0, len(batch)),
		Steps: steps,
	}
	for _, c := range batch {
		req.Rows = append(req.Rows, BatchRow{ID: c.ID.String(), Fields: r.fields[c.ID].Clone()})
	}

	callStart := time.Now()
	resp, err := d.call(ctx, req)
	r.progress.Processed += len(batch)
	if err != nil {
		msg := redact.Secrets(err.Error())
		for _, c := range batch {
			r.fail(c.ID, msg)
		}
		log.Warn("enrichment batch failed",
			zap.Int("rows", len(batch)),
			zap.Duration("duration", time.Since(callStart).Round(time.Millisecond)),
			zap.String("error", msg),
		)
		return
	}

	byID := make(map[string]BatchResult, len(resp.Results))
	for _, res := range resp.Results {
		if _, dup := byID[res.ContactID]; !dup {
			byID[res.ContactID] = res
		}
	}

	declared := declaredOutputs(steps)
	dropped := make(map[string]struct{})
	ok := 0
	for _, c := range batch {
		res, found := byID[c.ID.String()]
		switch {
		case !found:
			r.fail(c.ID, errNoResult)
		case res.Error != "":
			r.fail(c.ID, redact.Secrets(res.Error))
		default:
			f := r.fields[c.ID]
			for k, v := range res.Outputs {
				if _, allowed := declared[k]; !allowed {
					dropped[k] = struct{}{}
					continue
				}
				f[k] = v
			}
			ok++
		}
	}
	r.progress.Succeeded += ok
	if len(dropped) > 0 {
		log.Warn("enrichment batch returned undeclared outputs",
			zap.Strings("fields", slices.Sorted(maps.Keys(dropped))),
		)
	}

	log.Debug("enrichment batch complete",
		zap.Int("rows", len(batch)),
		zap.Int("succeeded", ok),
		zap.Int("row_errors", len(batch)-ok),
		zap.Duration("duration", time.Since(callStart).Round(time.Millisecond)),
	)
}

func (d *Dispatcher) call(ctx context.Context, req BatchRequest) (BatchResponse, error) {
	for attempt := 0; ; attempt++ {
		if d.limiter != nil {
			if err := d.limiter.Wait(ctx); err != nil {
				return BatchResponse{}, err
			}
		}

		callCtx := ctx
		cancel := context.CancelFunc(func() {})
		if d.opts.BatchTimeout > 0 {
			callCtx, cancel = context.WithTimeout(ctx, d.opts.BatchTimeout)
		}
		resp, err := d.client.RunBatch(callCtx, req)
		cancel()
		if err == nil {
			return resp, nil
		}
		if ctx.Err() != nil || attempt >= d.opts.MaxRetries || !isTransient(err) {
			return BatchResponse{}, err
		}

		t := time.NewTimer(backoffSleep(d.opts.BackoffInitial, d.opts.BackoffMax, attempt))
		select {
		case <-t.C:
		case <-ctx.Done():
			t.Stop()
			return BatchResponse{}, ctx.Err()
		}
	}
}

func isTransient(err error) bool {
	var te *TransientError
	if errors.As(err, &te) {
		return true
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

func backoffSleep(initial, limit time.Duration, attempt int) time.Duration {
	sleep := initial
	for i := 0; i < attempt && sleep < limit; i++ {
		sleep *= 2
	}
	if sleep > limit {
		sleep = limit
	}
	// +/-20% jitter.
	j := 1 + (rand.Float64()*2-1)*0.2
	return time.Duration(float64(sleep) * j)
}

// netNewFields returns the entries of final whose keys are absent from base.
func netNewFields(base, final Fields) map[string]string {
	out := make(map[string]string)
	for k, v := range final {
		if _, ok := base[k]; !ok {
			out[k] = v
		}
	}
	return out
}
