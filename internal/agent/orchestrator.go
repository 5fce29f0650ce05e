package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"finsight/internal/answer"
	"finsight/internal/cache"
	"finsight/internal/conversation"
	"finsight/internal/guard"
	"finsight/internal/store"
)

// GateVerdict is the relevance gate's decision.
type GateVerdict struct {
	Valid    bool
	Guidance string
}

// RelevanceGate classifies whether a question is in-domain. Implementations
// fail open: invocation faults yield Valid=true.
type RelevanceGate interface {
	Check(ctx context.Context, question string) GateVerdict
}

// QueryGenerator produces a candidate query from the question, schema
// description, filter scope, and bounded history.
type QueryGenerator interface {
	Generate(ctx context.Context, question, schemaDesc string, fc FilterContext, history []conversation.Turn) (string, error)
}

// QueryRefiner produces a corrected candidate from a failed query and the
// store's diagnostic text.
type QueryRefiner interface {
	Refine(ctx context.Context, failedQuery, errorText, question, schemaDesc string, fc FilterContext) (string, error)
}

// QueryExecutor runs one validated statement. *store.Store satisfies this.
type QueryExecutor interface {
	Query(ctx context.Context, queryText string) (*store.ResultSet, error)
}

// SchemaProvider describes the data store for prompt building.
// *store.Store satisfies this.
type SchemaProvider interface {
	SchemaDescription(ctx context.Context) (string, error)
}

// ResultClassifier decides the output shape. Implementations default to
// Summary on invocation failure.
type ResultClassifier interface {
	Classify(ctx context.Context, question string) answer.Classification
}

// Summarizer renders a natural-language answer from the result set, with
// an optional pre-computed calculation value.
type Summarizer interface {
	Summarize(ctx context.Context, question string, rs *store.ResultSet, calcResult string, history []conversation.Turn) (string, error)
}

// Calculator performs the auxiliary numeric step for comparison and
// percentage questions.
type Calculator interface {
	Needed(question string) bool
	Calculate(ctx context.Context, question, resultsJSON string) (string, error)
}

// Options tunes the orchestrator.
type Options struct {
	MaxAttempts    int
	PreviewRows    int
	RequestTimeout time.Duration
}

// Orchestrator sequences gate, generation, validation, execution, and
// refinement for one conversation session. It is the only component with
// branching logic, and the only writer of the session's history.
type Orchestrator struct {
	gate       RelevanceGate
	generator  QueryGenerator
	refiner    QueryRefiner
	executor   QueryExecutor
	schema     SchemaProvider
	classifier ResultClassifier
	summarizer Summarizer
	calculator Calculator
	history    *conversation.Context
	logger     *zap.Logger

	// Per-session memos: generated queries keyed by question and scope,
	// result sets keyed by normalized query text. Cached result sets are
	// treated as read-only.
	queryCache  *cache.Cache[string]
	resultCache *cache.Cache[*store.ResultSet]

	maxAttempts    int
	previewRows    int
	requestTimeout time.Duration
}

// New creates an orchestrator for one conversation session.
func New(
	gate RelevanceGate,
	generator QueryGenerator,
	refiner QueryRefiner,
	executor QueryExecutor,
	schema SchemaProvider,
	classifier ResultClassifier,
	summarizer Summarizer,
	calculator Calculator,
	history *conversation.Context,
	logger *zap.Logger,
	opts Options,
) *Orchestrator {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = MaxAttempts
	}
	if opts.PreviewRows <= 0 {
		opts.PreviewRows = 100
	}
	return &Orchestrator{
		gate:           gate,
		generator:      generator,
		refiner:        refiner,
		executor:       executor,
		schema:         schema,
		classifier:     classifier,
		summarizer:     summarizer,
		calculator:     calculator,
		history:        history,
		logger:         logger,
		queryCache:     cache.New[string](cache.DefaultCapacity),
		resultCache:    cache.New[*store.ResultSet](cache.DefaultCapacity),
		maxAttempts:    opts.MaxAttempts,
		previewRows:    opts.PreviewRows,
		requestTimeout: opts.RequestTimeout,
	}
}

// History exposes the session's conversation context.
func (o *Orchestrator) History() *conversation.Context {
	return o.history
}

// Process answers one question. The filter context is immutable for the
// lifetime of the call; history is snapshotted at entry and appended to
// only after the request reaches a terminal state.
func (o *Orchestrator) Process(ctx context.Context, question string, fc FilterContext) (*Response, error) {
	if err := fc.Validate(); err != nil {
		return nil, fmt.Errorf("invalid filter context: %w", err)
	}

	if o.requestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.requestTimeout)
		defer cancel()
	}

	requestID := uuid.NewString()
	o.logger.Info("processing question",
		zap.String("request_id", requestID),
		zap.String("question", question),
		zap.String("banks", fc.BankIDList()),
		zap.String("accounts", fc.AccountIDList()))

	log := &executionLog{}
	history := o.history.Snapshot()

	// Relevance gate: terminal on negative, fail-open on gate faults.
	verdict := o.gate.Check(ctx, question)
	if !verdict.Valid {
		log.append("relevance_gate", question, "rejected: out of scope")
		o.logger.Info("question rejected as out of scope", zap.String("question", question))
		resp := &Response{Kind: ResponseGuidance, Message: verdict.Guidance, Log: log.snapshot()}
		o.recordTurn(question, resp)
		return resp, nil
	}
	log.append("relevance_gate", question, "valid")

	schemaDesc, err := o.schema.SchemaDescription(ctx)
	if err != nil {
		return nil, o.fail(ctx, err, "schema description failed")
	}

	var (
		state     = StateGenerating
		attempts  []Attempt
		queryText string
		lastError string
		result    *store.ResultSet
	)

	for state != StateSucceeded && state != StateFailed {
		if err := ctx.Err(); err != nil {
			log.append("pipeline", question, "aborted: deadline exceeded")
			return nil, o.fail(ctx, err, "request deadline exceeded")
		}

		switch state {
		case StateGenerating:
			genKey := cache.GenerationKey(question, fc.BankIDs, fc.AccountIDs, fc.ReferenceDate.Format("2006-01-02"))
			if cached, ok := o.queryCache.Get(genKey); ok {
				// Cached candidates still pass through the security check.
				queryText = cached
				log.append("generating", question, "cached: "+queryText)
				state = Next(state, len(attempts), OutcomeQueryProduced, o.maxAttempts)
				continue
			}
			queryText, err = o.generator.Generate(ctx, question, schemaDesc, fc, history)
			if err != nil {
				log.append("generating", question, "error: "+err.Error())
				return nil, o.fail(ctx, err, "query generation failed")
			}
			o.queryCache.Put(genKey, queryText)
			log.append("generating", question, queryText)
			state = Next(state, len(attempts), OutcomeQueryProduced, o.maxAttempts)

		case StateRefining:
			queryText, err = o.refiner.Refine(ctx, queryText, lastError, question, schemaDesc, fc)
			if err != nil {
				log.append("refining", lastError, "error: "+err.Error())
				return nil, o.fail(ctx, err, "query refinement failed")
			}
			log.append("refining", lastError, queryText)
			state = Next(state, len(attempts), OutcomeQueryProduced, o.maxAttempts)

		case StateSecurityCheck:
			// Deterministic and pure: every candidate passes through here,
			// refined ones included.
			v := guard.Validate(queryText, fc.BankIDs, fc.AccountIDs)
			if !v.Allowed {
				log.append("security_check", queryText, "rejected: "+v.Violation.String())
				o.logger.Warn("candidate query rejected",
					zap.String("violation", v.Violation.String()),
					zap.String("detail", v.Detail),
					zap.String("query", queryText))
				state = Next(state, len(attempts), OutcomeSecurityRejected, o.maxAttempts)
				resp := &Response{
					Kind:      ResponseSecurityError,
					Message:   securityMessage,
					QueryText: queryText,
					Log:       log.snapshot(),
				}
				o.recordTurn(question, resp)
				return resp, nil
			}
			log.append("security_check", queryText, "allowed")
			state = Next(state, len(attempts), OutcomeSecurityPassed, o.maxAttempts)

		case StateExecuting:
			resKey := cache.ResultKey(queryText)
			if cached, ok := o.resultCache.Get(resKey); ok {
				result = cached
				attempts = append(attempts, Attempt{
					Index:     len(attempts),
					QueryText: queryText,
					Result:    cached,
				})
				log.append("executing", queryText, fmt.Sprintf("cached: %d rows", cached.Count()))
				state = Next(state, len(attempts), OutcomeExecutionSucceeded, o.maxAttempts)
				continue
			}

			res, execErr := o.executor.Query(ctx, queryText)
			if execErr != nil {
				if ctx.Err() != nil {
					log.append("executing", queryText, "aborted: deadline exceeded")
					return nil, o.fail(ctx, execErr, "execution aborted")
				}
				lastError = execErr.Error()
				attempts = append(attempts, Attempt{
					Index:     len(attempts),
					QueryText: queryText,
					ErrorText: lastError,
				})
				log.append("executing", queryText, "error: "+lastError)
				o.logger.Info("execution attempt failed",
					zap.Int("attempt", len(attempts)),
					zap.String("error", lastError))
				state = Next(state, len(attempts), OutcomeExecutionFailed, o.maxAttempts)
				if state == StateFailed {
					o.logger.Warn("attempt budget exhausted",
						zap.Int("attempts", len(attempts)),
						zap.String("last_error", lastError))
					resp := &Response{
						Kind:    ResponseRetriesExhausted,
						Message: retriesMessage,
						Log:     log.snapshot(),
					}
					o.recordTurn(question, resp)
					return resp, nil
				}
				continue
			}

			result = res
			o.resultCache.Put(resKey, res)
			attempts = append(attempts, Attempt{
				Index:     len(attempts),
				QueryText: queryText,
				Result:    res,
			})
			log.append("executing", queryText, fmt.Sprintf("success: %d rows", res.Count()))
			state = Next(state, len(attempts), OutcomeExecutionSucceeded, o.maxAttempts)
		}
	}

	resp, err := o.shapeResult(ctx, question, queryText, result, history, log)
	if err != nil {
		return nil, err
	}
	o.recordTurn(question, resp)
	return resp, nil
}

// shapeResult classifies and formats a successful execution.
func (o *Orchestrator) shapeResult(
	ctx context.Context,
	question, queryText string,
	result *store.ResultSet,
	history []conversation.Turn,
	log *executionLog,
) (*Response, error) {
	classification := o.classifier.Classify(ctx, question)
	log.append("classifying", question, classification.String())

	if classification == answer.Records {
		export, err := answer.FormatRecords(result, o.previewRows)
		if err != nil {
			return nil, o.fail(ctx, err, "export rendering failed")
		}
		log.append("formatting", queryText, fmt.Sprintf("records export: %d rows", export.RowCount))
		return &Response{
			Kind:      ResponseRecords,
			QueryText: queryText,
			Records:   export,
			Log:       log.snapshot(),
		}, nil
	}

	calcResult := ""
	if o.calculator != nil && o.calculator.Needed(question) {
		calc, err := o.calculator.Calculate(ctx, question, resultsJSON(result, 20))
		if err != nil {
			// The calculation is auxiliary; the summarizer can still answer
			// from the raw rows.
			log.append("calculating", question, "error: "+err.Error())
			o.logger.Debug("calculation step failed", zap.Error(err))
		} else {
			calcResult = calc
			log.append("calculating", question, calc)
		}
	}

	text, err := o.summarizer.Summarize(ctx, question, result, calcResult, history)
	if err != nil {
		return nil, o.fail(ctx, err, "summary rendering failed")
	}
	log.append("formatting", question, text)

	return &Response{
		Kind:      ResponseSummary,
		Message:   text,
		QueryText: queryText,
		Log:       log.snapshot(),
	}, nil
}

// recordTurn appends the completed exchange to the session history. Only
// terminal requests reach here, so mid-request readers never observe a
// partial turn.
func (o *Orchestrator) recordTurn(question string, resp *Response) {
	o.history.Append(conversation.Turn{
		Question:  question,
		Answer:    resp.Answer(),
		QueryText: resp.QueryText,
		Timestamp: time.Now(),
	})
}

// fail maps step errors onto the engine's error taxonomy.
func (o *Orchestrator) fail(ctx context.Context, err error, msg string) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		o.logger.Warn(msg, zap.Error(err))
		return fmt.Errorf("%s: %w", msg, ErrTimeout)
	}
	o.logger.Error(msg, zap.Error(err))
	return fmt.Errorf("%s: %w: %v", msg, ErrUpstreamUnavailable, err)
}

// resultsJSON encodes up to limit rows for the calculation prompt.
func resultsJSON(rs *store.ResultSet, limit int) string {
	rows := rs.Rows
	if len(rows) > limit {
		rows = rows[:limit]
	}
	payload := map[string]any{
		"count": rs.Count(),
		"rows":  rows,
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Sprintf(`{"count": %d}`, rs.Count())
	}
	return string(data)
}
