package medsummary

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/joelkehle/medlite/internal/generation"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
)

const tracerName = "github.com/joelkehle/medlite/internal/medsummary"

const DefaultLoadTimeout = 30 * time.Second

// BackendLoader loads a generation backend. generation.Loader satisfies it.
type BackendLoader interface {
	Load(ctx context.Context) (generation.Backend, error)
}

type Option func(*Engine)

// WithLoader enables the generative tier. Without a loader the engine only
// uses the rule-based tier.
func WithLoader(l BackendLoader) Option { return func(e *Engine) { e.loader = l } }

func WithLogger(l logrus.FieldLogger) Option { return func(e *Engine) { e.logger = l } }

func WithTranslator(t *Translator) Option { return func(e *Engine) { e.translator = t } }

func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(e *Engine) { e.tracer = tp.Tracer(tracerName) }
}

// WithGenerationLimits sets the summary length bounds and the input cut-off
// passed to the generative tier.
func WithGenerationLimits(maxLength, minLength, maxInputChars int) Option {
	return func(e *Engine) {
		e.maxLength, e.minLength, e.maxInputChars = maxLength, minLength, maxInputChars
	}
}

// WithThresholds sets the minimum normalized length each tier accepts.
func WithThresholds(generativeMin, ruleBasedMin int) Option {
	return func(e *Engine) { e.generativeMin, e.ruleBasedMin = generativeMin, ruleBasedMin }
}

func WithTimeouts(call, load time.Duration) Option {
	return func(e *Engine) { e.callTimeout, e.loadTimeout = call, load }
}

// Engine turns raw report text into a SummaryResult. The generation backend
// is loaded once, on first use; if that fails the engine stays on the
// rule-based tier for its lifetime. Engine is safe for concurrent use.
type Engine struct {
	loader     BackendLoader
	logger     logrus.FieldLogger
	translator *Translator
	tracer     trace.Tracer

	maxLength     int
	minLength     int
	maxInputChars int
	generativeMin int
	ruleBasedMin  int
	callTimeout   time.Duration
	loadTimeout   time.Duration

	once       sync.Once
	primary    Summarizer
	ruleBased  *RuleBasedSummarizer
	activeTier atomic.Value
	backend    atomic.Value
}

func NewEngine(opts ...Option) *Engine {
	e := &Engine{
		maxLength:     DefaultMaxLength,
		minLength:     DefaultMinLength,
		maxInputChars: DefaultMaxInputChars,
		generativeMin: DefaultGenerativeMinChars,
		ruleBasedMin:  DefaultRuleBasedMinChars,
		loadTimeout:   DefaultLoadTimeout,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.logger == nil {
		e.logger = logrus.StandardLogger()
	}
	if e.translator == nil {
		e.translator = defaultTranslator
	}
	if e.tracer == nil {
		e.tracer = otel.Tracer(tracerName)
	}
	e.ruleBased = NewRuleBasedSummarizer(e.ruleBasedMin)
	return e
}

func (e *Engine) Translator() *Translator { return e.translator }

// CurrentTier reports the selected tier, or "" before the first report.
func (e *Engine) CurrentTier() Tier {
	t, _ := e.activeTier.Load().(Tier)
	return t
}

// BackendName reports the loaded generation backend, or "".
func (e *Engine) BackendName() string {
	b, _ := e.backend.Load().(string)
	return b
}

// ActiveTier selects the tier if needed and returns it.
func (e *Engine) ActiveTier(ctx context.Context) Tier {
	return e.selectTier(ctx).Tier()
}

func (e *Engine) selectTier(ctx context.Context) Summarizer {
	e.once.Do(func() {
		e.primary = e.ruleBased
		if e.loader != nil {
			backend, err := e.loadBackend(ctx)
			if err != nil {
				e.logger.WithError(err).Warn("generation backend unavailable, using rule-based summaries")
			} else {
				gen := NewGenerativeSummarizer(backend)
				gen.MaxLength, gen.MinLength = e.maxLength, e.minLength
				gen.MaxInputChars = e.maxInputChars
				gen.MinInputChars = e.generativeMin
				gen.Timeout = e.callTimeout
				e.primary = gen
				e.backend.Store(backend.Name())
			}
		}
		e.activeTier.Store(e.primary.Tier())
		e.logger.WithField("tier", e.primary.Tier()).Info("summarizer tier selected")
	})
	return e.primary
}

// loadBackend runs the loader under the load timeout, turning a panic into
// an ordinary load failure.
func (e *Engine) loadBackend(ctx context.Context) (backend generation.Backend, err error) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.WithField("stack", string(debug.Stack())).Error("generation backend loader panicked")
			backend, err = nil, fmt.Errorf("backend load panicked: %v", r)
		}
	}()
	lctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), e.loadTimeout)
	defer cancel()
	return e.loader.Load(lctx)
}

// SummarizeReport never fails: short input yields a placeholder result and
// any internal failure yields a processing-error result.
func (e *Engine) SummarizeReport(ctx context.Context, text string) SummaryResult {
	return e.Run(ctx, text).Result
}

// Run is SummarizeReport plus metadata about how the result was produced.
func (e *Engine) Run(ctx context.Context, text string) (out Outcome) {
	started := time.Now()
	ctx, span := e.tracer.Start(ctx, "medsummary.Run")
	defer func() {
		if r := recover(); r != nil {
			err := fmt.Errorf("internal error: %v", r)
			e.logger.WithField("stack", string(debug.Stack())).WithError(err).Error("summarization panicked")
			out = Outcome{Result: errorResult(err), Tier: out.Tier, NormalizedChars: out.NormalizedChars, Err: err}
		}
		out.Duration = time.Since(started)
		span.SetAttributes(
			attribute.String("tier", string(out.Tier)),
			attribute.Bool("fallback", out.Fallback),
			attribute.Bool("short_circuit", out.ShortCircuit),
			attribute.Int("normalized_chars", out.NormalizedChars),
		)
		if out.Err != nil {
			span.RecordError(out.Err)
			span.SetStatus(codes.Error, out.Err.Error())
		}
		span.End()
	}()

	normalized := Normalize(text)
	out.NormalizedChars = runeLen(normalized)
	primary := e.selectTier(ctx)
	out.Tier = primary.Tier()

	if out.NormalizedChars < primary.MinChars() {
		out.ShortCircuit = true
		out.Result = shortResult()
		e.logger.WithFields(logrus.Fields{
			"tier":             out.Tier,
			"normalized_chars": out.NormalizedChars,
			"min_chars":        primary.MinChars(),
		}).Debug("report too short, returning placeholder")
		return out
	}

	var (
		summary  string
		used     Tier
		fallback bool
		findings []string
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(guarded(func() error {
		var err error
		summary, used, fallback, err = e.summarize(gctx, primary, normalized)
		return err
	}))
	g.Go(guarded(func() error {
		_, fspan := e.tracer.Start(gctx, "medsummary.extract_findings")
		defer fspan.End()
		findings = ExtractFindings(normalized)
		return nil
	}))
	if err := g.Wait(); err != nil {
		e.logger.WithError(err).WithField("tier", out.Tier).Error("summarization failed")
		out.Err = err
		out.Result = errorResult(err)
		return out
	}

	out.Tier = used
	out.Fallback = fallback
	out.Result = e.assemble(summary, findings)
	e.logger.WithFields(logrus.Fields{
		"tier":         out.Tier,
		"fallback":     out.Fallback,
		"key_findings": len(out.Result.KeyFindings),
		"duration_ms":  time.Since(started).Milliseconds(),
	}).Info("report summarized")
	return out
}

func (e *Engine) summarize(ctx context.Context, primary Summarizer, text string) (string, Tier, bool, error) {
	ctx, span := e.tracer.Start(ctx, "medsummary.summarize")
	defer span.End()
	span.SetAttributes(attribute.String("tier", string(primary.Tier())))

	summary, err := primary.Summarize(ctx, text)
	if err == nil {
		return summary, primary.Tier(), false, nil
	}
	if primary.Tier() == TierGenerative && errors.Is(err, ErrModelUnavailable) {
		e.logger.WithError(err).Warn("generative tier unavailable for this report, using rule-based summary")
		span.AddEvent("fallback to rule-based tier")
		summary, err = e.ruleBased.Summarize(ctx, text)
		return summary, TierRuleBased, true, err
	}
	return "", primary.Tier(), false, err
}

// assemble translates the summary and findings. A finding whose
// translation would be ten characters or fewer keeps its original wording.
func (e *Engine) assemble(summary string, findings []string) SummaryResult {
	res := SummaryResult{
		Summary:         summary,
		PatientFriendly: e.translator.Translate(summary),
		KeyFindings:     make([]string, 0, len(findings)),
	}
	for _, f := range findings {
		plain := strings.TrimSpace(e.translator.Translate(f))
		if runeLen(plain) <= minFindingChars {
			plain = f
		}
		res.KeyFindings = append(res.KeyFindings, plain)
	}
	return res
}

func guarded(fn func() error) func() error {
	return func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("internal error: %v", r)
			}
		}()
		return fn()
	}
}
