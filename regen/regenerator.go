package regen

import (
	"bytes"
	"context"
	"encoding/gob"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/danielorbach/go-component"
	"github.com/go-digitaltwin/go-thingmodel"
	"github.com/go-digitaltwin/go-thingmodel/fetch"
	"github.com/go-digitaltwin/go-thingmodel/typeresolve"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gocloud.dev/pubsub"
	"golang.org/x/sync/errgroup"
)

// A Catalog records model lineage and answers which models depend on a given
// one. *neo4jcatalog.Catalog implements it.
type Catalog interface {
	Publish(ctx context.Context, eff *thingmodel.Effective) error
	Dependents(ctx context.Context, ref string) ([]string, error)
}

// Options configure a regenerator.
type Options struct {
	// Source delivers gob-encoded ModelChanged messages.
	Source *pubsub.Subscription
	// Sink receives a gob-encoded GenerationCompleted message per run.
	Sink *pubsub.Topic
	// Documents serves the documents of every resolution. The changed document
	// is forgotten before its runs start.
	Documents *fetch.Cache
	// Placeholders and StrictOverrides configure the resolver of every run.
	Placeholders    map[string]string
	StrictOverrides bool
	// Strategy registers the types of every run. Zero means Separate.
	Strategy typeresolve.Strategy
	// Catalog is optional. Without one, only the changed model is regenerated.
	Catalog Catalog
	// Concurrency bounds the runs of one message. Zero means 4.
	Concurrency int
}

type regenerator struct {
	Options
	resolver *thingmodel.Resolver
}

// NewRegenerator returns a [component.Procedure] that regenerates the types of
// every model affected by a ModelChanged notification: the changed model and,
// when a Catalog is configured, every model that extends it or mounts it as a
// submodel. Each affected model gets its own generation run and its own
// GenerationCompleted message.
//
// A message is acknowledged only after all of its runs completed. A failed run
// stops the procedure, so the message is redelivered after restart.
func NewRegenerator(opts Options) component.Procedure {
	if opts.Concurrency <= 0 {
		opts.Concurrency = 4
	}
	if opts.Strategy == 0 {
		opts.Strategy = typeresolve.Separate
	}
	return regenerator{
		Options: opts,
		resolver: &thingmodel.Resolver{
			Fetcher:         opts.Documents,
			Placeholders:    opts.Placeholders,
			StrictOverrides: opts.StrictOverrides,
		},
	}
}

func (r regenerator) Exec(l *component.L) {
	logger := component.Logger(l.Context())
	for l.Continue() {
		msg, err := r.Source.Receive(l.GraceContext())
		if err != nil {
			if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
				return
			}
			// Receive errors are not retryable.
			l.Fatal(fmt.Errorf("receive: %w", err))
			return
		}

		if err := r.handleMessage(l.GraceContext(), logger, msg); err != nil {
			logger.Error("Couldn't handle ModelChanged message", slog.Any("error", err))
			if msg.Nackable() {
				msg.Nack()
			}
			l.Fatal(fmt.Errorf("regenerate: %w", err))
			return
		}
		msg.Ack()
	}
}

func (r regenerator) handleMessage(ctx context.Context, logger *slog.Logger, msg *pubsub.Message) (err error) {
	ctx, span := tracer.Start(ctx, "regenerator.handleMessage", trace.WithAttributes(
		attribute.String("msg.id", msg.LoggableID),
	))
	defer span.End()
	defer func() {
		if err != nil {
			span.SetStatus(codes.Error, err.Error())
		}
	}()

	var changed ModelChanged
	if err := gob.NewDecoder(bytes.NewReader(msg.Body)).Decode(&changed); err != nil {
		return fmt.Errorf("decode gob: %w", err)
	}
	span.SetAttributes(attribute.String(triggerKey, changed.Ref))

	defer func(start time.Time) {
		measureRegeneration(ctx, changed.Ref, err == nil, time.Since(start))
	}(time.Now())

	logger = logger.With(slog.String(triggerKey, changed.Ref))
	r.Documents.Forget(changed.Ref)

	refs := []string{changed.Ref}
	if r.Catalog != nil {
		dependents, err := r.Catalog.Dependents(ctx, changed.Ref)
		if err != nil {
			return fmt.Errorf("find dependents: %w", err)
		}
		for _, d := range dependents {
			if !slices.Contains(refs, d) {
				refs = append(refs, d)
			}
		}
	}
	logger.Debug("Regenerating affected models", slog.Int("models", len(refs)))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(r.Concurrency)
	for _, ref := range refs {
		g.Go(func() error {
			return r.generate(ctx, logger, changed.Ref, ref)
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	logger.Info("ModelChanged message handled successfully", slog.Int("models", len(refs)))
	return nil
}

// generate runs a single generation over ref and announces its outcome.
func (r regenerator) generate(ctx context.Context, logger *slog.Logger, trigger, ref string) error {
	runID := uuid.New()
	ctx, span := tracer.Start(ctx, "regenerator.generate", trace.WithAttributes(
		attribute.String(triggerKey, trigger),
		attribute.String("thingmodel.ref", ref),
		attribute.Stringer("regen.run", runID),
	))
	defer span.End()

	logger = logger.With(slog.String("thingmodel.ref", ref), slog.Any("run", runID))
	ctx = component.InjectLogger(ctx, logger)

	eff, err := r.resolver.Resolve(ctx, ref)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("resolve %s: %w", ref, err)
	}
	if r.Catalog != nil {
		if err := r.Catalog.Publish(ctx, eff); err != nil {
			span.SetStatus(codes.Error, err.Error())
			return fmt.Errorf("catalog %s: %w", ref, err)
		}
	}
	res, err := typeresolve.Run(ctx, eff, r.Strategy)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("generate %s: %w", ref, err)
	}

	completed := summarize(runID, trigger, eff, res)
	var b bytes.Buffer
	if err := gob.NewEncoder(&b).Encode(completed); err != nil {
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("encode gob: %w", err)
	}
	// The model reference keys the message, so brokers that partition by key keep
	// the runs of one model in order.
	err = r.Sink.Send(ctx, &pubsub.Message{Body: b.Bytes(), Metadata: map[string]string{
		"ref":   ref,
		"runID": runID.String(),
	}})
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("send: %w", err)
	}
	logger.Debug("GenerationCompleted message sent", slog.Int("types", len(completed.Types)))
	return nil
}

func summarize(runID uuid.UUID, trigger string, eff *thingmodel.Effective, res *typeresolve.Result) GenerationCompleted {
	decls := res.Registry.Declarations()
	types := make([]string, len(decls))
	for i, d := range decls {
		types[i] = d.QualifiedName()
	}
	return GenerationCompleted{
		RunID:      runID,
		Ref:        eff.Ref,
		Trigger:    trigger,
		Strategy:   res.Registry.Strategy().String(),
		Types:      types,
		Properties: len(res.Properties),
		Features:   eff.FeatureNames(),
		Timestamp:  time.Now().UTC(),
	}
}
