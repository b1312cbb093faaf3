// Package parser turns free-form model output into validated, confidence-scored
// metadata records.
package parser

import (
	"log/slog"
	"time"

	"github.com/ripixel/fitglue-vision/pkg/domain/metadata"
)

// Outcome is the result of one Parse call.
type Outcome struct {
	Record     metadata.Record
	Confidence float64
	// Strategy names the extraction step that produced fields, or "" if none did.
	Strategy string
}

// Structured reports whether any strategy recovered fields that survived validation.
func (o Outcome) Structured() bool {
	return o.Strategy != "" && o.Record != nil && !o.Record.Empty()
}

// Parser is safe for concurrent use.
type Parser struct {
	strategies []Strategy
	scorer     Scorer
	now        func() time.Time
	logger     *slog.Logger
}

type Option func(*Parser)

// WithScorer replaces the default HeuristicScorer.
func WithScorer(s Scorer) Option {
	return func(p *Parser) { p.scorer = s }
}

// WithClock fixes the extractedAt source, mainly for tests.
func WithClock(now func() time.Time) Option {
	return func(p *Parser) { p.now = now }
}

func WithStrategies(s ...Strategy) Option {
	return func(p *Parser) { p.strategies = s }
}

func New(logger *slog.Logger, opts ...Option) *Parser {
	if logger == nil {
		logger = slog.Default()
	}
	p := &Parser{
		strategies: DefaultStrategies,
		scorer:     HeuristicScorer{},
		now:        time.Now,
		logger:     logger.With("component", "parser"),
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

// Parse never fails. When no strategy yields fields the record is all-null with
// zero confidence and the caller decides whether to fall back.
func (p *Parser) Parse(text string, d metadata.Domain) Outcome {
	now := p.now().UTC()

	for _, s := range p.strategies {
		fields, ok := s.Extract(text)
		if !ok {
			continue
		}
		rec := p.normalize(fields, d, now)
		rec.SetConfidence(p.scorer.Score(rec, text))
		conf := rec.Confidence()
		p.logger.Debug("parsed model response",
			"domain", d,
			"strategy", s.Name,
			"fields", len(fields),
			"confidence", conf)
		return Outcome{Record: rec, Confidence: conf, Strategy: s.Name}
	}

	p.logger.Debug("no structured data in model response", "domain", d, "response_len", len(text))
	return Outcome{Record: metadata.NewEmpty(d, now)}
}

func (p *Parser) normalize(f Fields, d metadata.Domain, now time.Time) metadata.Record {
	if d == metadata.DomainDiet {
		return NormalizeDiet(f, now)
	}
	return NormalizeExercise(f, now)
}
