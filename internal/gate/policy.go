package gate

import (
	"context"
	"fmt"
	"time"

	"github.com/open-policy-agent/opa/v1/rego"
	"github.com/rs/zerolog"

	"github.com/goodtune/taglock/internal/storage"
)

// Decision is a gate verdict.
type Decision string

const (
	DecisionAllow Decision = "allow"
	DecisionBlock Decision = "block"
)

// PolicyEngine evaluates optional Rego policies that can override the
// built-in blocklist rule, e.g. to allow a blocked app during a fixed
// homework window. The query is data.taglock.gate.decision and must yield
// "allow" or "block".
type PolicyEngine struct {
	query  rego.PreparedEvalQuery
	logger zerolog.Logger
}

// LoadPolicies compiles all Rego files under dir into a prepared query.
func LoadPolicies(ctx context.Context, dir string, logger zerolog.Logger) (*PolicyEngine, error) {
	query, err := rego.New(
		rego.Query("data.taglock.gate.decision"),
		rego.Load([]string{dir}, nil),
	).PrepareForEval(ctx)
	if err != nil {
		return nil, fmt.Errorf("load gate policies from %s: %w", dir, err)
	}
	return &PolicyEngine{
		query:  query,
		logger: logger.With().Str("component", "policy").Logger(),
	}, nil
}

// PolicyInput is the document handed to the Rego query for one observation.
type PolicyInput struct {
	PackageName string              `json:"package_name"`
	AppName     string              `json:"app_name"`
	Category    storage.AppCategory `json:"category"`
	Blocked     bool                `json:"blocked"`
	Locked      bool                `json:"locked"`
	HourOfDay   int                 `json:"hour_of_day"`
	DayOfWeek   int                 `json:"day_of_week"`
}

// Decide evaluates the policies for the observation. ok is false when the
// query is undefined or evaluation fails; the caller then applies the
// built-in rule.
func (p *PolicyEngine) Decide(ctx context.Context, input PolicyInput) (Decision, bool) {
	results, err := p.query.Eval(ctx, rego.EvalInput(input))
	if err != nil {
		p.logger.Warn().Err(err).Msg("Policy evaluation failed, using built-in rule")
		return "", false
	}
	if len(results) == 0 || len(results[0].Expressions) == 0 {
		return "", false
	}

	verdict, ok := results[0].Expressions[0].Value.(string)
	if !ok {
		p.logger.Warn().Msg("Policy decision is not a string, using built-in rule")
		return "", false
	}

	switch Decision(verdict) {
	case DecisionAllow, DecisionBlock:
		return Decision(verdict), true
	default:
		p.logger.Warn().Str("decision", verdict).Msg("Unknown policy decision, using built-in rule")
		return "", false
	}
}

// inputFor builds the policy input for an observation at the given time.
func inputFor(app *storage.BlockedApp, pkg string, locked bool, at time.Time) PolicyInput {
	in := PolicyInput{
		PackageName: pkg,
		Locked:      locked,
		HourOfDay:   at.Hour(),
		DayOfWeek:   int(at.Weekday()) + 1,
		Category:    storage.CategoryOther,
	}
	if app != nil {
		in.AppName = app.AppName
		in.Category = app.Category
		in.Blocked = app.IsBlocked
	}
	return in
}
