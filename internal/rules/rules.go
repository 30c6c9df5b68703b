// Package rules evaluates wallet-matching predicates against balance
// changes using bexpr, a boolean-expression evaluator over struct fields.
package rules

import (
	"fmt"

	"github.com/hashicorp/go-bexpr"
)

// Change is the flattened shape a wallet rule is evaluated against. Field
// names here are also the identifiers a rule expression may reference.
type Change struct {
	Address string `bexpr:"address"`
	Delta   int64  `bexpr:"delta"`
	Height  uint32 `bexpr:"height"`
}

// Rule is one wallet's compiled matching predicate.
type Rule struct {
	WalletID  string
	expr      string
	evaluator *bexpr.Evaluator
}

// Compile parses expr (bexpr syntax, e.g. `delta > 0 and address matches "^bc1"`)
// into a Rule for walletID.
func Compile(walletID, expr string) (*Rule, error) {
	ev, err := bexpr.CreateEvaluator(expr)
	if err != nil {
		return nil, fmt.Errorf("rules: wallet %s: invalid expression %q: %w", walletID, expr, err)
	}
	return &Rule{WalletID: walletID, expr: expr, evaluator: ev}, nil
}

// Matches reports whether change satisfies r's predicate.
func (r *Rule) Matches(change Change) (bool, error) {
	ok, err := r.evaluator.Evaluate(change)
	if err != nil {
		return false, fmt.Errorf("rules: wallet %s: evaluate: %w", r.WalletID, err)
	}
	return ok, nil
}

// Set evaluates every rule in order and returns the wallet ids of those
// that match change.
type Set []*Rule

// Match returns the wallet ids whose rule matches change. A rule that
// fails to evaluate is skipped rather than aborting the whole set, since
// one misconfigured wallet rule should not block projection for every
// other wallet.
func (s Set) Match(change Change) []string {
	var matched []string
	for _, r := range s {
		ok, err := r.Matches(change)
		if err != nil {
			continue
		}
		if ok {
			matched = append(matched, r.WalletID)
		}
	}
	return matched
}
