// Package match selects the ledger buckets that clear the match threshold.
package match

import (
	"fmt"
	"strings"

	"github.com/micahco/sym/internal/domain/ledger"
	"github.com/micahco/sym/internal/domain/model"
)

// Operator compares a bucket length against the threshold.
type Operator string

// Supported operators.
const (
	GreaterThan    Operator = ">"
	GreaterOrEqual Operator = ">="
)

// ParseOperator accepts ">"/"gt" and ">="/"gte".
func ParseOperator(s string) (Operator, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case ">", "gt":
		return GreaterThan, nil
	case ">=", "gte", "ge":
		return GreaterOrEqual, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidOperator, s)
	}
}

// Satisfied reports whether n passes the threshold min under o.
func (o Operator) Satisfied(n, min int) bool {
	switch o {
	case GreaterThan:
		return n > min
	case GreaterOrEqual:
		return n >= min
	default:
		return false
	}
}

// Valid reports whether o is a supported operator.
func (o Operator) Valid() bool {
	return o == GreaterThan || o == GreaterOrEqual
}

// Match is one contributor that cleared the threshold.
type Match struct {
	ContributorID string
	Records       []model.Contribution
}

// Set is the filtered view of a ledger, in ledger order.
type Set []Match

// Filter keeps the buckets whose length satisfies op against minCount.
// Ledger bucket order and record order are preserved. A nil ledger yields
// an empty set.
func Filter(l *ledger.Ledger, minCount int, op Operator) (Set, error) {
	if !op.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidOperator, string(op))
	}
	if minCount < 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidThreshold, minCount)
	}

	set := Set{}
	if l == nil {
		return set, nil
	}
	l.Each(func(id string, records []model.Contribution) bool {
		if op.Satisfied(len(records), minCount) {
			set = append(set, Match{ContributorID: id, Records: records})
		}
		return true
	})
	return set, nil
}
