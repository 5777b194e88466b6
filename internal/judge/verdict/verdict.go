// Package verdict defines the judge outcome labels and their aggregation
// order. A submission's aggregate result is the maximum of its per-case
// verdicts under this order, so a single internal error dominates any
// number of accepted cases.
package verdict

import "fmt"

// Verdict is one judge outcome label.
type Verdict string

const (
	AC  Verdict = "AC"  // accepted
	WA  Verdict = "WA"  // wrong answer
	TLE Verdict = "TLE" // time limit exceeded
	MLE Verdict = "MLE" // memory limit exceeded
	RE  Verdict = "RE"  // runtime error
	CE  Verdict = "CE"  // compile (build case) error
	OLE Verdict = "OLE" // output limit exceeded
	IE  Verdict = "IE"  // internal error
	FN  Verdict = "FN"  // file or problem not found
)

// rank fixes the total order AC < WA < TLE < MLE < RE < CE < OLE < IE < FN.
var rank = map[Verdict]int{
	AC:  0,
	WA:  1,
	TLE: 2,
	MLE: 3,
	RE:  4,
	CE:  5,
	OLE: 6,
	IE:  7,
	FN:  8,
}

// Valid reports whether v is a known verdict label.
func Valid(v Verdict) bool {
	_, ok := rank[v]
	return ok
}

// Rank returns the integer position of v in the total order. Unknown
// labels rank above everything so they never silently win an aggregation
// as AC.
func Rank(v Verdict) int {
	if r, ok := rank[v]; ok {
		return r
	}
	return len(rank)
}

// Max returns the worse of a and b under the total order.
func Max(a, b Verdict) Verdict {
	if Rank(b) > Rank(a) {
		return b
	}
	return a
}

// Aggregate folds a slice of per-case verdicts into the submission
// result. An empty slice aggregates to AC.
func Aggregate(vs []Verdict) Verdict {
	result := AC
	for _, v := range vs {
		result = Max(result, v)
	}
	return result
}

// Parse converts a stored string into a Verdict.
func Parse(s string) (Verdict, error) {
	v := Verdict(s)
	if !Valid(v) {
		return "", fmt.Errorf("unknown verdict %q", s)
	}
	return v, nil
}

func (v Verdict) String() string {
	return string(v)
}
