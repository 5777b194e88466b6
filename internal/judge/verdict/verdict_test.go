package verdict_test

import (
	"testing"

	"dsajudge/internal/judge/verdict"
)

func TestTotalOrder(t *testing.T) {
	ordered := []verdict.Verdict{
		verdict.AC, verdict.WA, verdict.TLE, verdict.MLE,
		verdict.RE, verdict.CE, verdict.OLE, verdict.IE, verdict.FN,
	}
	for i := 1; i < len(ordered); i++ {
		if verdict.Rank(ordered[i-1]) >= verdict.Rank(ordered[i]) {
			t.Fatalf("expected %s < %s in the total order", ordered[i-1], ordered[i])
		}
	}
}

func TestMax(t *testing.T) {
	tests := []struct {
		a, b, want verdict.Verdict
	}{
		{verdict.AC, verdict.AC, verdict.AC},
		{verdict.AC, verdict.WA, verdict.WA},
		{verdict.TLE, verdict.WA, verdict.TLE},
		{verdict.CE, verdict.IE, verdict.IE},
		{verdict.FN, verdict.IE, verdict.FN},
	}
	for _, tt := range tests {
		if got := verdict.Max(tt.a, tt.b); got != tt.want {
			t.Errorf("Max(%s, %s) = %s, want %s", tt.a, tt.b, got, tt.want)
		}
		if got := verdict.Max(tt.b, tt.a); got != tt.want {
			t.Errorf("Max(%s, %s) = %s, want %s", tt.b, tt.a, got, tt.want)
		}
	}
}

func TestAggregate(t *testing.T) {
	tests := []struct {
		name string
		in   []verdict.Verdict
		want verdict.Verdict
	}{
		{"empty", nil, verdict.AC},
		{"all accepted", []verdict.Verdict{verdict.AC, verdict.AC}, verdict.AC},
		{"single failure wins", []verdict.Verdict{verdict.AC, verdict.TLE, verdict.AC}, verdict.TLE},
		{"internal error dominates", []verdict.Verdict{verdict.WA, verdict.IE, verdict.CE}, verdict.IE},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := verdict.Aggregate(tt.in); got != tt.want {
				t.Fatalf("Aggregate(%v) = %s, want %s", tt.in, got, tt.want)
			}
		})
	}
}

func TestParse(t *testing.T) {
	if v, err := verdict.Parse("MLE"); err != nil || v != verdict.MLE {
		t.Fatalf("Parse(MLE) = %v, %v", v, err)
	}
	if _, err := verdict.Parse("nope"); err == nil {
		t.Fatal("expected error for unknown label")
	}
}

func TestUnknownRanksAboveEverything(t *testing.T) {
	if verdict.Rank(verdict.Verdict("weird")) <= verdict.Rank(verdict.FN) {
		t.Fatal("unknown verdict must rank above FN")
	}
}
