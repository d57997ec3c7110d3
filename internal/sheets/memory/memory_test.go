package memory

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/shopspring/decimal"

	"goalplanner/internal/core"
)

var today = core.NewDate(2026, 10, 14)

func sample() []core.Goal {
	return []core.Goal{{
		ID: "g1", Name: "Emergency fund", Category: "Safety",
		TargetAmount: decimal.NewFromInt(2000), SavedAmount: decimal.NewFromInt(500),
		Deadline: today.AddDays(90),
	}}
}

func TestRecorder(t *testing.T) {
	r := NewRecorder()
	if r.Last() != nil {
		t.Fatal("expected no export yet")
	}
	res, err := r.Export(context.Background(), sample(), today)
	if err != nil {
		t.Fatalf("Export: %v", err)
	}
	if res.Rows != 3 || res.Range != "mem:1" {
		t.Errorf("result = %+v", res)
	}
	if r.Count() != 1 {
		t.Errorf("count = %d", r.Count())
	}
	if got := r.Last()[1][1]; got != "Emergency fund" {
		t.Errorf("goal row name = %v", got)
	}
}

func TestTable(t *testing.T) {
	var buf bytes.Buffer
	res, err := NewTable(&buf).Export(context.Background(), sample(), today)
	if err != nil {
		t.Fatalf("Export: %v", err)
	}
	if res.Rows != 3 {
		t.Errorf("rows = %d", res.Rows)
	}
	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	if len(lines) != 3 {
		t.Fatalf("lines = %q", lines)
	}
	if !strings.HasPrefix(lines[0], "ID") || !strings.Contains(lines[1], "Emergency fund") {
		t.Errorf("unexpected table:\n%s", buf.String())
	}
	if !strings.HasPrefix(lines[2], "TOTAL") || !strings.Contains(lines[2], "2000.00") {
		t.Errorf("total line = %q", lines[2])
	}
}
