package indicator

import (
	"testing"
)

func TestParseSpecs(t *testing.T) {
	specs := ParseSpecs("sma:10, RSI:14,bad,BB:20:2.5,MOM:0")
	if len(specs) != 3 {
		t.Fatalf("expected 3 specs, got %d: %+v", len(specs), specs)
	}
	if specs[0] != (Spec{Type: "SMA", Period: 10}) {
		t.Errorf("spec[0] = %+v", specs[0])
	}
	if specs[2].K != 2.5 {
		t.Errorf("spec[2].K = %v, want 2.5", specs[2].K)
	}
	if specs[1].Name() != "RSI_14" {
		t.Errorf("spec[1].Name() = %s", specs[1].Name())
	}
}

func TestNewEngine_RejectsUnknown(t *testing.T) {
	if _, err := NewEngine([]Spec{{Type: "EMA", Period: 9}}); err == nil {
		t.Error("expected error for unknown type")
	}
	if _, err := NewEngine([]Spec{{Type: "SMA", Period: 0}}); err == nil {
		t.Error("expected error for zero period")
	}
}

func TestEngine_Process(t *testing.T) {
	e, err := NewEngine([]Spec{
		{Type: "SMA", Period: 3},
		{Type: "BB", Period: 8},
		{Type: "RSI", Period: 20},
	})
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}

	results := e.Process([]float64{2, 4, 4, 4, 5, 5, 7, 9})
	if len(results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(results))
	}

	assertClose(t, results[0].Name, results[0].Value, 7, 1e-9)
	if results[1].Bands == nil {
		t.Fatal("BB result missing bands")
	}
	assertClose(t, "BB upper (default k=2)", results[1].Bands.Upper, 9, 1e-9)
	assertUndefined(t, results[2].Name, results[2].Value)
}
