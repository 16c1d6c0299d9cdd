package feeschedule

import "testing"

func TestDefaultTables(t *testing.T) {
	schedule, err := New("", "")
	if err != nil {
		t.Fatalf("schedule error: %v", err)
	}
	fee, ok := schedule.BaseFee("5")
	if !ok || fee != 1800 {
		t.Fatalf("expected standard 5 fee 1800, got %d ok=%v", fee, ok)
	}
	if _, ok := schedule.BaseFee("13"); ok {
		t.Fatalf("expected standard 13 to be unmapped")
	}
	if got := schedule.Surcharge("Pickup2"); got != 1000 {
		t.Fatalf("expected Pickup2 surcharge 1000, got %d", got)
	}
	if got := schedule.Surcharge("Nowhere"); got != 0 {
		t.Fatalf("expected unmapped pickup point surcharge 0, got %d", got)
	}
}

func TestJSONOverrides(t *testing.T) {
	schedule, err := New(`{"1": 999}`, `{"Gate": 50}`)
	if err != nil {
		t.Fatalf("schedule error: %v", err)
	}
	fee, ok := schedule.BaseFee("1")
	if !ok || fee != 999 {
		t.Fatalf("expected override fee 999, got %d", fee)
	}
	if _, ok := schedule.BaseFee("2"); ok {
		t.Fatalf("override should replace the whole table")
	}
	if got := schedule.Surcharge("Gate"); got != 50 {
		t.Fatalf("expected Gate surcharge 50, got %d", got)
	}
}

func TestInvalidJSON(t *testing.T) {
	if _, err := New(`{`, ""); err == nil {
		t.Fatalf("expected error for invalid base fee JSON")
	}
	if _, err := New("", `[]`); err == nil {
		t.Fatalf("expected error for invalid surcharge JSON")
	}
}
