package points

import (
	"testing"
	"time"
)

func TestFileLedger_AwardAndBalance(t *testing.T) {
	dir := t.TempDir()
	l, err := NewFileLedger(dir)
	if err != nil {
		t.Fatalf("new ledger: %v", err)
	}

	txID, err := l.Award("person.alice", 5, ReasonTaskCompletion, map[string]string{"uid": "t-1"})
	if err != nil {
		t.Fatalf("award: %v", err)
	}
	if txID == "" {
		t.Fatalf("expected transaction id")
	}
	if _, err := l.Award("person.alice", 10, ReasonStreakBonus, nil); err != nil {
		t.Fatalf("award bonus: %v", err)
	}

	ps := l.Balance("person.alice")
	if ps.Balance != 15 || ps.Lifetime != 15 {
		t.Fatalf("unexpected state: %+v", ps)
	}

	// Negative award reduces balance but not lifetime.
	if _, err := l.Award("person.alice", -5, ReasonTaskUncomplete, nil); err != nil {
		t.Fatalf("award negative: %v", err)
	}
	ps = l.Balance("person.alice")
	if ps.Balance != 10 || ps.Lifetime != 15 {
		t.Fatalf("unexpected state after deduction: %+v", ps)
	}

	// State survives a reload.
	l2, err := NewFileLedger(dir)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if got := l2.Balance("person.alice"); got.Balance != 10 || got.Lifetime != 15 {
		t.Fatalf("state lost on reload: %+v", got)
	}
	txs := l2.Transactions("person.alice", time.Time{})
	if len(txs) != 3 {
		t.Fatalf("expected 3 transactions, got %d", len(txs))
	}
}

func TestFileLedger_ZeroAndBlankAreNoops(t *testing.T) {
	l, err := NewFileLedger(t.TempDir())
	if err != nil {
		t.Fatalf("new ledger: %v", err)
	}
	if id, err := l.Award("person.alice", 0, ReasonTaskCompletion, nil); err != nil || id != "" {
		t.Fatalf("zero amount must be a no-op, got id=%q err=%v", id, err)
	}
	if id, err := l.Award("  ", 5, ReasonTaskCompletion, nil); err != nil || id != "" {
		t.Fatalf("blank person must be a no-op, got id=%q err=%v", id, err)
	}
	if len(l.Transactions("", time.Time{})) != 0 {
		t.Fatalf("no transactions expected")
	}
}
