package health

import (
	"context"
	"errors"
	"testing"
)

// --- Mocks ---

type mockDBPinger struct {
	err error
}

func (m *mockDBPinger) Ping(_ context.Context) error { return m.err }

type mockIndexChecker struct {
	exists map[string]bool
	err    error
}

func (m *mockIndexChecker) IndexExists(_ context.Context, name string) (bool, error) {
	if m.err != nil {
		return false, m.err
	}
	return m.exists[name], nil
}

// --- Tests ---

func TestCheck_AllHealthy(t *testing.T) {
	idx := &mockIndexChecker{exists: map[string]bool{"letters:idx": true}}
	svc := New(&mockDBPinger{}, idx, "letters:idx")
	r := svc.Check(context.Background())

	if r.Status != Healthy {
		t.Errorf("expected %q, got %q", Healthy, r.Status)
	}
	if r.Checks["database"] != CheckOK {
		t.Errorf("expected database %q, got %q", CheckOK, r.Checks["database"])
	}
	if r.Checks["index:letters:idx"] != CheckOK {
		t.Errorf("expected index %q, got %q", CheckOK, r.Checks["index:letters:idx"])
	}
}

func TestCheck_DBError(t *testing.T) {
	idx := &mockIndexChecker{exists: map[string]bool{"letters:idx": true}}
	svc := New(&mockDBPinger{err: errors.New("conn refused")}, idx, "letters:idx")
	r := svc.Check(context.Background())

	if r.Status != Unhealthy {
		t.Errorf("expected %q, got %q", Unhealthy, r.Status)
	}
	if r.Checks["database"] != CheckError {
		t.Errorf("expected database %q, got %q", CheckError, r.Checks["database"])
	}
	if _, ok := r.Checks["index:letters:idx"]; ok {
		t.Error("index checks should be skipped when the database is down")
	}
}

func TestCheck_IndexMissing(t *testing.T) {
	idx := &mockIndexChecker{exists: map[string]bool{"letters:idx": true}}
	svc := New(&mockDBPinger{}, idx, "letters:idx", "diaries:idx")
	r := svc.Check(context.Background())

	if r.Status != Degraded {
		t.Errorf("expected %q, got %q", Degraded, r.Status)
	}
	if r.Checks["index:diaries:idx"] != CheckMissing {
		t.Errorf("expected %q, got %q", CheckMissing, r.Checks["index:diaries:idx"])
	}
	if r.Checks["index:letters:idx"] != CheckOK {
		t.Errorf("expected %q, got %q", CheckOK, r.Checks["index:letters:idx"])
	}
}

func TestCheck_IndexError(t *testing.T) {
	svc := New(&mockDBPinger{}, &mockIndexChecker{err: errors.New("timeout")}, "letters:idx")
	r := svc.Check(context.Background())

	if r.Status != Degraded {
		t.Errorf("expected %q, got %q", Degraded, r.Status)
	}
	if r.Checks["index:letters:idx"] != CheckError {
		t.Errorf("expected %q, got %q", CheckError, r.Checks["index:letters:idx"])
	}
}

func TestCheck_NoIndexChecker(t *testing.T) {
	svc := New(&mockDBPinger{}, nil, "letters:idx")
	r := svc.Check(context.Background())

	if r.Status != Healthy {
		t.Errorf("expected %q, got %q", Healthy, r.Status)
	}
	if len(r.Checks) != 1 {
		t.Errorf("expected only the database check, got %v", r.Checks)
	}
}
