package service

import (
	"errors"
	"testing"
)

type fakeCodeChecker struct {
	taken map[string]int64
	err   error
	calls []string
}

func (f *fakeCodeChecker) CountPendingByCode(code string) (int64, error) {
	f.calls = append(f.calls, code)
	if f.err != nil {
		return 0, f.err
	}
	return f.taken[code], nil
}

func TestCodeGeneratorGenerate(t *testing.T) {
	gen := NewCodeGenerator(4)
	for i := 0; i < 200; i++ {
		code := gen.Generate()
		if len(code) != 4 {
			t.Fatalf("code length want 4 got %q", code)
		}
		for _, r := range code {
			if r < '0' || r > '9' {
				t.Fatalf("code must be numeric, got %q", code)
			}
		}
	}
}

func TestCodeGeneratorDefaultLength(t *testing.T) {
	gen := NewCodeGenerator(0)
	if got := gen.Generate(); len(got) != 4 {
		t.Fatalf("default code length want 4 got %q", got)
	}
}

func TestAssignUniqueSkipsTakenCodes(t *testing.T) {
	gen := NewCodeGenerator(4)
	checker := &fakeCodeChecker{taken: map[string]int64{}}

	code, err := gen.AssignUnique(checker, RetryPolicy{MaxAttempts: 5})
	if err != nil {
		t.Fatalf("assign unique failed: %v", err)
	}
	if len(code) != 4 {
		t.Fatalf("assigned code length want 4 got %q", code)
	}
	if len(checker.calls) == 0 || checker.calls[len(checker.calls)-1] != code {
		t.Fatalf("returned code must be the last checked one")
	}
}

func TestAssignUniqueExhausted(t *testing.T) {
	gen := NewCodeGenerator(1)
	// 占满整个 1 位数字空间，任何生成结果都冲突
	taken := map[string]int64{}
	for i := 0; i < 10; i++ {
		taken[string(rune('0'+i))] = 1
	}
	checker := &fakeCodeChecker{taken: taken}

	_, err := gen.AssignUnique(checker, RetryPolicy{MaxAttempts: 3})
	if !errors.Is(err, ErrCodeExhausted) {
		t.Fatalf("want ErrCodeExhausted got %v", err)
	}
	if len(checker.calls) != 3 {
		t.Fatalf("attempts want 3 got %d", len(checker.calls))
	}
}

func TestAssignUniquePropagatesCheckerError(t *testing.T) {
	gen := NewCodeGenerator(4)
	wantErr := errors.New("db down")
	checker := &fakeCodeChecker{err: wantErr}

	_, err := gen.AssignUnique(checker, RetryPolicy{MaxAttempts: 5})
	if !errors.Is(err, wantErr) {
		t.Fatalf("want checker error got %v", err)
	}
	if len(checker.calls) != 1 {
		t.Fatalf("checker error must stop retries, calls %d", len(checker.calls))
	}
}
