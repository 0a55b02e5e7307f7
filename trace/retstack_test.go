package trace

import "testing"

func TestReturnStackPushPop(t *testing.T) {
	s, err := NewReturnStack(0) // depth = 2^(0+2) = 4
	if err != nil {
		t.Fatalf("NewReturnStack() error = %v", err)
	}
	if s.Len() != 0 {
		t.Fatalf("new stack Len() = %d, want 0", s.Len())
	}

	s.Push(0x100)
	s.Push(0x200)
	s.Push(0x300)

	if got := s.Pop(); got != 0x300 {
		t.Errorf("Pop() = %#x, want 0x300", got)
	}
	if got := s.Pop(); got != 0x200 {
		t.Errorf("Pop() = %#x, want 0x200", got)
	}
	if s.Len() != 1 {
		t.Errorf("Len() = %d, want 1", s.Len())
	}
}

func TestReturnStackEvictsOldestOnOverflow(t *testing.T) {
	s, err := NewReturnStack(0) // depth = 4
	if err != nil {
		t.Fatalf("NewReturnStack() error = %v", err)
	}

	for _, addr := range []uint64{1, 2, 3, 4, 5} {
		s.Push(addr)
	}
	if s.Len() != 4 {
		t.Fatalf("Len() = %d, want 4", s.Len())
	}

	// The oldest entry (1) should have been evicted; popping drains 5,4,3,2.
	want := []uint64{5, 4, 3, 2}
	for _, w := range want {
		if got := s.Pop(); got != w {
			t.Errorf("Pop() = %#x, want %#x", got, w)
		}
	}
}

func TestReturnStackReset(t *testing.T) {
	s, _ := NewReturnStack(0)
	s.Push(1)
	s.Push(2)
	s.Reset()
	if s.Len() != 0 {
		t.Errorf("Len() after Reset() = %d, want 0", s.Len())
	}
}

func TestNewReturnStackRejectsExcessiveWidth(t *testing.T) {
	// MaxCallDepth = 1<<16, so a width producing depth > that must fail.
	if _, err := NewReturnStack(15); err == nil {
		t.Error("NewReturnStack(15) should have exceeded MaxCallDepth")
	}
}
