package sequence

import "testing"

func TestNew_Invalid(t *testing.T) {
	tests := []struct {
		name   string
		length int
		start  int
	}{
		{"zero length", 0, 0},
		{"negative length", -3, 0},
		{"negative start", 4, -1},
		{"start at length", 4, 4},
		{"start beyond length", 4, 9},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := New(tt.length, tt.start); err == nil {
				t.Errorf("New(%d, %d) expected error", tt.length, tt.start)
			}
		})
	}
}

func TestNext_FullTraversalCompletesOneCycle(t *testing.T) {
	for length := 1; length <= 9; length++ {
		for start := 0; start < length; start++ {
			s, err := New(length, start)
			if err != nil {
				t.Fatalf("New(%d, %d) error = %v", length, start, err)
			}
			for i := 0; i < length; i++ {
				if s.Cycle() != 0 {
					t.Fatalf("L=%d s=%d: cycle = %d after %d steps, want 0", length, start, s.Cycle(), i)
				}
				s.Next()
			}
			if s.Cycle() != 1 {
				t.Errorf("L=%d s=%d: cycle = %d, want 1", length, start, s.Cycle())
			}
			if s.Index() != start {
				t.Errorf("L=%d s=%d: index = %d, want %d", length, start, s.Index(), start)
			}
		}
	}
}

func TestNext_Wraps(t *testing.T) {
	s, _ := New(4, 2)
	want := []int{3, 0, 1, 2, 3}
	for i, w := range want {
		if got := s.Next(); got != w {
			t.Errorf("step %d: Next() = %d, want %d", i, got, w)
		}
	}
	if s.Cycle() != 1 {
		t.Errorf("cycle = %d, want 1", s.Cycle())
	}
}

func TestPrev_Wraps(t *testing.T) {
	s, _ := New(4, 1)
	want := []int{0, 3, 2, 1, 0}
	for i, w := range want {
		if got := s.Prev(); got != w {
			t.Errorf("step %d: Prev() = %d, want %d", i, got, w)
		}
	}
	if s.Cycle() != 1 {
		t.Errorf("cycle = %d, want 1", s.Cycle())
	}
}

func TestReset(t *testing.T) {
	s, _ := New(5, 3)
	for i := 0; i < 12; i++ {
		s.Next()
	}
	if s.Cycle() != 2 {
		t.Fatalf("cycle = %d, want 2", s.Cycle())
	}

	s.Reset()

	if s.Index() != 3 || s.Cycle() != 0 {
		t.Errorf("after Reset index=%d cycle=%d, want 3 and 0", s.Index(), s.Cycle())
	}
	if s.Start() != 3 || s.Len() != 5 {
		t.Errorf("Start()=%d Len()=%d, want 3 and 5", s.Start(), s.Len())
	}
}
