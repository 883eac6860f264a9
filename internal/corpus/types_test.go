package corpus

import "testing"

func TestValidDate(t *testing.T) {
	tests := []struct {
		in   string
		want bool
	}{
		{"2020-01", true},
		{"2021-12", true},
		{"2020-13", false},
		{"2020-00", false},
		{"2020-1", false},
		{"20-01", false},
		{"2020-01-05", false},
		{"../2020-01", false},
		{"", false},
	}
	for _, tt := range tests {
		if got := ValidDate(tt.in); got != tt.want {
			t.Errorf("ValidDate(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestStatsDerivedCounts(t *testing.T) {
	s := Stats{Raw: 10, Normalized: 7, WithBigram: 7, InModel: 4}
	if s.Unnormalized() != 3 {
		t.Errorf("Unnormalized = %d, want 3", s.Unnormalized())
	}
	if s.Pending() != 3 {
		t.Errorf("Pending = %d, want 3", s.Pending())
	}
}

func TestBoWLenAndIDs(t *testing.T) {
	bow := BoW{{ID: 0, Count: 2}, {ID: 3, Count: 1}}
	if bow.Len() != 3 {
		t.Errorf("Len = %d, want 3", bow.Len())
	}
	ids := IDs([]Document{{ID: 7}, {ID: 3}})
	if len(ids) != 2 || ids[0] != 7 || ids[1] != 3 {
		t.Errorf("IDs = %v, want [7 3]", ids)
	}
}
