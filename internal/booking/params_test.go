package booking

import "testing"

func TestNormalizeDate(t *testing.T) {
	tests := []struct {
		raw     string
		want    string
		wantErr bool
	}{
		{"2026-03-14", "2026-03-14", false},
		{"20260314", "2026-03-14", false},
		{"2026.03.14", "2026-03-14", false},
		{" 2026-03-14 ", "2026-03-14", false},
		{"14/03/2026", "", true},
		{"", "", true},
	}
	for _, tt := range tests {
		got, err := NormalizeDate(tt.raw)
		if tt.wantErr {
			if err == nil {
				t.Errorf("NormalizeDate(%q): expected error", tt.raw)
			}
			continue
		}
		if err != nil {
			t.Errorf("NormalizeDate(%q): %v", tt.raw, err)
			continue
		}
		if got != tt.want {
			t.Errorf("NormalizeDate(%q) = %q, want %q", tt.raw, got, tt.want)
		}
	}
}

func TestNormalizeTime(t *testing.T) {
	tests := []struct {
		raw     string
		wantHH  string
		wantMM  string
		wantErr bool
	}{
		{"19:30", "19", "30", false},
		{"7:30 PM", "19", "30", false},
		{"19시 30분", "19", "30", false},
		{"09:05", "09", "05", false},
		{"half past seven", "", "", true},
	}
	for _, tt := range tests {
		hh, mm, err := NormalizeTime(tt.raw)
		if tt.wantErr {
			if err == nil {
				t.Errorf("NormalizeTime(%q): expected error", tt.raw)
			}
			continue
		}
		if err != nil {
			t.Errorf("NormalizeTime(%q): %v", tt.raw, err)
			continue
		}
		if hh != tt.wantHH || mm != tt.wantMM {
			t.Errorf("NormalizeTime(%q) = %s:%s, want %s:%s", tt.raw, hh, mm, tt.wantHH, tt.wantMM)
		}
	}
}
