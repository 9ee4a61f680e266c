package utils

import "testing"

func TestFormatPieceSize(t *testing.T) {
	tests := []struct {
		exp  uint
		want string
	}{
		{15, "32 KiB"},
		{16, "64 KiB"},
		{19, "512 KiB"},
		{20, "1 MiB"},
		{24, "16 MiB"},
		{28, "256 MiB"},
	}
	for _, tt := range tests {
		if got := FormatPieceSize(tt.exp); got != tt.want {
			t.Errorf("FormatPieceSize(%d) = %q, want %q", tt.exp, got, tt.want)
		}
	}
}

func TestSanitizeFilename(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"simple", "simple"},
		{"with space", "with_space"},
		{"a/b\\c:d", "a_b_c_d"},
		{"q?m*s\"e<g>t|p", "q_m_s_e_g_t_p"},
	}
	for _, tt := range tests {
		if got := SanitizeFilename(tt.input); got != tt.want {
			t.Errorf("SanitizeFilename(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestGetDomainPrefix(t *testing.T) {
	tests := []struct {
		name       string
		trackerURL string
		want       string
	}{
		{"empty", "", "modified"},
		{"simple domain", "https://example.com/announce", "example"},
		{"subdomain", "https://tracker.example.com/announce", "example"},
		{"deep subdomain", "https://a.b.example.org/announce", "example"},
		{"with port", "https://tracker.example.com:2710/announce", "example"},
		{"no scheme", "tracker.example.com/announce", "example"},
		{"www stripped", "https://www.example.com/announce", "example"},
		{"bare host", "localhost", "localhost"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := GetDomainPrefix(tt.trackerURL); got != tt.want {
				t.Errorf("GetDomainPrefix(%q) = %q, want %q", tt.trackerURL, got, tt.want)
			}
		})
	}
}
