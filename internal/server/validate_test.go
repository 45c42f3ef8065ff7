package server

import "testing"

func TestSanitizeName(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain", "Distracted Boyfriend", "Distracted Boyfriend"},
		{"trims", "  Drake  ", "Drake"},
		{"collapses whitespace", "two\t\n  words", "two words"},
		{"strips control chars", "bad\x00name\x1b", "badname"},
		{"empty", "", ""},
		{"only whitespace", " \t\n ", ""},
		{"unicode kept", "Gato Gordo 🐈", "Gato Gordo 🐈"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := sanitizeName(tt.in); got != tt.want {
				t.Errorf("sanitizeName(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestSanitizeNameBoundsLength(t *testing.T) {
	long := make([]rune, 0, 300)
	for i := 0; i < 300; i++ {
		long = append(long, 'é')
	}
	got := sanitizeName(string(long))
	if n := len([]rune(got)); n != maxNameLen {
		t.Errorf("sanitized length = %d runes, want %d", n, maxNameLen)
	}
}

func TestIntParam(t *testing.T) {
	tests := []struct {
		raw  string
		def  int
		want int
	}{
		{"", 20, 20},
		{"5", 20, 5},
		{"0", 20, 0},
		{"-3", 20, -3},
		{"abc", 20, 20},
		{"9.5", 20, 20},
	}
	for _, tt := range tests {
		if got := intParam(tt.raw, tt.def); got != tt.want {
			t.Errorf("intParam(%q, %d) = %d, want %d", tt.raw, tt.def, got, tt.want)
		}
	}
}

func TestValidLayout(t *testing.T) {
	if !validLayout([]byte(`{"boxes":[{"text":"top"}]}`)) {
		t.Error("valid JSON rejected")
	}
	if validLayout(nil) {
		t.Error("empty layout accepted")
	}
	if validLayout([]byte(`{"boxes":`)) {
		t.Error("truncated JSON accepted")
	}
	big := make([]byte, maxLayoutLen+2)
	big[0] = '"'
	for i := 1; i < len(big)-1; i++ {
		big[i] = 'a'
	}
	big[len(big)-1] = '"'
	if validLayout(big) {
		t.Error("oversized layout accepted")
	}
}
