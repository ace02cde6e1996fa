package youtube

import (
	"strings"
	"testing"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name   string
		raw    string
		want   string
		wantOK bool
	}{
		{
			name:   "short link",
			raw:    "https://youtu.be/abc12345678",
			want:   "https://www.youtube.com/watch?v=abc12345678",
			wantOK: true,
		},
		{
			name:   "watch URL",
			raw:    "https://www.youtube.com/watch?v=abc12345678",
			want:   "https://www.youtube.com/watch?v=abc12345678",
			wantOK: true,
		},
		{
			name:   "mobile host",
			raw:    "https://m.youtube.com/watch?v=abc12345678&t=120",
			want:   "https://www.youtube.com/watch?v=abc12345678",
			wantOK: true,
		},
		{
			name:   "shorts",
			raw:    "https://www.youtube.com/shorts/abc12345678",
			want:   "https://www.youtube.com/watch?v=abc12345678",
			wantOK: true,
		},
		{
			name:   "embed",
			raw:    "https://www.youtube.com/embed/abc12345678",
			want:   "https://www.youtube.com/watch?v=abc12345678",
			wantOK: true,
		},
		{
			name:   "not a url",
			raw:    "not-a-url",
			wantOK: false,
		},
		{
			name:   "wrong host",
			raw:    "https://example.com/watch?v=abc12345678",
			wantOK: false,
		},
		{
			name:   "id too short",
			raw:    "https://youtu.be/abc",
			wantOK: false,
		},
		{
			name:   "empty",
			raw:    "",
			wantOK: false,
		},
		{
			name:   "missing scheme",
			raw:    "www.youtube.com/watch?v=abc12345678",
			wantOK: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Normalize(tt.raw)
			if ok != tt.wantOK {
				t.Fatalf("Normalize(%q) ok = %v, want %v", tt.raw, ok, tt.wantOK)
			}
			if ok && got != tt.want {
				t.Errorf("Normalize(%q) = %q, want %q", tt.raw, got, tt.want)
			}
		})
	}
}

func TestIsPlaylist(t *testing.T) {
	tests := []struct {
		raw  string
		want bool
	}{
		{"https://www.youtube.com/watch?v=abc12345678&list=PLx", true},
		{"https://www.youtube.com/playlist?list=PLx", true},
		{"https://www.youtube.com/watch?v=abc12345678", false},
		{"https://example.com/watch?list=PLx", false},
		{"not-a-url", false},
	}
	for _, tt := range tests {
		if got := IsPlaylist(tt.raw); got != tt.want {
			t.Errorf("IsPlaylist(%q) = %v, want %v", tt.raw, got, tt.want)
		}
	}
}

func TestPlaylistID(t *testing.T) {
	tests := []struct {
		raw    string
		want   string
		wantOK bool
	}{
		{"https://www.youtube.com/playlist?list=PLabc123", "PLabc123", true},
		{"https://www.youtube.com/watch?v=abc12345678&list=PLabc123", "PLabc123", true},
		{"PLabc123", "PLabc123", true},
		{"https://www.youtube.com/watch?v=abc12345678", "", false},
		{"", "", false},
	}
	for _, tt := range tests {
		got, ok := PlaylistID(tt.raw)
		if ok != tt.wantOK || got != tt.want {
			t.Errorf("PlaylistID(%q) = %q, %v, want %q, %v", tt.raw, got, ok, tt.want, tt.wantOK)
		}
	}
}

func TestSanitizeFilename(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"clean name", "song.mp3", "song.mp3"},
		{"hostile characters", `a<b>c:d"e|f?g*h.mp4`, "a_b_c_d_e_f_g_h.mp4"},
		{"spaces preserved", "My Song (Official).mp3", "My Song (Official).mp3"},
		{"empty becomes placeholder", "", "file"},
		{"only hostile characters", `\\//::`, "_"},
		{"surrounding dots trimmed", "..hidden.mp3.", "hidden.mp3"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := SanitizeFilename(tt.in); got != tt.want {
				t.Errorf("SanitizeFilename(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestSanitizeFilenameNeverKeepsSeparators(t *testing.T) {
	got := SanitizeFilename("../../etc/passwd")
	if strings.ContainsAny(got, `/\`) {
		t.Errorf("sanitized name %q still contains a path separator", got)
	}
	if strings.HasPrefix(got, ".") {
		t.Errorf("sanitized name %q starts with a dot", got)
	}
}
