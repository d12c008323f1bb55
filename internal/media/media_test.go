package media

import "testing"

func TestTypeForPath(t *testing.T) {
	tests := []struct {
		path string
		want Type
		ok   bool
	}{
		{"/card/DCIM/IMG_0001.JPG", Image, true},
		{"a.jpeg", Image, true},
		{"a.Tif", Image, true},
		{"a.bmp", Image, true},
		{"clip.MTS", Video, true},
		{"clip.m4v", Video, true},
		{"clip.mkv", Video, true},
		{"notes.txt", "", false},
		{"noext", "", false},
		{"archive.jpg.zip", "", false},
	}
	for _, tt := range tests {
		got, ok := TypeForPath(tt.path)
		if got != tt.want || ok != tt.ok {
			t.Fatalf("TypeForPath(%q) = %q,%v want %q,%v", tt.path, got, ok, tt.want, tt.ok)
		}
	}
}
