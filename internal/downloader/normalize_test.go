package downloader

import "testing"

func TestNormalizeName(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"My Photos", "myPhotos"},
		{"2024-03", "2024-03"},
		{"IMG_0001.JPG", "img_0001.jpg"},
		{"IMG 0001.JPG", "img0001.jpg"},
		{"  holiday   in\tROME.heic ", "holidayInRome.heic"},
		{"already", "already"},
		{"Élan vital", "élanVital"},
		{"", ""},
		{"   ", ""},
	}
	for _, tt := range tests {
		if got := NormalizeName(tt.in); got != tt.want {
			t.Errorf("NormalizeName(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestNormalizeName_Stable(t *testing.T) {
	for _, in := range []string{"2024-03", "myPhotos", "img_0001.jpg"} {
		once := NormalizeName(in)
		if twice := NormalizeName(once); twice != once {
			t.Fatalf("NormalizeName is not stable for %q: %q then %q", in, once, twice)
		}
	}
}

func Test_safeFileName(t *testing.T) {
	tests := []struct {
		in     string
		want   string
		wantOK bool
	}{
		{"IMG_0001.JPG", "img_0001.jpg", true},
		{"../../etc/passwd", ".._.._etc_passwd", true},
		{"a\\b.png", "a_b.png", true},
		{"..", "", false},
		{".", "", false},
		{"", "", false},
	}
	for _, tt := range tests {
		got, ok := safeFileName(tt.in)
		if got != tt.want || ok != tt.wantOK {
			t.Errorf("safeFileName(%q) = (%q, %v), want (%q, %v)", tt.in, got, ok, tt.want, tt.wantOK)
		}
	}
}
