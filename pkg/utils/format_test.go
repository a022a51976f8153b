package utils

import (
	"testing"
	"time"
)

func TestFormatPrice(t *testing.T) {
	tests := []struct {
		price  float64
		places int32
		want   string
	}{
		{10, 2, "10.00"},
		{2.675, 2, "2.68"},
		{-3.14159, 3, "-3.142"},
		{1234.5, 0, "1235"},
	}
	for _, tt := range tests {
		if got := FormatPrice(tt.price, tt.places); got != tt.want {
			t.Errorf("FormatPrice(%v, %d) = %q, want %q", tt.price, tt.places, got, tt.want)
		}
	}
}

func TestFormatRange(t *testing.T) {
	if got := FormatRange(10, 12.5, 2); got != "10.00 - 12.50" {
		t.Errorf("FormatRange() = %q", got)
	}
}

func TestFormatCount(t *testing.T) {
	tests := map[int64]string{
		0:        "0",
		999:      "999",
		1000:     "1,000",
		123456:   "123,456",
		1234567:  "1,234,567",
		-1234567: "-1,234,567",
	}
	for n, want := range tests {
		if got := FormatCount(n); got != want {
			t.Errorf("FormatCount(%d) = %q, want %q", n, got, want)
		}
	}
}

func TestFormatPercent(t *testing.T) {
	if got := FormatPercent(1.5); got != "+1.50%" {
		t.Errorf("FormatPercent(1.5) = %q", got)
	}
	if got := FormatPercent(-0.25); got != "-0.25%" {
		t.Errorf("FormatPercent(-0.25) = %q", got)
	}
}

func TestFormatElapsed(t *testing.T) {
	if got := FormatElapsed(1500 * time.Millisecond); got != "1.5s" {
		t.Errorf("FormatElapsed() = %q", got)
	}
}

func TestTruncate(t *testing.T) {
	if got := Truncate("0f8fad5b-d9cb-469f-a165-70867728950e", 8); got != "0f8fa..." {
		t.Errorf("Truncate() = %q", got)
	}
	if got := Truncate("short", 8); got != "short" {
		t.Errorf("Truncate() = %q", got)
	}
}
