package models

import (
	"testing"
	"time"
)

func TestDigestID(t *testing.T) {
	at := time.UnixMilli(1735689600123)
	tests := []struct {
		name    string
		company string
		want    string
	}{
		{"single word", "Acme", "Acme-1735689600123"},
		{"spaces collapsed", "Acme   Corp", "Acme-Corp-1735689600123"},
		{"surrounding whitespace", "  Acme Corp \t", "Acme-Corp-1735689600123"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DigestID(tt.company, at); got != tt.want {
				t.Errorf("DigestID() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestDigest_Timestamp(t *testing.T) {
	tests := []struct {
		id   string
		want int64
	}{
		{"Acme-Corp-1735689600123", 1735689600123},
		{"Acme-notanumber", 0},
		{"nodash", 0},
		{"", 0},
	}
	for _, tt := range tests {
		d := &Digest{ID: tt.id}
		if got := d.Timestamp(); got != tt.want {
			t.Errorf("Timestamp(%q) = %d, want %d", tt.id, got, tt.want)
		}
	}
}

func TestFileSlug(t *testing.T) {
	if got := FileSlug("Acme  Big Corp", "_"); got != "Acme_Big_Corp" {
		t.Errorf("got %q", got)
	}
	if got := FileSlug("Acme Corp", "-"); got != "Acme-Corp" {
		t.Errorf("got %q", got)
	}
}
