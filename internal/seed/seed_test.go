package seed

import (
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
)

func newValidator(t *testing.T) *Validator {
	t.Helper()
	v, err := NewValidator("https://www.wta.org")
	if err != nil {
		t.Fatalf("NewValidator() error = %v", err)
	}
	return v
}

// =============================================================================
// Validator Tests
// =============================================================================

func TestValidator_Check(t *testing.T) {
	v := newValidator(t)

	tests := []struct {
		name    string
		raw     string
		want    string
		wantErr bool
	}{
		{"trail page", "https://www.wta.org/go-hiking/hikes/mount-si", "https://www.wta.org/go-hiking/hikes/mount-si", false},
		{"bare domain", "http://wta.org/go-hiking/hikes/x", "http://wta.org/go-hiking/hikes/x", false},
		{"whitespace and fragment", "  https://www.wta.org/go-hiking/hikes/x#reports ", "https://www.wta.org/go-hiking/hikes/x", false},
		{"uppercase host", "https://WWW.WTA.ORG/a", "https://WWW.WTA.ORG/a", false},
		{"off site", "https://www.alltrails.com/trail/us/washington/mount-si", "", true},
		{"lookalike", "https://wta.org.evil.com/x", "", true},
		{"relative", "/go-hiking/hikes/x", "", true},
		{"ftp", "ftp://www.wta.org/x", "", true},
		{"garbage", "://", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := v.Check(tt.raw)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Check(%q) error = %v, wantErr %v", tt.raw, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("Check(%q) = %q, want %q", tt.raw, got, tt.want)
			}
		})
	}
}

func TestNewValidator_Domain(t *testing.T) {
	if d := newValidator(t).Domain(); d != "wta.org" {
		t.Errorf("Domain() = %q, want wta.org", d)
	}
	if _, err := NewValidator("https://localhost"); err == nil {
		t.Error("NewValidator() should reject a host without a public suffix")
	}
}

// =============================================================================
// Set Tests
// =============================================================================

func TestFromURL(t *testing.T) {
	v := newValidator(t)

	set, err := FromURL(v, "https://www.wta.org/go-hiking/hikes/mount-si")
	if err != nil {
		t.Fatalf("FromURL() error = %v", err)
	}
	if set.Len() != 1 {
		t.Errorf("Len() = %d, want 1", set.Len())
	}

	if _, err := FromURL(v, "https://example.com/"); err == nil {
		t.Error("FromURL() should reject an off-site url")
	}
}

func TestFromReader(t *testing.T) {
	csv := "\ufefftrail_name,wta_url,source\n" +
		"Mount Si,https://www.wta.org/go-hiking/hikes/mount-si,wta\n" +
		"Blank,,wta\n" +
		"Off,https://example.com/x,wta\n" +
		"Short\n" +
		"Mount Si again,https://www.wta.org/go-hiking/hikes/mount-si,wta\n" +
		"Ledge,\"https://www.wta.org/go-hiking/hikes/rattlesnake-ledge\",wta\n"

	set, err := FromReader(newValidator(t), strings.NewReader(csv), "")
	if err != nil {
		t.Fatalf("FromReader() error = %v", err)
	}

	want := []string{
		"https://www.wta.org/go-hiking/hikes/mount-si",
		"https://www.wta.org/go-hiking/hikes/rattlesnake-ledge",
	}
	if !reflect.DeepEqual(set.URLs, want) {
		t.Errorf("URLs = %v, want %v", set.URLs, want)
	}
	if len(set.Rejected) != 1 || !strings.Contains(set.Rejected[0].Error(), "line 4") {
		t.Errorf("Rejected = %v, want one error for line 4", set.Rejected)
	}
}

func TestFromReader_Errors(t *testing.T) {
	v := newValidator(t)

	tests := []struct {
		name string
		csv  string
	}{
		{"empty", ""},
		{"missing column", "trail_url\nhttps://www.wta.org/x\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := FromReader(v, strings.NewReader(tt.csv), DefaultColumn); err == nil {
				t.Error("FromReader() should fail")
			}
		})
	}
}

func TestFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "wta_hikes_20260301.csv")
	content := "\"wta_url\"\n\"https://www.wta.org/go-hiking/hikes/lake-serene\"\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	set, err := FromFile(newValidator(t), path, "wta_url")
	if err != nil {
		t.Fatalf("FromFile() error = %v", err)
	}
	if set.Len() != 1 || set.URLs[0] != "https://www.wta.org/go-hiking/hikes/lake-serene" {
		t.Errorf("URLs = %v", set.URLs)
	}

	if _, err := FromFile(newValidator(t), filepath.Join(t.TempDir(), "none.csv"), ""); err == nil {
		t.Error("FromFile() should fail for a missing file")
	}
}
