package security

import (
	"strings"
	"testing"
)

func TestValidateImageURL_AllowsPublicHTTPS(t *testing.T) {
	g := NewImageGuard()

	urls := []string{
		"https://images.example.com/pets/123.jpg",
		"http://cdn.example.org/avatar.png",
		"https://93.184.216.34/photo.jpg",
	}
	for _, u := range urls {
		if err := g.ValidateImageURL(u); err != nil {
			t.Errorf("ValidateImageURL(%q) = %v, want nil", u, err)
		}
	}
}

func TestValidateImageURL_BlocksInternalTargets(t *testing.T) {
	g := NewImageGuard()

	urls := []string{
		"http://10.0.0.5/secret.png",
		"http://172.16.1.1/img.jpg",
		"http://192.168.1.10/img.jpg",
		"http://127.0.0.1/img.jpg",
		"http://169.254.169.254/latest/meta-data",
		"http://localhost/img.jpg",
		"http://[::1]/img.jpg",
	}
	for _, u := range urls {
		if err := g.ValidateImageURL(u); err == nil {
			t.Errorf("ValidateImageURL(%q) = nil, want error", u)
		}
	}
}

func TestValidateImageURL_BlocksDisallowedSchemes(t *testing.T) {
	g := NewImageGuard()

	urls := []string{
		"file:///etc/passwd",
		"ftp://example.com/img.jpg",
		"javascript:alert(1)",
		"data:image/png;base64,AAAA",
	}
	for _, u := range urls {
		if err := g.ValidateImageURL(u); err == nil {
			t.Errorf("ValidateImageURL(%q) = nil, want error", u)
		}
	}
}

func TestValidateImageURL_RejectsEmptyAndMalformed(t *testing.T) {
	g := NewImageGuard()

	if err := g.ValidateImageURL(""); err == nil {
		t.Error("empty URL should be rejected")
	}
	if err := g.ValidateImageURL("https://"); err == nil {
		t.Error("URL without host should be rejected")
	}
}

func TestNewSafeClient_ReturnsClient(t *testing.T) {
	g := NewImageGuard()

	client := g.NewSafeClient(0)
	if client == nil {
		t.Fatal("expected non-nil client")
	}
}

func TestValidateImageURL_CaseInsensitiveScheme(t *testing.T) {
	g := NewImageGuard()

	if err := g.ValidateImageURL("HTTPS://images.example.com/a.jpg"); err != nil {
		t.Errorf("uppercase scheme rejected: %v", err)
	}
	if err := g.ValidateImageURL(strings.ToUpper("javascript:alert(1)")); err == nil {
		t.Error("uppercase javascript scheme should be rejected")
	}
}
