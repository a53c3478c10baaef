package instrumentation

import "testing"

func TestExtractRecipientDomain(t *testing.T) {
	tests := []struct {
		address  string
		expected string
	}{
		{"jane@example.com", "example.com"},
		{"Bob@Example.ORG", "example.org"},
		{"test@subdomain.example.com", "subdomain.example.com"},
		{" padded@example.com ", "example.com"},
		{"invalid", "unknown"},
		{"", "unknown"},
		{"@", "unknown"},
		{"user@", "unknown"},
		{"a@b@c", "unknown"},
		{"@domain.com", "domain.com"},
	}

	for _, tt := range tests {
		t.Run(tt.address, func(t *testing.T) {
			result := ExtractRecipientDomain(tt.address)
			if result != tt.expected {
				t.Errorf("ExtractRecipientDomain(%q) = %q, want %q", tt.address, result, tt.expected)
			}
		})
	}
}
