package whatsapp

import (
	"log/slog"
	"testing"

	"github.com/ruktech/income-tracker/internal/log"
)

func TestNewClientValidation(t *testing.T) {
	logger := log.New(slog.LevelError, "test")

	tests := []struct {
		name        string
		sid         string
		token       string
		from        string
		templateSID string
		wantErr     bool
	}{
		{"all present", "AC123", "token", "+14155238886", "HX123", false},
		{"missing account sid", "", "token", "+14155238886", "HX123", true},
		{"missing auth token", "AC123", "", "+14155238886", "HX123", true},
		{"missing from number", "AC123", "token", "", "HX123", true},
		{"missing template", "AC123", "token", "+14155238886", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewClient(tt.sid, tt.token, tt.from, tt.templateSID, logger)
			if (err != nil) != tt.wantErr {
				t.Errorf("NewClient error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestWhatsappAddress(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"+962791234567", "whatsapp:+962791234567"},
		{"whatsapp:+962791234567", "whatsapp:+962791234567"},
		{"  +14155238886 ", "whatsapp:+14155238886"},
	}
	for _, tt := range tests {
		if got := whatsappAddress(tt.in); got != tt.want {
			t.Errorf("whatsappAddress(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
