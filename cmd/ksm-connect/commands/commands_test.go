package commands

import (
	"testing"
	"time"

	"github.com/keeper-security/ksm-connect/internal/config"
	"github.com/keeper-security/ksm-connect/internal/storage"
	"github.com/keeper-security/ksm-connect/pkg/types"
)

func TestResolveProtocol(t *testing.T) {
	cfg := config.DefaultConfig()

	tests := []struct {
		name      string
		flagValue string
		cfgValue  string
		want      types.Protocol
		wantErr   bool
	}{
		{"flag overrides config", "ssh", "rdp", types.ProtocolSSH, false},
		{"config default used without flag", "", "rdp", types.ProtocolRDP, false},
		{"flag value normalized", " RDP ", "ssh", types.ProtocolRDP, false},
		{"unknown flag value", "telnet", "rdp", "", true},
		{"unknown config value", "", "telnet", "", true},
		{"nothing configured", "", "", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg.Connect.DefaultProtocol = tt.cfgValue

			got, err := resolveProtocol(tt.flagValue, cfg)
			if tt.wantErr {
				if err == nil {
					t.Errorf("resolveProtocol(%q) expected error, got %q", tt.flagValue, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("resolveProtocol(%q) unexpected error: %v", tt.flagValue, err)
			}
			if got != tt.want {
				t.Errorf("resolveProtocol(%q) = %q, want %q", tt.flagValue, got, tt.want)
			}
		})
	}
}

func TestSelectProfile(t *testing.T) {
	store := storage.NewMemoryProfileStore()
	if err := store.CreateProfile("production", map[string]string{"clientId": "abc"}); err != nil {
		t.Fatalf("CreateProfile failed: %v", err)
	}
	if err := store.CreateProfile("staging", map[string]string{"clientId": "def"}); err != nil {
		t.Fatalf("CreateProfile failed: %v", err)
	}

	tests := []struct {
		name          string
		flagValue     string
		configDefault string
		want          string
		wantErr       bool
	}{
		{"flag overrides config default", "staging", "production", "staging", false},
		{"config default used without flag", "", "production", "production", false},
		{"flag names missing profile", "missing", "production", "", true},
		{"config default names missing profile", "", "missing", "", true},
		{"nothing configured", "", "", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := selectProfile(store, tt.flagValue, tt.configDefault)
			if tt.wantErr {
				if err == nil {
					t.Errorf("selectProfile(%q, %q) expected error, got %q", tt.flagValue, tt.configDefault, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("selectProfile(%q, %q) unexpected error: %v", tt.flagValue, tt.configDefault, err)
			}
			if got != tt.want {
				t.Errorf("selectProfile(%q, %q) = %q, want %q", tt.flagValue, tt.configDefault, got, tt.want)
			}
		})
	}
}

func TestDispatcherOptions(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Connect.RDP.Client = "xfreerdp"
	cfg.Connect.RDP.Registrar = "cmdkey"
	cfg.Connect.RDP.Fullscreen = false
	cfg.Connect.SSH.Client = "kitty"

	opts := dispatcherOptions(cfg)

	if opts.RDPClient != "xfreerdp" {
		t.Errorf("RDPClient = %q, want xfreerdp", opts.RDPClient)
	}
	if opts.RDPRegistrar != "cmdkey" {
		t.Errorf("RDPRegistrar = %q, want cmdkey", opts.RDPRegistrar)
	}
	if opts.Fullscreen {
		t.Error("Fullscreen should be false")
	}
	if opts.SSHClient != "kitty" {
		t.Errorf("SSHClient = %q, want kitty", opts.SSHClient)
	}
}

func TestAuditConfig(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Logging.File = "/var/log/ksm-connect/audit.log"
	cfg.Logging.MaxSizeMB = 25
	cfg.Logging.MaxAgeDays = 7

	auditCfg := auditConfig(cfg)

	if auditCfg.FilePath != "/var/log/ksm-connect/audit.log" {
		t.Errorf("FilePath = %q", auditCfg.FilePath)
	}
	if auditCfg.MaxSize != 25*1024*1024 {
		t.Errorf("MaxSize = %d, want %d", auditCfg.MaxSize, 25*1024*1024)
	}
	if auditCfg.MaxAge != 7*24*time.Hour {
		t.Errorf("MaxAge = %v, want %v", auditCfg.MaxAge, 7*24*time.Hour)
	}
}

func TestAuditConfigDefaultsLogPath(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Logging.File = ""

	auditCfg := auditConfig(cfg)
	if auditCfg.FilePath == "" {
		t.Error("FilePath should fall back to the config directory")
	}
}
