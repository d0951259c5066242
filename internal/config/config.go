package config

import (
	"log"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Settings struct {
	ListenAddr   string `envconfig:"LISTEN_ADDR" default:":8000"`
	DataPath     string `envconfig:"DATA_PATH" default:"/app/data"`
	RegistryPath string `envconfig:"REGISTRY_PATH" default:"/app/data/registry.yaml"`
	DatabasePath string `envconfig:"DATABASE_PATH" default:"/app/data/logfetch.db"`
	LogPath      string `envconfig:"LOG_PATH" default:"/app/data/logfetch.log"`
	ScratchDir   string `envconfig:"SCRATCH_DIR" default:"/app/data/scratch"`

	// SSH settings
	SSHKeyPath        string `envconfig:"SSH_KEY_PATH" default:""`
	SSHConnectTimeout string `envconfig:"SSH_CONNECT_TIMEOUT" default:"10s"`

	// Packaging settings
	ZipThresholdMB int `envconfig:"ZIP_THRESHOLD_MB" default:"20"`

	// Housekeeping settings
	WorkspaceMaxAge       string `envconfig:"WORKSPACE_MAX_AGE" default:"2h"`
	ActivityRetentionDays int    `envconfig:"ACTIVITY_RETENTION_DAYS" default:"90"`
}

var Cfg Settings

func Load() {
	if err := envconfig.Process("LOGFETCH", &Cfg); err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
}

// ConnectTimeout parses SSHConnectTimeout, falling back to 10s on a bad value.
func ConnectTimeout() time.Duration {
	d, err := time.ParseDuration(Cfg.SSHConnectTimeout)
	if err != nil || d <= 0 {
		return 10 * time.Second
	}
	return d
}

// ZipThresholdBytes returns the raw-vs-archive cutoff in bytes.
func ZipThresholdBytes() int64 {
	mb := Cfg.ZipThresholdMB
	if mb <= 0 {
		mb = 20
	}
	return int64(mb) * 1024 * 1024
}

// WorkspaceMaxAgeDuration parses WorkspaceMaxAge, falling back to 2h on a bad value.
func WorkspaceMaxAgeDuration() time.Duration {
	d, err := time.ParseDuration(Cfg.WorkspaceMaxAge)
	if err != nil || d <= 0 {
		return 2 * time.Hour
	}
	return d
}
