package instance

import (
	"os"
	"strings"
)

// GetID names this process for logs and cron lock ownership. RAILX_WORKER_ID
// wins, then the platform dyno name, then the host name.
func GetID() string {
	for _, key := range []string{"RAILX_WORKER_ID", "DYNO"} {
		if id := strings.TrimSpace(os.Getenv(key)); id != "" {
			return id
		}
	}
	if host, err := os.Hostname(); err == nil && host != "" {
		return host
	}
	return "local"
}
