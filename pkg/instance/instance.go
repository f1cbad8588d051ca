package instance

import (
	"os"

	"github.com/angelmondragon/eventcore/pkg/env"
)

// GetID identifies this process in logs and cron lock ownership.
// EVENTCORE_INSTANCE_ID wins, then the host name.
func GetID() string {
	if host, err := os.Hostname(); err == nil && host != "" {
		return env.Get("EVENTCORE_INSTANCE_ID", host)
	}
	return env.Get("EVENTCORE_INSTANCE_ID", "eventcore-0")
}
