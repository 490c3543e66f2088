package redis

import (
	"fmt"
	"strings"
)

const defaultKeyPrefix = "backoffice"

func normalizePrefix(prefix string) string {
	trimmed := strings.Trim(strings.TrimSpace(prefix), ":")
	if trimmed == "" {
		return defaultKeyPrefix
	}
	return trimmed
}

func joinKey(prefix string, parts ...string) string {
	return fmt.Sprintf("%s:%s", prefix, strings.Join(parts, ":"))
}
