package logging

import (
	"time"

	"github.com/sirupsen/logrus"
)

// CommandFields are attached to every log line of a CLI invocation
func CommandFields(command, repository, cacheProvider string) logrus.Fields {
	return logrus.Fields{
		"command":    command,
		"repository": repository,
		"cache":      cacheProvider,
	}
}

// CacheFields describes a cache operation on key. A zero ttl is omitted.
func CacheFields(key string, ttl time.Duration) logrus.Fields {
	fields := logrus.Fields{"key": key}
	if ttl > 0 {
		fields["ttl"] = ttl.String()
	}
	return fields
}

// FetchFields describes an upstream refresh of one resource
func FetchFields(resource, kind string) logrus.Fields {
	fields := logrus.Fields{"resource": resource}
	if kind != "" {
		fields["kind"] = kind
	}
	return fields
}
