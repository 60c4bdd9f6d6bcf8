package services

import (
	"time"

	"github.com/google/uuid"
)

// Variables carries the deployment-level settings the services need.
type Variables struct {
	OwnUUID     uuid.UUID
	ServiceName string

	// AllowHTTP permits plain-http peer addresses, for test setups only.
	AllowHTTP bool

	// Languages holds the language codes this deployment accepts in
	// translations and schema text.
	Languages []string

	// ValidTimeDelta is the clock skew tolerance for wire timestamps.
	ValidTimeDelta time.Duration
}
