// Package common contains shared constants and sentinel errors used across
// clubsync components.
package common

// AccessTokenHeaderName is the gRPC metadata key used to carry the gateway
// access token on outbound requests.
const AccessTokenHeaderName = "access_token"

// DefaultSyncCooldownSeconds is the minimum spacing between two non-forced
// full-collection refreshes of the same collection.
const DefaultSyncCooldownSeconds = 60
