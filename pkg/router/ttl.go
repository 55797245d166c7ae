package router

// MaxTTL is the longest retention the push gateways accept: 28 days in
// seconds. Anything above it is silently rejected by FCM, so requests are
// clamped rather than forwarded.
const MaxTTL = 2419200

// EffectiveTTL clamps a requested TTL into [minTTL, MaxTTL]. A zero request
// means the caller did not ask for a TTL; the floor keeps the gateway from
// discarding the message before the device has a chance to connect.
func EffectiveTTL(minTTL, requested int64) int64 {
	if requested < minTTL {
		requested = minTTL
	}
	if requested > MaxTTL {
		return MaxTTL
	}
	return requested
}
