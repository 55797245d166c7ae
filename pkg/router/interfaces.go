package router

import "log/slog"

// LevelCritical tags vendor failures that need operator attention, one step
// above slog's built-in error level.
const LevelCritical = slog.LevelError + 4

// MetricsSink receives fire-and-forget counter increments. Implementations
// must be safe under concurrent use; bridges increment from pool workers.
// Tags are "key:value" pairs.
type MetricsSink interface {
	Increment(name string, tags ...string)
}

// Settings are the service-level collaborators every bridge shares.
type Settings struct {
	// EndpointBaseURL is the public base of the message endpoint, used to
	// build the Location header on successful delivery.
	EndpointBaseURL string
	Metrics         MetricsSink
}

// Router is the contract a delivery bridge exposes to the endpoint layer.
type Router interface {
	// Register validates the routing data a device supplied at subscription
	// time and returns the amended copy with delivery credentials stamped
	// in. It is synchronous and never touches the network.
	Register(uaid string, routerData RouterData, appID string) (RouterData, error)

	// RouteNotification schedules delivery of one notification and returns
	// the eventual outcome. The blocking gateway call runs on a pool
	// worker, never on the caller's goroutine.
	RouteNotification(n Notification, userData UserData) *Future

	// AmendEndpointResponse copies the registered sender identity into an
	// outward registration response body.
	AmendEndpointResponse(body map[string]any, routerData RouterData)
}
