package middleware

import (
	"strconv"

	components_middleware "stanclient/pkg/components/middleware"
	"stanclient/pkg/messaging"
)

const printPayloadKey = "printPayload"

// Definitions returns the built in subscriber middleware components. The
// logging one prints payloads when printPayload is set, unless its component
// metadata says otherwise.
func Definitions(printPayload bool) []components_middleware.Middleware {
	return []components_middleware.Middleware{
		components_middleware.New("logging", func(properties map[string]string) messaging.Middleware {
			withPayload := printPayload
			if v, err := strconv.ParseBool(properties[printPayloadKey]); err == nil {
				withPayload = v
			}
			return SubscriberLoggingMiddleware(withPayload)
		}),
		components_middleware.New("tracing", func(map[string]string) messaging.Middleware {
			return SubscriberTracingMiddleware()
		}),
		components_middleware.New("metrics", func(map[string]string) messaging.Middleware {
			return SubscriberMetricsMiddleware()
		}),
	}
}
