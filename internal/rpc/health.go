package rpc

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// WatchBackend marks the server and the calendar service NOT_SERVING while
// ping fails. It checks once immediately, then every interval until ctx is done.
func WatchBackend(ctx context.Context, hs *health.Server, ping func(context.Context) error, every time.Duration, log zerolog.Logger) {
	last := healthpb.HealthCheckResponse_UNKNOWN
	check := func() {
		pctx, cancel := context.WithTimeout(ctx, every/2)
		defer cancel()
		st := healthpb.HealthCheckResponse_SERVING
		if err := ping(pctx); err != nil {
			st = healthpb.HealthCheckResponse_NOT_SERVING
			if last != st {
				log.Warn().Err(err).Msg("backend unreachable")
			}
		} else if last == healthpb.HealthCheckResponse_NOT_SERVING {
			log.Info().Msg("backend reachable again")
		}
		last = st
		hs.SetServingStatus("", st)
		hs.SetServingStatus(ServiceName, st)
	}

	check()
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			check()
		}
	}
}
