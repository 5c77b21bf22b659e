package handlers

import (
	"context"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"

	"clipforge/internal/httpkit"
)

const pingTimeout = 5 * time.Second

type componentHealth struct {
	Status    string `json:"status"`
	Provider  string `json:"provider,omitempty"`
	Error     string `json:"error,omitempty"`
	LatencyMS int64  `json:"latency_ms"`
}

type healthResponse struct {
	Status  string                      `json:"status"`
	Service string                      `json:"service"`
	Checks  map[string]*componentHealth `json:"checks,omitempty"`
}

// Health reports liveness. With ?deep=true it also pings the store, the
// queue and the storage provider in parallel and answers 503 when any of
// them fails.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{Status: "ok", Service: "clipforge-api"}
	if r.URL.Query().Get("deep") != "true" {
		httpkit.WriteJSON(w, http.StatusOK, resp)
		return
	}

	ctx := r.Context()
	pings := map[string]func(context.Context) error{
		"store":   h.store.Ping,
		"queue":   h.queue.Ping,
		"storage": h.sp.Ping,
	}
	resp.Checks = make(map[string]*componentHealth, len(pings))
	for name := range pings {
		resp.Checks[name] = &componentHealth{}
	}
	resp.Checks["storage"].Provider = h.sp.Provider()

	var g errgroup.Group
	for name, ping := range pings {
		c := resp.Checks[name]
		g.Go(func() error {
			probe(ctx, ping, c)
			return nil
		})
	}
	_ = g.Wait()

	status := http.StatusOK
	for name, c := range resp.Checks {
		if c.Status != "ok" {
			resp.Status = "degraded"
			status = http.StatusServiceUnavailable
			h.log.FromContext(ctx).Warn("health check failed", "component", name, "error", c.Error)
		}
	}
	httpkit.WriteJSON(w, status, resp)
}

func probe(ctx context.Context, ping func(context.Context) error, c *componentHealth) {
	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()

	start := time.Now()
	c.Status = "ok"
	if err := ping(ctx); err != nil {
		c.Status = "error"
		c.Error = err.Error()
	}
	c.LatencyMS = time.Since(start).Milliseconds()
}
