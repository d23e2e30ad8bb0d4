package monitor

import "github.com/go-chi/chi/v5"

// Routes mounts the monitor endpoints. extras register further routes under
// the same router, e.g. per-monitor status and alert history.
func Routes(h *Handler, extras ...func(chi.Router)) chi.Router {
	r := chi.NewRouter()

	r.Post("/", h.CreateMonitor)
	r.Get("/", h.GetAllMonitors)
	r.Get("/{monitorID}", h.GetMonitor)
	r.Put("/{monitorID}", h.UpdateMonitor)
	r.Delete("/{monitorID}", h.DeleteMonitor)

	for _, register := range extras {
		register(r)
	}

	return r
}

/*
- POST: /monitors  -> create monitor
	req auth : true
	body : CreateMonitorRequest
	resp : GetMonitorResponse

- GET: /monitors?offset={}&limit={}   -> list monitors of a tenant
	req auth : true
	resp : GetAllMonitorsResponse

- GET: /monitors/{monitorID} -> details of a monitor
	req auth : true
	resp : GetMonitorResponse

- PUT: /monitors/{monitorID} -> replace monitor configuration
	req auth : true
	body : UpdateMonitorRequest
	resp : GetMonitorResponse

- DELETE: /monitors/{monitorID} -> delete monitor, cancel schedule, drop alert state
	req auth : true

- GET: /monitors/{monitorID}/status -> aggregated status + uptime
- GET: /monitors/{monitorID}/alerts -> alert history
*/
