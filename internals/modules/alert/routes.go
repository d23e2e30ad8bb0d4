package alert

import "github.com/go-chi/chi/v5"

func Routes(h *Handler) chi.Router {
	r := chi.NewRouter()

	r.Get("/", h.ListAlerts)
	r.Get("/{alertID}", h.GetAlert)

	return r
}

/*
- GET: /alerts?monitor_id={}&order={asc|desc}&limit={}  -> alert history of a tenant
	req auth : true
	resp : ListAlertsResponse

- GET: /alerts/{alertID} -> one alert with its per-channel notification status
	req auth : true
	resp : Alert
*/
