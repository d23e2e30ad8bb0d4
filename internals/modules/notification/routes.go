package notification

import "github.com/go-chi/chi/v5"

func Routes(h *Handler) chi.Router {
	r := chi.NewRouter()

	r.Post("/", h.CreateChannel)
	r.Get("/", h.ListChannels)
	r.Get("/deliveries/{alertID}", h.ListDeliveries)
	r.Get("/{channelID}", h.GetChannel)
	r.Patch("/{channelID}", h.SetEnabled)
	r.Delete("/{channelID}", h.DeleteChannel)

	return r
}

/*
- POST: /channels -> create channel, config is validated then sealed for the tenant
	req auth : true
	body : CreateChannelRequest {name, type, config, enabled}
	resp : ChannelResponse

- GET: /channels -> list channels of a tenant
	req auth : true
	resp : ListChannelsResponse

- GET: /channels/{channelID}
	req auth : true
	resp : ChannelResponse

- PATCH: /channels/{channelID} -> enable or disable
	req auth : true
	body : SetEnabledRequest

- DELETE: /channels/{channelID}
	req auth : true

- GET: /channels/deliveries/{alertID} -> delivery history of an alert
	req auth : true
	resp : []DeliveryRecord
*/
