package controller

import (
	"net/http"
	"sort"

	"github.com/cassiomorais/payflow/internal/providers"
)

// ProviderController reports the circuit breaker state of each payment
// provider. States are per replica, so different instances can report
// different answers during an outage.
type ProviderController struct {
	factory *providers.Factory
}

func NewProviderController(factory *providers.Factory) *ProviderController {
	return &ProviderController{factory: factory}
}

// List handles GET /api/v1/providers
func (h *ProviderController) List(w http.ResponseWriter, r *http.Request) {
	states := h.factory.States()
	resp := make([]*ProviderStateResponse, 0, len(states))
	for name, state := range states {
		resp = append(resp, &ProviderStateResponse{Provider: name, State: state.String()})
	}
	sort.Slice(resp, func(i, j int) bool { return resp[i].Provider < resp[j].Provider })
	writeJSON(w, http.StatusOK, resp)
}
