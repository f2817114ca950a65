package prometheus

import (
	"net/http"

	"github.com/kzs0/callspan/metric"
)

// Handler serves the registry at whatever path it is mounted on.
func Handler(registry *metric.Registry) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", ContentType)
		if err := Encode(w, registry.Gather()); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
	})
}
