package httpapi

import (
	"context"
	"net/http"
	"sort"
	"time"

	"llm_compare/internal/utils"
)

const healthCheckTimeout = 2 * time.Second

// handleHealth reports "ok" when every backing service answers, "degraded" otherwise
func (d *Dependencies) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
	defer cancel()

	names := make([]string, 0, len(d.Health))
	for name := range d.Health {
		names = append(names, name)
	}
	sort.Strings(names)

	status := "ok"
	checks := make(map[string]string, len(names))
	for _, name := range names {
		if err := d.Health[name](ctx); err != nil {
			checks[name] = err.Error()
			status = "degraded"
			continue
		}
		checks[name] = "ok"
	}

	code := http.StatusOK
	if status != "ok" {
		code = http.StatusServiceUnavailable
	}
	utils.RespondWithJSON(w, code, map[string]interface{}{
		"status": status,
		"checks": checks,
	})
}
