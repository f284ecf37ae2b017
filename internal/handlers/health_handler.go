package handlers

import (
	"net/http"
	"time"

	"github.com/ternarybob/docgpt/internal/common"
	"github.com/ternarybob/docgpt/internal/interfaces"
)

// HealthHandler reports the configured pipeline components
type HealthHandler struct {
	embedder  interfaces.Embedder
	index     interfaces.VectorIndex
	generator interfaces.Generator
	vector    common.VectorConfig
	startedAt time.Time
}

func NewHealthHandler(embedder interfaces.Embedder, index interfaces.VectorIndex, generator interfaces.Generator, vector common.VectorConfig) *HealthHandler {
	return &HealthHandler{
		embedder:  embedder,
		index:     index,
		generator: generator,
		vector:    vector,
		startedAt: time.Now(),
	}
}

func (h *HealthHandler) HealthHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	indexDim := h.index.Dimension()
	status := "ok"
	if indexDim != 0 && indexDim != h.embedder.Dimension() {
		status = "degraded"
	}

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"status":  status,
		"version": common.GetVersion(),
		"uptime":  time.Since(h.startedAt).Round(time.Second).String(),
		"embedder": map[string]interface{}{
			"model":     h.embedder.ModelInfo(),
			"dimension": h.embedder.Dimension(),
		},
		"vector_index": map[string]interface{}{
			"provider":   h.vector.Provider,
			"collection": h.vector.Collection,
			"dimension":  indexDim,
		},
		"generator": h.generator.ModelInfo(),
	})
}
