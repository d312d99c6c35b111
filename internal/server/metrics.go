package server

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"svgbook/internal/fence"
)

var (
	diagramCounter = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "svgbook",
			Subsystem: "preview",
			Name:      "diagrams_total",
			Help:      "Diagram fences rendered by the preview server.",
		},
		[]string{"language", "variant", "outcome"},
	)
	pageCounter = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "svgbook",
			Subsystem: "preview",
			Name:      "pages_total",
			Help:      "Pages served by the render API.",
		},
		[]string{"status"},
	)
)

func observeDiagram(_ string, rep fence.Report) {
	outcome := "ok"
	if rep.Outcome.Failed() {
		outcome = "error"
	}
	diagramCounter.WithLabelValues(rep.Token.Language, rep.Token.Variant.String(), outcome).Inc()
}
