package framegenerator

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	FramesRenderedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "spectrovideo_frames_rendered_total",
		Help: "Total number of frames cropped, annotated and persisted",
	})

	FrameFailuresTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "spectrovideo_frame_failures_total",
		Help: "Total number of frames that failed, by stage",
	}, []string{"stage"})

	FrameRenderDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "spectrovideo_frame_render_duration_seconds",
		Help:    "Duration of rendering and saving a single frame",
		Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
	})

	PreviewRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "spectrovideo_preview_requests_total",
		Help: "Total number of preview frames served, by status code",
	}, []string{"code"})
)
