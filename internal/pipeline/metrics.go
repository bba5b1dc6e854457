package pipeline

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Paper lifecycle metrics
	papersTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scanmark_papers_total",
			Help: "Total number of student papers closed",
		},
		[]string{"status"}, // status: done, error, processing
	)

	pagesProcessed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "scanmark_pages_processed_total",
			Help: "Total number of scanned pages ingested",
		},
	)

	anchorDetections = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scanmark_anchor_detections_total",
			Help: "Anchor detection outcomes per page",
		},
		[]string{"outcome"}, // outcome: identity, continuation, missing
	)

	// Grading metrics
	questionsGraded = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scanmark_questions_graded_total",
			Help: "Total number of question regions graded",
		},
		[]string{"type"}, // question type
	)

	gradingFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "scanmark_grading_failures_total",
			Help: "Subjective questions that failed grading and scored zero",
		},
	)

	gradingDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "scanmark_page_grading_duration_seconds",
			Help:    "Time spent grading one page",
			Buckets: []float64{.1, .25, .5, 1, 2.5, 5, 10, 25, 50, 100},
		},
		[]string{"stage"}, // stage: objective, subjective
	)
)
