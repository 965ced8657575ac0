package logic

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	snapshotsWritten = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "hoops_snapshots_written_total",
		Help: "Snapshots and trend periods upserted",
	}, []string{"kind"})

	predictionsCreated = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "hoops_predictions_created_total",
		Help: "Game and player predictions written",
	}, []string{"kind"})

	predictionAccuracy = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "hoops_prediction_accuracy",
		Help:    "Accuracy score of evaluated game predictions",
		Buckets: prometheus.LinearBuckets(0, 10, 11),
	})

	formCacheLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "hoops_form_cache_lookups_total",
		Help: "Recent-form cache lookups by result",
	}, []string{"result"})
)
