package transfer

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	transfersTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ledgerbank_transfers_total",
		Help: "Completed transfers by path",
	}, []string{"path"})

	scheduledProcessedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ledgerbank_scheduled_transfers_processed_total",
		Help: "Scheduled transfers processed by terminal status",
	}, []string{"status"})
)
