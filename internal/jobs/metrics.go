package jobs

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	feeRunsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "classhub_fee_generation_runs_total",
		Help: "Completed fee generation runs.",
	})
	feeEntriesCreated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "classhub_fee_entries_created_total",
		Help: "Fee ledger rows created by the generation job.",
	})
	accountsReaped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "classhub_accounts_reaped_total",
		Help: "Unverified accounts deleted by the reaper.",
	})
)
