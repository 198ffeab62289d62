package services

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	workflowPrompts = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "scheduling",
		Subsystem: "workflow",
		Name:      "prompts_total",
		Help:      "Total number of workflow checkpoints that halted for a user decision, by stage.",
	}, []string{"stage"})

	overlapConflicts = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "scheduling",
		Subsystem: "overlap",
		Name:      "conflicts_total",
		Help:      "Total number of overlap conflicts detected, by source.",
	}, []string{"source"})

	writeConflicts = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "scheduling",
		Subsystem: "write",
		Name:      "conflicts_total",
		Help:      "Total number of scheduling write conflicts broken down by kind.",
	}, []string{"kind"})

	saves = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "scheduling",
		Name:      "saves_total",
		Help:      "Total number of scheduling saves, by flow and result.",
	}, []string{"flow", "result"})
)

func recordWorkflowPrompt(stage Stage) {
	workflowPrompts.WithLabelValues(string(stage)).Inc()
}

func recordOverlapConflicts(source string, n int) {
	if n <= 0 {
		return
	}
	overlapConflicts.WithLabelValues(source).Add(float64(n))
}

func recordWriteConflict(kind string) {
	if kind == "" {
		kind = "other"
	}
	writeConflicts.WithLabelValues(kind).Inc()
}

func recordSave(flow, result string) {
	saves.WithLabelValues(flow, result).Inc()
}
