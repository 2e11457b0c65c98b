//
// (C) Copyright 2025-2026 Hewlett Packard Enterprise Development LP
//
// SPDX-License-Identifier: BSD-2-Clause-Patent
//

// Package metrics records harness activity in a Prometheus registry.
package metrics

import (
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/prometheus/common/model"

	"github.com/daos-stack/dharness/capacity"
	"github.com/daos-stack/dharness/fault"
	"github.com/daos-stack/dharness/lib/ranklist"
	"github.com/daos-stack/dharness/orchestrator"
)

const namespace = "dharness"

// Harness holds the harness metrics and the registry they belong to.
type Harness struct {
	reg *prometheus.Registry

	devicesFaulted  *prometheus.CounterVec
	ranksStopped    *prometheus.CounterVec
	injectFailures  *prometheus.CounterVec
	rebuildWait     *prometheus.HistogramVec
	workloadResults *prometheus.CounterVec
	bandwidth       *prometheus.GaugeVec
	verdicts        *prometheus.CounterVec
	fleetCapacity   *prometheus.GaugeVec
	lastRun         prometheus.Gauge
}

// New returns a Harness with all metrics registered on a private registry.
func New() *Harness {
	h := &Harness{
		reg: prometheus.NewRegistry(),
		devicesFaulted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "fault",
			Name:      "devices_faulted_total",
			Help:      "Devices marked faulty and confirmed EVICTED.",
		}, []string{"host"}),
		ranksStopped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "fault",
			Name:      "ranks_stopped_total",
			Help:      "Ranks stopped by fault injection.",
		}, []string{"rank"}),
		injectFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "fault",
			Name:      "injection_failures_total",
			Help:      "Fault injection sequences that failed, by fault code.",
		}, []string{"code"}),
		rebuildWait: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "rebuild",
			Name:      "wait_seconds",
			Help:      "Time spent waiting for pool rebuild to settle.",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 12),
		}, []string{"result"}),
		workloadResults: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "workload",
			Name:      "results_total",
			Help:      "Worker group results.",
		}, []string{"scenario", "group", "status"}),
		bandwidth: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "workload",
			Name:      "bandwidth_mib_per_second",
			Help:      "Mean IOR bandwidth of the last run.",
		}, []string{"scenario", "group", "operation"}),
		verdicts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "verdicts_total",
			Help:      "Orchestrated run verdicts.",
		}, []string{"scenario", "status"}),
		fleetCapacity: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "capacity",
			Name:      "fleet_bytes",
			Help:      "Usable fleet capacity after the safety margin.",
		}, []string{"tier"}),
		lastRun: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_run_timestamp_seconds",
			Help:      "Completion time of the last orchestrated run.",
		}),
	}

	h.reg.MustRegister(
		h.devicesFaulted,
		h.ranksStopped,
		h.injectFailures,
		h.rebuildWait,
		h.workloadResults,
		h.bandwidth,
		h.verdicts,
		h.fleetCapacity,
		h.lastRun,
	)
	return h
}

// Registry returns the underlying registry.
func (h *Harness) Registry() *prometheus.Registry {
	return h.reg
}

// Gather returns the current metric families.
func (h *Harness) Gather() ([]*dto.MetricFamily, error) {
	return h.reg.Gather()
}

func labelValue(in string) string {
	if in == "" || !model.LabelValue(in).IsValid() {
		return "unknown"
	}
	return in
}

// DeviceFaulted implements faultinject.Recorder.
func (h *Harness) DeviceFaulted(host string) {
	h.devicesFaulted.WithLabelValues(labelValue(host)).Inc()
}

// RankStopped implements faultinject.Recorder.
func (h *Harness) RankStopped(rank ranklist.Rank) {
	h.ranksStopped.WithLabelValues(rank.String()).Inc()
}

// RebuildWait implements faultinject.Recorder.
func (h *Harness) RebuildWait(elapsed time.Duration, err error) {
	result := "idle"
	if err != nil {
		result = "error"
	}
	h.rebuildWait.WithLabelValues(result).Observe(elapsed.Seconds())
}

// InjectionFailed implements faultinject.Recorder.
func (h *Harness) InjectionFailed(err error) {
	h.injectFailures.WithLabelValues(strconv.Itoa(int(fault.CodeOf(err)))).Inc()
}

// RecordCapacity sets the fleet capacity gauges.
func (h *Harness) RecordCapacity(fc *capacity.FleetCapacity) {
	if fc == nil {
		return
	}
	h.fleetCapacity.WithLabelValues("scm").Set(float64(fc.Tier0))
	h.fleetCapacity.WithLabelValues("nvme").Set(float64(fc.Tier1))
}

// RecordVerdict counts the verdict and its worker results and sets the
// bandwidth gauges from their IOR summaries.
func (h *Harness) RecordVerdict(v *orchestrator.Verdict) {
	if v == nil {
		return
	}
	scenario := labelValue(v.Name)
	h.verdicts.WithLabelValues(scenario, string(v.Status)).Inc()
	for _, r := range v.Results {
		group := labelValue(r.Group)
		h.workloadResults.WithLabelValues(scenario, group, string(r.Status)).Inc()
		for _, m := range r.Metrics {
			h.bandwidth.WithLabelValues(scenario, group, strings.ToLower(m.Operation)).Set(m.MeanMiB)
		}
	}
	h.lastRun.SetToCurrentTime()
}
