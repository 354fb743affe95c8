// Copyright 2021-2022
// SPDX-License-Identifier: Apache-2.0
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package metrics collects prometheus counters for the fetch orchestrator
// and portfolio ledger. A CLI process is short lived so counters are pushed
// to a pushgateway on exit instead of being scraped.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/push"
	"github.com/rs/zerolog/log"
)

const jobName = "pvrisk"

// Registry holds all prometheus metrics. A nil *Registry is valid and
// records nothing.
type Registry struct {
	*prometheus.Registry

	providerCalls    *prometheus.CounterVec
	providerFailures *prometheus.CounterVec
	cacheLookups     *prometheus.CounterVec
	fetchDuration    *prometheus.HistogramVec
	ledgerMutations  *prometheus.CounterVec
}

// NewRegistry creates a registry with every metric registered
func NewRegistry() *Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())

	r := &Registry{
		Registry: reg,

		providerCalls: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pvrisk_provider_calls_total",
				Help: "Total number of market data provider calls",
			},
			[]string{"provider"},
		),

		providerFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pvrisk_provider_failures_total",
				Help: "Total number of failed provider calls by failure kind",
			},
			[]string{"provider", "kind"},
		),

		cacheLookups: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pvrisk_cache_lookups_total",
				Help: "Cache lookups by tier and outcome",
			},
			[]string{"tier", "outcome"},
		),

		fetchDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "pvrisk_fetch_duration_seconds",
				Help:    "Duration of orchestrator fetch operations",
				Buckets: []float64{.01, .05, .1, .5, 1, 5, 10, 30},
			},
			[]string{"op"},
		),

		ledgerMutations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pvrisk_ledger_mutations_total",
				Help: "Portfolio ledger mutations by operation and result",
			},
			[]string{"op", "result"},
		),
	}

	reg.MustRegister(r.providerCalls)
	reg.MustRegister(r.providerFailures)
	reg.MustRegister(r.cacheLookups)
	reg.MustRegister(r.fetchDuration)
	reg.MustRegister(r.ledgerMutations)

	return r
}

// ProviderCall counts a call to the named provider
func (r *Registry) ProviderCall(provider string) {
	if r == nil {
		return
	}
	r.providerCalls.WithLabelValues(provider).Inc()
}

// ProviderFailure counts a failed provider call
func (r *Registry) ProviderFailure(provider, kind string) {
	if r == nil {
		return
	}
	r.providerFailures.WithLabelValues(provider, kind).Inc()
}

// CacheHit counts a lookup served by tier
func (r *Registry) CacheHit(tier string) {
	if r == nil {
		return
	}
	r.cacheLookups.WithLabelValues(tier, "hit").Inc()
}

// CacheMiss counts a lookup tier could not serve
func (r *Registry) CacheMiss(tier string) {
	if r == nil {
		return
	}
	r.cacheLookups.WithLabelValues(tier, "miss").Inc()
}

// ObserveFetch records how long op took since start
func (r *Registry) ObserveFetch(op string, start time.Time) {
	if r == nil {
		return
	}
	r.fetchDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
}

// LedgerMutation counts a portfolio mutation; result is "ok", "rejected" or
// "failed"
func (r *Registry) LedgerMutation(op, result string) {
	if r == nil {
		return
	}
	r.ledgerMutations.WithLabelValues(op, result).Inc()
}

// Push sends every metric to the pushgateway at url. An empty url is a no-op.
func (r *Registry) Push(url string) error {
	if r == nil || url == "" {
		return nil
	}

	if err := push.New(url, jobName).Gatherer(r.Registry).Push(); err != nil {
		log.Warn().Err(err).Str("Url", url).Msg("could not push metrics")
		return err
	}
	return nil
}
