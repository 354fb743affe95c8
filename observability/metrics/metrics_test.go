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

package metrics_test

import (
	"net/http"

	"github.com/jarcoal/httpmock"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/penny-vault/pv-risk/observability/metrics"
)

var _ = Describe("Registry", func() {
	It("counts provider calls and failures", func() {
		reg := metrics.NewRegistry()
		reg.ProviderCall("yahoo")
		reg.ProviderCall("yahoo")
		reg.ProviderFailure("alphavantage", "quota-exceeded")

		count, err := testutil.GatherAndCount(reg, "pvrisk_provider_calls_total", "pvrisk_provider_failures_total")
		Expect(err).To(BeNil())
		Expect(count).To(Equal(2))
	})

	It("is safe to use when nil", func() {
		var reg *metrics.Registry
		Expect(func() {
			reg.ProviderCall("yahoo")
			reg.CacheHit("ephemeral")
			reg.CacheMiss("durable")
			reg.LedgerMutation("add", "ok")
		}).ToNot(Panic())
		Expect(reg.Push("http://localhost:9091")).To(BeNil())
	})

	It("pushes to the gateway", func() {
		httpmock.Activate()
		defer httpmock.DeactivateAndReset()

		httpmock.RegisterResponder("PUT", `=~^http://pushgateway\.test/metrics/job/pvrisk`,
			httpmock.NewStringResponder(http.StatusOK, ""))

		reg := metrics.NewRegistry()
		reg.CacheHit("ephemeral")
		Expect(reg.Push("http://pushgateway.test")).To(BeNil())
		Expect(httpmock.GetTotalCallCount()).To(Equal(1))
	})
})
