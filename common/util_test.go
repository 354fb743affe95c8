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

package common_test

import (
	"bytes"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/penny-vault/pv-risk/common"
)

var _ = Describe("Util", func() {
	DescribeTable("normalizes symbol lists", func(in, expected []string) {
		Expect(common.NormalizeSymbols(in)).To(Equal(expected))
	},
		Entry("sorts", []string{"VTI", "AAPL"}, []string{"AAPL", "VTI"}),
		Entry("upper cases and dedups", []string{"spy", "SPY", " qqq "}, []string{"QQQ", "SPY"}),
		Entry("drops blanks", []string{"", "  "}, []string{}),
	)

	It("compresses and decompresses", func() {
		in := bytes.Repeat([]byte("2022-01-03,100.0,101.0,99.5,100.5\n"), 100)
		out, err := common.Compress(in)
		Expect(err).To(BeNil())
		Expect(len(out)).To(BeNumerically("<", len(in)))

		back, err := common.Decompress(out)
		Expect(err).To(BeNil())
		Expect(back).To(Equal(in))
	})
})
