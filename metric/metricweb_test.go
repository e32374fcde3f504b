/*
 * Copyright 2018 The CovenantSQL Authors.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package metric

import (
	"context"
	"io/ioutil"
	"net/http"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"
	. "github.com/smartystreets/goconvey/convey"
)

func TestLedgerMetrics(t *testing.T) {
	Convey("Ledger counters should register and count", t, func() {
		reg := prometheus.NewRegistry()
		m := NewLedgerMetrics(reg)
		m.BlocksApplied.Inc()
		m.Commands.WithLabelValues(OutcomeApplied).Add(3)
		m.Commands.WithLabelValues(OutcomeRejected).Inc()

		So(testutil.ToFloat64(m.BlocksApplied), ShouldEqual, 1)
		So(testutil.ToFloat64(m.BlocksFailed), ShouldEqual, 0)
		So(testutil.ToFloat64(m.Commands.WithLabelValues(OutcomeApplied)), ShouldEqual, 3)
		So(testutil.ToFloat64(m.Commands.WithLabelValues(OutcomeRejected)), ShouldEqual, 1)

		mfs, err := reg.Gather()
		So(err, ShouldBeNil)
		So(len(mfs), ShouldEqual, 3)
		families := make(map[string]*dto.MetricFamily)
		for _, mf := range mfs {
			families[mf.GetName()] = mf
		}
		So(families["ledgercore_ledger_blocks_applied_total"].GetType(), ShouldEqual, dto.MetricType_COUNTER)
		So(families["ledgercore_ledger_blocks_failed_total"].GetType(), ShouldEqual, dto.MetricType_COUNTER)
		commands := families["ledgercore_ledger_commands_total"]
		So(commands.GetType(), ShouldEqual, dto.MetricType_COUNTER)
		So(commands.GetMetric(), ShouldHaveLength, 2)

		Convey("Registering the same counters twice should panic", func() {
			So(func() { NewLedgerMetrics(reg) }, ShouldPanic)
		})

		Convey("Unregistered counters should still count", func() {
			m := NewLedgerMetrics(nil)
			m.BlocksFailed.Inc()
			So(testutil.ToFloat64(m.BlocksFailed), ShouldEqual, 1)
		})
	})
}

func TestStoreCollector(t *testing.T) {
	Convey("The store collector should report the current last id", t, func() {
		var last uint64 = 7
		c := NewStoreCollector("flat", func() uint64 { return last })
		So(testutil.ToFloat64(c), ShouldEqual, 7)
		last = 9
		So(testutil.ToFloat64(c), ShouldEqual, 9)
	})
}

func TestServe(t *testing.T) {
	Convey("Metrics should be served over http", t, func() {
		reg := NewRegistry()
		m := NewLedgerMetrics(reg)
		m.BlocksApplied.Inc()

		srv, addr, err := Serve("127.0.0.1:0", reg)
		So(err, ShouldBeNil)
		defer srv.Shutdown(context.Background())

		resp, err := http.Get("http://" + addr + MetricsPath)
		So(err, ShouldBeNil)
		defer resp.Body.Close()
		body, err := ioutil.ReadAll(resp.Body)
		So(err, ShouldBeNil)
		So(string(body), ShouldContainSubstring, "ledgercore_ledger_blocks_applied_total 1")
		So(string(body), ShouldContainSubstring, "go_goroutines")

		_, _, err = Serve(addr, reg)
		So(err, ShouldNotBeNil)
	})
}
