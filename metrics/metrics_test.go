package metrics

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func TestRequestMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)
	m.ObserveRequest("GET", "/CartItem", 200, 120*time.Millisecond)
	m.ObserveRequest("GET", "", 404, time.Millisecond)

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}

	if got, err := fetchCounterValue(mfs, "storefront_http_requests_total", "route", "/CartItem"); err != nil {
		t.Fatalf("fetch requests: %v", err)
	} else if got != 1 {
		t.Fatalf("expected requests=1, got %f", got)
	}
	if _, err := fetchCounterValue(mfs, "storefront_http_requests_total", "route", "unknown"); err != nil {
		t.Fatalf("expected unmatched route to be labelled unknown: %v", err)
	}
	if got, err := fetchHistogramSum(mfs, "storefront_http_request_duration_seconds", "route", "/CartItem"); err != nil {
		t.Fatalf("fetch duration: %v", err)
	} else if got <= 0 {
		t.Fatalf("expected duration sum > 0, got %f", got)
	}
}

func TestCartAndImageMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)
	m.CartMutation("add", "ok")
	m.CartMutation("add", "rejected")
	m.CartUnitsAdded(3)
	m.CartUnitsAdded(-1)
	m.ImageOperation("delete", errors.New("boom"))

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}

	if got, err := fetchCounterValue(mfs, "storefront_cart_mutations_total", "outcome", "rejected"); err != nil || got != 1 {
		t.Fatalf("expected rejected=1, got %f (%v)", got, err)
	}
	units := findMetricFamily(mfs, "storefront_cart_units_added_total")
	if units == nil || units.GetMetric()[0].GetCounter().GetValue() != 3 {
		t.Fatalf("expected 3 units added")
	}
	if got, err := fetchCounterValue(mfs, "storefront_product_image_operations_total", "outcome", "error"); err != nil || got != 1 {
		t.Fatalf("expected image error=1, got %f (%v)", got, err)
	}
}

func TestNilMetricsAreNoops(t *testing.T) {
	var m *Metrics
	m.ObserveRequest("GET", "/", 200, time.Second)
	m.CartMutation("add", "ok")
	m.CartUnitsAdded(1)
	m.ImageOperation("save", nil)

	unregistered := New(nil)
	unregistered.CartMutation("add", "ok")
}

func fetchCounterValue(mfs []*dto.MetricFamily, name, label, value string) (float64, error) {
	mf := findMetricFamily(mfs, name)
	if mf == nil {
		return 0, fmt.Errorf("metric %q not found", name)
	}
	for _, metric := range mf.GetMetric() {
		if matchesLabel(metric.GetLabel(), label, value) {
			return metric.GetCounter().GetValue(), nil
		}
	}
	return 0, fmt.Errorf("metric %q missing label %s=%s", name, label, value)
}

func fetchHistogramSum(mfs []*dto.MetricFamily, name, label, value string) (float64, error) {
	mf := findMetricFamily(mfs, name)
	if mf == nil {
		return 0, fmt.Errorf("metric %q not found", name)
	}
	for _, metric := range mf.GetMetric() {
		if matchesLabel(metric.GetLabel(), label, value) {
			return metric.GetHistogram().GetSampleSum(), nil
		}
	}
	return 0, fmt.Errorf("histogram %q missing label %s=%s", name, label, value)
}

func findMetricFamily(mfs []*dto.MetricFamily, name string) *dto.MetricFamily {
	for _, mf := range mfs {
		if mf.GetName() == name {
			return mf
		}
	}
	return nil
}

func matchesLabel(labels []*dto.LabelPair, name, value string) bool {
	for _, label := range labels {
		if label.GetName() == name && label.GetValue() == value {
			return true
		}
	}
	return false
}
