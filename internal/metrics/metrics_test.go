package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestObservePass(t *testing.T) {
	changed := testutil.ToFloat64(balancePasses.WithLabelValues("changed"))
	stable := testutil.ToFloat64(balancePasses.WithLabelValues("stable"))

	ObservePass(true, time.Millisecond)
	ObservePass(false, time.Millisecond)
	ObservePass(false, time.Millisecond)

	if got := testutil.ToFloat64(balancePasses.WithLabelValues("changed")) - changed; got != 1 {
		t.Errorf("changed passes = %v, want 1", got)
	}
	if got := testutil.ToFloat64(balancePasses.WithLabelValues("stable")) - stable; got != 2 {
		t.Errorf("stable passes = %v, want 2", got)
	}
}

func TestObserveConversion(t *testing.T) {
	ok := testutil.ToFloat64(conversions.WithLabelValues("export", "pdf", "success"))
	failed := testutil.ToFloat64(conversions.WithLabelValues("export", "pdf", "error"))

	ObserveConversion("export", "pdf", nil)
	ObserveConversion("export", "pdf", errors.New("boom"))

	if got := testutil.ToFloat64(conversions.WithLabelValues("export", "pdf", "success")) - ok; got != 1 {
		t.Errorf("successful exports = %v", got)
	}
	if got := testutil.ToFloat64(conversions.WithLabelValues("export", "pdf", "error")) - failed; got != 1 {
		t.Errorf("failed exports = %v", got)
	}
}

func TestCaretRestores(t *testing.T) {
	miss := testutil.ToFloat64(caretRestores.WithLabelValues("miss"))
	IncCaretRestore(false)
	if got := testutil.ToFloat64(caretRestores.WithLabelValues("miss")) - miss; got != 1 {
		t.Errorf("missed restores = %v", got)
	}
}

func TestInitTwice(t *testing.T) {
	Init()
	Init()
	if n := testutil.CollectAndCount(measureProbes); n != 1 {
		t.Errorf("measure_probes_total series = %d", n)
	}
}
