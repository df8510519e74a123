package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetricsRecordCounters(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.RecordRemark(RemarkDecoded)
	m.RecordRemark(RemarkDecoded)
	m.RecordRemark(RemarkBadEnvelope)
	m.RecordDecryption("proposer", true)
	m.RecordDecryption("proposer", false)
	m.RecordError(CategoryStorage)
	m.RecordOp("history.execute", time.Now(), errors.New("boom"))

	if got := testutil.ToFloat64(m.remarks.WithLabelValues(RemarkDecoded)); got != 2 {
		t.Fatalf("decoded remarks = %v", got)
	}
	if got := testutil.ToFloat64(m.decryptions.WithLabelValues("proposer", "failed")); got != 1 {
		t.Fatalf("failed decryptions = %v", got)
	}
	if got := testutil.ToFloat64(m.opErrors.WithLabelValues("history.execute")); got != 1 {
		t.Fatalf("operation errors = %v", got)
	}
	if n := testutil.CollectAndCount(m.opDuration); n != 1 {
		t.Fatalf("expected one histogram series, got %d", n)
	}
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	m.RecordRemark(RemarkDecoded)
	m.RecordMessage("commit")
	m.RecordDecryption("voter", true)
	m.RecordReveal("ok")
	m.RecordSubmission("commit")
	m.RecordError(CategoryCrypto)
	m.RecordOp("x", time.Now(), nil)
}

func TestNewRejectsDuplicateRegistration(t *testing.T) {
	reg := prometheus.NewRegistry()
	New(reg)
	defer func() {
		if recover() == nil {
			t.Fatal("expected duplicate registration to panic")
		}
	}()
	New(reg)
}
