package storage

import (
	"context"
	"errors"
	"path/filepath"
	"reflect"
	"slices"
	"testing"

	"corevo/go-backend/pkg/models"

	"go.mongodb.org/mongo-driver/bson"
)

const (
	alice = "5GrwvaEF5zXb26Fz9rcQpDWS57CtERHpNehXCPcNoHGKutQY"
	bob   = "5FHneW46xGXgs5mUiveU4sbTyGBzmstUspZC92UhjJM694ty"
)

func fixtures() []models.Remark {
	return []models.Remark{
		{Sender: alice, PayloadHex: "0xcc00ee0001", Block: 1, Index: 0},
		{Sender: bob, PayloadHex: "0xdeadbeef", Block: 1, Index: 1},
		{Sender: bob, PayloadHex: "0xCC00EE0002", Block: 2, Index: 0},
		{Sender: alice, PayloadHex: "0xcc00ee0003", Block: 5, Index: 3},
	}
}

type remarkScanner interface {
	ScanRemarks(ctx context.Context, filter models.RemarkFilter, fn func(models.Remark) error) error
}

func collect(t *testing.T, s remarkScanner, f models.RemarkFilter) []string {
	t.Helper()
	var out []string
	err := s.ScanRemarks(context.Background(), f, func(r models.Remark) error {
		out = append(out, r.PayloadHex)
		return nil
	})
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	return out
}

func expectPayloads(t *testing.T, got []string, want ...string) {
	t.Helper()
	if !slices.Equal(got, want) {
		t.Fatalf("expected payloads %v, got %v", want, got)
	}
}

func openLedger(t *testing.T) *BoltLedger {
	t.Helper()
	l, err := OpenBoltLedger(filepath.Join(t.TempDir(), "ledger", "remarks.db"))
	if err != nil {
		t.Fatalf("open ledger: %v", err)
	}
	t.Cleanup(func() {
		if err := l.Close(); err != nil {
			t.Errorf("close ledger: %v", err)
		}
	})
	return l
}

func TestBoltLedgerScanFilters(t *testing.T) {
	l := openLedger(t)
	ctx := context.Background()
	// Insert out of order; the ledger keys by position.
	remarks := fixtures()
	for _, i := range []int{3, 1, 0, 2} {
		if err := l.AppendRemark(ctx, remarks[i]); err != nil {
			t.Fatalf("append: %v", err)
		}
	}

	expectPayloads(t, collect(t, l, models.RemarkFilter{}),
		"0xcc00ee0001", "0xdeadbeef", "0xCC00EE0002", "0xcc00ee0003")
	expectPayloads(t, collect(t, l, models.RemarkFilter{PayloadPattern: "^0xcc00ee"}),
		"0xcc00ee0001", "0xCC00EE0002", "0xcc00ee0003")
	expectPayloads(t, collect(t, l, models.RemarkFilter{PayloadPattern: "^0xcc00ee", Sender: alice}),
		"0xcc00ee0001", "0xcc00ee0003")
	expectPayloads(t, collect(t, l, models.RemarkFilter{PayloadPattern: "^0xcc00ee", FromBlock: 2}),
		"0xCC00EE0002", "0xcc00ee0003")

	head, err := l.Head(ctx)
	if err != nil || head != 5 {
		t.Fatalf("expected head 5, got %d, %v", head, err)
	}
}

func TestBoltLedgerPositionsAreImmutable(t *testing.T) {
	l := openLedger(t)
	ctx := context.Background()
	r := fixtures()[0]
	if err := l.AppendRemark(ctx, r); err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := l.AppendRemark(ctx, r); err != nil {
		t.Fatalf("identical rewrite should be a no-op, got %v", err)
	}

	r.PayloadHex = "0xcc00ee0099"
	if err := l.AppendRemark(ctx, r); !errors.Is(err, ErrPositionTaken) {
		t.Fatalf("expected ErrPositionTaken, got %v", err)
	}
}

func TestBoltLedgerReopenKeepsData(t *testing.T) {
	path := filepath.Join(t.TempDir(), "remarks.db")
	l, err := OpenBoltLedger(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := l.AppendRemark(context.Background(), fixtures()[0]); err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := l.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	l, err = OpenBoltLedger(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer l.Close()
	if got := collect(t, l, models.RemarkFilter{}); len(got) != 1 {
		t.Fatalf("expected 1 remark after reopen, got %d", len(got))
	}
}

func TestBoltLedgerCallbackErrorStopsScan(t *testing.T) {
	l := openLedger(t)
	for _, r := range fixtures() {
		if err := l.AppendRemark(context.Background(), r); err != nil {
			t.Fatalf("append: %v", err)
		}
	}
	stop := errors.New("stop")
	calls := 0
	err := l.ScanRemarks(context.Background(), models.RemarkFilter{}, func(models.Remark) error {
		calls++
		return stop
	})
	if !errors.Is(err, stop) || calls != 1 {
		t.Fatalf("expected scan to stop after 1 call, got %d calls, %v", calls, err)
	}
}

func TestInvalidPatternRejected(t *testing.T) {
	l := openLedger(t)
	noop := func(models.Remark) error { return nil }
	if err := l.ScanRemarks(context.Background(), models.RemarkFilter{PayloadPattern: "("}, noop); !errors.Is(err, ErrInvalidFilter) {
		t.Fatalf("bolt: expected ErrInvalidFilter, got %v", err)
	}
	if err := NewMemoryStore().ScanRemarks(context.Background(), models.RemarkFilter{PayloadPattern: "("}, noop); !errors.Is(err, ErrInvalidFilter) {
		t.Fatalf("memory: expected ErrInvalidFilter, got %v", err)
	}
}

func TestSenderFilterIgnoresAddressFormat(t *testing.T) {
	id, err := models.ParseAccountID(alice)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	s := NewMemoryStore(
		models.Remark{Sender: id.SS58(models.PolkadotPrefix), PayloadHex: "0xcc00ee0001", Block: 1},
		models.Remark{Sender: bob, PayloadHex: "0xcc00ee0002", Block: 2},
	)
	expectPayloads(t, collect(t, s, models.RemarkFilter{Sender: alice}), "0xcc00ee0001")
	expectPayloads(t, collect(t, s, models.RemarkFilter{Sender: id.SS58(models.KusamaPrefix)}), "0xcc00ee0001")
}

func TestMemoryStoreScanAndHead(t *testing.T) {
	s := NewMemoryStore(fixtures()...)
	expectPayloads(t, collect(t, s, models.RemarkFilter{PayloadPattern: "^0xcc00ee", Sender: bob}), "0xCC00EE0002")
	head, err := s.Head(context.Background())
	if err != nil || head != 5 {
		t.Fatalf("expected head 5, got %d, %v", head, err)
	}

	// Appending during a scan does not affect the running iteration.
	seen := 0
	err = s.ScanRemarks(context.Background(), models.RemarkFilter{}, func(r models.Remark) error {
		seen++
		return s.AppendRemark(context.Background(), r)
	})
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if seen != 4 || s.Len() != 8 {
		t.Fatalf("expected 4 visited and 8 stored, got %d and %d", seen, s.Len())
	}
}

func TestMemoryStoreHonoursCancellation(t *testing.T) {
	s := NewMemoryStore(fixtures()...)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := s.ScanRemarks(ctx, models.RemarkFilter{}, func(models.Remark) error { return nil })
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestMongoFilterMatchesIndexerQuery(t *testing.T) {
	s := &MongoStore{cfg: DefaultMongoConfig()}
	got := s.buildFilter(models.RemarkFilter{PayloadPattern: "^0xcc00ee", Sender: alice, FromBlock: 7})
	want := bson.D{
		{Key: "method", Value: "remark"},
		{Key: "args.remark", Value: bson.D{{Key: "$regex", Value: "^0xcc00ee"}, {Key: "$options", Value: "i"}}},
		{Key: "signer.Id", Value: alice},
		{Key: "blockNumber", Value: bson.D{{Key: "$gte", Value: int64(7)}}},
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("unexpected filter\n got: %v\nwant: %v", got, want)
	}

	if bare := s.buildFilter(models.RemarkFilter{PayloadPattern: "^0xcc00ee"}); len(bare) != 2 {
		t.Fatalf("expected 2 filter terms, got %v", bare)
	}
	wantSort := bson.D{{Key: "blockNumber", Value: 1}, {Key: "index", Value: 1}}
	if got := s.sortOrder(); !reflect.DeepEqual(got, wantSort) {
		t.Fatalf("unexpected sort %v", got)
	}
}

func TestMongoDecodeRemark(t *testing.T) {
	s := &MongoStore{cfg: DefaultMongoConfig()}
	raw, err := bson.Marshal(bson.D{
		{Key: "method", Value: "remark"},
		{Key: "args", Value: bson.D{{Key: "remark", Value: "0xcc00ee00"}}},
		{Key: "signer", Value: bson.D{{Key: "Id", Value: alice}}},
		{Key: "blockNumber", Value: int32(42)},
		{Key: "index", Value: int64(3)},
	})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	r, ok := s.decodeRemark(raw)
	want := models.Remark{Sender: alice, PayloadHex: "0xcc00ee00", Block: 42, Index: 3}
	if !ok || r != want {
		t.Fatalf("expected %+v, got %+v (ok=%v)", want, r, ok)
	}

	noSigner, err := bson.Marshal(bson.D{{Key: "args", Value: bson.D{{Key: "remark", Value: "0xcc00ee00"}}}})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if _, ok := s.decodeRemark(noSigner); ok {
		t.Fatal("remark without signer must be rejected")
	}
}
