package core

import (
	"context"
	"testing"
	"time"
)

func TestMemoryIdempotencyLedger_FirstWriterWinsPerOperation(t *testing.T) {
	ctx := context.Background()
	ledger := NewMemoryIdempotencyLedger(time.Hour)

	created, err := ledger.Remember(ctx, IdempotencyRecord{Operation: OperationCheckEnrollment, Key: "key-1", ServerTransactionID: "tx_1"})
	if err != nil || !created {
		t.Fatalf("expected first remember to create, created=%v err=%v", created, err)
	}
	created, err = ledger.Remember(ctx, IdempotencyRecord{Operation: OperationCheckEnrollment, Key: "key-1", ServerTransactionID: "tx_2"})
	if err != nil || created {
		t.Fatalf("expected second remember to be ignored, created=%v err=%v", created, err)
	}
	created, err = ledger.Remember(ctx, IdempotencyRecord{Operation: OperationInitiateAuthentication, Key: "key-1", ServerTransactionID: "tx_3"})
	if err != nil || !created {
		t.Fatalf("expected keys to be scoped per operation, created=%v err=%v", created, err)
	}

	record, found, err := ledger.Lookup(ctx, OperationCheckEnrollment, "key-1")
	if err != nil || !found {
		t.Fatalf("lookup: found=%v err=%v", found, err)
	}
	if record.ServerTransactionID != "tx_1" {
		t.Fatalf("expected first writer, got %q", record.ServerTransactionID)
	}

	if _, err := ledger.Remember(ctx, IdempotencyRecord{Operation: "refund", Key: "key-1"}); err == nil {
		t.Fatalf("expected unknown operation to be rejected")
	}
	if _, err := ledger.Remember(ctx, IdempotencyRecord{Operation: OperationCheckEnrollment}); err == nil {
		t.Fatalf("expected empty key to be rejected")
	}
}

func TestMemoryIdempotencyLedger_ExpiresAndEvicts(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	ledger := NewMemoryIdempotencyLedgerWithLimits(time.Minute, 2)
	ledger.Now = func() time.Time { return now }

	for index, key := range []string{"a", "b", "c"} {
		now = now.Add(time.Second)
		if _, err := ledger.Remember(ctx, IdempotencyRecord{Operation: OperationCheckEnrollment, Key: key, ServerTransactionID: "tx_" + key}); err != nil {
			t.Fatalf("remember %d: %v", index, err)
		}
	}
	if _, found, _ := ledger.Lookup(ctx, OperationCheckEnrollment, "a"); found {
		t.Fatalf("expected oldest entry to be evicted")
	}
	if _, found, _ := ledger.Lookup(ctx, OperationCheckEnrollment, "c"); !found {
		t.Fatalf("expected newest entry to be kept")
	}

	now = now.Add(2 * time.Minute)
	if _, found, _ := ledger.Lookup(ctx, OperationCheckEnrollment, "c"); found {
		t.Fatalf("expected entry to expire")
	}
	purged, err := ledger.PurgeExpired(ctx)
	if err != nil {
		t.Fatalf("purge: %v", err)
	}
	if purged != 1 {
		t.Fatalf("expected one remaining expired entry to be purged, got %d", purged)
	}
}
