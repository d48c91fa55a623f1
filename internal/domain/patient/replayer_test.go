package patient

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/ehr/ehrbridge/internal/ehr"
	"github.com/ehr/ehrbridge/internal/ehr/ehrtest"
)

func TestReplayer_AppliesDeferredWrites(t *testing.T) {
	svc, repo, outbox := newTestService()
	client := ehrtest.NewClient(ehr.VendorModMed)
	ctx := context.Background()

	repo.setFailing(errors.New("down"))
	created, err := svc.CreatePatient(ctx, client, &ehr.Patient{FirstName: "Ada", LastName: "Lovelace"})
	if err != nil || !created.Pending {
		t.Fatalf("expected deferred create, got %+v %v", created, err)
	}
	if _, err := svc.DeletePatient(ctx, client, created.Remote.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	repo.setFailing(nil)

	txCalls := 0
	r := NewReplayer(repo, outbox, zerolog.Nop(), WithTx(func(ctx context.Context, fn func(context.Context) error) error {
		txCalls++
		return fn(ctx)
	}))
	stats, err := r.ReplayOnce(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if stats.Applied != 2 || stats.Failed != 0 {
		t.Errorf("expected 2 applied, got %+v", stats)
	}
	if txCalls != 2 {
		t.Errorf("expected one transaction per entry, got %d", txCalls)
	}

	row, err := repo.GetByVendorID(ctx, ehr.VendorModMed, created.Remote.ID)
	if err != nil {
		t.Fatalf("expected replayed row: %v", err)
	}
	if row.FirstName != "Ada" || row.Status != ehr.PatientInactive {
		t.Errorf("expected upsert then deactivate in order, got %+v", row)
	}

	stats, _ = r.ReplayOnce(ctx)
	if stats.Applied != 0 {
		t.Errorf("expected applied entries to be skipped, got %+v", stats)
	}
}

func TestReplayer_CountsFailures(t *testing.T) {
	svc, repo, outbox := newTestService()
	ctx := context.Background()
	repo.setFailing(errors.New("down"))
	svc.CreatePatient(ctx, ehrtest.NewClient(ehr.VendorAthena), &ehr.Patient{FirstName: "A", LastName: "B"})

	r := NewReplayer(repo, outbox, zerolog.Nop(), WithMaxAttempts(2))
	for i := 0; i < 3; i++ {
		if _, err := r.ReplayOnce(ctx); err != nil {
			t.Fatalf("pass %d: %v", i, err)
		}
	}

	e := outbox.entries[0]
	if e.Attempts != 2 {
		t.Errorf("expected attempts to stop at 2, got %d", e.Attempts)
	}
	if e.LastError == "" || e.AppliedAt != nil {
		t.Errorf("expected a recorded failure, got %+v", e)
	}
}

func TestReplayer_UpsertWithoutPayload(t *testing.T) {
	repo := newMockRepo()
	outbox := &mockOutbox{}
	outbox.Enqueue(context.Background(), &OutboxEntry{Op: OpUpsert, Vendor: ehr.VendorModMed, VendorPatientID: "x"})

	stats, err := NewReplayer(repo, outbox, zerolog.Nop()).ReplayOnce(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if stats.Failed != 1 || len(repo.rows) != 0 {
		t.Errorf("expected the entry to fail, got %+v", stats)
	}
}

func TestReplayer_RunStopsOnCancel(t *testing.T) {
	repo := newMockRepo()
	outbox := &mockOutbox{}
	outbox.Enqueue(context.Background(), &OutboxEntry{
		Op: OpUpsert, Vendor: ehr.VendorModMed, VendorPatientID: "p1",
		Payload: &Record{FirstName: "A", LastName: "B"},
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		NewReplayer(repo, outbox, zerolog.Nop()).Run(ctx, 5*time.Millisecond)
		close(done)
	}()

	deadline := time.After(2 * time.Second)
	for {
		if _, err := repo.GetByVendorID(context.Background(), ehr.VendorModMed, "p1"); err == nil {
			break
		}
		select {
		case <-deadline:
			cancel()
			t.Fatal("replayer never applied the entry")
		case <-time.After(5 * time.Millisecond):
		}
	}

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestReplayer_UndecodableEntryDoesNotBlockBatch(t *testing.T) {
	repo := newMockRepo()
	outbox := &mockOutbox{}
	ctx := context.Background()

	outbox.Enqueue(ctx, &OutboxEntry{
		Op: OpUpsert, Vendor: ehr.VendorModMed, VendorPatientID: "good-1",
		Payload: &Record{FirstName: "A", LastName: "One"},
	})
	bad := &OutboxEntry{Op: OpUpsert, Vendor: ehr.VendorModMed, VendorPatientID: "bad"}
	outbox.Enqueue(ctx, bad)
	bad.DecodeErr = errors.New("decode outbox payload: cipher: message authentication failed")
	outbox.Enqueue(ctx, &OutboxEntry{
		Op: OpUpsert, Vendor: ehr.VendorAthena, VendorPatientID: "good-2",
		Payload: &Record{FirstName: "B", LastName: "Two"},
	})

	stats, err := NewReplayer(repo, outbox, zerolog.Nop()).ReplayOnce(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if stats.Applied != 2 || stats.Failed != 1 {
		t.Errorf("expected 2 applied and 1 failed, got %+v", stats)
	}
	for _, id := range []struct{ vendor, pid string }{{ehr.VendorModMed, "good-1"}, {ehr.VendorAthena, "good-2"}} {
		if _, err := repo.GetByVendorID(ctx, id.vendor, id.pid); err != nil {
			t.Errorf("expected %s/%s mirrored: %v", id.vendor, id.pid, err)
		}
	}
	if _, err := repo.GetByVendorID(ctx, ehr.VendorModMed, "bad"); err == nil {
		t.Error("undecodable entry must not reach the mirror")
	}
	if bad.Attempts != 1 || bad.AppliedAt != nil || bad.LastError != bad.DecodeErr.Error() {
		t.Errorf("expected the undecodable entry marked failed, got %+v", bad)
	}
}
