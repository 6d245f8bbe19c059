package store

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/BTreeMap/LeadPipe/internal/flow"
	"github.com/BTreeMap/LeadPipe/internal/models"
	"github.com/BTreeMap/LeadPipe/internal/session"
)

func newSQLite(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLiteStore(WithDSN(filepath.Join(t.TempDir(), "nested", "leadpipe.db")))
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func newPostgres(t *testing.T) *PostgresStore {
	t.Helper()
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		t.Skip("env DATABASE_URL not set")
	}
	s, err := NewPostgresStore(WithDSN(dsn))
	if err != nil {
		t.Skipf("Postgres not available: %v", err)
	}
	for _, table := range []string{"sessions", "inbound_dedup", "outbox_messages"} {
		s.db.Exec("DELETE FROM " + table)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestDetectDSNType(t *testing.T) {
	tests := map[string]string{
		"postgres://u:p@localhost/db":   DSNTypePostgres,
		"postgresql://localhost/db":     DSNTypePostgres,
		"host=localhost dbname=leads":   DSNTypePostgres,
		"/var/lib/leadpipe/leadpipe.db": DSNTypeSQLite,
		"file:test.db?cache=shared":     DSNTypeSQLite,
	}
	for dsn, want := range tests {
		if got := DetectDSNType(dsn); got != want {
			t.Errorf("DetectDSNType(%q) = %q, want %q", dsn, got, want)
		}
	}
}

func TestOpen_RequiresDSN(t *testing.T) {
	if _, err := Open(); err == nil {
		t.Fatal("expected error for empty DSN")
	}
}

func TestSQLiteStore_Sessions(t *testing.T) {
	testSessionStore(t, newSQLite(t))
}

func TestPostgresStore_Sessions(t *testing.T) {
	testSessionStore(t, newPostgres(t))
}

func TestSQLiteStore_Dedup(t *testing.T) {
	testDedup(t, newSQLite(t))
}

func TestPostgresStore_Dedup(t *testing.T) {
	testDedup(t, newPostgres(t))
}

func TestSQLiteStore_Outbox(t *testing.T) {
	testOutbox(t, newSQLite(t))
}

func TestPostgresStore_Outbox(t *testing.T) {
	testOutbox(t, newPostgres(t))
}

func testSessionStore(t *testing.T, st session.Store) {
	ctx := context.Background()

	if _, err := st.Get(ctx, "missing"); !errors.Is(err, session.ErrNotFound) {
		t.Fatalf("Get(missing) error = %v, want ErrNotFound", err)
	}

	s := session.New(session.Key(models.ChannelWhatsApp, "+15551234567"), models.ChannelWhatsApp, "u1", nil, "+15551234567")
	s.Address = "+15550000000"
	s.AddMessage(models.RoleUser, "hello")
	if err := st.Put(ctx, s); err != nil {
		t.Fatalf("Put: %v", err)
	}

	got, err := st.Get(ctx, s.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.UserID != "u1" || len(got.History) != 1 || got.Flow.State != flow.StateGreeting {
		t.Errorf("unexpected snapshot: %+v", got)
	}

	// Mutating the loaded copy and storing it again replaces the row.
	got.Greeted = true
	if err := st.Put(ctx, got); err != nil {
		t.Fatalf("Put update: %v", err)
	}
	if n, _ := st.Count(ctx); n != 1 {
		t.Errorf("Count = %d, want 1", n)
	}

	byPhone, err := st.GetByPhone(ctx, "+15551234567")
	if err != nil {
		t.Fatalf("GetByPhone: %v", err)
	}
	if !byPhone.Greeted {
		t.Error("GetByPhone returned a stale snapshot")
	}

	other := session.New("web-1", models.ChannelWeb, "u1", nil, "")
	other.LastActivity = time.Now().Add(-time.Hour)
	if err := st.Put(ctx, other); err != nil {
		t.Fatalf("Put other: %v", err)
	}
	n, err := st.SweepExpired(ctx, time.Now(), 5*time.Minute)
	if err != nil {
		t.Fatalf("SweepExpired: %v", err)
	}
	if n != 1 {
		t.Errorf("SweepExpired removed %d, want 1", n)
	}
	if _, err := st.Get(ctx, "web-1"); !errors.Is(err, session.ErrNotFound) {
		t.Errorf("expired session still present: %v", err)
	}

	n, err = st.DeleteByAddress(ctx, models.ChannelWhatsApp, "+15550000000")
	if err != nil {
		t.Fatalf("DeleteByAddress: %v", err)
	}
	if n != 1 {
		t.Errorf("DeleteByAddress removed %d, want 1", n)
	}
	if _, err := st.GetByPhone(ctx, "+15551234567"); !errors.Is(err, session.ErrNotFound) {
		t.Errorf("phone lookup after delete: %v", err)
	}
	if err := st.Delete(ctx, "never-existed"); err != nil {
		t.Errorf("Delete(missing) = %v", err)
	}
}

func testDedup(t *testing.T, repo DedupRepo) {
	ctx := context.Background()
	first, err := repo.RecordInbound(ctx, "SM1", "whatsapp:+1555")
	if err != nil || !first {
		t.Fatalf("first RecordInbound = %v, %v", first, err)
	}
	again, err := repo.RecordInbound(ctx, "SM1", "whatsapp:+1555")
	if err != nil {
		t.Fatalf("second RecordInbound: %v", err)
	}
	if again {
		t.Error("duplicate message recorded twice")
	}
	if err := repo.MarkProcessed(ctx, "SM1"); err != nil {
		t.Fatalf("MarkProcessed: %v", err)
	}
	n, err := repo.PruneDedup(ctx, time.Now().Add(time.Minute))
	if err != nil || n != 1 {
		t.Fatalf("PruneDedup = %d, %v", n, err)
	}
	fresh, err := repo.RecordInbound(ctx, "SM1", "whatsapp:+1555")
	if err != nil || !fresh {
		t.Errorf("RecordInbound after prune = %v, %v", fresh, err)
	}
}

func testOutbox(t *testing.T, repo OutboxRepo) {
	ctx := context.Background()
	payload := flow.LeadPayload{LeadType: "callback", ServiceType: "Braces", LeadName: "Jane", LeadEmail: "j@x.co"}

	id, err := EnqueueLead(ctx, repo, "web-1", "u1", payload)
	if err != nil {
		t.Fatalf("EnqueueLead: %v", err)
	}
	dup, err := EnqueueLead(ctx, repo, "web-1", "u1", payload)
	if err != nil {
		t.Fatalf("EnqueueLead again: %v", err)
	}
	if dup != id {
		t.Errorf("pending lead enqueued twice: %s != %s", dup, id)
	}

	now := time.Now()
	msgs, err := repo.ClaimDueOutboxMessages(ctx, now, 10)
	if err != nil {
		t.Fatalf("Claim: %v", err)
	}
	if len(msgs) != 1 || msgs[0].ID != id || msgs[0].UserID != "u1" || msgs[0].Kind != KindLead {
		t.Fatalf("unexpected claim: %+v", msgs)
	}
	if msgs[0].Status != OutboxStatusSending {
		t.Errorf("status = %s, want sending", msgs[0].Status)
	}
	if again, _ := repo.ClaimDueOutboxMessages(ctx, now, 10); len(again) != 0 {
		t.Errorf("claimed message claimed again: %+v", again)
	}

	if err := repo.FailOutboxMessage(ctx, id, "boom", now.Add(time.Minute)); err != nil {
		t.Fatalf("Fail: %v", err)
	}
	if due, _ := repo.ClaimDueOutboxMessages(ctx, now, 10); len(due) != 0 {
		t.Errorf("message claimed before its retry time: %+v", due)
	}
	due, err := repo.ClaimDueOutboxMessages(ctx, now.Add(2*time.Minute), 10)
	if err != nil || len(due) != 1 {
		t.Fatalf("Claim after backoff = %+v, %v", due, err)
	}
	if due[0].Attempts != 1 || due[0].LastError != "boom" {
		t.Errorf("attempt not recorded: %+v", due[0])
	}

	if n, err := repo.RequeueStaleSendingMessages(ctx, now.Add(time.Hour)); err != nil || n != 1 {
		t.Fatalf("Requeue = %d, %v", n, err)
	}
	due, _ = repo.ClaimDueOutboxMessages(ctx, now.Add(2*time.Minute), 10)
	if len(due) != 1 {
		t.Fatalf("requeued message not claimable: %+v", due)
	}
	if err := repo.MarkOutboxMessageSent(ctx, id); err != nil {
		t.Fatalf("MarkSent: %v", err)
	}

	// A delivered lead no longer blocks a new one for the same session.
	next, err := EnqueueLead(ctx, repo, "web-1", "u1", payload)
	if err != nil {
		t.Fatalf("EnqueueLead after send: %v", err)
	}
	if next == id {
		t.Error("sent message reused for a new lead")
	}
}
