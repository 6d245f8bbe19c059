package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/BTreeMap/LeadPipe/internal/flow"
	"github.com/BTreeMap/LeadPipe/internal/models"
)

func testContext() *models.Context {
	return &models.Context{UserID: "u1", Integration: models.Integration{ValidateEmail: true, ValidatePhoneNumber: true}}
}

func TestNew_ConfiguresChannel(t *testing.T) {
	s := New("", models.ChannelWhatsApp, "u1", testContext(), "+15551234567")
	if s.ID == "" {
		t.Fatal("expected generated id")
	}
	if s.Flow.State != flow.StateGreeting {
		t.Errorf("expected GREETING, got %s", s.Flow.State)
	}
	if !s.Flow.SkipPhone || !s.Flow.OTP.PhoneVerified || s.Flow.Fields.LeadPhoneNumber != "+15551234567" {
		t.Errorf("whatsapp session should skip phone collection: %+v", s.Flow)
	}
	web := New("w1", models.ChannelWeb, "u1", nil, "")
	if web.Flow.SkipPhone {
		t.Error("web session should collect phone")
	}
	if !web.Flow.ValidateEmail {
		t.Error("missing context should use default validation settings")
	}
}

func TestAddMessage_Cap(t *testing.T) {
	s := New("s1", models.ChannelWeb, "u1", nil, "")
	for i := 0; i < MaxHistory+10; i++ {
		s.AddMessage(models.RoleUser, fmt.Sprintf("m%d", i))
	}
	s.AddMessage(models.RoleAssistant, "  ")
	if len(s.History) != MaxHistory {
		t.Fatalf("expected %d entries, got %d", MaxHistory, len(s.History))
	}
	if s.History[0].Content != "m10" {
		t.Errorf("expected oldest entries dropped, first is %q", s.History[0].Content)
	}
}

func TestMemoryStore_RoundTripAndIndexes(t *testing.T) {
	ctx := context.Background()
	st := NewMemoryStore()
	s := New(Key(models.ChannelWhatsApp, "whatsapp:+1555"), models.ChannelWhatsApp, "u1", testContext(), "+1555")
	s.Address = "whatsapp:+1999"
	s.Flow.SetName("John")
	if err := st.Put(ctx, s); err != nil {
		t.Fatal(err)
	}

	s.Flow.SetName("Mutated")
	got, err := st.Get(ctx, s.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Flow.Fields.LeadName != "John" {
		t.Errorf("store must hold a snapshot, got %q", got.Flow.Fields.LeadName)
	}

	byPhone, err := st.GetByPhone(ctx, "+1555")
	if err != nil || byPhone.ID != s.ID {
		t.Fatalf("phone index lookup failed: %v", err)
	}

	n, _ := st.DeleteByAddress(ctx, models.ChannelWhatsApp, "whatsapp:+1999")
	if n != 1 {
		t.Errorf("expected 1 deleted, got %d", n)
	}
	if _, err := st.GetByPhone(ctx, "+1555"); !errors.Is(err, ErrNotFound) {
		t.Errorf("phone index should be cleared, got %v", err)
	}
	if err := st.Delete(ctx, "missing"); err != nil {
		t.Errorf("deleting a missing session should not fail: %v", err)
	}
}

func TestSweeper(t *testing.T) {
	ctx := context.Background()
	st := NewMemoryStore()
	now := time.Now()

	old := New("old", models.ChannelWhatsApp, "u1", nil, "+1")
	old.LastActivity = now.Add(-10 * time.Minute)
	fresh := New("fresh", models.ChannelWeb, "u1", nil, "")
	fresh.LastActivity = now
	_ = st.Put(ctx, old)
	_ = st.Put(ctx, fresh)

	sw := NewSweeper(st, 5*time.Minute)
	sw.now = func() time.Time { return now }
	if n := sw.Sweep(ctx); n != 1 {
		t.Fatalf("expected 1 evicted, got %d", n)
	}
	if _, err := st.Get(ctx, "old"); !errors.Is(err, ErrNotFound) {
		t.Error("expired session still present")
	}
	if _, err := st.GetByPhone(ctx, "+1"); !errors.Is(err, ErrNotFound) {
		t.Error("phone index of expired session still present")
	}
	if sw.Sweep(ctx) != 0 {
		t.Error("second sweep should be a no-op")
	}
}

type recordingScheduler struct {
	name, expr string
	task       func()
}

func (r *recordingScheduler) AddJob(name, expr string, task func()) error {
	r.name, r.expr, r.task = name, expr, task
	return nil
}

func TestSweeper_Register(t *testing.T) {
	rs := &recordingScheduler{}
	if err := NewSweeper(NewMemoryStore(), 0).Register(context.Background(), rs, ""); err != nil {
		t.Fatal(err)
	}
	if rs.expr != DefaultSweepSchedule || rs.task == nil {
		t.Errorf("unexpected registration %+v", rs)
	}
	rs.task()
}

func TestLocks_Serialize(t *testing.T) {
	l := NewLocks()
	var mu sync.Mutex
	active, maxActive := 0, 0
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := l.Lock("s1")
			defer unlock()
			mu.Lock()
			active++
			if active > maxActive {
				maxActive = active
			}
			mu.Unlock()
			time.Sleep(time.Millisecond)
			mu.Lock()
			active--
			mu.Unlock()
		}()
	}
	wg.Wait()
	if maxActive != 1 {
		t.Errorf("expected turns to be serialized, saw %d concurrent", maxActive)
	}
	if l.Len() != 0 {
		t.Errorf("expected lock table to be empty, got %d", l.Len())
	}
}
