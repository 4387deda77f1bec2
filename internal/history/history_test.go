package history

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/zulandar/huebot/internal/api"
	"github.com/zulandar/huebot/internal/cache"
)

type fakeBackend struct {
	mu        sync.Mutex
	list      []api.Diagnosis
	listCalls int
	getCalls  int
	deleted   []int
	deleteErr error
}

func (f *fakeBackend) ListDiagnoses(ctx context.Context) ([]api.Diagnosis, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listCalls++
	return append([]api.Diagnosis(nil), f.list...), nil
}

func (f *fakeBackend) GetDiagnosis(ctx context.Context, id int) (api.Diagnosis, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.getCalls++
	for _, d := range f.list {
		if d.ID == id {
			return d, nil
		}
	}
	return api.Diagnosis{}, &api.APIError{Status: 404, Detail: "not found"}
}

func (f *fakeBackend) DeleteDiagnosis(ctx context.Context, id int) (api.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.deleteErr != nil {
		return api.Message{}, f.deleteErr
	}
	f.deleted = append(f.deleted, id)
	kept := f.list[:0]
	for _, d := range f.list {
		if d.ID != id {
			kept = append(kept, d)
		}
	}
	f.list = kept
	return api.Message{Message: "진단 기록이 삭제되었습니다."}, nil
}

type clock struct{ now time.Time }

func (c *clock) Now() time.Time { return c.now }

func newTestService(t *testing.T, userID int) (*Service, *fakeBackend, *clock) {
	t.Helper()
	clk := &clock{now: time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)}
	backend := &fakeBackend{list: []api.Diagnosis{
		{ID: 3, ResultTone: "spring", ResultName: "봄 웜 라이트"},
		{ID: 1, ResultTone: "winter"},
	}}
	c := cache.NewClient(cache.ClientOptions{Now: clk.Now})
	svc := NewService(backend, c, userID, Options{StaleNormal: 30 * time.Minute, StaleLive: time.Minute}, nil)
	return svc, backend, clk
}

func TestList_ModesUseTheirWindows(t *testing.T) {
	tests := []struct {
		name      string
		mode      Mode
		advance   time.Duration
		wantCalls int
	}{
		{"normal within window", ModeNormal, 10 * time.Minute, 1},
		{"normal past window", ModeNormal, 31 * time.Minute, 2},
		{"live within window", ModeLive, 30 * time.Second, 1},
		{"live past window", ModeLive, 2 * time.Minute, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, backend, clk := newTestService(t, 7)
			ctx := context.Background()
			if _, err := svc.List(ctx, tt.mode); err != nil {
				t.Fatalf("List: %v", err)
			}
			clk.now = clk.now.Add(tt.advance)
			list, err := svc.List(ctx, tt.mode)
			if err != nil {
				t.Fatalf("List: %v", err)
			}
			if len(list) != 2 {
				t.Errorf("len = %d", len(list))
			}
			if backend.listCalls != tt.wantCalls {
				t.Errorf("list calls = %d, want %d", backend.listCalls, tt.wantCalls)
			}
		})
	}
}

func TestSignedOut(t *testing.T) {
	svc, backend, _ := newTestService(t, 0)
	ctx := context.Background()
	if _, err := svc.List(ctx, ModeNormal); !errors.Is(err, ErrSignedOut) {
		t.Errorf("List err = %v", err)
	}
	if _, err := svc.Detail(ctx, 3); !errors.Is(err, ErrSignedOut) {
		t.Errorf("Detail err = %v", err)
	}
	if _, err := svc.Delete(ctx, 3); !errors.Is(err, ErrSignedOut) {
		t.Errorf("Delete err = %v", err)
	}
	if _, err := svc.Watch(ModeLive); !errors.Is(err, ErrSignedOut) {
		t.Errorf("Watch err = %v", err)
	}
	if backend.listCalls != 0 || backend.getCalls != 0 {
		t.Error("signed-out service must not call the backend")
	}
}

func TestLatest(t *testing.T) {
	svc, backend, _ := newTestService(t, 7)
	d, ok, err := svc.Latest(context.Background())
	if err != nil || !ok {
		t.Fatalf("Latest = %v, %v", ok, err)
	}
	if d.ID != 3 {
		t.Errorf("Latest id = %d, want 3", d.ID)
	}

	backend.list = nil
	svc.InvalidateList()
	if _, ok, err := svc.Latest(context.Background()); ok || err != nil {
		t.Errorf("Latest on empty history = %v, %v", ok, err)
	}
}

func TestDetail_CachedPerID(t *testing.T) {
	svc, backend, _ := newTestService(t, 7)
	ctx := context.Background()
	for i := 0; i < 2; i++ {
		d, err := svc.Detail(ctx, 3)
		if err != nil {
			t.Fatalf("Detail: %v", err)
		}
		if d.DisplayName() != "봄 웜 라이트" {
			t.Errorf("name = %q", d.DisplayName())
		}
	}
	if backend.getCalls != 1 {
		t.Errorf("get calls = %d, want 1", backend.getCalls)
	}
	if _, err := svc.Detail(ctx, 0); err == nil {
		t.Error("expected error for id 0")
	}
	if _, err := svc.Detail(ctx, 99); api.Kind(err) != api.KindNotFound {
		t.Errorf("Detail(99) err = %v", err)
	}
}

func TestDelete_InvalidatesListAndDropsDetail(t *testing.T) {
	svc, backend, _ := newTestService(t, 7)
	ctx := context.Background()

	svc.List(ctx, ModeNormal)
	svc.Detail(ctx, 3)

	if _, err := svc.Delete(ctx, 3); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, ok := cache.Peek[api.Diagnosis](svc.cache, svc.DetailKey(3)); ok {
		t.Error("detail entry should be removed")
	}
	list, err := svc.List(ctx, ModeNormal)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if backend.listCalls != 2 {
		t.Errorf("list calls = %d, want refetch after delete", backend.listCalls)
	}
	if len(list) != 1 || list[0].ID != 1 {
		t.Errorf("list = %+v", list)
	}
}

func TestDelete_FailureLeavesCache(t *testing.T) {
	svc, backend, _ := newTestService(t, 7)
	ctx := context.Background()
	svc.List(ctx, ModeNormal)
	backend.deleteErr = &api.APIError{Status: 404}

	if _, err := svc.Delete(ctx, 3); err == nil {
		t.Fatal("expected error")
	}
	svc.List(ctx, ModeNormal)
	if backend.listCalls != 1 {
		t.Errorf("list calls = %d, want cached list kept", backend.listCalls)
	}
}

func TestInvalidateList_IsUserScoped(t *testing.T) {
	clk := &clock{now: time.Now()}
	c := cache.NewClient(cache.ClientOptions{Now: clk.Now})
	alice := &fakeBackend{list: []api.Diagnosis{{ID: 1}}}
	bob := &fakeBackend{list: []api.Diagnosis{{ID: 2}}}
	svcA := NewService(alice, c, 1, Options{}, nil)
	svcB := NewService(bob, c, 2, Options{}, nil)
	ctx := context.Background()

	svcA.List(ctx, ModeNormal)
	svcB.List(ctx, ModeNormal)
	svcA.InvalidateList()
	svcA.List(ctx, ModeNormal)
	svcB.List(ctx, ModeNormal)

	if alice.listCalls != 2 {
		t.Errorf("alice calls = %d, want 2", alice.listCalls)
	}
	if bob.listCalls != 1 {
		t.Errorf("bob calls = %d, want 1", bob.listCalls)
	}
}

func TestWatch_LiveRefetchesOnOpen(t *testing.T) {
	svc, backend, clk := newTestService(t, 7)
	ctx := context.Background()
	svc.List(ctx, ModeLive)
	clk.now = clk.now.Add(5 * time.Minute)

	o, err := svc.Watch(ModeLive)
	if err != nil {
		t.Fatal(err)
	}
	defer o.Close()
	if _, err := o.Get(ctx); err != nil {
		t.Fatal(err)
	}
	if backend.listCalls != 2 {
		t.Errorf("list calls = %d, want 2", backend.listCalls)
	}
}

func TestStartAutoRefresh(t *testing.T) {
	svc, _, _ := newTestService(t, 7)
	if _, err := svc.StartAutoRefresh(context.Background(), "@every 10m"); err != nil {
		t.Errorf("StartAutoRefresh: %v", err)
	}
	if _, err := svc.StartAutoRefresh(context.Background(), "bogus"); err == nil {
		t.Error("expected error for bad schedule")
	}
}

func TestModeString(t *testing.T) {
	if ModeNormal.String() != "normal" || ModeLive.String() != "live" {
		t.Errorf("mode strings = %q %q", ModeNormal, ModeLive)
	}
}
