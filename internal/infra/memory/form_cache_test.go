package memory

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"formbuilder-service/internal/domain"
)

type countingLoader struct {
	FormLoader
	calls atomic.Int32
}

func (l *countingLoader) GetForm(ctx context.Context, formID string) (domain.Form, error) {
	l.calls.Add(1)
	return l.FormLoader.GetForm(ctx, formID)
}

func sampleForm() domain.Form {
	return domain.Form{
		ID:     "form-1",
		Title:  "Sample",
		Status: domain.StatusPublished,
		Questions: []domain.Question{
			{ID: "q1", Type: domain.QuestionCloze, Text: "Fill", Sentence: "2 + 2 = [4]"},
		},
	}
}

func TestFormCacheCaches(t *testing.T) {
	loader := &countingLoader{FormLoader: NewFormStoreWith(sampleForm())}
	cache := NewFormCache(loader, time.Minute)

	if _, err := cache.GetForm(context.Background(), "form-1"); err != nil {
		t.Fatalf("get form: %v", err)
	}
	if _, err := cache.GetForm(context.Background(), "form-1"); err != nil {
		t.Fatalf("get form 2: %v", err)
	}
	if got := loader.calls.Load(); got != 1 {
		t.Fatalf("expected loader once, got %d", got)
	}
}

func TestFormCacheExpiresAndInvalidates(t *testing.T) {
	loader := &countingLoader{FormLoader: NewFormStoreWith(sampleForm())}
	cache := NewFormCache(loader, time.Minute)
	now := time.Now()
	cache.clock = func() time.Time { return now }

	_, _ = cache.GetForm(context.Background(), "form-1")
	now = now.Add(2 * time.Minute)
	_, _ = cache.GetForm(context.Background(), "form-1")
	if got := loader.calls.Load(); got != 2 {
		t.Fatalf("expected reload after expiry, got %d calls", got)
	}

	cache.Invalidate(context.Background(), "form-1")
	_, _ = cache.GetForm(context.Background(), "form-1")
	if got := loader.calls.Load(); got != 3 {
		t.Fatalf("expected reload after invalidate, got %d calls", got)
	}
}

func TestFormCacheCollapsesConcurrentMisses(t *testing.T) {
	release := make(chan struct{})
	loader := &blockingLoader{release: release, form: sampleForm()}
	cache := NewFormCache(loader, time.Minute)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := cache.GetForm(context.Background(), "form-1"); err != nil {
				t.Errorf("get form: %v", err)
			}
		}()
	}
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	if got := loader.calls.Load(); got > 2 {
		t.Fatalf("expected misses to collapse, got %d loads", got)
	}
}

type blockingLoader struct {
	release chan struct{}
	form    domain.Form
	calls   atomic.Int32
}

func (l *blockingLoader) GetForm(ctx context.Context, _ string) (domain.Form, error) {
	l.calls.Add(1)
	<-l.release
	return l.form, nil
}

func TestFormCacheDoesNotCacheErrors(t *testing.T) {
	loader := &countingLoader{FormLoader: NewFormStore()}
	cache := NewFormCache(loader, time.Minute)

	_, err := cache.GetForm(context.Background(), "missing")
	if !errors.Is(err, domain.ErrFormNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	_, _ = cache.GetForm(context.Background(), "missing")
	if got := loader.calls.Load(); got != 2 {
		t.Fatalf("expected errors to bypass cache, got %d calls", got)
	}
}

// gatedLoader reads the store, then holds its first load until release is
// closed.
type gatedLoader struct {
	store   *FormStore
	entered chan struct{}
	release chan struct{}
	once    sync.Once
}

func (l *gatedLoader) GetForm(ctx context.Context, formID string) (domain.Form, error) {
	form, err := l.store.GetForm(ctx, formID)
	first := false
	l.once.Do(func() { first = true })
	if first {
		close(l.entered)
		<-l.release
	}
	return form, err
}

func TestFormCacheInvalidateDuringLoad(t *testing.T) {
	ctx := context.Background()
	store := NewFormStoreWith(sampleForm())
	loader := &gatedLoader{store: store, entered: make(chan struct{}), release: make(chan struct{})}
	cache := NewFormCache(loader, time.Hour)

	done := make(chan domain.Form)
	go func() {
		form, _ := cache.GetForm(ctx, "form-1")
		done <- form
	}()
	<-loader.entered

	closed := sampleForm()
	closed.Status = domain.StatusClosed
	if err := store.SaveForm(ctx, closed); err != nil {
		t.Fatalf("save form: %v", err)
	}
	cache.Invalidate(ctx, "form-1")
	close(loader.release)
	if stale := <-done; stale.Status != domain.StatusPublished {
		t.Fatalf("expected in-flight load to return what it read, got %s", stale.Status)
	}

	got, err := cache.GetForm(ctx, "form-1")
	if err != nil {
		t.Fatalf("get form: %v", err)
	}
	if got.Status != domain.StatusClosed {
		t.Fatalf("expected closed form after invalidate, cache served %s", got.Status)
	}
}
