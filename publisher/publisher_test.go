package publisher

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sirupsen/logrus/hooks/test"

	"marketplace/domain"
)

type fakeLog struct {
	appended []domain.Event
	fail     error
}

func (f *fakeLog) Append(ctx context.Context, ev domain.Event) (domain.Event, error) {
	if f.fail != nil {
		return domain.Event{}, f.fail
	}
	ev.ID = "e1"
	ev.CreatedAt = time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	f.appended = append(f.appended, ev)
	return ev, nil
}

type fakeProjector struct {
	aggregate domain.AggregateType
	event     string
	fail      error
	seen      []domain.Event
}

func (f *fakeProjector) AggregateType() domain.AggregateType { return f.aggregate }
func (f *fakeProjector) EventType() string                   { return f.event }
func (f *fakeProjector) Handle(ctx context.Context, ev domain.Event) error {
	f.seen = append(f.seen, ev)
	return f.fail
}

type fakeDeadLetter struct{ payloads [][]byte }

func (f *fakeDeadLetter) Enqueue(ctx context.Context, payload []byte) error {
	f.payloads = append(f.payloads, payload)
	return nil
}

func TestPublishAndSaveAppendsThenFansOut(t *testing.T) {
	logger, _ := test.NewNullLogger()
	flog := &fakeLog{}
	pr := &fakeProjector{aggregate: domain.AggregateProduct, event: domain.ProductCreated}

	p := New(flog, logger)
	p.Register(pr)

	stored, err := p.PublishAndSave(context.Background(), domain.Event{
		AggregateID:   "p1",
		AggregateType: domain.AggregateProduct,
		Type:          domain.ProductCreated,
		Version:       1,
	})
	if err != nil {
		t.Fatalf("publish: %v", err)
	}
	if stored.ID == "" || stored.CreatedAt.IsZero() {
		t.Fatalf("stored event not enriched: %+v", stored)
	}
	if len(flog.appended) != 1 {
		t.Fatalf("expected 1 append, got %d", len(flog.appended))
	}
	if len(pr.seen) != 1 {
		t.Fatalf("projector saw %d events, want 1", len(pr.seen))
	}
	// The projector must observe the durably stored event.
	if pr.seen[0].ID != stored.ID {
		t.Fatalf("projector observed an unstored event: %+v", pr.seen[0])
	}
}

func TestAppendFailurePreventsFanOut(t *testing.T) {
	logger, _ := test.NewNullLogger()
	flog := &fakeLog{fail: errors.New("log full")}
	pr := &fakeProjector{aggregate: domain.AggregateProduct, event: domain.ProductCreated}

	p := New(flog, logger)
	p.Register(pr)

	if _, err := p.PublishAndSave(context.Background(), domain.Event{
		AggregateType: domain.AggregateProduct,
		Type:          domain.ProductCreated,
	}); err == nil {
		t.Fatal("expected append error to propagate")
	}
	if len(pr.seen) != 0 {
		t.Fatal("subscriber ran despite failed append")
	}
}

func TestProjectorFailureDoesNotBlockSiblingsOrCaller(t *testing.T) {
	logger, hook := test.NewNullLogger()
	flog := &fakeLog{}
	failing := &fakeProjector{aggregate: domain.AggregateProduct, event: domain.ProductCreated, fail: errors.New("boom")}
	healthy := &fakeProjector{aggregate: domain.AggregateProduct, event: domain.ProductCreated}
	dl := &fakeDeadLetter{}

	p := New(flog, logger).WithDeadLetter(dl)
	p.Register(failing)
	p.Register(healthy)

	if _, err := p.PublishAndSave(context.Background(), domain.Event{
		AggregateID:   "p1",
		AggregateType: domain.AggregateProduct,
		Type:          domain.ProductCreated,
	}); err != nil {
		t.Fatalf("caller must see success once append succeeded, got %v", err)
	}
	if len(healthy.seen) != 1 {
		t.Fatal("sibling projector was blocked by the failure")
	}
	if len(dl.payloads) != 1 {
		t.Fatalf("expected 1 dead-lettered payload, got %d", len(dl.payloads))
	}
	found := false
	for _, e := range hook.AllEntries() {
		if e.Message == "projection failed" {
			found = true
		}
	}
	if !found {
		t.Fatal("projection failure was not logged")
	}
}

type fakeNotifier struct{ announced []any }

func (f *fakeNotifier) Notify(_ context.Context, payload any) error {
	f.announced = append(f.announced, payload)
	return nil
}

func TestNotifierIsSilencedByProjectionFailure(t *testing.T) {
	logger, _ := test.NewNullLogger()
	flog := &fakeLog{}
	failing := &fakeProjector{aggregate: domain.AggregateProduct, event: domain.ProductCreated, fail: errors.New("boom")}
	n := &fakeNotifier{}

	p := New(flog, logger).WithNotifier(n)
	p.Register(failing)

	if _, err := p.PublishAndSave(context.Background(), domain.Event{
		AggregateID:   "p1",
		AggregateType: domain.AggregateProduct,
		Type:          domain.ProductCreated,
	}); err != nil {
		t.Fatalf("publish: %v", err)
	}
	if len(n.announced) != 0 {
		t.Fatal("announced an update whose projection failed")
	}

	failing.fail = nil
	if _, err := p.PublishAndSave(context.Background(), domain.Event{
		AggregateID:   "p1",
		AggregateType: domain.AggregateProduct,
		Type:          domain.ProductCreated,
	}); err != nil {
		t.Fatalf("publish: %v", err)
	}
	if len(n.announced) != 1 {
		t.Fatalf("announced %d updates, want 1", len(n.announced))
	}
}

func TestEventsAreRoutedByAggregateAndType(t *testing.T) {
	logger, _ := test.NewNullLogger()
	flog := &fakeLog{}
	productPr := &fakeProjector{aggregate: domain.AggregateProduct, event: domain.ProductCreated}
	sellerPr := &fakeProjector{aggregate: domain.AggregateSeller, event: domain.SellerRegistered}

	p := New(flog, logger)
	p.Register(productPr)
	p.Register(sellerPr)

	if _, err := p.PublishAndSave(context.Background(), domain.Event{
		AggregateID:   "s1",
		AggregateType: domain.AggregateSeller,
		Type:          domain.SellerRegistered,
	}); err != nil {
		t.Fatalf("publish: %v", err)
	}
	if len(productPr.seen) != 0 {
		t.Fatal("product projector received seller event")
	}
	if len(sellerPr.seen) != 1 {
		t.Fatal("seller projector missed its event")
	}
}
