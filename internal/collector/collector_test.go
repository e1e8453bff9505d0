package collector

import (
	"context"
	"errors"
	"testing"
)

type stubCollector struct {
	name  string
	items []Raw
	err   error
}

func (s *stubCollector) Name() string { return s.name }

func (s *stubCollector) Collect(ctx context.Context) ([]Raw, error) {
	return s.items, s.err
}

func TestCollectAll_ResultsInInputOrder(t *testing.T) {
	collectors := []Collector{
		&stubCollector{name: "a", items: []Raw{{Source: "a", ID: "1"}}},
		&stubCollector{name: "b", items: []Raw{{Source: "b", ID: "2"}, {Source: "b", ID: "3"}}},
	}

	results := CollectAll(context.Background(), collectors)

	if len(results) != 2 {
		t.Fatalf("got %d results, want 2", len(results))
	}
	if results[0].Source != "a" || len(results[0].Items) != 1 {
		t.Errorf("results[0] = %+v, want source a with 1 item", results[0])
	}
	if results[1].Source != "b" || len(results[1].Items) != 2 {
		t.Errorf("results[1] = %+v, want source b with 2 items", results[1])
	}
}

func TestCollectAll_FailureIsolated(t *testing.T) {
	boom := errors.New("boom")
	collectors := []Collector{
		&stubCollector{name: "bad", err: boom},
		&stubCollector{name: "good", items: []Raw{{Source: "good", ID: "1"}}},
	}

	results := CollectAll(context.Background(), collectors)

	if !errors.Is(results[0].Err, boom) {
		t.Errorf("results[0].Err = %v, want %v", results[0].Err, boom)
	}
	if len(results[0].Items) != 0 {
		t.Errorf("failed collector yielded %d items, want 0", len(results[0].Items))
	}
	if results[1].Err != nil || len(results[1].Items) != 1 {
		t.Errorf("sibling affected by failure: %+v", results[1])
	}
}

func TestCollectAll_Empty(t *testing.T) {
	results := CollectAll(context.Background(), nil)
	if len(results) != 0 {
		t.Errorf("got %d results, want 0", len(results))
	}
}
