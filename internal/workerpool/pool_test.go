package workerpool

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
)

func TestRunCollect_PreservesOrder(t *testing.T) {
	items := []int{1, 2, 3, 4, 5, 6, 7, 8}
	results, err := RunCollect(context.Background(), items, func(_ context.Context, n int) (int, error) {
		return n * 10, nil
	})
	if err != nil {
		t.Fatal(err)
	}
	for i, r := range results {
		if r != items[i]*10 {
			t.Errorf("results[%d] = %d, want %d", i, r, items[i]*10)
		}
	}
}

func TestRunCollect_FirstErrorWins(t *testing.T) {
	boom := errors.New("boom")
	_, err := RunCollect(context.Background(), []int{1, 2, 3}, func(_ context.Context, n int) (int, error) {
		if n == 2 {
			return 0, boom
		}
		return n, nil
	})
	if !errors.Is(err, boom) {
		t.Errorf("err = %v, want boom", err)
	}
}

func TestRun_VisitsEveryItem(t *testing.T) {
	var count atomic.Int64
	err := Run(context.Background(), make([]struct{}, 100), func(context.Context, struct{}) error {
		count.Add(1)
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
	if count.Load() != 100 {
		t.Errorf("visited %d items, want 100", count.Load())
	}
}
