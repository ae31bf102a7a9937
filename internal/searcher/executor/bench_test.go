package executor

import (
	"context"
	"testing"
)

func BenchmarkSearch(b *testing.B) {
	ex := newExecutor(newMem(), nil)
	ctx := context.Background()
	// First search fills the memo; the loop measures the warm path.
	if _, err := ex.Search(ctx, Request{Query: "elephant"}); err != nil {
		b.Fatal(err)
	}
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := ex.Search(ctx, Request{Query: "elephant -zebra", Limit: 10}); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkSearchParallel(b *testing.B) {
	ex := newExecutor(newMem(), nil)
	b.ReportAllocs()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			if _, err := ex.Search(context.Background(), Request{Query: "elephant"}); err != nil {
				b.Error(err)
				return
			}
		}
	})
}
