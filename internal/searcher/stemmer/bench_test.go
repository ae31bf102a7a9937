package stemmer

import (
	"strings"
	"testing"
)

var benchText = strings.Fields(`Information retrieval systems form the backbone of modern search
	infrastructure. These systems combine tokenization, stemming, and stop word
	removal to normalize text into searchable terms. Generously proportioned
	nationalities were happily conditionally hopping through the agreements.`)

func BenchmarkStem(b *testing.B) {
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		for _, w := range benchText {
			_ = Stem(strings.ToLower(w))
		}
	}
}

func BenchmarkStemParallel(b *testing.B) {
	b.ReportAllocs()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			for _, w := range benchText {
				_ = Stem(strings.ToLower(w))
			}
		}
	})
}
