package credmine

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/passlink/credmine/search"
)

func BenchmarkPartitionCodec(b *testing.B) {
	c := newPartitionCodec(nil)
	f := Fields{Label: "Example", Username: "bob", Password: strings.Repeat("x", 64), URL: "https://example.com/login"}
	st := taskState{New: true, Attempts: 3, Feedback: "storage passwords.create (unavailable): backend down"}

	b.Run("encode", func(b *testing.B) {
		b.ReportAllocs()
		for i := 0; i < b.N; i++ {
			if _, err := c.encodeCapture(f); err != nil {
				b.Fatal(err)
			}
			if _, err := c.encodeState(st); err != nil {
				b.Fatal(err)
			}
		}
	})

	capture, _ := c.encodeCapture(f)
	state, _ := c.encodeState(st)
	result, _ := c.encodeResult(&f)
	b.Run("decode", func(b *testing.B) {
		b.ReportAllocs()
		var r record
		for i := 0; i < b.N; i++ {
			if err := c.decode(&r, capture, state, result); err != nil {
				b.Fatal(err)
			}
		}
	})
}

func BenchmarkIsDuplicate(b *testing.B) {
	for _, size := range []int{100, 10000} {
		b.Run(fmt.Sprintf("index=%d", size), func(b *testing.B) {
			idx := search.NewMemoryIndex()
			for i := 0; i < size; i++ {
				idx.AddItem(search.Record{
					ID:       fmt.Sprintf("pw-%d", i),
					Type:     search.TypePassword,
					Username: fmt.Sprintf("user-%d", i),
					Password: fmt.Sprintf("secret-%d", i),
				})
			}
			m := New(NewMemoryQueue(DefaultQueue), newFakeAPI(), idx, WithLogger(noopLogger{}))
			defer m.Close()
			c := Capture{User: &CapturedField{Value: "nobody"}, Password: CapturedField{Value: "fresh"}}
			ctx := context.Background()

			b.ReportAllocs()
			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				if m.isDuplicate(ctx, &c) {
					b.Fatal("unexpected duplicate")
				}
			}
		})
	}
}
