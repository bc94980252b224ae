package spanscope

import (
	"context"
	"strings"
	"unicode"

	"github.com/jt828/go-span-tracing/pkg/observability"
	"github.com/jt828/go-span-tracing/pkg/reactive"
)

// Invocation describes a traced call that returns a publisher. It takes the
// place of declarative span markers on methods.
type Invocation struct {
	Name    string
	Tags    map[string]string
	NewSpan bool
	Log     string
}

// Proceed runs call and wraps the publisher it returns. A new span is started
// when inv.NewSpan is set or when ctx carries no current span; otherwise the
// current span is continued, receives inv.Tags right away, and is left for its
// owner to end.
func Proceed[T any](
	ctx context.Context,
	tracer observability.Tracer,
	inv Invocation,
	call func(ctx context.Context) reactive.Publisher[T],
	opts ...Option,
) reactive.Publisher[T] {
	var current observability.Span
	if !inv.NewSpan {
		current = tracer.CurrentSpan(ctx)
	}

	publisher := call(ctx)

	options := append([]Option{WithLog(inv.Log)}, opts...)
	if current != nil {
		for k, v := range inv.Tags {
			current.Tag(k, v)
		}
		options = append(options, WithSpan(current))
	} else {
		name := SpanName(inv.Name)
		tags := inv.Tags
		options = append(options, WithCustomizer(func(span observability.Span) {
			span.Name(name)
			for k, v := range tags {
				span.Tag(k, v)
			}
		}))
	}

	return Wrap(publisher, tracer, options...)
}

// SpanName converts a camel-case identifier to lower-hyphen form, e.g.
// "FetchOrders" becomes "fetch-orders". Names that already contain separators
// are only lower-cased.
func SpanName(name string) string {
	if strings.ContainsAny(name, "-_. ") {
		return strings.ToLower(name)
	}
	var b strings.Builder
	runes := []rune(name)
	for i, r := range runes {
		if unicode.IsUpper(r) {
			if i > 0 && (unicode.IsLower(runes[i-1]) || (i+1 < len(runes) && unicode.IsLower(runes[i+1]))) {
				b.WriteByte('-')
			}
			b.WriteRune(unicode.ToLower(r))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
