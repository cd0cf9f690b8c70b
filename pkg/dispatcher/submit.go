package dispatcher

import (
	"context"

	"github.com/fetchkit/fetchkit/pkg/events"
	"github.com/fetchkit/fetchkit/pkg/request"
)

// Submit adds a request and blocks until an envelope for its cache key
// settles or ctx is done. Deduplicated submissions receive the envelope of
// the request they were collapsed onto.
func (d *Dispatcher) Submit(ctx context.Context, desc *request.Descriptor) (ResponseEvent, error) {
	cacheKey := request.CacheKey(desc, false)

	ch := make(chan ResponseEvent, 1)
	unsubscribe := d.OnResponse(cacheKey, func(ev events.Event) {
		if resp, ok := ev.Payload.(ResponseEvent); ok {
			select {
			case ch <- resp:
			default:
			}
		}
	})
	defer unsubscribe()

	d.Add(desc)

	select {
	case ev := <-ch:
		return ev, nil
	case <-ctx.Done():
		return ResponseEvent{}, ctx.Err()
	}
}
