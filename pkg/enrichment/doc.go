// Package enrichment turns one catalog page into an ordered set of display
// entities and publishes it to subscribers.
//
// A refresh lists one page, then resolves every entry with its own detail
// call in parallel, and publishes the result once all calls have settled.
//
// Example usage:
//
//	p := enrichment.New(catalogClient, enrichment.DefaultConfig())
//	sub := p.Subscribe(func(ev enrichment.Event) {
//		if ev.Kind == enrichment.EventFailed {
//			log.Warn().Err(ev.Err).Msg("refresh failed")
//			return
//		}
//		render(ev.Results.Entities)
//	})
//	defer p.Unsubscribe(sub)
//	err := p.Refresh(ctx, 0, 20)
//
// The pipeline:
//   - Lists the page once; a list failure publishes nothing, keeps the
//     previous ResultSet and emits an EventFailed
//   - Drops duplicate ids, keeping the first occurrence
//   - Issues the detail calls concurrently (errgroup, bounded by MaxConcurrency)
//   - Omits items whose detail call fails (skip-on-error)
//   - Maps details to DisplayEntity: missing category becomes "none",
//     missing image stays nil
//   - Keeps list order regardless of completion order
//   - Publishes atomically; a newer refresh cancels an older one and an older
//     generation can never replace a newer published one
package enrichment
