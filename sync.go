package offlineworker

// SyncTagBooking is the only registered background sync tag.
const SyncTagBooking = "sync-booking"

// HandleSync handles a deferred-sync event. The booking sync is
// currently a no-op: offline booking attempts are not queued anywhere
// yet, so there is nothing to retry when connectivity returns.
func (w *Worker) HandleSync(tag string) {
	w.log.Debug().Str("tag", tag).Msg("Background sync")
	if tag != SyncTagBooking {
		return
	}
	// nothing queued, nothing to retry
}
