// Package broadcast fans values out to any number of subscribers.
//
// Latest keeps the most recent value and replays it to each new subscriber;
// a subscriber that falls behind skips straight to the newest value. The
// auth store uses it to publish State snapshots to the navigation layer:
//
//	sub := store.Subscribe(ctx)
//	defer sub.Close()
//	for state := range sub.Receive() {
//		render(state)
//	}
package broadcast
