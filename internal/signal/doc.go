// Package signal carries the authorization code from the secondary context
// (the one the provider redirected to) back to the primary context that owns
// the pending request.
//
// # Transports
//
// Three transports run at the same time once the primary starts listening:
//
//   - Direct: the secondary posts the message to its Opener. In process this
//     is an Inbox; across processes an HTTPOpener posts to the primary's
//     Inbox over HTTP. Rejected posts are retried a few times, then dropped.
//   - Storage event: the secondary writes the message to the shared
//     storage.Store and the primary reacts to the change notification.
//   - Polling: the primary reads the shared entry and its cookie mirror on a
//     fixed interval, for environments where notifications never fire.
//
// # Delivery
//
// Every transport is an independent producer feeding one bounded channel.
// A single consumer accepts the first message whose state matches the
// pending request; the Attempt's processed flag discards everything after
// it. Acceptance, timeout and cancellation all tear the attempt down the same
// way: timers stop, subscriptions close, and the shared entry and cookie
// mirror are deleted.
//
//	attempt, err := listener.Listen(ctx, pending.State)
//	if err != nil {
//	    return err
//	}
//	delivery, err := attempt.Wait(ctx)
//	if errors.Is(err, signal.ErrTimeout) {
//	    // nothing arrived in time
//	}
package signal
