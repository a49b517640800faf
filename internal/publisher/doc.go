// Package publisher forwards library changes to the message bus.
//
// It is a best-effort side channel: the store hands changes to Notify,
// which never blocks, and a single goroutine publishes them. When the
// queue is full changes are dropped and counted. Nothing in request
// handling waits for or depends on delivery.
//
// Three kinds of message are sent, all as JSON:
//
//	{prefix}/{kind}/{action}  Event for every create, update and delete
//	{prefix}/borrow           Borrowing notice for every new loan
//	{prefix}/announce         the latest change, re-announced every interval
package publisher
