// Package notifier delivers release announcements to chat recipients.
//
// A Broadcaster sends one text to a list of targets sequentially through a
// transport.Adapter. Each send is bounded by a timeout and retried with
// jittered exponential backoff; a recipient that still fails is recorded in
// the returned Report and never aborts delivery to the others. Outcomes are
// published on the event bus as notifier.sent / notifier.failed.
package notifier
