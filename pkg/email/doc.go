// Package email sends transactional notices, currently the payment failure
// email emitted when a subscription invoice cannot be charged.
//
// NewPostmarkClient delivers through Postmark. NewDevSender writes each email
// to disk as HTML with a JSON metadata sidecar so that local runs need no
// credentials. Both implement EmailSender.
package email
