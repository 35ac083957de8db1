// Package notify delivers notifications on external channels: email through
// the SendGrid v3 API and push through a JSON webhook owned by the push
// gateway.
package notify
