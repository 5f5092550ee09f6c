// Package notifier defines the Gate's one-way "tell someone" contract.
// Discord/email/Slack transports are out of scope (spec §1 Non-goals);
// this package only carries a default that logs fire-and-forget so the
// Gate has something to call before a real sink is wired in.
package notifier

import "github.com/zerotype19/gekko3/internal/logging"

var log = logging.For("gate.notifier")

// Notifier is the Gate's external-collaborator contract; the end-of-day
// report is its only caller (lock and liquidate events are not sent).
// Send must not block the caller on a slow or unreachable sink.
type Notifier interface {
	Send(subject, body string)
}

// LoggingNotifier is the default Notifier: it logs and returns, never
// blocking the Gate actor on an external call.
type LoggingNotifier struct{}

func NewLogging() LoggingNotifier { return LoggingNotifier{} }

func (LoggingNotifier) Send(subject, body string) {
	log.Info().Str("subject", subject).Str("body", body).Msg("notification")
}
