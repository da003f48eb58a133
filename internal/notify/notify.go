package notify

import (
	"github.com/rs/zerolog/log"
)

// Notifier delivers messages to a single recipient. Delivery is
// fire-and-forget: no retries, no ordering guarantee across recipients.
type Notifier interface {
	SendText(recipient, text string) error
	SendImage(recipient string, image []byte, caption string) error
	SendDocument(recipient string, doc []byte, filename, caption string) error
}

// Delivery is the outcome of one fan-out attempt.
type Delivery struct {
	Recipient string
	Err       error
}

// Fanout sends text to every recipient, attempting all of them regardless of
// individual failures. Failures are logged and collected; they are never
// propagated so that one unreachable recipient cannot suppress the rest.
func Fanout(n Notifier, recipients []string, text string) []Delivery {
	out := make([]Delivery, 0, len(recipients))
	for _, r := range recipients {
		err := n.SendText(r, text)
		if err != nil {
			log.Error().Err(err).Str("recipient", r).Msg("notification delivery failed")
		}
		out = append(out, Delivery{Recipient: r, Err: err})
	}
	return out
}

// Failed filters a fan-out result down to the failed deliveries.
func Failed(deliveries []Delivery) []Delivery {
	var out []Delivery
	for _, d := range deliveries {
		if d.Err != nil {
			out = append(out, d)
		}
	}
	return out
}
