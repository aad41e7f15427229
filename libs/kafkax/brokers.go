// Package kafkax holds the Kafka plumbing shared by producers: broker list
// parsing, readiness probing and trace context propagation on message
// headers.
package kafkax

import "strings"

// SplitBrokers parses a comma-separated broker list, dropping empty entries.
func SplitBrokers(raw string) []string {
	var brokers []string
	for _, b := range strings.Split(raw, ",") {
		b = strings.TrimSpace(b)
		if b != "" {
			brokers = append(brokers, b)
		}
	}
	return brokers
}
