// SPDX-License-Identifier: MIT
package transport

import (
	"encoding/json"

	applog "sinplayer/internal/log"
)

// LoggingTransport writes every event to the log.
type LoggingTransport struct {
	log applog.Logger
}

func NewLoggingTransport() *LoggingTransport {
	return &LoggingTransport{log: applog.Named("events")}
}

// Send logs the event as JSON.
func (lt *LoggingTransport) Send(e Event) error {
	data, err := json.Marshal(e)
	if err != nil {
		lt.log.Warnf("%s (%+v): %v", e.Kind, e, err)
		return nil
	}
	lt.log.Infof("%s", data)
	return nil
}

// Close is a no-op for LoggingTransport.
func (lt *LoggingTransport) Close() error {
	return nil
}

var _ Transport = (*LoggingTransport)(nil)
