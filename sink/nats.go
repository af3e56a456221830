// Package sink publishes decoded records onto an external message bus.
// It is a pure output relay: mbusgo's decoding path never reads back from
// a sink, and nothing here is consulted internally, per §9's "opt-in
// external sink" note — the same stance stats.ClickHouseExporter takes
// for counters, here applied to the decoded records themselves.
package sink

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"

	"mbusgo/stats"
	"mbusgo/vif"
)

// NATSConfig holds connection settings for a NATSSink.
type NATSConfig struct {
	URL     string
	Subject string
}

// RecordBatch is the JSON envelope published to Subject: one device's
// records from a single request/frame, timestamped at publish time.
type RecordBatch struct {
	Device    string       `json:"device"`
	Records   []vif.Record `json:"records"`
	Timestamp time.Time    `json:"timestamp"`
}

// NATSSink publishes RecordBatch messages to one NATS subject.
type NATSSink struct {
	nc      *nats.Conn
	subject string
}

// ConnectNATS opens a connection and returns a NATSSink publishing to
// cfg.Subject.
func ConnectNATS(cfg NATSConfig) (*NATSSink, error) {
	nc, err := nats.Connect(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}
	return &NATSSink{nc: nc, subject: cfg.Subject}, nil
}

func buildBatch(key stats.DeviceKey, records []vif.Record) RecordBatch {
	return RecordBatch{
		Device:    key.String(),
		Records:   records,
		Timestamp: time.Now().UTC(),
	}
}

// Publish marshals records as a RecordBatch for key and publishes it.
// Publish does not block for acknowledgement; call Flush/Drain on the
// caller's shutdown path to ensure delivery before exit.
func (s *NATSSink) Publish(key stats.DeviceKey, records []vif.Record) error {
	data, err := json.Marshal(buildBatch(key, records))
	if err != nil {
		return fmt.Errorf("marshal record batch: %w", err)
	}
	if err := s.nc.Publish(s.subject, data); err != nil {
		return fmt.Errorf("publish to %s: %w", s.subject, err)
	}
	return nil
}

// Flush blocks until every published message has been sent to the server.
func (s *NATSSink) Flush() error {
	return s.nc.FlushTimeout(5 * time.Second)
}

// Close drains in-flight publishes then closes the connection.
func (s *NATSSink) Close() error {
	return s.nc.Drain()
}
