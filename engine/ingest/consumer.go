package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/nats-io/nats.go"
)

const (
	// Subject is the NATS subject for ingest requests.
	Subject = "finley.ingest"
	// DLQSubject receives requests that kept failing.
	DLQSubject = "finley.ingest.dlq"
	// MaxRetries before a request is parked on the DLQ.
	MaxRetries = 3

	retryHeader = "X-Retry-Count"
)

// Request asks the consumer to ingest one folder of reports.
type Request struct {
	Folder string `json:"folder"`
}

// dlqMessage is published to the DLQ on repeated failure.
type dlqMessage struct {
	Request Request `json:"request"`
	Error   string  `json:"error"`
	Retries int     `json:"retries"`
}

// StartConsumer subscribes the ingestion service to NATS ingest requests.
// A run whose folder cannot be processed is retried with a bumped retry
// counter and parked on the DLQ after MaxRetries. Per-document failures are
// part of a normal result and are not retried.
func StartConsumer(nc *nats.Conn, svc *Service, logger *slog.Logger) (*nats.Subscription, error) {
	if logger == nil {
		logger = slog.Default()
	}

	return nc.Subscribe(Subject, func(msg *nats.Msg) {
		var req Request
		if err := json.Unmarshal(msg.Data, &req); err != nil {
			logger.Error("ingest consumer: malformed request dropped", "error", err)
			return
		}
		if req.Folder == "" {
			logger.Error("ingest consumer: request without folder dropped")
			return
		}

		retries := 0
		if msg.Header != nil {
			if v := msg.Header.Get(retryHeader); v != "" {
				fmt.Sscanf(v, "%d", &retries)
			}
		}

		result, err := svc.Ingest(context.Background(), req.Folder)
		if err != nil {
			retries++
			logger.Error("ingest consumer: run failed", "folder", req.Folder, "error", err, "retry", retries)

			if retries >= MaxRetries {
				dlq := dlqMessage{Request: req, Error: err.Error(), Retries: retries}
				data, _ := json.Marshal(dlq)
				if err := nc.Publish(DLQSubject, data); err != nil {
					logger.Error("ingest consumer: DLQ publish failed", "error", err)
				}
				return
			}

			retryMsg := nats.NewMsg(Subject)
			retryMsg.Data = msg.Data
			retryMsg.Header = nats.Header{}
			retryMsg.Header.Set(retryHeader, fmt.Sprintf("%d", retries))
			if err := nc.PublishMsg(retryMsg); err != nil {
				logger.Error("ingest consumer: retry publish failed", "error", err)
			}
			return
		}

		logger.Info("ingest consumer: run done",
			"folder", req.Folder,
			"chunks", result.ChunksStored,
			"errors", len(result.Errors),
		)
		if msg.Reply != "" {
			data, _ := json.Marshal(result)
			if err := msg.Respond(data); err != nil {
				logger.Warn("ingest consumer: reply failed", "error", err)
			}
		}
	})
}
