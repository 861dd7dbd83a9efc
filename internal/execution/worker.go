package execution

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/riverqueue/river"

	"github.com/devasign/task-escrow/internal/escrow"
)

// DeliverEventArgs carries one committed escrow event to the indexer.
type DeliverEventArgs struct {
	Seq       int64           `json:"seq"`
	EventID   uuid.UUID       `json:"event_id"`
	Topic     string          `json:"topic"`
	TaskID    string          `json:"task_id,omitempty"`
	Timestamp uint64          `json:"timestamp"`
	Payload   json.RawMessage `json:"payload"`
}

func (DeliverEventArgs) Kind() string { return "deliver_escrow_event" }

// NewDeliverEventArgs snapshots ev for delivery.
func NewDeliverEventArgs(seq int64, ev escrow.Event) (DeliverEventArgs, error) {
	payload, err := ev.MarshalData()
	if err != nil {
		return DeliverEventArgs{}, fmt.Errorf("marshal %s payload: %w", ev.Topic, err)
	}
	return DeliverEventArgs{
		Seq:       seq,
		EventID:   ev.ID,
		Topic:     string(ev.Topic),
		TaskID:    ev.TaskID,
		Timestamp: ev.Timestamp,
		Payload:   payload,
	}, nil
}

// DeliveryObserver is told about every delivery attempt.
type DeliveryObserver interface {
	ObserveDelivery(topic string, err error)
}

type DeliverEventWorker struct {
	river.WorkerDefaults[DeliverEventArgs]
	webhookURL string
	httpClient *http.Client
	observer   DeliveryObserver
}

func NewDeliverEventWorker(webhookURL string, timeout time.Duration, observer DeliveryObserver) *DeliverEventWorker {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &DeliverEventWorker{
		webhookURL: webhookURL,
		httpClient: &http.Client{Timeout: timeout},
		observer:   observer,
	}
}

// Work POSTs the event to the indexer webhook. Network errors and 5xx/429
// responses are returned so River retries; other 4xx responses cancel the
// job since repeating them cannot succeed.
func (w *DeliverEventWorker) Work(ctx context.Context, job *river.Job[DeliverEventArgs]) error {
	err := w.deliver(ctx, job.Args)
	if w.observer != nil {
		w.observer.ObserveDelivery(job.Args.Topic, err)
	}
	return err
}

func (w *DeliverEventWorker) deliver(ctx context.Context, args DeliverEventArgs) error {
	body, err := json.Marshal(args)
	if err != nil {
		return river.JobCancel(fmt.Errorf("encode event: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.webhookURL, bytes.NewReader(body))
	if err != nil {
		return river.JobCancel(fmt.Errorf("failed to create request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Idempotency-Key", args.EventID.String())
	req.Header.Set("X-Escrow-Event-Seq", strconv.FormatInt(args.Seq, 10))

	resp, err := w.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("network error calling indexer webhook: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return nil
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode == http.StatusRequestTimeout || resp.StatusCode >= 500:
		return fmt.Errorf("indexer returned status %d", resp.StatusCode)
	default:
		return river.JobCancel(fmt.Errorf("indexer rejected event %s with status %d", args.EventID, resp.StatusCode))
	}
}
