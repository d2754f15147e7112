// Package worker provides a NATS worker that produces radio clips on request.
package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/book-expert/events"
	"github.com/book-expert/logger"
	"github.com/nats-io/nats.go"

	"github.com/book-expert/radio-tts-service/internal/core"
	"github.com/book-expert/radio-tts-service/internal/item"
	"github.com/book-expert/radio-tts-service/internal/params"
	"github.com/book-expert/radio-tts-service/internal/report"
)

const (
	// DEFAULT_MESSAGE_TIMEOUT bounds the handling of one request.
	DEFAULT_MESSAGE_TIMEOUT = 120 * time.Second
	// DURATION_DECIMALS is the precision of reply durations.
	DURATION_DECIMALS = 2
)

// ErrEventMissingText indicates a request with neither inline text nor a text key.
var ErrEventMissingText = errors.New("event carries no text and no text key")

// ClipRequestedEvent asks for one clip. Text may be inline in Item or, for
// long scripts, stored in the object store under TextKey.
type ClipRequestedEvent struct {
	Header  events.EventHeader `json:"header"`
	Item    item.Fields        `json:"item"`
	TextKey string             `json:"text_key,omitempty"`
}

// ClipCreatedEvent is the reply to a ClipRequestedEvent. Error and Stage
// are set when the clip could not be produced.
type ClipCreatedEvent struct {
	Header          events.EventHeader `json:"header"`
	AudioKey        string             `json:"audio_key,omitempty"`
	Filename        string             `json:"filename"`
	DurationSeconds float64            `json:"duration_seconds,omitempty"`
	Voice           string             `json:"voice,omitempty"`
	Stage           string             `json:"stage,omitempty"`
	Error           string             `json:"error,omitempty"`
}

// ItemProcessor produces and exports one clip.
type ItemProcessor interface {
	ProcessItem(ctx context.Context, record item.Record, clicks *params.ClickCache, exporter core.Exporter) report.Row
	NewClickCache() *params.ClickCache
}

// NatsWorker listens for clip requests on a NATS subject and replies with
// the created clip's object key.
type NatsWorker struct {
	natsConnection *nats.Conn
	subject        string
	queueGroup     string
	store          core.ObjectStore
	exporter       core.Exporter
	processor      ItemProcessor
	clicks         *params.ClickCache
	timeout        time.Duration
	log            *logger.Logger
}

// NewNatsWorker creates a new instance of a NATS worker. Click assets are
// loaded once for the worker's lifetime.
func NewNatsWorker(
	natsConnection *nats.Conn,
	subject string,
	queueGroup string,
	store core.ObjectStore,
	exporter core.Exporter,
	processor ItemProcessor,
	timeout time.Duration,
	log *logger.Logger,
) *NatsWorker {
	if timeout <= 0 {
		timeout = DEFAULT_MESSAGE_TIMEOUT
	}

	return &NatsWorker{
		natsConnection: natsConnection,
		subject:        subject,
		queueGroup:     queueGroup,
		store:          store,
		exporter:       exporter,
		processor:      processor,
		clicks:         processor.NewClickCache(),
		timeout:        timeout,
		log:            log,
	}
}

// Run starts the worker and blocks until ctx is done. Requests in flight
// when ctx is done are cancelled with it.
func (w *NatsWorker) Run(ctx context.Context) error {
	var (
		sub *nats.Subscription
		err error
	)

	handler := func(msg *nats.Msg) {
		w.handleMessage(ctx, msg)
	}

	if w.queueGroup != "" {
		sub, err = w.natsConnection.QueueSubscribe(w.subject, w.queueGroup, handler)
	} else {
		sub, err = w.natsConnection.Subscribe(w.subject, handler)
	}

	if err != nil {
		return fmt.Errorf("failed to subscribe to subject %s: %w", w.subject, err)
	}

	<-ctx.Done()

	drainErr := sub.Drain()
	if drainErr != nil {
		return fmt.Errorf("failed to drain subscription: %w", drainErr)
	}

	return nil
}

func (w *NatsWorker) handleMessage(parent context.Context, msg *nats.Msg) {
	ctx, cancel := context.WithTimeout(parent, w.timeout)
	defer cancel()

	event, err := parseEvent(msg)
	if err != nil {
		w.log.Error("Failed to parse clip request: %v", err)
		w.reply(msg, &ClipCreatedEvent{Error: err.Error()})

		return
	}

	reply := w.processClip(ctx, event)

	w.reply(msg, reply)
}

// processClip resolves the record text and runs it through the processor.
func (w *NatsWorker) processClip(ctx context.Context, event *ClipRequestedEvent) *ClipCreatedEvent {
	reply := &ClipCreatedEvent{Header: event.Header, Filename: event.Item.Filename}
	record := event.Item.Record()

	if record.Text == "" {
		if event.TextKey == "" {
			reply.Error = ErrEventMissingText.Error()

			return reply
		}

		textData, err := w.store.Download(ctx, event.TextKey)
		if err != nil {
			w.log.Error("Failed to download text for workflow %s: %v", event.Header.WorkflowID, err)
			reply.Error = fmt.Sprintf("failed to download text data for key '%s': %v", event.TextKey, err)

			return reply
		}

		record.Text = string(textData)
	}

	row := w.processor.ProcessItem(ctx, record, w.clicks, w.exporter)
	reply.Voice = row.Config.Voice

	if !row.OK() {
		w.log.Error("Clip %s for workflow %s failed: %v", record.Filename, event.Header.WorkflowID, row.Err)
		reply.Stage = string(row.Stage())
		reply.Error = row.Err.Error()

		return reply
	}

	reply.AudioKey = row.Location
	reply.DurationSeconds = roundSeconds(row.DurationSeconds)

	return reply
}

func (w *NatsWorker) reply(msg *nats.Msg, reply *ClipCreatedEvent) {
	if msg.Reply == "" {
		return
	}

	replyData, err := json.Marshal(reply)
	if err != nil {
		w.log.Error("Failed to marshal reply event: %v", err)

		return
	}

	respondErr := msg.Respond(replyData)
	if respondErr != nil {
		w.log.Error("Failed to publish reply event for workflow %s: %v", reply.Header.WorkflowID, respondErr)
	}
}

func roundSeconds(seconds float64) float64 {
	scale := math.Pow10(DURATION_DECIMALS)

	return math.Round(seconds*scale) / scale
}

func parseEvent(msg *nats.Msg) (*ClipRequestedEvent, error) {
	var event ClipRequestedEvent

	err := json.Unmarshal(msg.Data, &event)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal event: %w", err)
	}

	return &event, nil
}
