// Package natsdispatch is an at-least-once Dispatcher backed by NATS
// JetStream: Submit publishes a Signature onto a durable stream and a
// background consumer loop fetches, executes, and acks/naks messages,
// replying with the result on a per-submission inbox subject. Grounded
// on the JetStream durable-consumer pattern (Fetch/Ack/Nak,
// CreateOrUpdateConsumer) from the C360Studio task-dispatcher reference
// component, and on the SWARM project's natsctx helpers for
// connection-scoped publish/subscribe plumbing.
package natsdispatch

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/kluhan/kraken/internal/kerrors"
	"github.com/kluhan/kraken/pkg/dispatch"
	"github.com/kluhan/kraken/pkg/types"
)

// Config parameterises the JetStream-backed dispatcher.
type Config struct {
	StreamName    string
	Subject       string
	ConsumerName  string
	AckWait       time.Duration
	FetchMaxWait  time.Duration
	MaxDeliver    int
}

// DefaultConfig mirrors the reference component's durable-consumer
// defaults: one ack-explicit durable consumer, a generous ack wait to
// cover a full task execution, short-poll fetches.
func DefaultConfig() Config {
	return Config{
		StreamName:   "KRAKEN_TASKS",
		Subject:      "kraken.tasks.>",
		ConsumerName: "kraken-dispatcher",
		AckWait:      2 * time.Minute,
		FetchMaxWait: 5 * time.Second,
		MaxDeliver:   4,
	}
}

type envelope struct {
	Signature types.Signature `json:"signature"`
	ReplyTo   string          `json:"reply_to"`
}

type replyEnvelope struct {
	Result map[string]any `json:"result,omitempty"`
	Err    string         `json:"error,omitempty"`
}

// Dispatcher is the JetStream-backed dispatch.Dispatcher implementation.
type Dispatcher struct {
	cfg        Config
	nc         *nats.Conn
	js         jetstream.JetStream
	stream     jetstream.Stream
	consumer   jetstream.Consumer
	handlers   map[string]dispatch.Handler
	middleware dispatch.Middleware

	cancel context.CancelFunc
	done   chan struct{}
}

// Connect opens a connection to url, ensures the configured stream and
// durable consumer exist, and starts the background consume loop that
// invokes handlers (keyed by dispatch.Kind prefix, same as Pool) for
// every message it fetches.
func Connect(ctx context.Context, url string, cfg Config, handlers map[string]dispatch.Handler, middleware dispatch.Middleware) (*Dispatcher, error) {
	if middleware == nil {
		middleware = dispatch.NoopMiddleware{}
	}
	nc, err := nats.Connect(url)
	if err != nil {
		return nil, fmt.Errorf("natsdispatch: connect: %w", err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("natsdispatch: jetstream: %w", err)
	}

	stream, err := js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:     cfg.StreamName,
		Subjects: []string{cfg.Subject},
	})
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("natsdispatch: create stream: %w", err)
	}

	consumer, err := stream.CreateOrUpdateConsumer(ctx, jetstream.ConsumerConfig{
		Durable:       cfg.ConsumerName,
		AckPolicy:     jetstream.AckExplicitPolicy,
		AckWait:       cfg.AckWait,
		MaxDeliver:    cfg.MaxDeliver,
	})
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("natsdispatch: create consumer: %w", err)
	}

	loopCtx, cancel := context.WithCancel(context.Background())
	d := &Dispatcher{
		cfg:        cfg,
		nc:         nc,
		js:         js,
		stream:     stream,
		consumer:   consumer,
		handlers:   handlers,
		middleware: middleware,
		cancel:     cancel,
		done:       make(chan struct{}),
	}
	go d.consumeLoop(loopCtx)
	return d, nil
}

// Submit publishes sig onto the stream and subscribes to a unique reply
// subject, returning a Handle whose Get blocks for the reply.
func (d *Dispatcher) Submit(ctx context.Context, sig types.Signature) (dispatch.Handle, error) {
	replySubject := fmt.Sprintf("kraken.replies.%s.%d", sig.Name, time.Now().UnixNano())

	h := &natsHandle{resultCh: make(chan replyEnvelope, 1)}
	sub, err := d.nc.Subscribe(replySubject, func(m *nats.Msg) {
		var reply replyEnvelope
		if err := json.Unmarshal(m.Data, &reply); err != nil {
			reply = replyEnvelope{Err: fmt.Sprintf("natsdispatch: decode reply: %v", err)}
		}
		h.resultCh <- reply
	})
	if err != nil {
		return nil, fmt.Errorf("natsdispatch: subscribe reply: %w", err)
	}
	h.sub = sub

	payload, err := json.Marshal(envelope{Signature: sig, ReplyTo: replySubject})
	if err != nil {
		sub.Unsubscribe()
		return nil, fmt.Errorf("natsdispatch: encode signature: %w", err)
	}

	subject := fmt.Sprintf("kraken.tasks.%s", dispatch.Kind(sig.Name))
	if _, err := d.js.Publish(ctx, subject, payload); err != nil {
		sub.Unsubscribe()
		return nil, fmt.Errorf("natsdispatch: publish: %w", err)
	}
	return h, nil
}

// Close drains the consume loop and closes the underlying connection.
func (d *Dispatcher) Close() error {
	d.cancel()
	<-d.done
	d.nc.Close()
	return nil
}

func (d *Dispatcher) consumeLoop(ctx context.Context) {
	defer close(d.done)
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		msgs, err := d.consumer.Fetch(1, jetstream.FetchMaxWait(d.cfg.FetchMaxWait))
		if err != nil {
			continue
		}
		for msg := range msgs.Messages() {
			d.handle(ctx, msg)
		}
	}
}

func (d *Dispatcher) handle(ctx context.Context, msg jetstream.Msg) {
	var env envelope
	if err := json.Unmarshal(msg.Data(), &env); err != nil {
		_ = msg.Ack()
		return
	}

	handler, ok := d.handlers[dispatch.Kind(env.Signature.Name)]
	if !ok {
		_ = msg.Ack()
		return
	}

	d.middleware.BeforeStart(ctx, env.Signature)
	result, err := handler(ctx, env.Signature)

	var reply replyEnvelope
	if err != nil {
		reply.Err = err.Error()
		if kerrors.IsRetryable(err) {
			d.middleware.OnRetry(ctx, env.Signature, err)
			_ = msg.Nak()
		} else {
			d.middleware.OnFailure(ctx, env.Signature, err)
			_ = msg.Ack()
		}
	} else {
		reply.Result = result
		d.middleware.OnSuccess(ctx, env.Signature, result)
		_ = msg.Ack()
	}

	if data, encErr := json.Marshal(reply); encErr == nil {
		_ = d.nc.Publish(env.ReplyTo, data)
	}
}

type natsHandle struct {
	sub      *nats.Subscription
	resultCh chan replyEnvelope
}

func (h *natsHandle) Get(ctx context.Context) (map[string]any, error) {
	defer h.sub.Unsubscribe()
	select {
	case reply := <-h.resultCh:
		if reply.Err != "" {
			return nil, fmt.Errorf("natsdispatch: %s", reply.Err)
		}
		return reply.Result, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
