// Package transport exchanges serialized sketches between peers over NATS.
// Request subjects carry an encoded StrataEstimator; reply subjects carry an
// encoded IBF sized by whatever the requester's estimate implied. Trace
// context travels in NATS message headers exactly the way the core
// library's natsctx helper does it, so a reconciliation round shows up as a
// single distributed trace spanning both peers.
package transport

import (
	"bytes"
	"context"
	"fmt"
	"time"

	nats "github.com/nats-io/nats.go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"

	"github.com/swarmguard/setrecon/ibf"
	"github.com/swarmguard/setrecon/telemetry"
	"github.com/swarmguard/setrecon/wire"
)

var propagator = propagation.TraceContext{}

// SketchSubject is the subject a peer listens on for incoming
// StrataEstimator reconciliation requests, namespaced by peerID so a single
// NATS account can host many independent peers.
func SketchSubject(peerID string) string {
	return fmt.Sprintf("setrecon.sketch.%s", peerID)
}

// Publish injects the caller's trace context into NATS headers and
// publishes data to subject.
func Publish(ctx context.Context, nc *nats.Conn, subject string, data []byte) error {
	hdr := nats.Header{}
	propagator.Inject(ctx, propagation.HeaderCarrier(hdr))
	return nc.PublishMsg(&nats.Msg{Subject: subject, Data: data, Header: hdr})
}

// Subscribe wraps nc.Subscribe, extracting trace context from each message
// and starting a consumer span before invoking handler.
func Subscribe(nc *nats.Conn, subject string, handler func(context.Context, *nats.Msg)) (*nats.Subscription, error) {
	return nc.Subscribe(subject, func(m *nats.Msg) {
		ctx := propagator.Extract(context.Background(), propagation.HeaderCarrier(m.Header))
		tr := otel.Tracer("setrecon-transport")
		ctx, span := tr.Start(ctx, "nats.consume", trace.WithSpanKind(trace.SpanKindConsumer))
		defer span.End()
		handler(ctx, m)
	})
}

// PublishStrataEstimator encodes se and publishes it to subject.
func PublishStrataEstimator(ctx context.Context, nc *nats.Conn, subject string, se *ibf.StrataEstimator[ibf.Element128]) error {
	var buf bytes.Buffer
	if err := wire.EncodeStrataEstimator(&buf, se); err != nil {
		return fmt.Errorf("transport: encode estimator: %w", err)
	}
	return Publish(ctx, nc, subject, buf.Bytes())
}

// RequestIBF sends the local StrataEstimator to peerID's sketch subject and
// waits up to timeout for a reply carrying an encoded IBF. instr.BytesExchanged
// is incremented by the encoded size of both the outgoing request and the
// incoming reply, so a reconciliation round's wire cost shows up alongside
// its round/difference counters.
func RequestIBF(ctx context.Context, nc *nats.Conn, peerID string, se *ibf.StrataEstimator[ibf.Element128], timeout time.Duration, instr telemetry.Instruments) (*ibf.IBF[ibf.Element128], error) {
	var buf bytes.Buffer
	if err := wire.EncodeStrataEstimator(&buf, se); err != nil {
		return nil, fmt.Errorf("transport: encode estimator: %w", err)
	}
	instr.BytesExchanged.Add(ctx, int64(buf.Len()))

	reqCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	hdr := nats.Header{}
	propagator.Inject(reqCtx, propagation.HeaderCarrier(hdr))
	reply, err := nc.RequestMsgWithContext(reqCtx, &nats.Msg{
		Subject: SketchSubject(peerID),
		Data:    buf.Bytes(),
		Header:  hdr,
	})
	if err != nil {
		return nil, fmt.Errorf("transport: request to %s: %w", peerID, err)
	}
	instr.BytesExchanged.Add(ctx, int64(len(reply.Data)))

	f, err := wire.DecodeIBF(bytes.NewReader(reply.Data))
	if err != nil {
		return nil, fmt.Errorf("transport: decode ibf reply: %w", err)
	}
	return f, nil
}

// ServeSketches subscribes on peerID's sketch subject and answers each
// incoming StrataEstimator request with an IBF from build, which decides how
// to size it (typically by estimating the difference against the decoded
// request and padding by a safety factor). build is called once per request
// inline; callers with a larger element set may want to cache the result and
// only rebuild on local set changes. instr.BytesExchanged is incremented by
// the encoded size of both the incoming request and the outgoing reply.
func ServeSketches(nc *nats.Conn, peerID string, instr telemetry.Instruments, build func(ctx context.Context, req *ibf.StrataEstimator[ibf.Element128]) (*ibf.IBF[ibf.Element128], error)) (*nats.Subscription, error) {
	return nc.Subscribe(SketchSubject(peerID), func(m *nats.Msg) {
		ctx := propagator.Extract(context.Background(), propagation.HeaderCarrier(m.Header))
		tr := otel.Tracer("setrecon-transport")
		ctx, span := tr.Start(ctx, "nats.consume", trace.WithSpanKind(trace.SpanKindConsumer))
		defer span.End()

		instr.BytesExchanged.Add(ctx, int64(len(m.Data)))
		req, err := wire.DecodeStrataEstimator(bytes.NewReader(m.Data))
		if err != nil {
			return
		}
		f, err := build(ctx, req)
		if err != nil || f == nil {
			return
		}
		var buf bytes.Buffer
		if err := wire.EncodeIBF(&buf, f); err != nil {
			return
		}
		instr.BytesExchanged.Add(ctx, int64(buf.Len()))
		_ = m.Respond(buf.Bytes())
	})
}
