// Command reconciled runs one peer's reconciliation daemon: it keeps a
// local element set in peerstore, periodically builds a StrataEstimator and
// IBF over it, and either serves sketch requests from other peers or polls
// a configured peer and reconciles against the result. The overall shape
// (signal-based shutdown, slog + otel init, an HTTP health endpoint, cron
// for periodic work) follows the orchestrator daemon's main.go, reworked
// around set reconciliation instead of DAG workflow execution.
package main

import (
	"context"
	"encoding/hex"
	"log/slog"
	"math"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	nats "github.com/nats-io/nats.go"
	"github.com/robfig/cron/v3"

	"github.com/swarmguard/setrecon/ibf"
	"github.com/swarmguard/setrecon/peerstore"
	"github.com/swarmguard/setrecon/telemetry"
	"github.com/swarmguard/setrecon/transport"
)

func main() {
	const service = "setrecon-reconciled"
	telemetry.InitLogging(service)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	shutdownTrace := telemetry.InitTracer(ctx, service)
	shutdownMetrics, instr := telemetry.InitMetrics(ctx, service)

	peerID := envOr("SETRECON_PEER_ID", "local")
	dataDir := envOr("SETRECON_DATA_DIR", "./data/"+peerID)
	store, err := peerstore.Open(dataDir)
	if err != nil {
		slog.Error("open peerstore failed", "error", err)
		os.Exit(1)
	}
	defer store.Close()

	natsURL := envOr("SETRECON_NATS_URL", nats.DefaultURL)
	nc, err := nats.Connect(natsURL)
	if err != nil {
		slog.Warn("nats connect failed, sketch serving disabled", "error", err, "url", natsURL)
	} else {
		defer nc.Close()
		sub, err := transport.ServeSketches(nc, peerID, instr, func(ctx context.Context, req *ibf.StrataEstimator[ibf.Element128]) (*ibf.IBF[ibf.Element128], error) {
			localSE, err := buildStrataEstimator(ctx, store)
			if err != nil {
				return nil, err
			}
			estimate, err := localSE.EstimateDifferences(req)
			if err != nil {
				return nil, err
			}
			instr.EstimatedDifferences.Record(ctx, estimateMetricValue(estimate))
			return buildIBF(ctx, store, ibfSizeFromEstimate(estimate))
		})
		if err != nil {
			slog.Warn("serve sketches failed", "error", err)
		} else {
			defer sub.Unsubscribe()
		}
	}

	c := cron.New()
	remotePeer := os.Getenv("SETRECON_REMOTE_PEER_ID")
	if remotePeer != "" && nc != nil {
		_, err := c.AddFunc("@every 30s", func() {
			reconcileOnce(ctx, store, nc, peerID, remotePeer, instr)
		})
		if err != nil {
			slog.Error("schedule reconciliation failed", "error", err)
		}
	}
	c.Start()
	defer c.Stop()

	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.HandleFunc("/root", func(w http.ResponseWriter, _ *http.Request) {
		root := store.Root()
		_, _ = w.Write([]byte(hex.EncodeToString(root[:])))
	})
	srv := &http.Server{Addr: envOr("SETRECON_HTTP_ADDR", ":8088"), Handler: mux}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("http server error", "error", err)
			cancel()
		}
	}()

	slog.Info("reconciled started", "peer_id", peerID)
	<-ctx.Done()
	slog.Info("shutdown initiated")

	ctxSd, cancelSd := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelSd()
	_ = srv.Shutdown(ctxSd)
	telemetry.Flush(ctxSd, shutdownTrace)
	_ = shutdownMetrics(ctxSd)
	slog.Info("shutdown complete")
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// ibfSizeMultiplier is the safety factor c applied to an estimated
// difference count before sizing the IBF offered in reply: the paper's
// guidance is c in [1.5, 3] so the peeling decoder has enough slack buckets
// to actually resolve the estimated number of differences rather than just
// barely accommodate it.
const ibfSizeMultiplier = 2.0

// ibfSizeMinimum is the smallest IBF this daemon will ever build, so a
// near-zero estimate (or the very first round, before either side has
// exchanged anything informative) still gets an IBF capable of resolving a
// handful of differences.
const ibfSizeMinimum = 20

// ibfSizeFromEstimate derives the bucket count m for a reply IBF from an
// estimated difference count, padding by ibfSizeMultiplier per the
// construction's sizing guidance. A saturated estimate (the estimator ran
// out of dynamic range before resolving anything) falls back to a fixed
// DefaultStrata*10 + ibfSizeMinimum buckets, since no better signal is
// available.
func ibfSizeFromEstimate(estimate uint64) int {
	if estimate == ibf.SaturatedEstimate {
		return ibf.DefaultStrata*10 + ibfSizeMinimum
	}
	sized := int(math.Ceil(float64(estimate) * ibfSizeMultiplier))
	if sized < ibfSizeMinimum {
		return ibfSizeMinimum
	}
	return sized
}

// estimateMetricValue clamps a difference estimate to a representable
// int64 for recording on instr.EstimatedDifferences, mapping the saturation
// sentinel to math.MaxInt64 instead of letting it wrap to -1.
func estimateMetricValue(estimate uint64) int64 {
	if estimate == ibf.SaturatedEstimate || estimate > math.MaxInt64 {
		return math.MaxInt64
	}
	return int64(estimate)
}

func buildIBF(ctx context.Context, store *peerstore.Store, m int) (*ibf.IBF[ibf.Element128], error) {
	elems, err := store.All(ctx)
	if err != nil {
		return nil, err
	}
	return ibf.BuildParallel[ibf.Element128](m, ibf.DefaultHashCount, 4, elems), nil
}

func buildStrataEstimator(ctx context.Context, store *peerstore.Store) (*ibf.StrataEstimator[ibf.Element128], error) {
	elems, err := store.All(ctx)
	if err != nil {
		return nil, err
	}
	se := ibf.NewStrataEstimator[ibf.Element128]()
	for _, e := range elems {
		se.Encode(e)
	}
	return se, nil
}

// reconcileOnce estimates, then decodes, the difference against remotePeer
// and logs what would need to be exchanged. It does not mutate either
// peer's store: applying the resulting Left/Right sides is left to a higher
// layer that understands what fetching a missing element means for this
// deployment.
func reconcileOnce(ctx context.Context, store *peerstore.Store, nc *nats.Conn, peerID, remotePeer string, instr telemetry.Instruments) {
	ctx, span := telemetry.StartSpan(ctx, "reconcile.round")
	defer span()
	instr.Rounds.Add(ctx, 1)

	se, err := buildStrataEstimator(ctx, store)
	if err != nil {
		slog.Error("build strata estimator failed", "error", err)
		return
	}

	f, err := transport.RequestIBF(ctx, nc, remotePeer, se, 5*time.Second, instr)
	if err != nil {
		slog.Warn("reconciliation request failed", "peer", remotePeer, "error", err)
		return
	}

	local, err := buildIBF(ctx, store, f.M())
	if err != nil {
		slog.Error("build local ibf failed", "error", err)
		return
	}
	diff, err := local.Subtract(f)
	if err != nil {
		slog.Error("subtract ibf failed", "error", err)
		return
	}
	sides, err := diff.Decode()
	if err != nil {
		instr.UndecodableRounds.Add(ctx, 1)
		slog.Warn("reconciliation undecodable, resize and retry next round", "peer", remotePeer, "error", err)
		return
	}
	instr.DecodedDifferences.Record(ctx, int64(len(sides)))
	slog.Info("reconciliation round complete",
		"local_peer", peerID,
		"remote_peer", remotePeer,
		"differences", len(sides),
	)
}
