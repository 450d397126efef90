package worker

import (
	"context"
	"fmt"
	"log"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/nats-io/nats.go"

	service "github.com/docupilot/docupilot/service"
)

// DefaultProcessTimeout bounds one processing run when PROCESS_TIMEOUT_MINUTES
// is unset. The pipeline itself has no per-step timeouts; the worker owns the
// wall clock.
const DefaultProcessTimeout = 10 * time.Minute

// QueueGroup makes NATS load-balance tasks across worker instances. Delivery
// stays at-least-once; the orchestrator tolerates duplicate document IDs.
const QueueGroup = "doc-workers"

// Worker consumes document IDs from the task broker and drives the pipeline.
type Worker struct {
	nc      *nats.Conn
	agent   *service.AgentService
	timeout time.Duration

	sub *nats.Subscription
	wg  sync.WaitGroup
}

func New(nc *nats.Conn, agent *service.AgentService) *Worker {
	timeout := DefaultProcessTimeout
	if v := os.Getenv("PROCESS_TIMEOUT_MINUTES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			timeout = time.Duration(n) * time.Minute
		}
	}
	return &Worker{nc: nc, agent: agent, timeout: timeout}
}

// Start subscribes to the task subject. Each message is one document ID; the
// run gets its own context bound by the wall-clock timeout, so an overlong
// run surfaces as a Timeout-kind failure on the document.
func (w *Worker) Start() error {
	sub, err := w.nc.QueueSubscribe(service.TaskSubject, QueueGroup, func(msg *nats.Msg) {
		documentID := string(msg.Data)
		if documentID == "" {
			log.Println("[Worker] dropping empty task message")
			return
		}

		w.wg.Add(1)
		go func() {
			defer w.wg.Done()
			ctx, cancel := context.WithTimeout(context.Background(), w.timeout)
			defer cancel()

			log.Printf("[Worker] processing document %s", documentID)
			if err := w.agent.ProcessDocument(ctx, documentID); err != nil {
				log.Printf("[Worker] processing failed for document %s: %v", documentID, err)
			} else {
				log.Printf("[Worker] processed document %s", documentID)
			}
		}()
	})
	if err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", service.TaskSubject, err)
	}

	w.sub = sub
	log.Printf("[Worker] subscribed to %s (queue group %s, timeout %s)", service.TaskSubject, QueueGroup, w.timeout)
	return nil
}

// Shutdown drains the subscription and waits for in-flight runs to finish.
func (w *Worker) Shutdown(ctx context.Context) {
	if w.sub != nil {
		if err := w.sub.Drain(); err != nil {
			log.Printf("[Worker] drain error: %v", err)
		}
	}

	done := make(chan struct{})
	go func() { defer close(done); w.wg.Wait() }()
	select {
	case <-done:
		log.Println("[Worker] all in-flight runs finished")
	case <-ctx.Done():
		log.Println("[Worker] shutdown timed out with runs still in flight")
	}
}
