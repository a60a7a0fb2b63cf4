package worker

import (
	"log"
	"sync"
	"time"

	"github.com/celldiag/eiscore"
	"github.com/celldiag/eiscore/pkg/models"
)

// ProcessorFunc runs one analysis. Each call must be independently
// re-entrant; the pool invokes it from several goroutines.
type ProcessorFunc func(csv []byte, rbMax float64) (*eiscore.AnalysisReport, error)

// Sender delivers a finished analysis somewhere external, typically the
// webhook client.
type Sender interface {
	Send(item models.WebhookItem) error
}

// Pool fans spectrum analyses out across a fixed set of workers. Webhook
// deliveries run on their own goroutine so slow endpoints never stall the
// numeric work.
type Pool struct {
	jobs         chan models.WorkItem
	results      chan models.WorkResult
	webhookQueue chan models.WebhookItem
	workers      int
	shutdown     chan struct{}
	wg           sync.WaitGroup
	processor    ProcessorFunc
	sender       Sender
}

// Options configures a new pool. Sender may be nil when no delivery is
// wanted.
type Options struct {
	Workers   int
	Processor ProcessorFunc
	Sender    Sender
}

// New creates and starts a worker pool.
func New(opts Options) *Pool {
	if opts.Workers <= 0 {
		opts.Workers = 5
	}

	// jobs/results are buffered so queueing does not block while workers
	// are busy; the webhook queue gets extra slack since delivery is the
	// slower operation.
	p := &Pool{
		jobs:         make(chan models.WorkItem, opts.Workers*2),
		results:      make(chan models.WorkResult, opts.Workers*2),
		webhookQueue: make(chan models.WebhookItem, opts.Workers*4),
		workers:      opts.Workers,
		shutdown:     make(chan struct{}),
		processor:    opts.Processor,
		sender:       opts.Sender,
	}

	p.start()
	return p
}

func (p *Pool) start() {
	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.worker(i)
	}

	p.wg.Add(1)
	go p.deliveryLoop()

	log.Printf("worker pool started with %d workers", p.workers)
}

func (p *Pool) worker(id int) {
	defer p.wg.Done()

	for {
		select {
		case job := <-p.jobs:
			p.results <- p.processJob(id, job)
		case <-p.shutdown:
			return
		}
	}
}

func (p *Pool) processJob(id int, job models.WorkItem) models.WorkResult {
	start := time.Now()
	report, err := p.processor(job.CSV, job.RbMax)
	elapsed := time.Since(start)

	if err != nil {
		log.Printf("worker[%d] %s: analysis failed after %v: %v", id, job.RequestID, elapsed, err)
	} else {
		log.Printf("worker[%d] %s: chi-square %.6e, SoH %.1f%%, %v", id, job.RequestID, report.ChiSquare, report.SoH.Percentage, elapsed)
		if p.sender != nil {
			p.QueueWebhook(models.WebhookItem{
				RequestID: job.RequestID,
				Path:      job.Path,
				Report:    report,
			})
		}
	}

	return models.WorkResult{
		ID:             job.ID,
		RequestID:      job.RequestID,
		Path:           job.Path,
		Report:         report,
		Err:            err,
		ProcessingTime: elapsed,
	}
}

func (p *Pool) deliveryLoop() {
	defer p.wg.Done()

	for {
		select {
		case item := <-p.webhookQueue:
			if p.sender == nil {
				continue
			}
			if err := p.sender.Send(item); err != nil {
				log.Printf("webhook delivery failed for %s: %v", item.RequestID, err)
			}
		case <-p.shutdown:
			return
		}
	}
}

// Submit queues a job, blocking when the pool is saturated.
func (p *Pool) Submit(job models.WorkItem) {
	select {
	case p.jobs <- job:
	default:
		log.Printf("worker pool jobs channel full, job %s may be delayed", job.RequestID)
		p.jobs <- job
	}
}

// Results exposes the result stream; callers read one result per
// submitted job.
func (p *Pool) Results() <-chan models.WorkResult {
	return p.results
}

// QueueWebhook queues a finished analysis for delivery, dropping it when
// the queue is saturated.
func (p *Pool) QueueWebhook(item models.WebhookItem) {
	select {
	case p.webhookQueue <- item:
	default:
		log.Printf("webhook queue full, dropping delivery for %s", item.RequestID)
	}
}

// Shutdown stops the workers after they finish their current jobs.
func (p *Pool) Shutdown() {
	close(p.shutdown)
	p.wg.Wait()
	log.Printf("worker pool shut down")
}
