package mqtt

import (
	"context"
	"time"

	"github.com/oilroute/dispatch/core/queue"
	"github.com/oilroute/dispatch/infra/logger"
)

// statusClient is the publishing surface the StatusPublisher needs.
type statusClient interface {
	Publish(topic, qosKey string, retained bool, payload any) error
}

// StatusPublisher periodically publishes the queue status and gantt timeline
// as retained messages so late subscribers see the current picture.
type StatusPublisher struct {
	client      statusClient
	qm          *queue.Manager
	statusTopic string
	ganttTopic  string
	interval    time.Duration
	log         logger.Logger
}

// NewStatusPublisher builds a publisher for the given topics. A non-positive
// interval defaults to 30 seconds.
func NewStatusPublisher(client *PahoClient, qm *queue.Manager, cfg Config, interval time.Duration) *StatusPublisher {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	statusTopic := cfg.StatusTopic
	if statusTopic == "" {
		statusTopic = "dispatch/queue/status"
	}
	ganttTopic := cfg.GanttTopic
	if ganttTopic == "" {
		ganttTopic = "dispatch/queue/gantt"
	}
	return &StatusPublisher{
		client:      client,
		qm:          qm,
		statusTopic: statusTopic,
		ganttTopic:  ganttTopic,
		interval:    interval,
		log:         logger.New("status_publisher"),
	}
}

// Run publishes snapshots until the context is cancelled.
func (p *StatusPublisher) Run(ctx context.Context) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()
	p.publishOnce()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.publishOnce()
		}
	}
}

func (p *StatusPublisher) publishOnce() {
	if err := p.client.Publish(p.statusTopic, "status", true, p.qm.Status()); err != nil {
		p.log.Errorf("publish status: %v", err)
	}
	if err := p.client.Publish(p.ganttTopic, "status", true, p.qm.Gantt(time.Now())); err != nil {
		p.log.Errorf("publish gantt: %v", err)
	}
}
