package app

import (
	"context"
	"fmt"
	"net/http"
	"time"

	apiqueue "github.com/oilroute/dispatch/api/queue"
	"github.com/oilroute/dispatch/app/plugins"
	"github.com/oilroute/dispatch/auth"
	"github.com/oilroute/dispatch/config"
	"github.com/oilroute/dispatch/connectors"
	"github.com/oilroute/dispatch/connectors/clients/orderbook"
	connfactory "github.com/oilroute/dispatch/connectors/factory"
	"github.com/oilroute/dispatch/core/dispatch"
	coremetrics "github.com/oilroute/dispatch/core/metrics"
	"github.com/oilroute/dispatch/core/path"
	"github.com/oilroute/dispatch/core/queue"
	queuelog "github.com/oilroute/dispatch/core/queue/logging"
	"github.com/oilroute/dispatch/core/scheduler"
	"github.com/oilroute/dispatch/core/topology"
	"github.com/oilroute/dispatch/infra/kpi"
	"github.com/oilroute/dispatch/infra/logger"
	"github.com/oilroute/dispatch/infra/metrics"
	"github.com/oilroute/dispatch/infra/mqtt"
	"github.com/oilroute/dispatch/internal/eventbus"
)

// Service orchestrates the queue manager, scheduler and connectors.
type Service struct {
	Queue     *queue.Manager
	Scheduler *scheduler.RollingScheduler

	cfg       *config.Config
	bus       *eventbus.Bus
	sink      coremetrics.MetricsSink
	store     queuelog.Store
	kpiStore  *kpi.SQLiteStore
	client    *mqtt.PahoClient
	statusPub *mqtt.StatusPublisher
	log       logger.Logger
}

// New creates a Service from the configuration.
func New(cfg *config.Config) (*Service, error) {
	logg := logger.New("service")

	topo, err := topology.Load(cfg.TopologyPath)
	if err != nil {
		return nil, fmt.Errorf("load topology: %w", err)
	}
	real, err := topo.Materialize(time.Now())
	if err != nil {
		return nil, fmt.Errorf("materialize topology: %w", err)
	}

	storeFactory, ok := plugins.LogStores[cfg.Logging.Backend]
	if !ok {
		return nil, fmt.Errorf("unknown log store backend %s", cfg.Logging.Backend)
	}
	store, err := storeFactory(cfg.Logging.Backend, map[string]any{
		"backend":      cfg.Logging.Backend,
		"path":         cfg.Logging.Path,
		"max_size_mb":  cfg.Logging.MaxSizeMB,
		"max_backups":  cfg.Logging.MaxBackups,
		"max_age_days": cfg.Logging.MaxAgeDays,
	})
	if err != nil {
		return nil, fmt.Errorf("log store: %w", err)
	}

	bus := eventbus.New()
	qm, err := queue.NewManager(real, cfg.Dispatch.DefaultFlowRate, bus, store, logg)
	if err != nil {
		return nil, fmt.Errorf("queue manager: %w", err)
	}

	finder := path.NewFinder(cfg.Dispatch.DefaultFlowRate, logg)
	planner, err := dispatch.NewPlanner(cfg.Dispatch, finder, bus, logg)
	if err != nil {
		return nil, fmt.Errorf("planner: %w", err)
	}
	sched, err := scheduler.New(cfg.Scheduler, cfg.Dispatch, planner, qm, logg)
	if err != nil {
		return nil, fmt.Errorf("scheduler: %w", err)
	}

	sink, err := coremetrics.NewMetricsSink(cfg.Metrics.Sinks)
	if err != nil {
		return nil, fmt.Errorf("metrics sink: %w", err)
	}

	svc := &Service{
		Queue:     qm,
		Scheduler: sched,
		cfg:       cfg,
		bus:       bus,
		sink:      sink,
		store:     store,
		log:       logg,
	}

	if cfg.KPIPath != "" {
		kpiStore, err := kpi.NewSQLiteStore(cfg.KPIPath)
		if err != nil {
			return nil, fmt.Errorf("kpi store: %w", err)
		}
		svc.kpiStore = kpiStore
	}

	if cfg.MQTTEnabled {
		client, err := mqtt.NewPahoClient(cfg.MQTT)
		if err != nil {
			return nil, fmt.Errorf("mqtt client: %w", err)
		}
		svc.client = client
		interval := time.Duration(cfg.StatusIntervalSeconds) * time.Second
		svc.statusPub = mqtt.NewStatusPublisher(client, qm, cfg.MQTT, interval)
	}
	return svc, nil
}

// Run starts the service and blocks until the context is cancelled.
func (s *Service) Run(ctx context.Context) error {
	metrics.StartEventCollector(ctx, s.bus, s.sink)
	if addr := s.cfg.Metrics.PrometheusAddr; addr != "" {
		go func() {
			if err := metrics.StartPromServer(ctx, addr); err != nil {
				s.log.Errorf("prom server: %v", err)
			}
		}()
	}
	if s.statusPub != nil {
		go s.statusPub.Run(ctx)
	}
	if s.cfg.APIAddr != "" {
		go s.serveAPI(ctx)
	}

	if s.cfg.OrdersPath != "" {
		orders, err := scheduler.LoadOrders(s.cfg.OrdersPath)
		if err != nil {
			return fmt.Errorf("load orders: %w", err)
		}
		res, err := s.Scheduler.Run(ctx, orders, time.Now())
		if err != nil {
			return err
		}
		s.log.Infof("initial order book scheduled: %d placed, %d conflicts",
			len(res.Placed), len(res.Conflicts))
		s.recordKPI(res, time.Now())
	}
	if s.cfg.OrderBook.Enabled {
		if err := s.pullOrderBook(ctx); err != nil {
			return fmt.Errorf("order book: %w", err)
		}
	}

	interval := time.Duration(s.cfg.StatusIntervalSeconds) * time.Second
	if interval <= 0 {
		interval = 30 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			s.recordSnapshot()
		}
	}
}

// serveAPI exposes queue logs, status and the timeline over HTTP until the
// context is cancelled.
func (s *Service) serveAPI(ctx context.Context) {
	mux := http.NewServeMux()
	mux.Handle("/api/queue/logs", apiqueue.NewLogHandler(s.store, s.cfg.APIToken))
	mux.Handle("/api/queue/status", apiqueue.NewStatusHandler(s.Queue, s.cfg.APIToken))
	mux.Handle("/api/queue/gantt", apiqueue.NewGanttHandler(s.Queue, s.cfg.APIToken))

	srv := &http.Server{Addr: s.cfg.APIAddr, Handler: mux}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			s.log.Errorf("api server shutdown: %v", err)
		}
	}()
	s.log.Infof("api server listening on %s", s.cfg.APIAddr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		s.log.Errorf("api server: %v", err)
	}
}

// pullOrderBook fetches pending customer orders from the configured
// connector and schedules them.
func (s *Service) pullOrderBook(ctx context.Context) error {
	client, err := connfactory.NewOrderBookClient(s.cfg.OrderBook.Connector)
	if err != nil {
		return err
	}
	authClient := auth.NewClientCred(s.cfg.OrderBook.Auth)

	now := time.Now()
	opts := []connectors.Option{
		orderbook.WithStartDate(now),
		orderbook.WithEndDate(now.Add(time.Duration(s.cfg.OrderBook.WindowHours) * time.Hour)),
	}
	if s.cfg.OrderBook.BaseURL != "" {
		opts = append(opts, orderbook.WithBaseURL(s.cfg.OrderBook.BaseURL))
	}
	resp, err := client.Fetch(authClient, opts...)
	if err != nil {
		return err
	}
	orders, err := resp.Orders()
	if err != nil {
		return err
	}
	if len(orders) == 0 {
		s.log.Infof("order book returned no pending orders")
		return nil
	}
	res, err := s.Scheduler.Run(ctx, orders, now)
	if err != nil {
		return err
	}
	s.log.Infof("order book pulled: %d orders, %d placed, %d conflicts",
		len(orders), len(res.Placed), len(res.Conflicts))
	s.recordKPI(res, now)
	return nil
}

// recordKPI accumulates per-site daily scheduling outcomes.
func (s *Service) recordKPI(res scheduler.Result, now time.Time) {
	if s.kpiStore == nil {
		return
	}
	type agg struct {
		placed    int
		conflicts int
		volume    float64
	}
	bySite := map[string]*agg{}
	site := func(id string) *agg {
		a, ok := bySite[id]
		if !ok {
			a = &agg{}
			bySite[id] = a
		}
		return a
	}
	for _, o := range res.Placed {
		a := site(o.SiteID)
		a.placed++
		a.volume += o.Volume
	}
	for _, o := range res.Conflicts {
		site(o.SiteID).conflicts++
	}
	for id, a := range bySite {
		rec := kpi.Record{
			SiteID:        id,
			Date:          now,
			PlacedOrders:  a.placed,
			Conflicts:     a.conflicts,
			VolumePlanned: a.volume,
		}
		if err := s.kpiStore.Add(rec); err != nil {
			s.log.Errorf("record kpi for %s: %v", id, err)
		}
	}
}

// recordSnapshot pushes tank levels and queue depth to the metrics sink.
func (s *Service) recordSnapshot() {
	st := s.Queue.RealState()
	now := time.Now()
	levels := make([]coremetrics.TankLevelEvent, 0, len(st.Tanks))
	for _, id := range st.TankIDs() {
		t := st.Tanks[id]
		ratio := 0.0
		if t.Config.SafeCapacity > 0 {
			ratio = t.Inventory / t.Config.SafeCapacity
		}
		levels = append(levels, coremetrics.TankLevelEvent{
			TankID:    id,
			SiteID:    t.Config.SiteID,
			OilType:   t.OilType,
			Inventory: t.Inventory,
			FillRatio: ratio,
			Time:      now,
		})
	}
	if rec, ok := s.sink.(coremetrics.TankLevelRecorder); ok {
		if err := rec.RecordTankLevels(levels); err != nil {
			s.log.Errorf("record tank levels: %v", err)
		}
	}
	if rec, ok := s.sink.(coremetrics.QueueSnapshotRecorder); ok {
		ev := coremetrics.QueueSnapshotEvent{
			Depth:       s.Queue.Len(),
			Conflicts:   len(s.Queue.ConflictingOrders()),
			Utilization: st.ResourceUtilization(),
			Time:        now,
		}
		if err := rec.RecordQueueSnapshot(ev); err != nil {
			s.log.Errorf("record queue snapshot: %v", err)
		}
	}
}

// Close releases resources held by the service.
func (s *Service) Close() error {
	if s.client != nil {
		s.client.Disconnect()
	}
	s.bus.Close()
	if s.kpiStore != nil {
		if err := s.kpiStore.Close(); err != nil {
			s.log.Errorf("close kpi store: %v", err)
		}
	}
	if s.store != nil {
		return s.store.Close()
	}
	return nil
}
