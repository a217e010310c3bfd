package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	coremetrics "github.com/oilroute/dispatch/core/metrics"
	"github.com/oilroute/dispatch/core/model"
)

// instruction mirrors the dispatch payload published by the scheduler.
type instruction struct {
	CommandID    string  `json:"command_id"`
	OrderID      string  `json:"order_id"`
	SiteID       string  `json:"site_id"`
	OilType      string  `json:"oil_type"`
	Volume       float64 `json:"volume"`
	SourceTankID string  `json:"source_tank_id"`
	TargetTankID string  `json:"target_tank_id"`
	Start        int64   `json:"start"`
	End          int64   `json:"end"`
	Cleaning     bool    `json:"cleaning"`
}

// SimulatedSite plays the role of a site field controller: it consumes
// dispatch instructions, tracks per-tank inventory drift and acknowledges
// each command through the configured strategy.
type SimulatedSite struct {
	ID       string
	Broker   string
	AckTopic string
	Strategy AckStrategy
	Speedup  float64
	Metrics  coremetrics.MetricsSink

	mu        sync.Mutex
	inventory map[string]float64
}

// Run connects to the broker and processes instructions until the context
// is cancelled.
func (s *SimulatedSite) Run(ctx context.Context) error {
	cli, err := newMQTTClient(s.Broker, "sim-site-"+s.ID)
	if err != nil {
		return fmt.Errorf("connect %s: %w", s.ID, err)
	}
	defer cli.Disconnect(250)

	topic := fmt.Sprintf("site/%s/dispatch", s.ID)
	token := cli.Subscribe(topic, 0, func(_ paho.Client, msg paho.Message) {
		var instr instruction
		if err := json.Unmarshal(msg.Payload(), &instr); err != nil {
			log.Printf("%s: decode instruction: %v", s.ID, err)
			return
		}
		go s.execute(ctx, cli, instr)
	})
	if token.Wait() && token.Error() != nil {
		return fmt.Errorf("subscribe %s: %w", topic, token.Error())
	}

	<-ctx.Done()
	return nil
}

// execute simulates the transfer at the configured speedup before
// acknowledging.
func (s *SimulatedSite) execute(ctx context.Context, cli paho.Client, instr instruction) {
	dur := time.Duration(float64(instr.End-instr.Start)/s.Speedup) * time.Millisecond
	if dur > 0 {
		select {
		case <-time.After(dur):
		case <-ctx.Done():
			return
		}
	}

	s.mu.Lock()
	if s.inventory == nil {
		s.inventory = make(map[string]float64)
	}
	s.inventory[instr.SourceTankID] -= instr.Volume
	s.inventory[instr.TargetTankID] += instr.Volume
	s.mu.Unlock()

	if s.Metrics != nil {
		ev := coremetrics.TransferEvent{
			OrderID:          instr.OrderID,
			SiteID:           instr.SiteID,
			OilType:          model.OilType(instr.OilType),
			Volume:           instr.Volume,
			SourceTankID:     instr.SourceTankID,
			TargetTankID:     instr.TargetTankID,
			CleaningRequired: instr.Cleaning,
			Start:            time.UnixMilli(instr.Start),
			End:              time.UnixMilli(instr.End),
			Time:             time.Now(),
		}
		if err := s.Metrics.RecordTransfers([]coremetrics.TransferEvent{ev}); err != nil {
			log.Printf("%s: record transfer: %v", s.ID, err)
		}
	}

	s.Strategy.Ack(ctx, cli, s.AckTopic, instr.CommandID)
	log.Printf("%s: executed %s (%.1f m3 %s)", s.ID, instr.OrderID, instr.Volume, instr.OilType)
}

// Drift returns the simulated net inventory change for a tank.
func (s *SimulatedSite) Drift(tankID string) float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inventory[tankID]
}
