package engine

import (
	"fmt"
	"log"

	"github.com/robfig/cron/v3"
)

// Optimizer is the store maintenance hook. *store.DB implements it.
type Optimizer interface {
	Optimize() error
}

// Maintenance runs periodic store upkeep on a cron schedule.
type Maintenance struct {
	cron *cron.Cron
}

// StartMaintenance schedules db.Optimize with a standard cron expression or
// descriptor such as "@daily", and starts the scheduler.
func StartMaintenance(db Optimizer, schedule string) (*Maintenance, error) {
	c := cron.New()
	if _, err := c.AddFunc(schedule, func() {
		if err := db.Optimize(); err != nil {
			log.Printf("maintenance: %v", err)
			return
		}
		log.Printf("maintenance: store optimized")
	}); err != nil {
		return nil, fmt.Errorf("schedule maintenance %q: %w", schedule, err)
	}
	c.Start()
	return &Maintenance{cron: c}, nil
}

// Stop halts the scheduler and waits for a running job to finish.
func (m *Maintenance) Stop() {
	<-m.cron.Stop().Done()
}
