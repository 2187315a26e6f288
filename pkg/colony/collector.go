package colony

import (
	"time"

	"github.com/orbitalworks/starhold/pkg/metrics"
)

// collector periodically refreshes the population gauges
type collector struct {
	colony *Colony
	stopCh chan struct{}
}

func newCollector(c *Colony) *collector {
	return &collector{
		colony: c,
		stopCh: make(chan struct{}),
	}
}

// Start begins collecting gauges
func (c *collector) Start() {
	ticker := time.NewTicker(15 * time.Second)
	go func() {
		// Collect immediately on start
		c.collect()

		for {
			select {
			case <-ticker.C:
				c.collect()
			case <-c.stopCh:
				ticker.Stop()
				return
			}
		}
	}()
}

// Stop stops the collector
func (c *collector) Stop() {
	close(c.stopCh)
}

func (c *collector) collect() {
	c.collectModules()
	c.collectSubModules()
	metrics.BuildingsTotal.Set(float64(len(c.colony.Registry.Buildings())))
}

func (c *collector) collectModules() {
	counts := make(map[string]map[string]int)
	for _, m := range c.colony.Registry.Modules() {
		mt := string(m.Type)
		st := string(m.Status)
		if ext, ok := c.colony.Tracker.CurrentStatus(m.ID); ok {
			st = string(ext)
		}
		if counts[mt] == nil {
			counts[mt] = make(map[string]int)
		}
		counts[mt][st]++
	}

	metrics.ModulesTotal.Reset()
	for mt, statuses := range counts {
		for st, count := range statuses {
			metrics.ModulesTotal.WithLabelValues(mt, st).Set(float64(count))
		}
	}
}

func (c *collector) collectSubModules() {
	counts := make(map[string]int)
	for _, sub := range c.colony.SubModules.SubModules() {
		counts[string(sub.Type)]++
	}

	metrics.SubModulesTotal.Reset()
	for st, count := range counts {
		metrics.SubModulesTotal.WithLabelValues(st).Set(float64(count))
	}
}
