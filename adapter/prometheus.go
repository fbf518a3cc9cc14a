package adapter

import (
	cmap "github.com/orcaman/concurrent-map/v2"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/srediag/shmslab/pkg/shm"
)

// Collector is a prometheus.Collector reporting the occupancy of named
// pools and queues. Values are read at scrape time.
type Collector struct {
	pools  cmap.ConcurrentMap[string, *shm.Pool]
	queues cmap.ConcurrentMap[string, *shm.Queue]

	poolInUse    *prometheus.Desc
	poolSlots    *prometheus.Desc
	poolSlotSize *prometheus.Desc
	poolOpens    *prometheus.Desc
	queuePending *prometheus.Desc
	queueCap     *prometheus.Desc
	queueOpens   *prometheus.Desc
}

var _ prometheus.Collector = (*Collector)(nil)

// NewCollector returns a Collector whose metric names start with namespace.
func NewCollector(namespace string) *Collector {
	label := []string{"name"}
	desc := func(subsystem, name, help string) *prometheus.Desc {
		return prometheus.NewDesc(prometheus.BuildFQName(namespace, subsystem, name), help, label, nil)
	}
	return &Collector{
		pools:        cmap.New[*shm.Pool](),
		queues:       cmap.New[*shm.Queue](),
		poolInUse:    desc("pool", "slots_in_use", "Allocated slots."),
		poolSlots:    desc("pool", "slots", "Slots in the pool."),
		poolSlotSize: desc("pool", "slot_size_bytes", "Padded slot size."),
		poolOpens:    desc("pool", "opens", "Participants that opened the pool."),
		queuePending: desc("queue", "pending_bytes", "Bytes held by unread records, headers included."),
		queueCap:     desc("queue", "capacity_bytes", "Size of the record buffer."),
		queueOpens:   desc("queue", "opens", "Participants that opened the queue."),
	}
}

func (c *Collector) AddPool(name string, p *shm.Pool) {
	c.pools.Set(name, p)
}

func (c *Collector) AddQueue(name string, q *shm.Queue) {
	c.queues.Set(name, q)
}

// Remove forgets the pool and the queue registered under name. Call it
// before the region is unmapped.
func (c *Collector) Remove(name string) {
	c.pools.Remove(name)
	c.queues.Remove(name)
}

func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.poolInUse
	ch <- c.poolSlots
	ch <- c.poolSlotSize
	ch <- c.poolOpens
	ch <- c.queuePending
	ch <- c.queueCap
	ch <- c.queueOpens
}

func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	gauge := func(d *prometheus.Desc, v int, name string) {
		ch <- prometheus.MustNewConstMetric(d, prometheus.GaugeValue, float64(v), name)
	}
	for name, p := range c.pools.Items() {
		st := p.Stats()
		gauge(c.poolInUse, st.InUse, name)
		gauge(c.poolSlots, st.Count, name)
		gauge(c.poolSlotSize, st.ElemSize, name)
		gauge(c.poolOpens, st.Opens, name)
	}
	for name, q := range c.queues.Items() {
		st := q.Stats()
		gauge(c.queuePending, st.Pending(), name)
		gauge(c.queueCap, st.Capacity, name)
		gauge(c.queueOpens, st.Opens, name)
	}
}
