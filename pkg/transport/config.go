/*
 * Copyright 2025 SREDiag Authors
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package transport

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// Environment overrides applied by DefaultConfig.
const (
	EnvRegionName = "SHMSLAB_REGION_NAME"
	EnvSlotSize   = "SHMSLAB_SLOT_SIZE"
	EnvSlotCount  = "SHMSLAB_SLOT_COUNT"
	EnvQueueCap   = "SHMSLAB_QUEUE_CAP"
)

const (
	defaultRegionName       = "shmslab"
	defaultSlotSize         = 4096
	defaultSlotCount        = 1024
	defaultSlotAlign        = 64
	defaultQueueCap         = 64 << 10
	defaultRetryInterval    = 50 * time.Microsecond
	defaultMaxRetryInterval = 5 * time.Millisecond
	defaultServeBacklog     = 256
	defaultServeWorkers     = 16

	// minQueueCap holds one descriptor record.
	minQueueCap = descriptorLen + 4
)

// ErrInvalidConfig is wrapped by every VerifyConfig failure.
var ErrInvalidConfig = errors.New("transport: invalid config")

// Config is used to tune a Channel.
type Config struct {
	// RegionName names the shared memory object under /dev/shm.
	RegionName string

	// SlotSize is the largest message a channel carries.
	SlotSize int

	SlotCount int

	// SlotAlign is the slot alignment, a power of two or 0.
	SlotAlign int

	// QueueCap is the byte capacity of the descriptor queue. Every pending
	// message takes 12 bytes of it.
	QueueCap int

	// RetryInterval and MaxRetryInterval bound the exponential backoff used
	// by Send, Receive and Serve while the channel is full or empty.
	RetryInterval    time.Duration
	MaxRetryInterval time.Duration

	// SendTimeout bounds Send when the caller's context has no deadline. 0 disables it.
	SendTimeout time.Duration

	// ServeBacklog is the number of received messages Serve buffers ahead of
	// its workers; ServeWorkers is the size of the worker pool.
	ServeBacklog int
	ServeWorkers int

	// Meter and Tracer default to no-op implementations.
	Meter  metric.Meter
	Tracer trace.Tracer
}

// DefaultConfig returns the default config with environment overrides applied.
func DefaultConfig() *Config {
	c := &Config{
		RegionName:       defaultRegionName,
		SlotSize:         defaultSlotSize,
		SlotCount:        defaultSlotCount,
		SlotAlign:        defaultSlotAlign,
		QueueCap:         defaultQueueCap,
		RetryInterval:    defaultRetryInterval,
		MaxRetryInterval: defaultMaxRetryInterval,
		ServeBacklog:     defaultServeBacklog,
		ServeWorkers:     defaultServeWorkers,
	}
	if v := strings.TrimSpace(os.Getenv(EnvRegionName)); v != "" {
		c.RegionName = v
	}
	envInt(EnvSlotSize, &c.SlotSize)
	envInt(EnvSlotCount, &c.SlotCount)
	envInt(EnvQueueCap, &c.QueueCap)
	return c
}

func envInt(key string, dst *int) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		internalLogger.Warnf("ignore %s=%q: %s", key, v, err.Error())
		return
	}
	*dst = n
}

// VerifyConfig is used to verify the sanity of configuration.
func VerifyConfig(config *Config) error {
	if config == nil {
		return fmt.Errorf("%w: nil config", ErrInvalidConfig)
	}
	if config.RegionName == "" || strings.ContainsRune(config.RegionName, '/') {
		return fmt.Errorf("%w: region name %q", ErrInvalidConfig, config.RegionName)
	}
	if config.SlotSize <= 0 || config.SlotCount <= 0 {
		return fmt.Errorf("%w: %d slots of %d bytes", ErrInvalidConfig, config.SlotCount, config.SlotSize)
	}
	if config.SlotAlign < 0 || config.SlotAlign&(config.SlotAlign-1) != 0 {
		return fmt.Errorf("%w: slot alignment %d", ErrInvalidConfig, config.SlotAlign)
	}
	if config.QueueCap < minQueueCap {
		return fmt.Errorf("%w: queue capacity %d is below %d", ErrInvalidConfig, config.QueueCap, minQueueCap)
	}
	if config.RetryInterval <= 0 || config.MaxRetryInterval < config.RetryInterval {
		return fmt.Errorf("%w: retry interval %s, max %s", ErrInvalidConfig, config.RetryInterval, config.MaxRetryInterval)
	}
	if config.SendTimeout < 0 {
		return fmt.Errorf("%w: send timeout %s", ErrInvalidConfig, config.SendTimeout)
	}
	if config.ServeBacklog <= 0 || config.ServeWorkers <= 0 {
		return fmt.Errorf("%w: serve backlog %d, workers %d", ErrInvalidConfig, config.ServeBacklog, config.ServeWorkers)
	}
	return nil
}
