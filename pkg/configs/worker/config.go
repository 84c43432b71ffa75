package worker

import (
	"time"

	"github.com/Lelouch-Britannia/KubePlayground/pkg/domain"
)

type WorkerConfig struct {
	port    int32
	cluster *ClusterConfig
	worker  *EngineConfig
	scopes  *ScopeConfig
	events  *EventConfig
}

func (c *WorkerConfig) Port() int32 {
	return c.port
}

func (c *WorkerConfig) Cluster() *ClusterConfig {
	return c.cluster
}

func (c *WorkerConfig) Worker() *EngineConfig {
	return c.worker
}

func (c *WorkerConfig) Scopes() *ScopeConfig {
	return c.scopes
}

func (c *WorkerConfig) Events() *EventConfig {
	return c.events
}

// Configuration for the cluster this worker serves.
//
// to get a `ClusterConfig` instance, use `WorkerConfigMarshall.TrySeal()` .
type ClusterConfig struct {
	domain   string
	database string
	quota    domain.ScopeQuota
}

// k8s cluster domain. default = "cluster.local"
func (c *ClusterConfig) Domain() string {
	return c.domain
}

// Connection string for database.
func (c *ClusterConfig) Database() string {
	return c.database
}

// Resource quota applied to each isolation scope.
func (c *ClusterConfig) Quota() domain.ScopeQuota {
	return c.quota
}

type EngineConfig struct {
	concurrency   int
	stepTimeout   time.Duration
	lease         time.Duration
	maxLiveScopes int
}

// how many jobs run at once.
func (c *EngineConfig) Concurrency() int {
	return c.concurrency
}

// ceiling on each apply sub-step and each assertion.
func (c *EngineConfig) StepTimeout() time.Duration {
	return c.stepTimeout
}

// how long a pulled job stays invisible to other workers.
func (c *EngineConfig) Lease() time.Duration {
	return c.lease
}

// how many scopes may be live at once.
func (c *EngineConfig) MaxLiveScopes() int {
	return c.maxLiveScopes
}

type ScopeConfig struct {
	idleThreshold time.Duration
	reapInterval  time.Duration
}

// scopes untouched for this long get reaped.
func (c *ScopeConfig) IdleThreshold() time.Duration {
	return c.idleThreshold
}

// how often the reaper wakes up.
func (c *ScopeConfig) ReapInterval() time.Duration {
	return c.reapInterval
}

type EventConfig struct {
	retention time.Duration
}

// closed event streams older than this may be dropped.
func (c *EventConfig) Retention() time.Duration {
	return c.retention
}
