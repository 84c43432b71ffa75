package worker

import (
	"fmt"
	"time"

	"github.com/Lelouch-Britannia/KubePlayground/pkg/domain"
	"k8s.io/apimachinery/pkg/api/resource"
)

type Marshalled[S any] interface {
	trySeal(string) S
}

// seal marshalled object.
//
// this function CAN CAUSE PANIC if misconfiguration is found.
//
// All types named `pkg/configs/worker.XxxMarshall` are `Marshalled[*Xxx]` .
func TrySeal[S any](conf Marshalled[S]) S {
	return conf.trySeal("(root)")
}

type WorkerConfigMarshall struct {
	Port    int32                  `yaml:"port"`
	Cluster *ClusterConfigMarshall `yaml:"cluster"`
	Worker  *EngineConfigMarshall  `yaml:"worker"`
	Scopes  *ScopeConfigMarshall   `yaml:"scopes"`
	Events  *EventConfigMarshall   `yaml:"events"`
}

var _ Marshalled[*WorkerConfig] = &WorkerConfigMarshall{}

func (m *WorkerConfigMarshall) trySeal(path string) *WorkerConfig {
	return &WorkerConfig{
		port:    required(m.Port, path+".port"),
		cluster: nonnil(m.Cluster, path+".cluster").trySeal(path + ".cluster"),
		worker:  nonnil(m.Worker, path+".worker").trySeal(path + ".worker"),
		scopes:  nonnil(m.Scopes, path+".scopes").trySeal(path + ".scopes"),
		events:  nonnil(m.Events, path+".events").trySeal(path + ".events"),
	}
}

// Configuration of the cluster this worker serves.
//
// This type is marshalling value and mutable.
// Consider to use immutable version, `ClusterConfig`.
// You can get `ClusterConfig` instance with `TrySeal()` .
type ClusterConfigMarshall struct {
	Domain   string               `yaml:"domain,omitempty"`
	Database string               `yaml:"database"`
	Quota    *QuotaConfigMarshall `yaml:"quota"`
}

func (m *ClusterConfigMarshall) trySeal(path string) *ClusterConfig {
	domain := m.Domain
	if domain == "" {
		domain = "cluster.local"
	}
	return &ClusterConfig{
		domain:   domain,
		database: required(m.Database, path+".database"),
		quota:    nonnil(m.Quota, path+".quota").trySeal(path + ".quota"),
	}
}

type QuotaConfigMarshall struct {
	CPU         string `yaml:"cpu"`
	Memory      string `yaml:"memory"`
	ObjectCount int64  `yaml:"objectCount"`
}

func (m *QuotaConfigMarshall) trySeal(path string) domain.ScopeQuota {
	cpu, err := resource.ParseQuantity(required(m.CPU, path+".cpu"))
	if err != nil {
		panic(fmt.Errorf("%s.cpu can not be parsed: %w", path, err))
	}
	memory, err := resource.ParseQuantity(required(m.Memory, path+".memory"))
	if err != nil {
		panic(fmt.Errorf("%s.memory can not be parsed: %w", path, err))
	}
	return domain.ScopeQuota{
		CPU:         cpu,
		Memory:      memory,
		ObjectCount: required(m.ObjectCount, path+".objectCount"),
	}
}

type EngineConfigMarshall struct {
	Concurrency   int    `yaml:"concurrency"`
	StepTimeout   string `yaml:"stepTimeout"`
	Lease         string `yaml:"lease"`
	MaxLiveScopes int    `yaml:"maxLiveScopes"`
}

func (m *EngineConfigMarshall) trySeal(path string) *EngineConfig {
	return &EngineConfig{
		concurrency:   required(m.Concurrency, path+".concurrency"),
		stepTimeout:   duration(m.StepTimeout, path+".stepTimeout"),
		lease:         duration(m.Lease, path+".lease"),
		maxLiveScopes: required(m.MaxLiveScopes, path+".maxLiveScopes"),
	}
}

type ScopeConfigMarshall struct {
	IdleThreshold string `yaml:"idleThreshold"`
	ReapInterval  string `yaml:"reapInterval"`
}

func (m *ScopeConfigMarshall) trySeal(path string) *ScopeConfig {
	return &ScopeConfig{
		idleThreshold: duration(m.IdleThreshold, path+".idleThreshold"),
		reapInterval:  duration(m.ReapInterval, path+".reapInterval"),
	}
}

type EventConfigMarshall struct {
	Retention string `yaml:"retention"`
}

func (m *EventConfigMarshall) trySeal(path string) *EventConfig {
	return &EventConfig{
		retention: duration(m.Retention, path+".retention"),
	}
}

func duration(v string, path string) time.Duration {
	d, err := time.ParseDuration(required(v, path))
	if err != nil {
		panic(fmt.Errorf("%s can not be parsed: %w", path, err))
	}
	return d
}

func nonnil[T any](v *T, path string) *T {
	if v == nil {
		panic(path + " is required")
	}
	return v
}

func required[T comparable](v T, path string) T {
	if v == *new(T) {
		panic(path + " is required")
	}
	return v
}
