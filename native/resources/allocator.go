package resources

import (
	"fmt"
	"sync"
	"time"

	"subnetgov/core/events"
	"subnetgov/native/common"
	"subnetgov/observability"
)

// Limits are the per-subnet resource ceilings. Per-execution limits scale by
// the concurrency cap to bound total outstanding usage.
type Limits struct {
	MaxConcurrentExecutions int           `json:"maxConcurrentExecutions"`
	MaxExecutionTime        time.Duration `json:"maxExecutionTime"`
	MaxCPUMillis            uint64        `json:"maxCpuMillis"`
	MaxMemoryMB             uint64        `json:"maxMemoryMb"`
	MaxStorageMB            uint64        `json:"maxStorageMb"`
	MaxBandwidthMbps        uint64        `json:"maxBandwidthMbps"`
	DailyExecutionLimit     uint64        `json:"dailyExecutionLimit"`
	MonthlyBudget           uint64        `json:"monthlyBudget"`
}

// Request is the resource footprint of one execution.
type Request struct {
	CPUMillis     uint64 `json:"cpuMillis"`
	MemoryMB      uint64 `json:"memoryMb"`
	StorageMB     uint64 `json:"storageMb"`
	BandwidthMbps uint64 `json:"bandwidthMbps"`
}

// Usage is the live per-subnet consumption counter. Values never go
// negative: release clamps at zero.
type Usage struct {
	CPUMillis        uint64 `json:"cpuMillis"`
	MemoryMB         uint64 `json:"memoryMb"`
	StorageMB        uint64 `json:"storageMb"`
	BandwidthMbps    uint64 `json:"bandwidthMbps"`
	ActiveExecutions int    `json:"activeExecutions"`
	DailyExecutions  uint64 `json:"dailyExecutions"`
}

// Allocator tracks bounded per-subnet consumption and grants allocations
// all-or-nothing across every limited dimension. Callers must pair every
// successful Allocate with a Release on all exit paths.
type Allocator struct {
	locks   *common.SubnetLocks
	emitter events.Emitter

	// mu guards the map headers; counter mutation additionally holds the
	// subnet lock.
	mu     sync.RWMutex
	limits map[string]Limits
	usage  map[string]*Usage
}

func (a *Allocator) lookup(subnet string) (Limits, *Usage, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	limits, ok := a.limits[subnet]
	if !ok {
		return Limits{}, nil, false
	}
	return limits, a.usage[subnet], true
}

// NewAllocator constructs an allocator sharing the subsystem's per-subnet
// lock table.
func NewAllocator(locks *common.SubnetLocks) *Allocator {
	if locks == nil {
		locks = common.NewSubnetLocks()
	}
	return &Allocator{
		locks:   locks,
		emitter: events.NoopEmitter{},
		limits:  make(map[string]Limits),
		usage:   make(map[string]*Usage),
	}
}

// SetEmitter configures the event emitter. Passing nil resets it to a no-op
// implementation.
func (a *Allocator) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		a.emitter = events.NoopEmitter{}
		return
	}
	a.emitter = emitter
}

// SetLimits installs or replaces a subnet's resource ceilings.
func (a *Allocator) SetLimits(subnet string, limits Limits) error {
	if limits.MaxConcurrentExecutions <= 0 {
		return fmt.Errorf("resources: concurrency limit must be positive: %w", common.ErrValidation)
	}
	unlock := a.locks.Lock(subnet)
	defer unlock()
	a.mu.Lock()
	a.limits[subnet] = limits
	if _, ok := a.usage[subnet]; !ok {
		a.usage[subnet] = &Usage{}
	}
	a.mu.Unlock()
	return nil
}

// Limits returns the subnet's configured ceilings.
func (a *Allocator) Limits(subnet string) (Limits, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	limits, ok := a.limits[subnet]
	return limits, ok
}

// Usage returns a copy of the subnet's live consumption counter.
func (a *Allocator) Usage(subnet string) (Usage, bool) {
	unlock := a.locks.Lock(subnet)
	defer unlock()
	_, usage, ok := a.lookup(subnet)
	if !ok {
		return Usage{}, false
	}
	return *usage, true
}

// Allocate grants the request when every dimension fits, mutating usage
// atomically; on any failing check nothing is mutated and the denial reason
// is returned.
func (a *Allocator) Allocate(subnet string, req Request) (bool, string, error) {
	unlock := a.locks.Lock(subnet)
	defer unlock()
	limits, usage, ok := a.lookup(subnet)
	if !ok {
		return false, "", fmt.Errorf("resources: subnet %s has no limits configured: %w", subnet, common.ErrNotFound)
	}

	if usage.ActiveExecutions+1 > limits.MaxConcurrentExecutions {
		observability.Governance().RecordAllocationDenial("concurrency")
		return false, "concurrent execution limit reached", nil
	}
	if limits.DailyExecutionLimit > 0 && usage.DailyExecutions+1 > limits.DailyExecutionLimit {
		observability.Governance().RecordAllocationDenial("daily")
		return false, "daily execution limit reached", nil
	}
	slots := uint64(limits.MaxConcurrentExecutions)
	checks := []struct {
		name      string
		current   uint64
		requested uint64
		perExec   uint64
	}{
		{"cpu", usage.CPUMillis, req.CPUMillis, limits.MaxCPUMillis},
		{"memory", usage.MemoryMB, req.MemoryMB, limits.MaxMemoryMB},
		{"storage", usage.StorageMB, req.StorageMB, limits.MaxStorageMB},
		{"bandwidth", usage.BandwidthMbps, req.BandwidthMbps, limits.MaxBandwidthMbps},
	}
	for _, check := range checks {
		if check.perExec == 0 {
			continue
		}
		if check.requested > check.perExec {
			observability.Governance().RecordAllocationDenial(check.name)
			return false, fmt.Sprintf("%s request exceeds per-execution limit", check.name), nil
		}
		if check.current+check.requested > check.perExec*slots {
			observability.Governance().RecordAllocationDenial(check.name)
			return false, fmt.Sprintf("%s pool exhausted", check.name), nil
		}
	}

	usage.CPUMillis += req.CPUMillis
	usage.MemoryMB += req.MemoryMB
	usage.StorageMB += req.StorageMB
	usage.BandwidthMbps += req.BandwidthMbps
	usage.ActiveExecutions++
	usage.DailyExecutions++

	a.emitter.Emit(events.ResourcesAllocated{
		Subnet:           subnet,
		CPUMillis:        usage.CPUMillis,
		MemoryMB:         usage.MemoryMB,
		StorageMB:        usage.StorageMB,
		BandwidthMbps:    usage.BandwidthMbps,
		ActiveExecutions: usage.ActiveExecutions,
	})
	return true, "", nil
}

// Release returns the request's amounts to the pool, clamping every
// dimension and the execution counter at zero.
func (a *Allocator) Release(subnet string, req Request) error {
	unlock := a.locks.Lock(subnet)
	defer unlock()
	_, usage, ok := a.lookup(subnet)
	if !ok {
		return fmt.Errorf("resources: subnet %s has no usage tracked: %w", subnet, common.ErrNotFound)
	}
	usage.CPUMillis = clampSub(usage.CPUMillis, req.CPUMillis)
	usage.MemoryMB = clampSub(usage.MemoryMB, req.MemoryMB)
	usage.StorageMB = clampSub(usage.StorageMB, req.StorageMB)
	usage.BandwidthMbps = clampSub(usage.BandwidthMbps, req.BandwidthMbps)
	if usage.ActiveExecutions > 0 {
		usage.ActiveExecutions--
	}

	a.emitter.Emit(events.ResourcesReleased{
		Subnet:           subnet,
		CPUMillis:        usage.CPUMillis,
		MemoryMB:         usage.MemoryMB,
		StorageMB:        usage.StorageMB,
		BandwidthMbps:    usage.BandwidthMbps,
		ActiveExecutions: usage.ActiveExecutions,
	})
	return nil
}

// ResetDailyCounters zeroes every subnet's daily execution count. Intended
// for the daily maintenance job.
func (a *Allocator) ResetDailyCounters() {
	a.mu.RLock()
	subnets := make([]string, 0, len(a.usage))
	for subnet := range a.usage {
		subnets = append(subnets, subnet)
	}
	a.mu.RUnlock()
	for _, subnet := range subnets {
		unlock := a.locks.Lock(subnet)
		if _, usage, ok := a.lookup(subnet); ok {
			usage.DailyExecutions = 0
		}
		unlock()
	}
}

func clampSub(current, amount uint64) uint64 {
	if amount >= current {
		return 0
	}
	return current - amount
}
