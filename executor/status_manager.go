package executor

import (
	"sync"
	"time"
)

const (
	StatusQueued    = "Queued"
	StatusRunning   = "Running"
	StatusCompleted = "Completed"
	StatusUpToDate  = "UpToDate"
	StatusFailed    = "Failed"
)

type ExecutionStatus struct {
	Status    string
	StartTime time.Time
	EndTime   time.Time
}

type TargetStatus struct {
	ExecutionStatus
	LogLines []string
}

// StatusManager tracks per-target execution state. Execution itself is
// sequential; the mutex exists because the live UI reads snapshots from
// another goroutine.
type StatusManager interface {
	SetStatus(name, status string)
	UpdateStatus(name, status string, startTime, endTime time.Time)
	AppendLog(name, line string)
	Snapshot() map[string]TargetStatus
}

type statusManager struct {
	statusMap map[string]*TargetStatus
	mu        sync.Mutex
}

func NewStatusManager() StatusManager {
	return &statusManager{
		statusMap: make(map[string]*TargetStatus),
	}
}

func (sm *statusManager) SetStatus(name, status string) {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	sm.ensure(name).Status = status
}

func (sm *statusManager) UpdateStatus(name, status string, startTime, endTime time.Time) {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	st := sm.ensure(name)
	st.Status = status
	if !startTime.IsZero() {
		st.StartTime = startTime
	}
	if !endTime.IsZero() {
		st.EndTime = endTime
	}
}

func (sm *statusManager) AppendLog(name, line string) {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	st := sm.ensure(name)
	st.LogLines = append(st.LogLines, line)
	if len(st.LogLines) > 100 {
		st.LogLines = st.LogLines[len(st.LogLines)-100:]
	}
}

func (sm *statusManager) Snapshot() map[string]TargetStatus {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	snap := make(map[string]TargetStatus, len(sm.statusMap))
	for name, st := range sm.statusMap {
		lines := make([]string, len(st.LogLines))
		copy(lines, st.LogLines)
		snap[name] = TargetStatus{ExecutionStatus: st.ExecutionStatus, LogLines: lines}
	}
	return snap
}

func (sm *statusManager) ensure(name string) *TargetStatus {
	st, ok := sm.statusMap[name]
	if !ok {
		st = &TargetStatus{ExecutionStatus: ExecutionStatus{Status: StatusQueued}}
		sm.statusMap[name] = st
	}
	return st
}
