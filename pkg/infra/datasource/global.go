package datasource

import (
	"fmt"
	"sync"
)

var (
	globalManager    *Manager
	globalManagerMu  sync.RWMutex
	globalManagerSet bool
)

// GetGlobal returns the process-wide manager, creating a default one on first use.
func GetGlobal() *Manager {
	globalManagerMu.RLock()
	if globalManager != nil {
		defer globalManagerMu.RUnlock()
		return globalManager
	}
	globalManagerMu.RUnlock()

	globalManagerMu.Lock()
	defer globalManagerMu.Unlock()

	if globalManager == nil {
		globalManager = NewManager()
		globalManagerSet = true
	}
	return globalManager
}

// SetGlobal sets the process-wide manager. It fails once a manager has been
// set or created by GetGlobal.
func SetGlobal(mgr *Manager) error {
	if mgr == nil {
		return fmt.Errorf("cannot set nil manager as global instance")
	}

	globalManagerMu.Lock()
	defer globalManagerMu.Unlock()

	if globalManagerSet {
		return fmt.Errorf("global manager already set, cannot override existing instance")
	}

	globalManager = mgr
	globalManagerSet = true
	return nil
}

// ResetGlobal clears the process-wide manager and returns the previous one.
// Intended for tests.
func ResetGlobal() *Manager {
	globalManagerMu.Lock()
	defer globalManagerMu.Unlock()

	prev := globalManager
	globalManager = nil
	globalManagerSet = false
	return prev
}
