package risk

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/rustyeddy/riskgate/pkg/logger"
)

// Lease is a handle to one in-flight run, backed by a lock file under
// <state_dir>/running/. The file's existence and mtime are the lease; the
// JSON payload is best-effort metadata for humans.
type Lease struct {
	Kind string
	Path string
}

type leasePayload struct {
	Kind string `json:"kind"`
	PID  int    `json:"pid"`
	TS   string `json:"ts"`
	CID  string `json:"cid"`
}

// AcquireRunSlot admits a run into the shared concurrency budget. Only
// "backtest" runs are capped; every other kind gets a lease unconditionally
// so it still shows up in lease counts. The cap is best-effort: a race window
// remains between counting and creating (see CountActiveLeases).
func (m *Manager) AcquireRunSlot(kind, correlationID string) (bool, string, *Lease) {
	log := logger.WithCorrelation(m.log, correlationID)

	maxSlots := 0
	if kind == KindBacktest {
		maxSlots = m.cfg.MaxConcurrentBacktests
	}
	if maxSlots <= 0 {
		lease := m.createLease(kind, correlationID)
		log.Info("slot_acquired",
			zap.String("kind", kind), zap.Bool("unbounded", true), zap.String("lock", lease.Path))
		return true, "", lease
	}

	count := m.CountActiveLeases(kind)
	if count >= maxSlots {
		log.Warn("slot_denied",
			zap.String("kind", kind), zap.Int("active", count), zap.Int("max", maxSlots))
		gateBlocks.WithLabelValues("concurrency").Inc()
		return false, fmt.Sprintf("too_many_active_%ss: %d/%d", kind, count, maxSlots), nil
	}

	lease := m.createLease(kind, correlationID)
	log.Info("slot_acquired",
		zap.String("kind", kind), zap.Int("active_before", count), zap.String("lock", lease.Path))
	return true, "", lease
}

// ReleaseRunSlot deletes the lease file. Safe to call with a nil lease and
// safe to call twice; an already-removed file is silent success. Callers must
// release from a defer so a panic in the guarded work still frees the slot.
func (m *Manager) ReleaseRunSlot(lease *Lease, correlationID string) {
	if lease == nil {
		return
	}
	log := logger.WithCorrelation(m.log, correlationID)
	if err := os.Remove(lease.Path); err != nil && !os.IsNotExist(err) {
		log.Warn("slot_release_error", zap.String("lock", lease.Path), zap.Error(err))
		return
	}
	log.Info("slot_released", zap.String("lock", lease.Path))
}

// CountActiveLeases returns the number of non-stale leases of the given kind,
// reclaiming stale ones as a side effect. It never fails: unreadable entries
// are skipped and a vanished file (released by another process between glob
// and stat) is not an error.
func (m *Manager) CountActiveLeases(kind string) int {
	log := m.log.With(zap.String("op", "count_active_leases"))

	dir, err := m.runningDir()
	if err != nil {
		log.Warn("running_dir_error", zap.Error(err))
		return 0
	}

	ttl := time.Duration(max(1, m.cfg.ConcurrencyTTLSec)) * time.Second
	now := time.Now()
	matches, err := filepath.Glob(filepath.Join(dir, kind+"_*.lock"))
	if err != nil {
		log.Warn("lease_glob_error", zap.Error(err))
		return 0
	}

	active := 0
	for _, p := range matches {
		info, err := os.Stat(p)
		if err != nil {
			if !os.IsNotExist(err) {
				log.Warn("lease_stat_error", zap.String("lock", p), zap.Error(err))
			}
			continue
		}

		if age := now.Sub(info.ModTime()); age > ttl {
			log.Debug("stale_lease_cleanup",
				zap.String("lock", p),
				zap.Duration("age", age),
				zap.Duration("ttl", ttl))
			bestEffort(log.With(zap.String("lock", p)), zapcore.ErrorLevel,
				"stale_lease_remove_error", func() error {
					err := os.Remove(p)
					if os.IsNotExist(err) {
						return nil
					}
					return err
				})
			continue
		}
		active++
	}

	activeLeases.WithLabelValues(kind).Set(float64(active))
	return active
}

func (m *Manager) runningDir() (string, error) {
	stateDir := m.cfg.StateDir
	if stateDir == "" {
		stateDir = filepath.Join("user_data", "state")
	}
	dir := filepath.Join(stateDir, "running")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	return dir, nil
}

// createLease writes a new lock file. Creation uses O_EXCL with a bounded
// timestamp bump so two acquisitions in the same second from the same process
// cannot share a file; everything past picking the name is best-effort, and
// the caller always gets a handle to clean up.
func (m *Manager) createLease(kind, correlationID string) *Lease {
	log := logger.WithCorrelation(m.log, correlationID)

	dir, err := m.runningDir()
	if err != nil {
		log.Warn("running_dir_error", zap.Error(err))
		dir = filepath.Join(m.cfg.StateDir, "running")
	}

	suffix := ""
	if correlationID != "" {
		suffix = "_" + prefix12(correlationID)
	}
	ts := time.Now().Unix()
	pid := os.Getpid()

	var path string
	var f *os.File
	for i := int64(0); i < 5; i++ {
		path = filepath.Join(dir, fmt.Sprintf("%s_%d_%d%s.lock", kind, ts+i, pid, suffix))
		f, err = os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if err == nil || !os.IsExist(err) {
			break
		}
	}
	lease := &Lease{Kind: kind, Path: path}
	if f == nil {
		log.Warn("lease_create_error", zap.String("lock", path), zap.Error(err))
		return lease
	}

	bestEffort(log.With(zap.String("lock", path)), zapcore.WarnLevel,
		"lease_payload_write_error", func() error {
			payload := leasePayload{
				Kind: kind,
				PID:  pid,
				TS:   time.Now().UTC().Format(time.RFC3339),
				CID:  correlationID,
			}
			data, err := json.Marshal(payload)
			if err != nil {
				f.Close()
				return err
			}
			_, werr := f.Write(data)
			if cerr := f.Close(); werr == nil {
				werr = cerr
			}
			return werr
		})
	return lease
}

func prefix12(s string) string {
	if len(s) > 12 {
		return s[:12]
	}
	return s
}
