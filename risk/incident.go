package risk

import (
	"fmt"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/rustyeddy/riskgate/pkg/logger"
	"github.com/rustyeddy/riskgate/registry"
)

// Normalized incident severities.
const (
	SeverityInfo     = "info"
	SeverityWarning  = "warning"
	SeverityError    = "error"
	SeverityCritical = "critical"
)

// NormalizeSeverity trims and lowercases a caller-supplied severity. Anything
// outside the known set, including empty input, becomes "warning".
func NormalizeSeverity(s string) string {
	switch sev := strings.ToLower(strings.TrimSpace(s)); sev {
	case SeverityInfo, SeverityWarning, SeverityError, SeverityCritical:
		return sev
	}
	return SeverityWarning
}

// LogIncident records a risk-relevant event. The structured log entry is
// always emitted; persistence to the registry happens only when a database is
// configured and its failure is swallowed. Incident logging must never be the
// reason a caller fails.
func (m *Manager) LogIncident(runID, severity, description, logExcerptPath, correlationID string) {
	log := logger.WithCorrelation(m.log, correlationID)

	sev := NormalizeSeverity(severity)
	incidentID := fmt.Sprintf("incident_%d_%d", time.Now().Unix(), os.Getpid())
	if correlationID != "" {
		incidentID += "_" + prefix12(correlationID)
	}

	fields := []zap.Field{
		zap.String("incident_id", incidentID),
		zap.String("run_id", runID),
		zap.String("severity", sev),
		zap.String("description", description),
		zap.String("log_excerpt_path", logExcerptPath),
	}
	switch sev {
	case SeverityInfo:
		log.Info("incident_logged", fields...)
	case SeverityWarning:
		log.Warn("incident_logged", fields...)
	default:
		// zap has no critical level; the severity field carries the distinction.
		log.Error("incident_logged", fields...)
	}
	incidentsLogged.WithLabelValues(sev).Inc()

	if m.cfg.DBPath == "" {
		log.Info("incident_db_skipped",
			zap.String("incident_id", incidentID), zap.String("reason", "no_db_configured"))
		return
	}

	bestEffort(log.With(zap.String("incident_id", incidentID)), zapcore.ErrorLevel,
		"incident_store_error", func() error {
			reg, err := registry.Open(m.cfg.DBPath)
			if err != nil {
				return err
			}
			defer reg.Close()
			if err := reg.InsertIncident(registry.Incident{
				ID:             incidentID,
				RunID:          runID,
				Severity:       sev,
				Description:    description,
				LogExcerptPath: logExcerptPath,
				CreatedUTC:     time.Now().UTC().Format(time.RFC3339),
			}); err != nil {
				return err
			}
			log.Info("incident_stored", zap.String("incident_id", incidentID))
			return nil
		})
}
