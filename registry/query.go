package registry

import "database/sql"

// LatestMetric returns the value of the named metric for the most recently
// started run of the given kind. The second return is false when no qualifying
// row exists or the stored value is NULL. Runs with an empty started_utc sort
// last, so a run that never started cannot shadow a finished one.
func (r *Registry) LatestMetric(kind, key string) (float64, bool, error) {
	row := r.db.QueryRow(`
		SELECT m.value
		FROM metrics m
		JOIN runs r ON r.id = m.run_id
		WHERE r.kind = ? AND m.key = ?
		ORDER BY COALESCE(r.started_utc, '') DESC
		LIMIT 1`, kind, key)

	var val sql.NullFloat64
	if err := row.Scan(&val); err != nil {
		if err == sql.ErrNoRows {
			return 0, false, nil
		}
		return 0, false, err
	}
	if !val.Valid {
		return 0, false, nil
	}
	return val.Float64, true, nil
}

// ListIncidents returns incidents newest-first, capped at limit (<=0 means no
// cap). Used by the CLI for operator inspection.
func (r *Registry) ListIncidents(limit int) ([]Incident, error) {
	q := `
		SELECT id, run_id, severity, description, log_excerpt_path, created_utc
		FROM incidents
		ORDER BY created_utc DESC`
	var rows *sql.Rows
	var err error
	if limit > 0 {
		rows, err = r.db.Query(q+` LIMIT ?`, limit)
	} else {
		rows, err = r.db.Query(q)
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Incident
	for rows.Next() {
		var inc Incident
		var runID, excerpt sql.NullString
		if err := rows.Scan(&inc.ID, &runID, &inc.Severity, &inc.Description, &excerpt, &inc.CreatedUTC); err != nil {
			return nil, err
		}
		inc.RunID = runID.String
		inc.LogExcerptPath = excerpt.String
		out = append(out, inc)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
