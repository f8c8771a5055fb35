package store

import (
	"context"
	"os"
)

// Stats holds database statistics.
type Stats struct {
	DBPath        string          `json:"db_path"`
	DBSizeBytes   int64           `json:"db_size_bytes"`
	Materials     int             `json:"materials"`
	TotalItems    int             `json:"total_items"`
	Feedback      int             `json:"feedback"`
	ChangeEntries int             `json:"change_entries"`
	ByState       map[string]int  `json:"by_state"`
	ByMaterial    []MaterialStats `json:"by_material"`
}

// MaterialStats holds per-material counts.
type MaterialStats struct {
	MaterialID string `json:"material_id"`
	Items      int    `json:"items"`
	Active     int    `json:"active"`
}

// Stats returns database statistics.
func (s *SQLiteStore) Stats(ctx context.Context, dbPath string) (*Stats, error) {
	st := &Stats{DBPath: dbPath, ByState: map[string]int{}}

	// DB file size
	if info, err := os.Stat(dbPath); err == nil {
		st.DBSizeBytes = info.Size()
	}

	s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM materials`).Scan(&st.Materials)
	s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM items`).Scan(&st.TotalItems)
	s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM feedback`).Scan(&st.Feedback)
	s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM changelog`).Scan(&st.ChangeEntries)

	rows, err := s.db.QueryContext(ctx, `SELECT state, COUNT(*) FROM items GROUP BY state`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var state string
		var count int
		if err := rows.Scan(&state, &count); err != nil {
			return nil, err
		}
		st.ByState[state] = count
	}

	mrows, err := s.db.QueryContext(ctx, `
		SELECT material_id, COUNT(*) as cnt,
		       SUM(CASE WHEN state = 'active' THEN 1 ELSE 0 END) as active
		FROM items GROUP BY material_id ORDER BY cnt DESC`)
	if err != nil {
		return nil, err
	}
	defer mrows.Close()
	for mrows.Next() {
		var ms MaterialStats
		if err := mrows.Scan(&ms.MaterialID, &ms.Items, &ms.Active); err != nil {
			return nil, err
		}
		st.ByMaterial = append(st.ByMaterial, ms)
	}

	return st, nil
}
