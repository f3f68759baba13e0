package store

import (
	"fmt"

	"github.com/joedanields/Automated-CO-PO/internal/model"
)

// HistoryExport is the JSON document produced by the history subcommand.
type HistoryExport struct {
	Generated   int                      `json:"generated"`
	Failed      int                      `json:"failed"`
	Generations []model.GenerationRecord `json:"generations"`
}

// ExportHistory builds the full export of the generation log with summary
// counts.
func (s *Store) ExportHistory() (HistoryExport, error) {
	records, err := s.ListGenerations()
	if err != nil {
		return HistoryExport{}, fmt.Errorf("list generations: %w", err)
	}

	export := HistoryExport{Generations: records}
	for _, g := range records {
		if g.Status == model.GenerationOK {
			export.Generated++
		} else {
			export.Failed++
		}
	}
	return export, nil
}
