package store

import (
	"fmt"
	"time"

	"github.com/pavelanni/fuerzas/internal/model"
)

// ExportResults builds the export document of every issued result. Payloads
// are left out unless withPayload is set.
func (s *Store) ExportResults(withPayload bool) (model.ResultsExport, error) {
	course, err := s.GetMetadata(MetaCourse)
	if err != nil {
		return model.ResultsExport{}, fmt.Errorf("get course: %w", err)
	}

	results, err := s.ListResults()
	if err != nil {
		return model.ResultsExport{}, fmt.Errorf("list results: %w", err)
	}
	if !withPayload {
		for i := range results {
			results[i].Payload = ""
		}
	}
	if results == nil {
		results = []model.IssuedResult{}
	}

	return model.ResultsExport{
		Course:     course,
		Date:       time.Now().Format("2006-01-02"),
		NumResults: len(results),
		Results:    results,
	}, nil
}
