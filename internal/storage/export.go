package storage

import (
	"encoding/json"
	"io"

	"github.com/san-kum/simstate/internal/sim"
)

type ExportData struct {
	Meta   RunMetadata `json:"meta"`
	Frames []sim.Frame `json:"frames"`
	Events []sim.Event `json:"events"`
}

// Export writes one stored run as indented JSON, e.g. for piping into
// external analysis tools.
func (s *Store) Export(runID string, w io.Writer) error {
	meta, err := s.Load(runID)
	if err != nil {
		return err
	}
	frames, err := s.LoadFrames(runID)
	if err != nil {
		return err
	}
	events, err := s.LoadEvents(runID)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(ExportData{Meta: *meta, Frames: frames, Events: events})
}
