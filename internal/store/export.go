package store

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
)

// ExportJSONL writes the events matching filter to w, one JSON object per
// line, and returns how many were written.
func ExportJSONL(ctx context.Context, s EventStore, w io.Writer, filter EventFilter) (int, error) {
	evs, err := s.ListEvents(ctx, filter)
	if err != nil {
		return 0, err
	}

	bw := bufio.NewWriter(w)
	enc := json.NewEncoder(bw)
	for i, e := range evs {
		if err := enc.Encode(e); err != nil {
			return i, fmt.Errorf("failed to encode event %d: %w", e.Seq, err)
		}
	}
	if err := bw.Flush(); err != nil {
		return len(evs), fmt.Errorf("failed to flush export: %w", err)
	}
	return len(evs), nil
}
