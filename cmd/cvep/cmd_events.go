package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/nvandessel/cvep/internal/store"
)

func newEventsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "events",
		Short: "List recorded sessions and stimulation events",
		Long: `Inspect the recording database.

Without --session, lists the most recent sessions. With --session, lists the
events of that session ("latest" selects the most recent one). --export writes
the selected events as JSONL to a file, or to stdout with "-".

Examples:
  cvep events
  cvep events --session latest --name focus_begins
  cvep events --session latest --export session.jsonl`,
		RunE: func(cmd *cobra.Command, args []string) error {
			root, _ := cmd.Flags().GetString("root")
			jsonOut, _ := cmd.Flags().GetBool("json")
			sessionID, _ := cmd.Flags().GetString("session")
			name, _ := cmd.Flags().GetString("name")
			after, _ := cmd.Flags().GetInt64("after")
			limit, _ := cmd.Flags().GetInt("limit")
			export, _ := cmd.Flags().GetString("export")

			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			st, err := openStore(cfg, root)
			if err != nil {
				return err
			}
			if st == nil {
				return errors.New("event recording is disabled (store.disabled)")
			}
			defer st.Close()

			ctx := cmd.Context()
			out := cmd.OutOrStdout()

			if sessionID == "" && export == "" {
				sessions, err := st.ListSessions(ctx, limit)
				if err != nil {
					return err
				}
				return printSessions(out, sessions, jsonOut)
			}

			if sessionID == "latest" {
				sessions, err := st.ListSessions(ctx, 1)
				if err != nil {
					return err
				}
				if len(sessions) == 0 {
					return errors.New("no recorded sessions")
				}
				sessionID = sessions[0].ID
			}
			filter := store.EventFilter{SessionID: sessionID, Name: name, AfterSeq: after}

			if export != "" {
				w := out
				if export != "-" {
					f, err := os.Create(export)
					if err != nil {
						return fmt.Errorf("failed to create export file: %w", err)
					}
					defer f.Close()
					w = f
				}
				n, err := store.ExportJSONL(ctx, st, w, filter)
				if err != nil {
					return err
				}
				if export != "-" {
					fmt.Fprintf(cmd.ErrOrStderr(), "Exported %d events to %s\n", n, export)
				}
				return nil
			}

			filter.Limit = limit
			evs, err := st.ListEvents(ctx, filter)
			if err != nil {
				return err
			}
			return printEvents(out, sessionID, evs, jsonOut)
		},
	}

	cmd.Flags().String("session", "", "Session ID, or \"latest\"")
	cmd.Flags().String("name", "", "Only events with this name")
	cmd.Flags().Int64("after", 0, "Only events after this sequence number")
	cmd.Flags().Int("limit", 50, "Maximum number of rows (0 for all)")
	cmd.Flags().String("export", "", "Write events as JSONL to this file (\"-\" for stdout)")

	return cmd
}

func printSessions(out io.Writer, sessions []store.Session, jsonOut bool) error {
	if jsonOut {
		if sessions == nil {
			sessions = []store.Session{}
		}
		return json.NewEncoder(out).Encode(map[string]interface{}{
			"sessions": sessions,
			"count":    len(sessions),
		})
	}

	if len(sessions) == 0 {
		fmt.Fprintln(out, "No recorded sessions.")
		return nil
	}
	fmt.Fprintf(out, "%-36s  %-20s  %-10s  %s\n", "SESSION", "STARTED", "DURATION", "EVENTS")
	for _, s := range sessions {
		duration := "running"
		if s.EndedAt != nil {
			duration = s.EndedAt.Sub(s.StartedAt).Round(time.Millisecond).String()
		}
		fmt.Fprintf(out, "%-36s  %-20s  %-10s  %d\n",
			s.ID, s.StartedAt.Local().Format("2006-01-02 15:04:05"), duration, s.Events)
	}
	return nil
}

func printEvents(out io.Writer, sessionID string, evs []store.StoredEvent, jsonOut bool) error {
	if jsonOut {
		if evs == nil {
			evs = []store.StoredEvent{}
		}
		return json.NewEncoder(out).Encode(map[string]interface{}{
			"session": sessionID,
			"events":  evs,
			"count":   len(evs),
		})
	}

	if len(evs) == 0 {
		fmt.Fprintf(out, "No events for session %s.\n", sessionID)
		return nil
	}
	for _, e := range evs {
		line := fmt.Sprintf("%6d  %s  %-15s", e.Seq, e.Time.Local().Format("15:04:05.000"), e.Name)
		if len(e.Payload) > 0 {
			payload, err := json.Marshal(e.Payload)
			if err == nil {
				line += "  " + string(payload)
			}
		}
		fmt.Fprintln(out, line)
	}
	return nil
}
