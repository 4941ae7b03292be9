package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nvandessel/cvep/internal/mcp"
	"github.com/nvandessel/cvep/internal/pathutil"
)

func newMCPServerCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "mcp-server",
		Short: "Serve a stimulation session over MCP (stdio)",
		Long: `Start a stimulation session and expose it as an MCP server on stdio.

Tools: cvep_status, cvep_train, cvep_test, cvep_stop, cvep_predict,
cvep_events and cvep_snapshot. Logs go to stderr; tool calls are audited to
<root>/.cvep/audit.jsonl. Snapshots are written under <root>/.cvep/snapshots
or ~/.cvep/snapshots.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			root, _ := cmd.Flags().GetString("root")

			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}

			snapshotDirs, err := pathutil.SnapshotDirs(root)
			if err != nil {
				return err
			}

			sess, err := openSession(cmd.Context(), cfg, root, cmd.ErrOrStderr())
			if err != nil {
				return err
			}

			server, err := mcp.NewServer(&mcp.Config{
				Name:           "cvep",
				Version:        version,
				Engine:         sess.engine,
				Store:          sess.store,
				Grid:           sess.grid,
				SnapshotDirs:   snapshotDirs,
				SessionID:      sess.sessionID(),
				DefaultTargets: cfg.Training.Targets,
				Seed:           cfg.Seed,
				AuditDir:       root,
				Logger:         sess.logger,
			})
			if err != nil {
				sess.Close()
				return fmt.Errorf("failed to create MCP server: %w", err)
			}

			runErr := server.Run(cmd.Context())
			return errors.Join(runErr, sess.Close())
		},
	}
}
