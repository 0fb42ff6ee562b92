package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	hackpados "github.com/hack-pad/hackpadfs/os"
	"github.com/spf13/cobra"

	"github.com/kittclouds/labelgraph/internal/config"
	"github.com/kittclouds/labelgraph/internal/host"
	"github.com/kittclouds/labelgraph/internal/journal"
	"github.com/kittclouds/labelgraph/internal/store"
)

// app is the state shared by every subcommand.
type app struct {
	configPath string
	group      string

	cfg    config.Config
	logger *slog.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{}

	rootCmd := &cobra.Command{
		Use:          "labelhost",
		Short:        "Run label widget requests against a stored group",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(a.configPath)
			if err != nil {
				return err
			}
			if a.group != "" {
				cfg.Group = a.group
			}
			a.cfg = cfg
			a.logger = cfg.Log.NewLogger(cmd.ErrOrStderr())
			return nil
		},
	}
	rootCmd.PersistentFlags().StringVar(&a.configPath, "config", "", "config file (default ./labelgraph.{toml,yaml,json})")
	rootCmd.PersistentFlags().StringVar(&a.group, "group", "", "label group (overrides config)")

	rootCmd.AddCommand(
		a.runCmd(),
		a.labelsCmd(),
		a.historyCmd(),
	)
	return rootCmd
}

// --- run ---

func (a *app) runCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run [request.json|-]",
		Short: "Execute a JSON action request and print the response",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			reqJSON, err := readInput(cmd.InOrStdin(), args[0])
			if err != nil {
				return err
			}

			s, err := a.openStore()
			if err != nil {
				return err
			}
			defer s.Close()

			j, err := a.openJournal()
			if err != nil {
				return err
			}

			sess, err := host.NewSession(host.SessionConfig{
				Group:    a.cfg.Group,
				Registry: a.cfg.Registry(),
				Store:    s,
				Journal:  j,
				Logger:   a.logger,
			})
			if err != nil {
				return err
			}
			defer sess.Close()

			if err := sess.Open(); err != nil {
				return err
			}
			respJSON, err := sess.Execute(reqJSON)
			if err != nil {
				return err
			}
			return writeIndented(cmd.OutOrStdout(), respJSON)
		},
	}
}

// --- labels ---

func (a *app) labelsCmd() *cobra.Command {
	var all bool
	cmd := &cobra.Command{
		Use:   "labels",
		Short: "List the current stored labels of the group",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.openStore()
			if err != nil {
				return err
			}
			defer s.Close()

			group := a.cfg.Group
			if all {
				group = ""
			}
			labels, err := s.ListLabels(group)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), labels)
		},
	}
	cmd.Flags().BoolVar(&all, "all", false, "list every group")
	return cmd
}

// --- history ---

func (a *app) historyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "history <key>",
		Short: "Show every stored version of a label, newest first",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.openStore()
			if err != nil {
				return err
			}
			defer s.Close()

			versions, err := s.ListLabelVersions(args[0])
			if err != nil {
				return err
			}
			if len(versions) == 0 {
				return fmt.Errorf("no label with key %q", args[0])
			}
			return writeJSON(cmd.OutOrStdout(), versions)
		},
	}
}

// =============================================================================
// Helpers
// =============================================================================

func (a *app) openStore() (*store.SQLiteStore, error) {
	s, err := store.NewSQLiteStoreWithDSN(a.cfg.Store.DSN)
	if err != nil {
		return nil, fmt.Errorf("open store %q: %w", a.cfg.Store.DSN, err)
	}
	a.logger.Debug("store opened", "dsn", a.cfg.Store.DSN)
	return s, nil
}

// openJournal returns nil when no journal dir is configured.
func (a *app) openJournal() (*journal.Journal, error) {
	if a.cfg.Journal.Dir == "" {
		return nil, nil
	}
	abs, err := filepath.Abs(a.cfg.Journal.Dir)
	if err != nil {
		return nil, err
	}
	// hackpadfs paths are slash-separated and relative to the OS root.
	rel := strings.TrimPrefix(filepath.ToSlash(abs), filepath.ToSlash(filepath.VolumeName(abs)))
	return journal.New(hackpados.NewFS(), rel), nil
}

func readInput(stdin io.Reader, name string) ([]byte, error) {
	if name == "-" {
		return io.ReadAll(stdin)
	}
	data, err := os.ReadFile(name)
	if err != nil {
		return nil, fmt.Errorf("read request: %w", err)
	}
	return data, nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func writeIndented(w io.Writer, raw []byte) error {
	var buf bytes.Buffer
	if err := json.Indent(&buf, raw, "", "  "); err != nil {
		return err
	}
	buf.WriteByte('\n')
	_, err := buf.WriteTo(w)
	return err
}
