package main

import (
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/odvcencio/histdb/pkg/config"
	"github.com/odvcencio/histdb/pkg/gitrepo"
	"github.com/odvcencio/histdb/pkg/ingest"
	"github.com/odvcencio/histdb/pkg/logging"
	"github.com/odvcencio/histdb/pkg/store"
)

// commonFlags are the settings every store-touching command accepts.
type commonFlags struct {
	dbPath     string
	configPath string
	logLevel   string
}

func (f *commonFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.dbPath, "db", "", "path to the SQLite store")
	cmd.Flags().StringVar(&f.configPath, "config", "", "path to a TOML config file")
	cmd.Flags().StringVar(&f.logLevel, "log-level", "", "log level (debug, info, warn, error)")
	_ = cmd.MarkFlagRequired("db")
}

// load reads the config file and applies flag overrides.
func (f *commonFlags) load(cmd *cobra.Command) (*config.Config, *zap.Logger, error) {
	cfg, err := config.Load(f.configPath)
	if err != nil {
		return nil, nil, err
	}
	if cmd.Flags().Changed("log-level") {
		cfg.Log.Level = f.logLevel
	}
	log, err := logging.New(cfg.Log)
	if err != nil {
		return nil, nil, err
	}
	return cfg, log, nil
}

func (f *commonFlags) openStore(cfg *config.Config, log *zap.Logger) (*store.Store, error) {
	opts := cfg.StoreOptions()
	opts.Logger = log
	return store.Open(f.dbPath, opts)
}

func newIngestCmd() *cobra.Command {
	var (
		common   commonFlags
		repoID   int64
		repoName string
		repoPath string
		refGlob  string
	)

	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Mirror commits, trees and blobs added since the last run",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := common.load(cmd)
			if err != nil {
				return err
			}
			defer log.Sync()
			if cmd.Flags().Changed("ref-glob") {
				cfg.RefGlob = refGlob
			}
			log = log.With(zap.String("run_id", uuid.NewString()))

			reader, err := gitrepo.Open(repoPath)
			if err != nil {
				return err
			}
			st, err := common.openStore(cfg, log)
			if err != nil {
				return err
			}
			defer st.Close()
			if err := st.Migrate(cmd.Context()); err != nil {
				return err
			}

			opts := cfg.IngestOptions()
			opts.RepoID = repoID
			opts.RepoName = repoName
			opts.Logger = log
			sum, err := ingest.Run(cmd.Context(), st, reader, opts)
			if err != nil {
				return fmt.Errorf("ingest %s: %w", repoPath, err)
			}

			out := cmd.OutOrStdout()
			if sum.ChangedRefs == 0 {
				fmt.Fprintln(out, "up to date")
			} else {
				fmt.Fprintf(
					out,
					"ingested %d commit(s), %d tree entries, %d blob(s) (%s, %s stored) from %d changed ref(s) in %s\n",
					sum.Commits,
					sum.TreeEntries,
					sum.Blobs,
					humanize.Bytes(uint64(sum.RawBytes)),
					humanize.Bytes(uint64(sum.StoredBytes)),
					sum.ChangedRefs,
					sum.Elapsed.Round(time.Millisecond),
				)
			}
			if sum.DeletedRefs > 0 {
				fmt.Fprintf(out, "%d deleted ref(s) left recorded\n", sum.DeletedRefs)
			}
			return nil
		},
	}

	common.register(cmd)
	cmd.Flags().Int64Var(&repoID, "repo-id", 0, "numeric repository identifier")
	cmd.Flags().StringVar(&repoName, "repo-name", "", "repository display name")
	cmd.Flags().StringVar(&repoPath, "repo-path", "", "path to the git repository")
	cmd.Flags().StringVar(&refGlob, "ref-glob", ingest.DefaultRefGlob, "references to mirror ('*' matches across '/')")
	_ = cmd.MarkFlagRequired("repo-id")
	_ = cmd.MarkFlagRequired("repo-name")
	_ = cmd.MarkFlagRequired("repo-path")
	return cmd
}
