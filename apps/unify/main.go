// Copyright 2022 Stock Parfait

// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at

//     http://www.apache.org/licenses/LICENSE-2.0

// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"context"
	"encoding/json"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"github.com/stockparfait/errors"
	"github.com/stockparfait/fetch"
	"github.com/stockparfait/logging"
	"github.com/unifyclient/unify/backup"
	"github.com/unifyclient/unify/config"
	"github.com/unifyclient/unify/dataset"
	"github.com/unifyclient/unify/records"
	"github.com/unifyclient/unify/session"
	"github.com/unifyclient/unify/table"
)

// app is the state shared by all the commands.
type app struct {
	ctx        context.Context
	configPath string
	logLevel   string
}

// setup loads the config and injects the logger, the HTTP client and the
// session into the context. A client already in the context is kept.
func (a *app) setup(cmd *cobra.Command, args []string) error {
	level := logging.Info
	if err := level.Set(a.logLevel); err != nil {
		return errors.Annotate(err, "invalid --log-level")
	}
	a.ctx = logging.Use(a.ctx, logging.DefaultGoLogger(level))
	c, err := config.Load(a.configPath)
	if err != nil {
		return errors.Annotate(err, "failed to load config")
	}
	if fetch.GetClient(a.ctx) == nil {
		a.ctx = fetch.UseClient(a.ctx, c.Client())
	}
	a.ctx = session.UseSession(a.ctx, c.Session())
	return nil
}

func writeJSON(w io.Writer, v interface{}) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return errors.Annotate(err, "failed to marshal JSON")
	}
	if _, err := w.Write(append(b, '\n')); err != nil {
		return errors.Annotate(err, "failed to write output")
	}
	return nil
}

// openInput opens a file, or stdin for "-".
func openInput(cmd *cobra.Command, path string) (io.ReadCloser, error) {
	if path == "-" {
		return io.NopCloser(cmd.InOrStdin()), nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Annotate(err, "failed to open %s", path)
	}
	return f, nil
}

func readJSONL(ctx context.Context, cmd *cobra.Command, path string) ([]records.Record, error) {
	r, err := openInput(cmd, path)
	if err != nil {
		return nil, err
	}
	it := records.NewReaderIterator(ctx, r)
	defer it.Close()
	var rs []records.Record
	for rec, ok := it.Next(); ok; rec, ok = it.Next() {
		rs = append(rs, rec)
	}
	if err := it.Err(); err != nil {
		return nil, errors.Annotate(err, "failed to read records from %s", path)
	}
	return rs, nil
}

func readCSV(cmd *cobra.Command, path string, stringsOnly bool) (*table.Table, error) {
	r, err := openInput(cmd, path)
	if err != nil {
		return nil, err
	}
	defer r.Close()
	t, err := table.ReadCSV(r, table.ReadParams{StringsOnly: stringsOnly})
	if err != nil {
		return nil, errors.Annotate(err, "failed to read %s", path)
	}
	return t, nil
}

// parseID interprets a command line record id as a number when possible.
func parseID(s string) records.Value {
	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		return records.Int(i)
	}
	return records.String(s)
}

func (a *app) datasetCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "dataset",
		Short: "Inspect datasets",
	}
	var byName bool
	getCmd := &cobra.Command{
		Use:   "get [id-or-name]",
		Short: "Print dataset metadata",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var ds *dataset.Dataset
			var err error
			if byName {
				ds, err = dataset.FromName(a.ctx, args[0])
			} else {
				ds, err = dataset.FromResourceID(a.ctx, args[0])
			}
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), ds)
		},
	}
	getCmd.Flags().BoolVar(&byName, "name", false, "look up the dataset by name")
	cmd.AddCommand(getCmd)
	return cmd
}

func (a *app) recordsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "records",
		Short: "Read and write dataset records",
	}

	var format string
	var rows int
	listCmd := &cobra.Command{
		Use:   "list [dataset-id]",
		Short: "Print all the records of a dataset",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ds, err := dataset.FromResourceID(a.ctx, args[0])
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			if format == "jsonl" {
				it := ds.Records(a.ctx)
				defer it.Close()
				enc := json.NewEncoder(w)
				n := 0
				for r, ok := it.Next(); ok && (rows == 0 || n < rows); r, ok = it.Next() {
					if err := enc.Encode(r); err != nil {
						return errors.Annotate(err, "failed to write record %d", n+1)
					}
					n++
				}
				return it.Err()
			}
			rs, err := ds.AllRecords(a.ctx)
			if err != nil {
				return err
			}
			t := records.ToTable(rs)
			p := table.Params{Rows: rows}
			switch format {
			case "csv":
				return t.WriteCSV(w, p)
			case "text":
				return t.WriteText(w, p)
			}
			return errors.Reason("unknown --format: %s", format)
		},
	}
	listCmd.Flags().StringVar(&format, "format", "jsonl", "output format: jsonl, csv, text")
	listCmd.Flags().IntVar(&rows, "rows", 0, "maximum number of records to print; 0 = all")
	cmd.AddCommand(listCmd)

	var upsertKey, upsertCSV, upsertJSONL string
	var upsertStringsOnly bool
	upsertCmd := &cobra.Command{
		Use:   "upsert [dataset-id]",
		Short: "Create or overwrite records from a CSV or JSON lines file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if (upsertCSV == "") == (upsertJSONL == "") {
				return errors.Reason("exactly one of --csv or --jsonl is required")
			}
			ds, err := dataset.FromResourceID(a.ctx, args[0])
			if err != nil {
				return err
			}
			var res *records.BulkUpdateResult
			if upsertCSV != "" {
				t, err := readCSV(cmd, upsertCSV, upsertStringsOnly)
				if err != nil {
					return err
				}
				res, err = ds.UpsertFromTable(a.ctx, t, upsertKey)
				if err != nil {
					return err
				}
			} else {
				rs, err := readJSONL(a.ctx, cmd, upsertJSONL)
				if err != nil {
					return err
				}
				res, err = ds.Upsert(a.ctx, rs, upsertKey)
				if err != nil {
					return err
				}
			}
			return writeJSON(cmd.OutOrStdout(), res)
		},
	}
	upsertCmd.Flags().StringVar(&upsertKey, "key", "", "key field; default: the dataset key attribute")
	upsertCmd.Flags().StringVar(&upsertCSV, "csv", "", "CSV file with a header line, or - for stdin")
	upsertCmd.Flags().BoolVar(&upsertStringsOnly, "strings-only", false,
		"send all non-missing CSV cells as strings")
	upsertCmd.Flags().StringVar(&upsertJSONL, "jsonl", "", "JSON lines file, or - for stdin")
	cmd.AddCommand(upsertCmd)

	var deleteKey, deleteJSONL string
	var deleteIDs []string
	deleteCmd := &cobra.Command{
		Use:   "delete [dataset-id]",
		Short: "Delete records by key or by id",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if (deleteJSONL == "") == (len(deleteIDs) == 0) {
				return errors.Reason("exactly one of --jsonl or --ids is required")
			}
			ds, err := dataset.FromResourceID(a.ctx, args[0])
			if err != nil {
				return err
			}
			var res *records.BulkUpdateResult
			if deleteJSONL != "" {
				rs, err := readJSONL(a.ctx, cmd, deleteJSONL)
				if err != nil {
					return err
				}
				res, err = ds.Delete(a.ctx, rs, deleteKey)
				if err != nil {
					return err
				}
			} else {
				ids := make([]records.Value, len(deleteIDs))
				for i, s := range deleteIDs {
					ids[i] = parseID(strings.TrimSpace(s))
				}
				res, err = ds.DeleteByID(a.ctx, ids)
				if err != nil {
					return err
				}
			}
			return writeJSON(cmd.OutOrStdout(), res)
		},
	}
	deleteCmd.Flags().StringVar(&deleteKey, "key", "", "key field; default: the dataset key attribute")
	deleteCmd.Flags().StringVar(&deleteJSONL, "jsonl", "", "JSON lines file of records to delete, or - for stdin")
	deleteCmd.Flags().StringSliceVar(&deleteIDs, "ids", nil, "comma-separated record ids")
	cmd.AddCommand(deleteCmd)

	deleteAllCmd := &cobra.Command{
		Use:   "delete-all [dataset-id]",
		Short: "Delete every record of a dataset",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ds, err := dataset.FromResourceID(a.ctx, args[0])
			if err != nil {
				return err
			}
			resp, err := ds.DeleteAll(a.ctx)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), map[string]interface{}{
				"status": resp.StatusCode,
			})
		},
	}
	cmd.AddCommand(deleteAllCmd)
	return cmd
}

func backupTable(bs ...*backup.Backup) *table.Table {
	t := table.NewTable("id", "state", "path", "error")
	for _, b := range bs {
		t.AddRow(table.Row{
			table.String(b.ResourceID),
			table.String(b.State),
			table.String(b.Path),
			table.String(b.ErrorMessage),
		})
	}
	return t
}

func (a *app) backupCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "backup",
		Short: "Manage server backups",
	}
	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List all backups",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			bs, err := backup.GetAll(a.ctx)
			if err != nil {
				return err
			}
			return backupTable(bs...).WriteText(cmd.OutOrStdout(), table.Params{})
		},
	}
	getCmd := &cobra.Command{
		Use:   "get [backup-id]",
		Short: "Print a backup",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			b, err := backup.FromResourceID(a.ctx, args[0])
			if err != nil {
				return err
			}
			return backupTable(b).WriteText(cmd.OutOrStdout(), table.Params{})
		},
	}
	initiateCmd := &cobra.Command{
		Use:   "initiate",
		Short: "Start a new backup",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			b, err := backup.Initiate(a.ctx)
			if err != nil {
				return err
			}
			return backupTable(b).WriteText(cmd.OutOrStdout(), table.Params{})
		},
	}
	cancelCmd := &cobra.Command{
		Use:   "cancel [backup-id]",
		Short: "Cancel a running backup",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			b, err := backup.Cancel(a.ctx, &backup.Backup{ResourceID: args[0]})
			if err != nil {
				return err
			}
			return backupTable(b).WriteText(cmd.OutOrStdout(), table.Params{})
		},
	}
	cmd.AddCommand(listCmd, getCmd, initiateCmd, cancelCmd)
	return cmd
}

func newRootCmd(ctx context.Context) *cobra.Command {
	a := &app{ctx: ctx}
	rootCmd := &cobra.Command{
		Use:               "unify",
		Short:             "Data unification platform client",
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: a.setup,
	}
	rootCmd.PersistentFlags().StringVar(&a.configPath, "config", config.DefaultPath, "config file")
	rootCmd.PersistentFlags().StringVar(&a.logLevel, "log-level", "info",
		"Log level: debug, info, warning, error")
	rootCmd.AddCommand(a.datasetCmd(), a.recordsCmd(), a.backupCmd())
	return rootCmd
}

func run(ctx context.Context, args []string, stdin io.Reader, stdout io.Writer) error {
	cmd := newRootCmd(ctx)
	cmd.SetArgs(args)
	cmd.SetIn(stdin)
	cmd.SetOut(stdout)
	return cmd.Execute()
}

func main() {
	ctx := context.Background()
	if err := run(ctx, os.Args[1:], os.Stdin, os.Stdout); err != nil {
		ctx = logging.Use(ctx, logging.DefaultGoLogger(logging.Info))
		logging.Errorf(ctx, err.Error())
		os.Exit(1)
	}
}
