package main

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"slices"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/datacite/lupo-sub003/infrastructure/logger"
	"github.com/datacite/lupo-sub003/internal/bootstrap"
	"github.com/datacite/lupo-sub003/internal/domain"
	"github.com/datacite/lupo-sub003/internal/job"
	"github.com/datacite/lupo-sub003/internal/worker"
)

type enqueueOptions struct {
	target    string
	targets   []string
	fromID    int64
	untilID   int64
	options   []string
	linesFile string
	refresh   bool
}

func newEnqueueCommand(opts *rootOptions) *cobra.Command {
	eo := &enqueueOptions{}
	cmd := &cobra.Command{
		Use:   "enqueue <operation>",
		Short: "Enqueue one background job",
		Long: "Enqueue one background job. Operations:\n  " + strings.Join(worker.Operations(), "\n  "),
		Example: `  registry enqueue index --target 10.5061/dryad.8515
  registry enqueue import_range --from-id 1 --until-id 100000 --option kind=doi
  registry enqueue transfer --option source_client_id=datacite.old --option client_target_id=datacite.new
  registry enqueue enrichment_batch --lines-file enrichments.jsonl`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			operation := args[0]
			jobArgs, err := eo.build(operation)
			if err != nil {
				return err
			}
			return opts.withApp(cmd.Context(), bootstrap.BackendDatabase|bootstrap.BackendRedis, func(app *bootstrap.App) error {
				j, enqueueErr := bootstrap.Enqueue(cmd.Context(), app, operation, jobArgs)
				if enqueueErr != nil {
					return enqueueErr
				}
				app.Logger.Info("Job enqueued",
					logger.JobID(j.ID),
					logger.Operation(j.Operation),
					logger.String("queue", j.Queue),
				)
				fmt.Fprintln(cmd.OutOrStdout(), j.ID)
				return nil
			})
		},
	}

	f := cmd.Flags()
	f.StringVar(&eo.target, "target", "", "single target identifier")
	f.StringSliceVar(&eo.targets, "targets", nil, "comma-separated target identifiers")
	f.Int64Var(&eo.fromID, "from-id", 0, "first database id of a range")
	f.Int64Var(&eo.untilID, "until-id", 0, "last database id of a range")
	f.StringArrayVar(&eo.options, "option", nil, "key=value option; repeatable")
	f.StringVar(&eo.linesFile, "lines-file", "", "JSON lines file of documents, - for stdin")
	f.BoolVar(&eo.refresh, "refresh", false, "re-fetch cached external data")
	return cmd
}

// build validates operation and assembles its arguments.
func (o *enqueueOptions) build(operation string) (job.Args, error) {
	if !slices.Contains(worker.Operations(), operation) {
		return job.Args{}, fmt.Errorf("%w: unknown operation %q", domain.ErrInvalidInput, operation)
	}
	if o.untilID != 0 && o.untilID < o.fromID {
		return job.Args{}, fmt.Errorf("%w: --until-id is before --from-id", domain.ErrInvalidInput)
	}

	args := job.Args{
		Target:  o.target,
		Targets: o.targets,
		FromID:  o.fromID,
		UntilID: o.untilID,
	}

	if len(o.options) > 0 || o.refresh {
		args.Options = make(map[string]any, len(o.options)+1)
	}
	for _, kv := range o.options {
		key, value, ok := strings.Cut(kv, "=")
		if !ok || key == "" {
			return job.Args{}, fmt.Errorf("%w: option %q is not key=value", domain.ErrInvalidInput, kv)
		}
		args.Options[key] = optionValue(value)
	}
	if o.refresh {
		args.Options["refresh"] = true
	}

	if o.linesFile != "" {
		lines, err := readLines(o.linesFile)
		if err != nil {
			return job.Args{}, err
		}
		args.Lines = lines
	}
	return args, nil
}

// optionValue keeps booleans typed so handlers read them back as flags.
func optionValue(s string) any {
	if b, err := strconv.ParseBool(s); err == nil {
		return b
	}
	return s
}

func readLines(path string) ([]json.RawMessage, error) {
	var r io.Reader = os.Stdin
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("open lines file: %w", err)
		}
		defer f.Close()
		r = f
	}
	return scanLines(r)
}

func scanLines(r io.Reader) ([]json.RawMessage, error) {
	var lines []json.RawMessage
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for n := 1; scanner.Scan(); n++ {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		if !json.Valid(line) {
			return nil, fmt.Errorf("%w: line %d is not JSON", domain.ErrInvalidInput, n)
		}
		lines = append(lines, json.RawMessage(bytes.Clone(line)))
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read lines: %w", err)
	}
	return lines, nil
}
