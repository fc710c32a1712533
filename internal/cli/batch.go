package cli

import (
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/pendergraft/srcverify/internal/verification/domain"
)

// errNoContracts is returned for an empty batch file.
var errNoContracts = errors.New("no contracts to verify")

// BatchFile lists contracts to verify in one run. Network, API key and
// Blockscout apply to every contract that does not set its own.
type BatchFile struct {
	Project    string           `toml:"project" yaml:"project"`
	Network    string           `toml:"network" yaml:"network"`
	APIKey     string           `toml:"api_key" yaml:"apiKey"`
	Blockscout bool             `toml:"blockscout" yaml:"blockscout"`
	Contracts  []domain.Request `toml:"contracts" yaml:"contracts"`
}

// loadBatchFile reads a .toml, .yaml or .yml batch file.
func loadBatchFile(path string) (*BatchFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading batch file: %w", err)
	}

	var batch BatchFile
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".toml":
		err = toml.Unmarshal(data, &batch)
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &batch)
	default:
		return nil, fmt.Errorf("unsupported batch file extension %q (want .toml, .yaml or .yml)", ext)
	}
	if err != nil {
		return nil, fmt.Errorf("parsing batch file %s: %w", path, err)
	}
	if len(batch.Contracts) == 0 {
		return nil, fmt.Errorf("%w in %s", errNoContracts, path)
	}

	for i := range batch.Contracts {
		c := &batch.Contracts[i]
		if c.Network == "" {
			c.Network = batch.Network
		}
		if c.APIKey == "" {
			c.APIKey = batch.APIKey
		}
		if batch.Blockscout {
			c.Blockscout = true
		}
		if c.SourcePath == "" && c.ContractName != "" {
			c.SourcePath = defaultSourcePath(c.ContractName)
		}
	}
	return &batch, nil
}

func createBatchCmd(a *app) *cobra.Command {
	var project string
	var silent bool
	var timeout time.Duration

	cmd := &cobra.Command{
		Use:   "batch <file>",
		Short: "Verify every contract listed in a TOML or YAML file",
		Long: `Verify several contracts one after another.

A failed contract does not stop the batch. The command exits non-zero when
any contract was not verified.

EXAMPLE (contracts.toml):
  project = "."
  network = "mordor"

  [[contracts]]
  address  = "0x1234..."
  contract = "Token"

  [[contracts]]
  address  = "0xabcd..."
  contract = "Vault"
  source   = "src/vault/Vault.sol"
`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runBatch(cmd, args[0], project, silent, timeout)
		},
	}

	cmd.Flags().StringVar(&project, "project", "", "Foundry project directory (default from batch file, else .)")
	cmd.Flags().BoolVar(&silent, "silent", false, "suppress progress output")
	cmd.Flags().DurationVar(&timeout, "timeout", 0, "time limit per contract (default: wait indefinitely)")

	return cmd
}

func (a *app) runBatch(cmd *cobra.Command, path, project string, silent bool, timeout time.Duration) error {
	batch, err := loadBatchFile(path)
	if err != nil {
		return err
	}
	if project == "" {
		project = batch.Project
	}
	if project == "" {
		project = "."
	}

	ctx, stopSignals := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stopSignals()

	srv, stopServer, err := a.startServer()
	if err != nil {
		return err
	}
	defer stopServer()

	out := cmd.OutOrStdout()
	svc := a.newService(a.projectFlattener(project), out)

	rows := make([]batchRow, 0, len(batch.Contracts))
	for _, req := range batch.Contracts {
		req.Silent = req.Silent || silent
		if !req.Silent {
			fmt.Fprintf(out, "==> %s %s on %s\n", req.ContractName, req.Address, req.Network)
		}

		runCtx, cancel := withTimeout(ctx, timeout)
		res, err := svc.Publish(runCtx, req)
		cancel()

		if err != nil {
			// An interrupt stops the whole batch.
			if ctx.Err() != nil {
				return ctx.Err()
			}
			a.logger.Error("contract skipped", "contract", req.ContractName, "address", req.Address, "error", err)
			rows = append(rows, batchRow{req: req, status: "error", detail: describeRunError(err, timeout).Error()})
			continue
		}
		if srv != nil {
			srv.Record(req, res)
		}
		row := batchRow{req: req, status: "verified", detail: res.GUID}
		if !res.Verified() {
			row.status = res.Outcome.String()
			row.detail = res.Message
		}
		rows = append(rows, row)
	}

	failed := printBatchSummary(out, rows)
	if failed > 0 {
		return fmt.Errorf("%d of %d contracts failed verification", failed, len(rows))
	}
	return nil
}

type batchRow struct {
	req    domain.Request
	status string
	detail string
}

// printBatchSummary writes the result table and returns the failure count.
func printBatchSummary(w io.Writer, rows []batchRow) int {
	failed := 0
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "CONTRACT\tADDRESS\tNETWORK\tSTATUS\tDETAIL")
	for _, r := range rows {
		if r.status != "verified" {
			failed++
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", r.req.ContractName, r.req.Address, r.req.Network, r.status, r.detail)
	}
	tw.Flush()
	return failed
}
