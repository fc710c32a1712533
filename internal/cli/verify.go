package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/pendergraft/srcverify/internal/chains"
	"github.com/pendergraft/srcverify/internal/chains/evm/foundry"
	"github.com/pendergraft/srcverify/internal/validation"
	"github.com/pendergraft/srcverify/internal/verification/domain"
)

// verifyOptions are the flags of the verify command.
type verifyOptions struct {
	project         string
	network         string
	apiKey          string
	blockscout      bool
	address         string
	source          string
	contract        string
	compilerVersion string
	bytecodeLen     int
	remappings      map[string]string
	evmVersion      string
	optimizerRuns   int
	noOptimizer     bool
	silent          bool
	timeout         time.Duration
	jsonOutput      bool
}

func createVerifyCmd(a *app) *cobra.Command {
	var opts verifyOptions

	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Verify one deployed contract on a block explorer",
		Long: `Verify the source of a deployed contract on a block explorer.

The contract is read from Foundry build output (run 'forge build' first),
flattened into standard JSON input and submitted together with the
constructor arguments recovered from the creation transaction.

--network is either a known explorer (see 'srcverify explorers list') or
the explorer API URL itself.

EXAMPLES:
  # Verify on a known explorer
  srcverify verify --network mordor \
    --address 0x1234... --contract Token

  # Raw Blockscout API URL with explicit key
  srcverify verify --network https://explorer.example.org/api --blockscout \
    --api-key $KEY --address 0x1234... --contract Token --source src/Token.sol
`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runVerify(cmd, opts)
		},
	}

	cmd.Flags().StringVar(&opts.project, "project", ".", "Foundry project directory")
	cmd.Flags().StringVarP(&opts.network, "network", "n", "", "explorer name or API URL (required)")
	cmd.Flags().StringVar(&opts.apiKey, "api-key", "", "explorer API key (default from explorer registry)")
	cmd.Flags().BoolVar(&opts.blockscout, "blockscout", false, "use the Blockscout payload for a raw API URL")
	cmd.Flags().StringVarP(&opts.address, "address", "a", "", "deployed contract address (required)")
	cmd.Flags().StringVarP(&opts.contract, "contract", "c", "", "contract name (required)")
	cmd.Flags().StringVarP(&opts.source, "source", "s", "", "contract source path (default: src/<contract>.sol)")
	cmd.Flags().StringVar(&opts.compilerVersion, "compiler-version", "", "exact solc version (default from build output)")
	cmd.Flags().IntVar(&opts.bytecodeLen, "bytecode-len", 0, "creation bytecode length in hex characters (default from build output)")
	cmd.Flags().StringToStringVar(&opts.remappings, "remap", nil, "import remapping prefix=target (repeatable)")
	cmd.Flags().StringVar(&opts.evmVersion, "evm-version", "", "EVM version when build output has none (default london)")
	cmd.Flags().IntVar(&opts.optimizerRuns, "optimizer-runs", 0, "optimizer runs when build output has none (default 200)")
	cmd.Flags().BoolVar(&opts.noOptimizer, "no-optimizer", false, "assume the optimizer was disabled when build output has no settings")
	cmd.Flags().BoolVar(&opts.silent, "silent", false, "suppress progress output")
	cmd.Flags().DurationVar(&opts.timeout, "timeout", 0, "give up after this long (default: wait indefinitely)")
	cmd.Flags().BoolVar(&opts.jsonOutput, "json", false, "print the result as JSON")
	_ = cmd.MarkFlagRequired("network")
	_ = cmd.MarkFlagRequired("address")
	_ = cmd.MarkFlagRequired("contract")

	return cmd
}

// request converts the flags into a workflow request.
func (o verifyOptions) request(defaults chains.CompilerSettings) domain.Request {
	req := domain.Request{
		Network:         o.network,
		APIKey:          o.apiKey,
		Blockscout:      o.blockscout,
		Address:         o.address,
		SourcePath:      o.source,
		ContractName:    o.contract,
		CompilerVersion: o.compilerVersion,
		BytecodeLen:     o.bytecodeLen,
		Remappings:      o.remappings,
		Silent:          o.silent,
	}
	if req.SourcePath == "" {
		req.SourcePath = defaultSourcePath(o.contract)
	}

	if o.evmVersion != "" || o.optimizerRuns != 0 || o.noOptimizer {
		settings := defaults
		if o.evmVersion != "" {
			settings.EVMVersion = o.evmVersion
		}
		if o.optimizerRuns != 0 {
			settings.Optimizer.Runs = o.optimizerRuns
		}
		if o.noOptimizer {
			settings.Optimizer = chains.OptimizerConfig{}
		}
		req.Settings = &settings
	}
	return req
}

// projectFlattener returns the Foundry flattener for dir.
func (a *app) projectFlattener(dir string) *foundry.Flattener {
	fl := foundry.New(dir)
	if ok, err := fl.Detect(); err == nil && !ok {
		a.logger.Warn("no foundry.toml in project directory, reading build output anyway", "dir", dir)
	}
	return fl
}

func defaultSourcePath(contract string) string {
	return filepath.ToSlash(filepath.Join("src", contract+".sol"))
}

func (a *app) runVerify(cmd *cobra.Command, opts verifyOptions) error {
	req := opts.request(a.cfg.Workflow().Compiler)

	ctx, stopSignals := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stopSignals()
	ctx, cancel := withTimeout(ctx, opts.timeout)
	defer cancel()

	srv, stopServer, err := a.startServer()
	if err != nil {
		return err
	}
	defer stopServer()

	out := cmd.OutOrStdout()
	svc := a.newService(a.projectFlattener(opts.project), out)

	res, err := svc.Publish(ctx, req)
	if err != nil {
		return describeRunError(err, opts.timeout)
	}
	if srv != nil {
		srv.Record(req, res)
	}

	if opts.jsonOutput {
		if err := writeResultJSON(out, req, res); err != nil {
			return err
		}
	} else if !opts.silent {
		printResult(out, req, res)
	}

	if !res.Verified() {
		return fmt.Errorf("verification failed: %s", res.Message)
	}
	return nil
}

// describeRunError adds the timeout to deadline errors.
func describeRunError(err error, timeout time.Duration) error {
	if timeout > 0 && errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("verification did not finish within %s", timeout)
	}
	return err
}

func printResult(w io.Writer, req domain.Request, res *domain.Result) {
	if res.Verified() {
		fmt.Fprintf(w, "✓ %s verified on %s (guid %s)\n", validation.ChecksumAddress(req.Address), req.Network, res.GUID)
		return
	}
	fmt.Fprintf(w, "✗ %s not verified on %s: %s [%s at %s]\n",
		validation.ChecksumAddress(req.Address), req.Network, res.Message, res.Outcome, res.Stage)
}

// resultJSON is the machine-readable form of a run.
type resultJSON struct {
	*domain.Result
	Network  string `json:"network"`
	Address  string `json:"address"`
	Verified bool   `json:"verified"`
	Outcome  string `json:"outcome"`
	Stage    string `json:"stage"`
}

func writeResultJSON(w io.Writer, req domain.Request, res *domain.Result) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(resultJSON{
		Result:   res,
		Network:  req.Network,
		Address:  req.Address,
		Verified: res.Verified(),
		Outcome:  res.Outcome.String(),
		Stage:    res.Stage.String(),
	})
}
