package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/teemow/crmgate/internal/dispatch"
	"github.com/teemow/crmgate/internal/logging"
	"github.com/teemow/crmgate/internal/telemetry"
)

// stdinMarker as the method argument reads a full envelope from stdin.
const stdinMarker = "-"

func newCallCmd() *cobra.Command {
	var (
		yolo      bool
		debug     bool
		logFormat string
	)

	cmd := &cobra.Command{
		Use:   "call <method> [params-json]",
		Short: "Dispatch a single operation and print the response",
		Long: `Dispatch one operation through the gateway and print the response
envelope as indented JSON.

Examples:
  crmgate call list-deals '{"status":"open","show":10}'
  crmgate call get-deal '{"dealId":42}'
  echo '{"jsonrpc":"2.0","id":1,"method":"list-users"}' | crmgate call -

The command exits non-zero when the response carries an error.`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}

			logger := logging.New(os.Stderr, debug, logFormat)
			gw, err := buildGateway(ctx, gatewayOptions{
				logger:    logger,
				readOnly:  !yolo,
				telemetry: telemetry.DefaultConfig(),
			})
			if err != nil {
				return err
			}
			defer gw.Close(ctx)

			return runCall(ctx, gw.dispatcher, cmd.InOrStdin(), cmd.OutOrStdout(), args)
		},
	}

	cmd.Flags().BoolVar(&yolo, "yolo", false, "Enable write operations (update-deal)")
	cmd.Flags().BoolVar(&debug, "debug", false, "Enable debug logging")
	cmd.Flags().StringVar(&logFormat, "log-format", logging.FormatText, "Log format: text or json")

	return cmd
}

// runCall dispatches the request described by args and writes the response
// to out. A response error is returned after the envelope is printed.
func runCall(ctx context.Context, d *dispatch.Dispatcher, in io.Reader, out io.Writer, args []string) error {
	var resp *dispatch.Response
	if args[0] == stdinMarker {
		if len(args) > 1 {
			return fmt.Errorf("params cannot be combined with an envelope on stdin")
		}
		data, err := io.ReadAll(in)
		if err != nil {
			return fmt.Errorf("failed to read request from stdin: %w", err)
		}
		resp = d.DispatchBytes(ctx, data)
	} else {
		req, err := newCallRequest(args)
		if err != nil {
			return err
		}
		resp = d.Dispatch(ctx, req)
	}

	encoded, err := json.MarshalIndent(resp, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode response: %w", err)
	}
	if _, err := fmt.Fprintln(out, string(encoded)); err != nil {
		return err
	}

	if resp.IsError() {
		return resp.Error
	}
	return nil
}

// newCallRequest builds an envelope with a fresh request id.
func newCallRequest(args []string) (*dispatch.Request, error) {
	id, err := json.Marshal(uuid.NewString())
	if err != nil {
		return nil, err
	}
	req := &dispatch.Request{JSONRPC: dispatch.Version, ID: id, Method: args[0]}
	if len(args) > 1 {
		if !json.Valid([]byte(args[1])) {
			return nil, fmt.Errorf("params must be valid JSON: %q", args[1])
		}
		req.Params = json.RawMessage(args[1])
	}
	return req, nil
}
