package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/railqr/railqr-service/internal/prediction"
	"github.com/railqr/railqr-service/internal/services"
)

func newPredictCmd() *cobra.Command {
	var envelope bool

	cmd := &cobra.Command{
		Use:   "predict <kind> [key=value...]",
		Short: "Run one prediction against the local engine and print the result",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, err := prediction.ParseKind(args[0])
			if err != nil {
				return err
			}
			params, err := parseKeyValues(args[1:])
			if err != nil {
				return err
			}

			cfg, err := loadConfig(cmd.ErrOrStderr())
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			engineCfg, err := cfg.Prediction()
			if err != nil {
				return fmt.Errorf("engine config: %w", err)
			}

			svc := services.NewPredictionService(prediction.NewOrchestrator(engineCfg), nil, nil)
			resp := svc.Predict(cmd.Context(), services.PredictionRequest{
				Kind:   string(kind),
				Params: prediction.StringParams(params),
			}, "cli", "", "cli")

			var out []byte
			if envelope {
				out, err = json.MarshalIndent(resp, "", "  ")
				if err != nil {
					return err
				}
			} else {
				var buf bytes.Buffer
				if err := json.Indent(&buf, resp.Result, "", "  "); err != nil {
					return err
				}
				out = buf.Bytes()
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(out))
			return nil
		},
	}
	cmd.Flags().BoolVar(&envelope, "envelope", false, "Print the response envelope with source and failure class")
	return cmd
}

func parseKeyValues(args []string) (map[string]string, error) {
	params := make(map[string]string, len(args))
	for _, arg := range args {
		key, value, ok := strings.Cut(arg, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("argument %q is not key=value", arg)
		}
		params[key] = value
	}
	return params, nil
}
