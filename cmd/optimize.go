package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kilianp07/railsched/api/optimization"
	"github.com/kilianp07/railsched/app"
	"github.com/kilianp07/railsched/pkg/export"
)

var (
	requestFile  string
	exportFormat string
)

var optimizeCmd = &cobra.Command{
	Use:   "optimize",
	Short: "Optimize the schedule described in a JSON or YAML request file",
	RunE: func(cmd *cobra.Command, _ []string) error {
		var in optimization.OptimizationRequestDTO
		if err := readRequest(requestFile, &in); err != nil {
			return err
		}
		svc, err := newOfflineService(cmd)
		if err != nil {
			return err
		}
		defer func() { _ = svc.Close() }()
		resp := svc.Engine.Optimize(cmd.Context(), optimization.RequestToModel(in))
		if exportFormat != "" {
			err = export.Write(cmd.OutOrStdout(), exportFormat, resp.Schedule)
		} else {
			err = writeResult(cmd.OutOrStdout(), optimization.ResponseFromModel(resp))
		}
		if err != nil {
			return err
		}
		if resp.ErrorMessage != "" {
			return fmt.Errorf("optimization %s failed: %s", resp.RequestID, resp.ErrorMessage)
		}
		return nil
	},
}

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate a schedule against constraints",
	RunE: func(cmd *cobra.Command, _ []string) error {
		var in optimization.ValidationRequestDTO
		if err := readRequest(requestFile, &in); err != nil {
			return err
		}
		svc, err := newOfflineService(cmd)
		if err != nil {
			return err
		}
		defer func() { _ = svc.Close() }()
		resp := svc.Validator.Validate(optimization.ValidationRequestToModel(in))
		if err := writeResult(cmd.OutOrStdout(), optimization.ValidationResponseFromModel(resp)); err != nil {
			return err
		}
		if !resp.IsValid {
			return fmt.Errorf("schedule has %d errors", len(resp.Errors))
		}
		return nil
	},
}

var simulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "Run a what-if scenario on a schedule",
	RunE: func(cmd *cobra.Command, _ []string) error {
		var in optimization.SimulationRequestDTO
		if err := readRequest(requestFile, &in); err != nil {
			return err
		}
		svc, err := newOfflineService(cmd)
		if err != nil {
			return err
		}
		defer func() { _ = svc.Close() }()
		resp := svc.Simulator.Simulate(optimization.SimulationRequestToModel(in))
		if err := writeResult(cmd.OutOrStdout(), optimization.SimulationResponseFromModel(resp)); err != nil {
			return err
		}
		if !resp.Success {
			return fmt.Errorf("simulation failed: %s", resp.ErrorMessage)
		}
		return nil
	},
}

// newOfflineService builds the service without its network outputs.
func newOfflineService(cmd *cobra.Command) (*app.Service, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	cfg.MQTT.Enabled = false
	cfg.RunLog.Enabled = false
	cfg.Metrics.Sinks = nil
	return app.New(cfg)
}

func init() {
	for _, c := range []*cobra.Command{optimizeCmd, validateCmd, simulateCmd} {
		c.Flags().StringVarP(&requestFile, "file", "f", "", "request file (.json, .yaml or - for JSON on stdin)")
		_ = c.MarkFlagRequired("file")
		rootCmd.AddCommand(c)
	}
	optimizeCmd.Flags().StringVar(&exportFormat, "export", "", "write only the schedule as csv or json")
}
