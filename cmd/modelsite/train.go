package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/modelsite/modelsite-go/pkg/metrics"
	"github.com/modelsite/modelsite-go/pkg/mlmodel"
	"github.com/modelsite/modelsite-go/pkg/models"
)

func TrainCommand() *cobra.Command {
	var dataFile string
	var family string
	var targetColumn string
	var metricList string
	var networkFile string

	var cmd = &cobra.Command{
		Use:   "train -f dataFile -m family -t targetColumn",
		Short: "Runs one model family on a local dataset and prints the result as JSON",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			log, err := newLogger("info", "console")
			if err != nil {
				return err
			}
			defer log.Sync()

			data, err := os.ReadFile(dataFile)
			if err != nil {
				return fmt.Errorf("failed to read dataset: %w", err)
			}

			var network *models.NetworkConfig
			if networkFile != "" {
				if network, err = loadNetworkConfig(networkFile); err != nil {
					return err
				}
			}

			service := mlmodel.NewService(mlmodel.DefaultRegistry(), log)
			result, err := service.Train(cmd.Context(), &mlmodel.TrainRequest{
				Family:       models.ModelFamily(family),
				Filename:     filepath.Base(dataFile),
				Data:         data,
				TargetColumn: targetColumn,
				Metrics:      metrics.ParseRequest(metricList),
				Network:      network,
			})
			if err != nil {
				return err
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(result)
		},
	}

	cmd.Flags().StringVarP(&dataFile, "file", "f", "", "dataset file (csv, txt, xls or xlsx)")
	cmd.Flags().StringVarP(&family, "model", "m", "", "model family, see the families command")
	cmd.Flags().StringVarP(&targetColumn, "target", "t", "", "target column")
	cmd.Flags().StringVarP(&metricList, "metrics", "", "", "comma separated or JSON list of metrics (default: all metrics of the family)")
	cmd.Flags().StringVarP(&networkFile, "network-config", "n", "", "YAML or JSON network configuration for deep-neural-network")

	_ = cmd.MarkFlagRequired("file")
	_ = cmd.MarkFlagRequired("model")
	_ = cmd.MarkFlagRequired("target")

	return cmd
}

// loadNetworkConfig reads a network configuration file. JSON documents are
// valid YAML, so one decoder serves both.
func loadNetworkConfig(path string) (*models.NetworkConfig, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read network config: %w", err)
	}
	var cfg models.NetworkConfig
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse network config %s: %w", path, err)
	}
	for i, layer := range cfg.Layers {
		activation, err := models.ParseActivation(string(layer.Activation))
		if err != nil {
			return nil, fmt.Errorf("layer %d: %w", i, err)
		}
		cfg.Layers[i].Activation = activation
	}
	return &cfg, nil
}

func FamiliesCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "families",
		Short: "Lists the registered model families",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			for _, family := range mlmodel.DefaultRegistry().Families() {
				fmt.Fprintln(cmd.OutOrStdout(), family)
			}
		},
	}
}
