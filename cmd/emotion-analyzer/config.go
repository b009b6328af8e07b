package main

import (
	"os"

	"github.com/spf13/cobra"
)

var savePath string

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Print the effective configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		if savePath != "" {
			if err := cfg.SaveToFile(savePath); err != nil {
				return err
			}
			logger.WithField("path", savePath).Info("Configuration saved")
			return nil
		}

		data, err := cfg.Dump()
		if err != nil {
			return err
		}
		_, err = os.Stdout.Write(data)
		return err
	},
}

func init() {
	configCmd.Flags().StringVar(&savePath, "save", "", "write the configuration to this file instead of stdout")
	rootCmd.AddCommand(configCmd)
}
