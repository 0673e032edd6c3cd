// Package configutil resolves settings from an explicitly set command flag
// first, falling back to the bound viper key otherwise.
package configutil

import (
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func FlagOrViperString(cmd *cobra.Command, flagName, viperKey string) string {
	if cmd != nil && cmd.Flags().Changed(flagName) {
		v, err := cmd.Flags().GetString(flagName)
		if err == nil {
			return v
		}
	}
	if viperKey == "" {
		return ""
	}
	return viper.GetString(viperKey)
}

func FlagOrViperInt(cmd *cobra.Command, flagName, viperKey string) int {
	if cmd != nil && cmd.Flags().Changed(flagName) {
		v, err := cmd.Flags().GetInt(flagName)
		if err == nil {
			return v
		}
	}
	if viperKey == "" {
		return 0
	}
	return viper.GetInt(viperKey)
}

func FlagOrViperInt64(cmd *cobra.Command, flagName, viperKey string) int64 {
	if cmd != nil && cmd.Flags().Changed(flagName) {
		v, err := cmd.Flags().GetInt64(flagName)
		if err == nil {
			return v
		}
	}
	if viperKey == "" {
		return 0
	}
	return viper.GetInt64(viperKey)
}

func FlagOrViperDuration(cmd *cobra.Command, flagName, viperKey string) time.Duration {
	if cmd != nil && cmd.Flags().Changed(flagName) {
		v, err := cmd.Flags().GetDuration(flagName)
		if err == nil {
			return v
		}
	}
	if viperKey == "" {
		return 0
	}
	return viper.GetDuration(viperKey)
}
