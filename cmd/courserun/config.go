// ABOUTME: Config command for viewing and editing settings
// ABOUTME: Shows the effective config and sets the file's top-level keys

package main

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/fatih/color"
	"github.com/harper/courserun/internal/config"
	"github.com/spf13/cobra"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or change settings",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration, including environment overrides",
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := json.MarshalIndent(cfg, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to encode config: %w", err)
		}
		fmt.Println(string(data))
		return nil
	},
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Print the config file location",
	RunE: func(cmd *cobra.Command, args []string) error {
		fmt.Println(config.GetConfigPath())
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a config value",
	Long: `Set a config value and save the config file.

Keys: backend, data_dir, course_dir, tesseract, off_course_threshold,
checkpoint_radius, finish_radius

Examples:
  courserun config set backend badger
  courserun config set course_dir ~/Dropbox/courses
  courserun config set finish_radius 60`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, value := args[0], args[1]
		if err := setConfigValue(cfg, key, value); err != nil {
			return err
		}
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("invalid config: %w", err)
		}
		if err := cfg.Save(); err != nil {
			return fmt.Errorf("failed to save config: %w", err)
		}
		color.Green("✓ Set %s = %s", key, value)
		return nil
	},
}

func setConfigValue(c *config.Config, key, value string) error {
	switch key {
	case "backend":
		c.Backend = value
	case "data_dir":
		c.DataDir = value
	case "course_dir":
		c.CourseDir = value
	case "tesseract":
		c.Tesseract = value
	case "off_course_threshold", "checkpoint_radius", "finish_radius":
		meters, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", key, err)
		}
		switch key {
		case "off_course_threshold":
			c.OffCourseThreshold = meters
		case "checkpoint_radius":
			c.CheckpointRadius = meters
		default:
			c.FinishRadius = meters
		}
	case "recover_hours":
		hours, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", key, err)
		}
		c.RecoverHours = hours
	default:
		return fmt.Errorf("unknown config key %q", key)
	}
	return nil
}

func init() {
	configCmd.AddCommand(configShowCmd, configPathCmd, configSetCmd)
	rootCmd.AddCommand(configCmd)
}
