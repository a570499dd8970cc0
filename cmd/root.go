package cmd

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/kiesman99/gridsheet/internal/logging"
	"github.com/kiesman99/gridsheet/internal/sheet"
	"github.com/kiesman99/gridsheet/internal/sink"
	"github.com/kiesman99/gridsheet/pkg/grid"
)

// Version is reported by --version and the health endpoint
var Version = "1.0.0"

var cfgFile string

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "gridsheet [dir]",
	Short: "Tile a directory of images into a single contact sheet",
	Long: `gridsheet scales a set of equally sized images so that a fixed number
fit on each row of a frame of the given width, and pastes them left to
right, top to bottom onto a white canvas.

Images are taken from a directory in file name order, or from a TOML
manifest that lists them explicitly. The sheet is written as PNG or JPEG.

Examples:
  # Nine images per row on a 2560px frame, written to ./img/matrix.png
  gridsheet ./img

  # Only files starting with "block", four per row, as JPEG
  gridsheet ./img --pattern 'block*.png' --per-row 4 -o blocks.jpg --quality 90

  # Inputs and layout from a manifest
  gridsheet --manifest cities.toml

  # Print the layout without writing anything
  gridsheet ./img --dry-run -v

  # Start HTTP server
  gridsheet serve --port 8080`,
	Args:         cobra.MaximumNArgs(1),
	Version:      Version,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		logger := logging.New(cmd.ErrOrStderr(), logging.Level(viper.GetBool("verbose")))
		cmd.SetContext(logging.WithLogger(cmd.Context(), logger))
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		// If no inputs, show help
		if len(args) == 0 && viper.GetString("manifest") == "" {
			return cmd.Help()
		}
		if len(args) > 0 && viper.GetString("manifest") != "" {
			return fmt.Errorf("--manifest and a directory argument are mutually exclusive")
		}
		return runSheet(cmd, args)
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.gridsheet.yaml)")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "enable debug logging")
	viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))

	// Input options
	rootCmd.Flags().String("pattern", "*.png", "glob selecting images inside the directory")
	rootCmd.Flags().StringP("manifest", "m", "", "TOML manifest listing images in order")

	// Output options
	rootCmd.Flags().StringP("output", "o", "", "output file (default: <dir>/matrix.png)")
	rootCmd.Flags().StringP("format", "f", "", "output format (png|jpeg), derived from the output name when empty")
	rootCmd.Flags().IntP("quality", "q", sink.DefaultQuality, "JPEG quality (1-100)")
	rootCmd.Flags().Bool("dry-run", false, "compute and log the layout without writing")

	// Layout options
	rootCmd.Flags().IntP("frame-width", "W", grid.DefaultFrameWidth, "sheet width in pixels")
	rootCmd.Flags().IntP("per-row", "n", grid.DefaultPerRow, "images per row")
	rootCmd.Flags().IntP("padding", "p", grid.DefaultPadding, "horizontal gap between images in pixels")
	rootCmd.Flags().Bool("strict", false, "reject images whose size differs from the first")
	rootCmd.Flags().Int("max-pixels", grid.DefaultMaxPixels, "largest sheet area in pixels")

	// Bind flags to viper for root command
	viper.BindPFlag("pattern", rootCmd.Flags().Lookup("pattern"))
	viper.BindPFlag("manifest", rootCmd.Flags().Lookup("manifest"))
	viper.BindPFlag("output", rootCmd.Flags().Lookup("output"))
	viper.BindPFlag("format", rootCmd.Flags().Lookup("format"))
	viper.BindPFlag("quality", rootCmd.Flags().Lookup("quality"))
	viper.BindPFlag("dry-run", rootCmd.Flags().Lookup("dry-run"))
	viper.BindPFlag("layout.frame-width", rootCmd.Flags().Lookup("frame-width"))
	viper.BindPFlag("layout.per-row", rootCmd.Flags().Lookup("per-row"))
	viper.BindPFlag("layout.padding", rootCmd.Flags().Lookup("padding"))
	viper.BindPFlag("layout.strict", rootCmd.Flags().Lookup("strict"))
	viper.BindPFlag("layout.max-pixels", rootCmd.Flags().Lookup("max-pixels"))
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	if cfgFile != "" {
		// Use config file from the flag.
		viper.SetConfigFile(cfgFile)
	} else {
		// Find home directory.
		home, err := os.UserHomeDir()
		cobra.CheckErr(err)

		// Search config in home directory with name ".gridsheet" (without extension).
		viper.AddConfigPath(home)
		viper.SetConfigType("yaml")
		viper.SetConfigName(".gridsheet")
	}

	// GRIDSHEET_LAYOUT_PER_ROW=4 overrides layout.per-row
	viper.SetEnvPrefix("gridsheet")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()

	// If a config file is found, read it in.
	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

// layoutParams reads the layout section of the configuration
func layoutParams() grid.Params {
	return grid.Params{
		FrameWidth:     viper.GetInt("layout.frame-width"),
		PerRow:         viper.GetInt("layout.per-row"),
		Padding:        viper.GetInt("layout.padding"),
		RequireUniform: viper.GetBool("layout.strict"),
		MaxPixels:      viper.GetInt("layout.max-pixels"),
	}
}

func runSheet(cmd *cobra.Command, args []string) error {
	opts := &sheet.Options{
		Pattern:  viper.GetString("pattern"),
		Manifest: viper.GetString("manifest"),
		Output:   viper.GetString("output"),
		Format:   viper.GetString("format"),
		Quality:  viper.GetInt("quality"),
		DryRun:   viper.GetBool("dry-run"),
		Params:   layoutParams(),
	}
	if len(args) > 0 {
		opts.InputDir = args[0]
	}

	logger := logging.FromContext(cmd.Context())
	result, err := sheet.New(opts, logger).Run(cmd.Context())
	if err != nil {
		logger.Error("Sheet failed", "err", err)
		return err
	}

	if opts.DryRun {
		for _, cell := range result.Layout.Cells() {
			fmt.Fprintf(cmd.OutOrStdout(), "%d\t%d\t%s\n", cell.Origin.X, cell.Origin.Y, result.Inputs[cell.Index])
		}
	}
	return nil
}
