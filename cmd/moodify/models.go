package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/jmylchreest/moodify/internal/detector"
)

var modelsOpts struct {
	url string
}

var modelsCmd = &cobra.Command{
	Use:   "models",
	Short: "Manage the face detection models",
	Long: `Manage the pre-trained face detection and expression models.

Detection needs the tinyFaceDetector and faceExpressionNet weights in the
models directory (default: ~/.local/share/moodify/models).`,
}

var modelsCheckCmd = &cobra.Command{
	Use:   "check",
	Short: "Check that every model artifact is present and valid",
	Args:  cobra.NoArgs,
	RunE:  runModelsCheck,
}

var modelsFetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Download the model artifacts",
	Long: `Download every model manifest and weight shard into the models
directory. Existing files are replaced.

Examples:
  moodify models fetch
  moodify models fetch --url https://mirror.example.com/weights`,
	Args: cobra.NoArgs,
	RunE: runModelsFetch,
}

func init() {
	rootCmd.AddCommand(modelsCmd)
	modelsCmd.AddCommand(modelsCheckCmd)
	modelsCmd.AddCommand(modelsFetchCmd)

	modelsFetchCmd.Flags().StringVar(&modelsOpts.url, "url", "",
		"Base URL to download from (default from config, then the upstream weights)")
}

func runModelsCheck(cmd *cobra.Command, args []string) error {
	models := detector.NewModelSet(getConfig().ModelsDir(), logger)

	fmt.Printf("Models directory: %s\n\n", models.Dir)
	tw := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	for _, st := range models.Check() {
		if st.Present {
			fmt.Fprintf(tw, "  ok\t%s\t%s\n", st.Name, humanize.Bytes(uint64(st.Size)))
		} else {
			fmt.Fprintf(tw, "  missing\t%s\t%v\n", st.Name, st.Err)
		}
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	if err := models.Verify(); err != nil {
		return fmt.Errorf("models are not usable, run 'moodify models fetch': %w", err)
	}
	fmt.Println("\nAll models present.")
	return nil
}

func runModelsFetch(cmd *cobra.Command, args []string) error {
	c := getConfig()
	models := detector.NewModelSet(c.ModelsDir(), logger)

	url := modelsOpts.url
	if url == "" {
		url = c.Detector.WeightsURL
	}

	var total int64
	err := models.Fetch(cmd.Context(), url, func(name string, size int64) {
		total += size
		fmt.Printf("  %-50s %s\n", name, humanize.Bytes(uint64(size)))
	})
	if err != nil {
		return err
	}

	if err := models.Verify(); err != nil {
		return fmt.Errorf("downloaded models failed verification: %w", err)
	}
	fmt.Printf("Fetched %s into %s\n", humanize.Bytes(uint64(total)), models.Dir)
	return nil
}
