package main

import (
	"flag"
	"fmt"
	"io"
	"math"
	"math/rand"
	"sort"
	"strconv"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
	"k8s.io/klog/v2"

	"github.com/born-ml/trajnet/backend/cpu"
	"github.com/born-ml/trajnet/stgcnn"
	"github.com/born-ml/trajnet/tensor"
)

const version = "v0.1.0-dev"

// NewCLI builds the trajnet command tree.
func NewCLI() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "trajnet",
		Short: "Spatio-temporal graph CNN for pedestrian trajectory prediction",
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			// Disable usage printing on errors
			cmd.SilenceUsage = true
		},
	}

	klogFlags := flag.NewFlagSet("klog", flag.ContinueOnError)
	klog.InitFlags(klogFlags)
	rootCmd.PersistentFlags().AddGoFlagSet(klogFlags)
	rootCmd.PersistentFlags().StringP("config", "c", "", "YAML model config (defaults are used when empty)")

	cobra.EnableCommandSorting = false

	summaryCmd := &cobra.Command{
		Use:   "summary",
		Args:  cobra.NoArgs,
		Short: "Print the model's parameters and buffers",
		RunE:  SummaryHandler,
	}

	forwardCmd := &cobra.Command{
		Use:   "forward",
		Args:  cobra.NoArgs,
		Short: "Run one evaluation-mode forward pass on synthetic input",
		RunE:  ForwardHandler,
	}
	forwardCmd.Flags().Int("peds", 4, "Number of pedestrians (graph nodes)")
	forwardCmd.Flags().Int("batch", 1, "Batch size")
	forwardCmd.Flags().Bool("random", false, "Use random positions instead of zeros")
	forwardCmd.Flags().Int64("input-seed", 1, "Seed for --random positions")

	versionCmd := &cobra.Command{
		Use:   "version",
		Args:  cobra.NoArgs,
		Short: "Show version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "trajnet %s\n", version)
		},
	}

	rootCmd.AddCommand(summaryCmd, forwardCmd, versionCmd)
	return rootCmd
}

func loadConfig(cmd *cobra.Command) (stgcnn.Config, error) {
	path, err := cmd.Flags().GetString("config")
	if err != nil {
		return stgcnn.Config{}, err
	}
	if path == "" {
		return stgcnn.DefaultConfig(), nil
	}
	klog.Infof("loading config from %q", path)
	return stgcnn.LoadConfig(path)
}

func newTable(w io.Writer, header []string) *tablewriter.Table {
	table := tablewriter.NewWriter(w)
	table.SetHeader(header)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetNoWhiteSpace(true)
	table.SetTablePadding("    ")
	return table
}

// SummaryHandler prints every state dict entry of the configured model.
func SummaryHandler(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	model, err := stgcnn.NewTrajectoryPredictor(cfg, cpu.New())
	if err != nil {
		return err
	}

	stateDict := model.StateDict()
	names := make([]string, 0, len(stateDict))
	for name := range stateDict {
		names = append(names, name)
	}
	sort.Strings(names)

	var data [][]string
	for _, name := range names {
		raw := stateDict[name]
		data = append(data, []string{name, fmt.Sprint(raw.Shape()), strconv.Itoa(raw.NumElements())})
	}

	out := cmd.OutOrStdout()
	table := newTable(out, []string{"NAME", "SHAPE", "ELEMENTS"})
	table.AppendBulk(data)
	table.Render()

	fmt.Fprintf(out, "\nblocks: %d, prediction convs: %d, spatial kernel: %d, contraction: %s\n",
		cfg.NumBlocks, cfg.NumPredConvs, cfg.K(), cfg.Contraction)
	fmt.Fprintf(out, "trainable parameters: %d\n", model.NumParameters())
	return nil
}

// ForwardHandler runs the model once on synthetic positions with
// self-loop adjacency and prints the first predicted step.
func ForwardHandler(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	peds, err := cmd.Flags().GetInt("peds")
	if err != nil {
		return err
	}
	batch, err := cmd.Flags().GetInt("batch")
	if err != nil {
		return err
	}
	random, err := cmd.Flags().GetBool("random")
	if err != nil {
		return err
	}
	inputSeed, err := cmd.Flags().GetInt64("input-seed")
	if err != nil {
		return err
	}
	if peds <= 0 || batch <= 0 {
		return fmt.Errorf("peds and batch must be positive, got peds=%d batch=%d", peds, batch)
	}

	backend := cpu.New()
	model, err := stgcnn.NewTrajectoryPredictor(cfg, backend)
	if err != nil {
		return err
	}
	model.Eval()

	shape := tensor.Shape{batch, cfg.ObsLen, peds, cfg.InputFeat}
	positions := tensor.Zeros[float32](shape, backend)
	if random {
		positions = tensor.Uniform[float32](shape, 1, rand.New(rand.NewSource(inputSeed)), backend) //nolint:gosec // G404: synthetic input
	}
	adjacency := stgcnn.IdentityAdjacency(cfg.K(), peds, backend)

	klog.V(1).Infof("forward: positions %v, adjacency %v", positions.Shape(), adjacency.Shape())
	out, _ := model.Forward(positions, adjacency)

	finite := true
	for _, v := range out.Data() {
		if math.IsNaN(float64(v)) || math.IsInf(float64(v), 0) {
			finite = false
			break
		}
	}

	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "output shape: %v\n", out.Shape())
	fmt.Fprintf(w, "finite: %v\n", finite)

	if cfg.OutputFeat < 5 {
		fmt.Fprintf(w, "output_feat %d < 5: no bivariate decoding\n", cfg.OutputFeat)
		return nil
	}
	params, err := stgcnn.BivariateParams(out, 0, 0)
	if err != nil {
		return err
	}

	fmt.Fprintln(w)
	table := newTable(w, []string{"PED", "MEAN X", "MEAN Y", "SIGMA X", "SIGMA Y", "CORR"})
	for i, p := range params {
		table.Append([]string{
			strconv.Itoa(i),
			formatFloat(p.MeanX), formatFloat(p.MeanY),
			formatFloat(p.SigmaX), formatFloat(p.SigmaY),
			formatFloat(p.Corr),
		})
	}
	table.Render()
	return nil
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', 4, 64)
}
