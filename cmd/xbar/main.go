// The xbar command runs crossbar switch-scheduling experiments.  The
// run subcommand drives the canonical traffic patterns through the
// matching policies and reports what the receivers saw; the maximal
// subcommand sweeps switch sizes to measure how many rounds
// parallel-iterative matching needs before the matching is maximal.
package main

import (
	"fmt"
	"os"
	"path"
	"strings"

	"github.com/iti/rngstream"
	"github.com/spf13/cobra"
	"gonum.org/v1/gonum/stat"

	"github.com/iti/xbar"
)

var rootCmd = &cobra.Command{
	Use:   "xbar",
	Short: "simulate input-queued crossbar switch scheduling",
}

var (
	runFrames     int
	runSchedulers []string
	runPatterns   []string
	runCfgFile    string
	runReportFile string
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "run traffic patterns through the matching policies",
	RunE:  runExperiments,
}

var (
	maximalTrials int
	maximalSizes  []int
	maximalOutput string
)

var maximalCmd = &cobra.Command{
	Use:   "maximal",
	Short: "measure PIM rounds-to-maximal across switch sizes",
	RunE:  runMaximal,
}

func init() {
	runCmd.Flags().IntVar(&runFrames, "frames", 250, "frames to simulate per experiment")
	runCmd.Flags().StringSliceVar(&runSchedulers, "scheduler", []string{"fifo", "parallel", "statistical"},
		"scheduling policies to run")
	runCmd.Flags().StringSliceVar(&runPatterns, "pattern", []string{"privileged"},
		"traffic patterns to run (uniform, privileged)")
	runCmd.Flags().StringVar(&runCfgFile, "cfg", "", "experiment configuration file (yaml or json), overrides the other flags")
	runCmd.Flags().StringVar(&runReportFile, "report", "", "file to write run reports to (yaml or json)")
	rootCmd.AddCommand(runCmd)

	maximalCmd.Flags().IntVar(&maximalTrials, "trials", 1000, "trials per switch size")
	maximalCmd.Flags().IntSliceVar(&maximalSizes, "sizes", []int{4, 8, 16, 32, 64, 128, 256},
		"switch sizes to sweep")
	maximalCmd.Flags().StringVar(&maximalOutput, "output", "maximal-rounds.yaml", "file the sweep is written to")
	rootCmd.AddCommand(maximalCmd)
}

// runExperiments builds every requested scheduler/pattern pairing,
// runs it, and reports
func runExperiments(cmd *cobra.Command, args []string) error {
	runName := ""
	if len(runCfgFile) > 0 {
		ext := path.Ext(runCfgFile)
		useYAML := (ext == ".yaml") || (ext == ".yml")
		xcfg, err := xbar.ReadExperimentCfg(runCfgFile, useYAML, nil)
		if err != nil {
			return err
		}
		runSchedulers = []string{xcfg.Scheduler}
		runPatterns = []string{xcfg.Pattern}
		if xcfg.Frames > 0 {
			runFrames = xcfg.Frames
		}
		runReportFile = xcfg.Report
		runName = xcfg.Name
	}

	for _, policy := range runSchedulers {
		for _, pattern := range runPatterns {
			sched, err := xbar.CreateSchedulerByName(policy)
			if err != nil {
				return err
			}

			name := fmt.Sprintf("%s network with %s scheduler", pattern, policy)
			if len(runName) > 0 {
				name = runName
			}
			net, err := xbar.BuildNetwork(pattern, name, sched)
			if err != nil {
				return err
			}

			net.Run(runFrames)

			if len(runReportFile) > 0 {
				filename := reportFileName(runReportFile, policy, pattern)
				err = net.BuildReport().WriteToFile(filename)
				if err != nil {
					return err
				}
				fmt.Printf("report written to %s\n", filename)
			}
		}
	}
	return nil
}

// reportFileName tags the requested report file with the policy and
// pattern so a multi-experiment run does not overwrite itself
func reportFileName(base, policy, pattern string) string {
	ext := path.Ext(base)
	stem := strings.TrimSuffix(base, ext)
	return fmt.Sprintf("%s-%s-%s%s", stem, pattern, policy, ext)
}

// runMaximal sweeps the requested switch sizes, each trial running
// PIM without a round limit over a fully connected set of queues
func runMaximal(cmd *cobra.Command, args []string) error {
	rng := rngstream.New("maximal-iterations")
	sched := xbar.CreateFIFOScheduler()

	rpt := xbar.MaximalReport{Trials: maximalTrials}
	for _, n := range maximalSizes {
		nodes := make([]xbar.Node, n)
		for idx := range nodes {
			nodes[idx] = xbar.CreateSwitch(fmt.Sprintf("sweep%d-port-%d", n, idx), sched)
		}

		// every (input, output) pair with distinct endpoints pends
		voqs := make([]xbar.Edge, 0, n*(n-1))
		for _, in := range nodes {
			for _, out := range nodes {
				if in == out {
					continue
				}
				voqs = append(voqs, xbar.Edge{In: in, Out: out})
			}
		}

		sample := xbar.MaximalSample{Ports: n, Rounds: make([]int, 0, maximalTrials)}
		roundsData := make([]float64, 0, maximalTrials)
		for trial := 0; trial < maximalTrials; trial++ {
			res := xbar.PIMProgram(voqs, 0, rng)
			sample.Rounds = append(sample.Rounds, res.Rounds)
			roundsData = append(roundsData, float64(res.Rounds))
		}
		sample.MeanRounds = stat.Mean(roundsData, nil)
		rpt.Samples = append(rpt.Samples, sample)

		fmt.Printf("mean rounds to a maximal matching (%d by %d): %.2f\n", n, n, sample.MeanRounds)
	}

	err := rpt.WriteToFile(maximalOutput)
	if err != nil {
		return err
	}
	fmt.Printf("sweep written to %s\n", maximalOutput)
	return nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
