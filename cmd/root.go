package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/go-acb/acb/app"
	"github.com/go-acb/acb/date"
	"github.com/go-acb/acb/fx"
	"github.com/go-acb/acb/log"
	ptf "github.com/go-acb/acb/portfolio"
)

const (
	CsvDateFormatDefault string = "2006-01-02"
)

var options = app.NewOptions()
var InitialSymStatusOpt []string
var summarizeBefore string

func cmdName() string {
	binName := os.Args[0]
	return filepath.Base(binName)
}

func runRootCmd(cmd *cobra.Command, args []string) {
	allInitStatus, err := app.ParseInitialStatus(InitialSymStatusOpt)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error parsing --symbol-base: %v\n", err)
		os.Exit(1)
	}

	if summarizeBefore != "" {
		latestDate, err := date.Parse(ptf.CsvDateFormat, summarizeBefore)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error parsing --summarize-before: %v\n", err)
			os.Exit(1)
		}
		options.SummaryModeLatestDate = latestDate
	}

	readers := make([]app.DescribedReader, 0, len(args))
	for _, csvName := range args {
		fp, err := os.Open(csvName)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error opening %s: %v\n", csvName, err)
			os.Exit(1)
		}
		defer fp.Close()
		readers = append(readers, app.DescribedReader{Desc: csvName, Reader: fp})
	}

	ratesCache := &fx.CsvRatesCache{ErrPrinter: &log.StderrErrorPrinter{}}
	errPrinter := &log.StderrErrorPrinter{}
	legacyOptions := app.NewLegacyOptions()

	ok := app.RunAcbAppToConsole(readers, allInitStatus, options, legacyOptions, ratesCache, errPrinter)
	if !ok {
		os.Exit(1)
	}
}

// RootCmd represents the base command when called without any subcommands
var RootCmd = &cobra.Command{
	Use:   cmdName() + " [CSV_FILE ...]",
	Short: "Adjusted cost basis (ACB) calculation tool",
	Long: fmt.Sprintf(
		`A cli tool which can be used to perform Adjusted cost basis (ACB)
calculations on RSU and stock transactions.

Stocks and transactions can be in other currencies, and conversion rates for
certain currencies* can be automatically downloaded or provided manually.

* Supported conversion rate pairs are:
 - CAD/USD

Each CSV provided should contain a header with these column names:
%s
Non-essential columns like exchange rates and currency columns are optional.

Exchange rates are always provided to be multiplied with the given amount to produce
the equivalent value in the default (local) currency.
 `, strings.Join(ptf.ColNames, ", ")),
	Run:     runRootCmd,
	Args:    cobra.MinimumNArgs(1),
	Version: "0.2.0",
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := RootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(onInit)

	// Persistent flags, which are global to the app cli
	RootCmd.PersistentFlags().BoolVarP(&log.VerboseEnabled, "verbose", "v", false,
		"Print verbose output")
	RootCmd.PersistentFlags().BoolVarP(&options.ForceDownload, "force-download", "f", false,
		"Download exchange rates, even if they are cached")
	RootCmd.PersistentFlags().StringVar(&ptf.CsvDateFormat, "date-fmt", CsvDateFormatDefault,
		"Format of how dates appear in the csv file. Must represent Jan 2, 2006")
	RootCmd.Flags().StringSliceVarP(&InitialSymStatusOpt, "symbol-base", "b", []string{},
		"Base share count and ACBs for symbols, assumed at the beginning of time. "+
			"Formatted as SYM:nShares:totalAcb. Eg. GOOG:20:1000.00 . May be provided multiple times.")
	RootCmd.PersistentFlags().BoolVar(&options.RenderFullDollarValues, "print-full-values", false,
		"Print the full decimal precision of all dollar values, rather than rounding to the cent.")
	RootCmd.PersistentFlags().StringVar(&summarizeBefore, "summarize-before", "",
		"Collapse transactions settling on or before DATE into one opening-balance transaction per affiliate "+
			"of each security (keeping any transactions that cannot be summarized), and print only the resulting transactions.")
	RootCmd.PersistentFlags().BoolVar(&options.SplitAnnualSummaryGains, "summarize-annual-gains", false,
		"When used with --summarize-before, also emit one aggregate gain/loss transaction per calendar year. "+
			"Without it, no gain/loss transactions are emitted.")
	RootCmd.PersistentFlags().BoolVar(&options.RenderTotalCosts, "total-costs", false,
		"Also render a report of the maximum total cost (ACB) held across all securities, "+
			"both for all time and for each calendar year.")
	RootCmd.PersistentFlags().StringVar(&options.CSVOutputDir, "csv-output-dir", "",
		"Write output as CSV files into this directory instead of printing a text table. "+
			"If the path ends in \".zip\", output is instead written into a single zipped archive.")
}

// onInit is registered to run before command functions; it performs no
// actions.
func onInit() {
}
