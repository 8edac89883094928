// Package cli contains the mcc command line tool.
package cli

import (
	"io"

	"github.com/urfave/cli/v2"
)

// Version information replaced by LD flags.
var (
	Version     = ""
	GitRevision = ""
)

const (
	flagConfig    = "config"
	flagScenario  = "scenario"
	flagDuration  = "duration"
	flagRealtime  = "realtime"
	flagCSV       = "csv"
	flagPlot      = "plot"
	flagDebug     = "debug"
	flagLogFile   = "log-file"
	flagHistogram = "histogram"
)

var configFlag = &cli.StringFlag{
	Name:    flagConfig,
	Aliases: []string{"c"},
	Usage:   "load controller and robot configuration from `FILE`; the default biped is used when omitted",
}

var app = &cli.App{
	Name:            "mcc",
	Usage:           "run the multi-contact controller on a simulated robot",
	HideHelpCommand: true,
	Flags: []cli.Flag{
		&cli.BoolFlag{
			Name:    flagDebug,
			Aliases: []string{"vvv"},
			Usage:   "enable debug logging",
		},
		&cli.StringFlag{
			Name:  flagLogFile,
			Usage: "also write logs to `FILE`, rotated every 10 MB",
		},
	},
	Commands: []*cli.Command{
		{
			Name:      "run",
			Usage:     "run a scenario and print a summary of the motion",
			UsageText: "mcc run --scenario <FILE> [other options]",
			Flags: []cli.Flag{
				configFlag,
				&cli.StringFlag{
					Name:     flagScenario,
					Aliases:  []string{"s"},
					Usage:    "scenario `FILE` with initial contacts and step commands",
					Required: true,
				},
				&cli.Float64Flag{
					Name:  flagDuration,
					Usage: "seconds to run; defaults to the scenario duration or one second after the last step",
				},
				&cli.BoolFlag{
					Name:  flagRealtime,
					Usage: "pace the control loop with the wall clock",
				},
				&cli.StringFlag{
					Name:  flagCSV,
					Usage: "write the recorded trace to `FILE`",
				},
				&cli.StringFlag{
					Name:  flagPlot,
					Usage: "write plots of the recorded trace into `DIR`",
				},
				&cli.IntFlag{
					Name:  flagHistogram,
					Usage: "print a histogram of the ZMP margin with `N` bins",
				},
			},
			Action: RunAction,
		},
		{
			Name:  "validate",
			Usage: "check a configuration and optionally a scenario without running",
			Flags: []cli.Flag{
				configFlag,
				&cli.StringFlag{
					Name:    flagScenario,
					Aliases: []string{"s"},
					Usage:   "scenario `FILE` to check against the configuration",
				},
			},
			Action: ValidateAction,
		},
		{
			Name:   "version",
			Usage:  "print version info for this program",
			Action: VersionAction,
		},
	},
}

// NewApp returns a new app with the CLI API, Writer set to out, and ErrWriter
// set to errOut.
func NewApp(out, errOut io.Writer) *cli.App {
	app.Writer = out
	app.ErrWriter = errOut
	return app
}
