// SPDX-License-Identifier: MIT
package cmd

import (
	"fmt"
	"os"
	"time"

	"sinplayer/internal/build"
	"sinplayer/internal/config"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// One-off commands stored in config.Command. The root command leaves it
// empty and runs a trial.
const (
	CommandList   = "list"
	CommandPick   = "pick"
	CommandRender = "render"
)

// flagValues holds raw flag values until the config file has been loaded,
// so only flags the user actually set override it.
type flagValues struct {
	configPath string

	logLevel string
	verbose  bool

	backend         string
	device          string
	sampleRate      float64
	framesPerBuffer int
	lowLatency      bool
	outputChannels  int

	maskerFile     string
	maskerLevel    float64
	ramp           float64
	steady         float64
	seek           float64
	maskerChannels string

	targetFile       string
	targetLevel      float64
	fringe           float64
	firstChannelOnly bool

	vibrotactile bool

	websocket string
	udp       string
	mdns      bool

	output   string
	duration time.Duration
}

// ParseArgs parses os.Args into a configuration. It returns a nil config
// when cobra handled the invocation itself (help or version).
func ParseArgs() (*config.Config, error) {
	return parseArgs(os.Args[1:])
}

func parseArgs(args []string) (*config.Config, error) {
	buildInfo := build.GetBuildFlags()

	var (
		fv  flagValues
		cfg *config.Config
	)

	// load reads the config file and layers the changed flags over it.
	load := func(cmd *cobra.Command, command string) error {
		c, err := config.LoadConfig(fv.configPath)
		if err != nil {
			return err
		}
		fv.apply(cmd.Flags(), c)
		if err := c.Validate(); err != nil {
			return fmt.Errorf("invalid configuration: %w", err)
		}
		c.Command = command
		cfg = c
		return nil
	}

	rootCmd := &cobra.Command{
		Use:           buildInfo.Name,
		Short:         "Masker and target playback for speech-in-noise trials",
		Version:       buildInfo.String(),
		SilenceErrors: true,
		SilenceUsage:  true,
		Args:          cobra.NoArgs,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd:   true,
			DisableDescriptions: true,
			DisableNoDescFlag:   true,
			HiddenDefaultCmd:    true,
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return load(cmd, "")
		},
	}

	// Display help message
	rootCmd.SetHelpCommand(&cobra.Command{Hidden: true})

	listCmd := &cobra.Command{
		Use:   CommandList,
		Short: "List available output devices",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return load(cmd, CommandList)
		},
	}

	pickCmd := &cobra.Command{
		Use:   CommandPick,
		Short: "Choose an output device interactively, then run a trial on it",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return load(cmd, CommandPick)
		},
	}

	renderCmd := &cobra.Command{
		Use:   CommandRender,
		Short: "Render a masker fade envelope to a WAV file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return load(cmd, CommandRender)
		},
	}
	renderCmd.Flags().StringVarP(&fv.output, "output", "o", "",
		"Output WAV file. Default is render-DD-MM-YYYY-HHMMSS.wav")
	renderCmd.Flags().DurationVar(&fv.duration, "duration", time.Minute,
		"Upper bound on the rendered length")

	rootCmd.AddCommand(listCmd, pickCmd, renderCmd)

	pf := rootCmd.PersistentFlags()

	// Configuration
	pf.StringVarP(&fv.configPath, "config", "f", "",
		"YAML configuration file. Defaults to ./sinplayer.yaml or ./config.yaml when present")
	pf.StringVar(&fv.logLevel, "log-level", config.DefaultLogLevel,
		"Log level (debug, info, warn, error)")
	pf.BoolVarP(&fv.verbose, "verbose", "v", false,
		"Show verbose output (same as --log-level debug)")

	// Audio Device Configuration
	pf.StringVar(&fv.backend, "backend", config.DefaultBackend,
		"Audio backend (portaudio, oto)")
	pf.StringVarP(&fv.device, "device", "d", "",
		"Output device description. Use 'list' command to see available devices.")
	pf.Float64VarP(&fv.sampleRate, "sample-rate", "s", config.DefaultSampleRate,
		"Sample rate, measured in Hertz (Hz)")
	pf.IntVarP(&fv.framesPerBuffer, "frames-per-buffer", "b", config.DefaultFramesPerBuffer,
		"The number of frames per buffer (affects latency)")
	pf.BoolVarP(&fv.lowLatency, "low-latency", "l", false,
		"Use the device's low output latency")
	pf.IntVarP(&fv.outputChannels, "channels", "c", config.DefaultOutputChannels,
		"Number of output channels to open")

	// Masker Configuration
	pf.StringVarP(&fv.maskerFile, "masker", "m", "",
		"Masker audio file")
	pf.Float64Var(&fv.maskerLevel, "masker-level", config.DefaultMaskerLevelDB,
		"Masker digital level in dB")
	pf.Float64Var(&fv.ramp, "ramp", config.DefaultRampSeconds,
		"Masker fade duration in seconds")
	pf.Float64Var(&fv.steady, "steady", 0,
		"Seconds at full level before the masker fades out on its own (0 holds)")
	pf.Float64Var(&fv.seek, "seek", 0,
		"Masker start position in seconds")
	pf.StringVar(&fv.maskerChannels, "masker-channels", config.ChannelsAll,
		"Masker source channels (all, first, second)")

	// Target Configuration
	pf.StringVarP(&fv.targetFile, "target", "t", "",
		"Target audio file; omit to run the masker alone")
	pf.Float64Var(&fv.targetLevel, "target-level", config.DefaultTargetLevelDB,
		"Target digital level in dB")
	pf.Float64Var(&fv.fringe, "fringe", config.DefaultFringeSeconds,
		"Seconds between masker fade-in and target start")
	pf.BoolVar(&fv.firstChannelOnly, "first-channel-only", false,
		"Route the target to the first output channel only")

	pf.BoolVar(&fv.vibrotactile, "vibrotactile", false,
		"Write the vibrotactile burst train to its configured channel")

	// Sync Events
	pf.StringVar(&fv.websocket, "websocket", "",
		"Serve sync events over a websocket on this address (e.g. :8927)")
	pf.StringVar(&fv.udp, "udp", "",
		"Send sync events as UDP packets to this address (e.g. 127.0.0.1:9090)")
	pf.BoolVar(&fv.mdns, "mdns", false,
		"Advertise the websocket endpoint over mDNS")

	rootCmd.SetArgs(args)
	if err := rootCmd.Execute(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// apply copies every flag the user set onto cfg.
func (fv *flagValues) apply(flags *pflag.FlagSet, cfg *config.Config) {
	set := flags.Changed

	if set("log-level") {
		cfg.LogLevel = fv.logLevel
	}
	if fv.verbose {
		cfg.LogLevel = "debug"
	}

	if set("backend") {
		cfg.Audio.Backend = fv.backend
	}
	if set("device") {
		cfg.Audio.OutputDevice = fv.device
	}
	if set("sample-rate") {
		cfg.Audio.SampleRate = fv.sampleRate
	}
	if set("frames-per-buffer") {
		cfg.Audio.FramesPerBuffer = fv.framesPerBuffer
	}
	if set("low-latency") {
		cfg.Audio.LowLatency = fv.lowLatency
	}
	if set("channels") {
		cfg.Audio.OutputChannels = fv.outputChannels
	}

	if set("masker") {
		cfg.Masker.File = fv.maskerFile
	}
	if set("masker-level") {
		cfg.Masker.LevelDB = fv.maskerLevel
	}
	if set("ramp") {
		cfg.Masker.RampSeconds = fv.ramp
	}
	if set("steady") {
		cfg.Masker.SteadyLevelSeconds = fv.steady
	}
	if set("seek") {
		cfg.Masker.SeekSeconds = fv.seek
	}
	if set("masker-channels") {
		cfg.Masker.Channels = fv.maskerChannels
	}

	if set("target") {
		cfg.Target.File = fv.targetFile
	}
	if set("target-level") {
		cfg.Target.LevelDB = fv.targetLevel
	}
	if set("fringe") {
		cfg.Target.FringeSeconds = fv.fringe
	}
	if set("first-channel-only") {
		cfg.Target.FirstChannelOnly = fv.firstChannelOnly
	}

	if set("vibrotactile") {
		cfg.Vibrotactile.Enabled = fv.vibrotactile
	}

	if set("websocket") {
		cfg.Transport.WebSocketAddress = fv.websocket
	}
	if set("udp") {
		cfg.Transport.UDPTargetAddress = fv.udp
	}
	if set("mdns") {
		cfg.Discovery.Enabled = fv.mdns
	}

	if set("output") {
		cfg.RenderOutput = fv.output
	}
	if set("duration") {
		cfg.RenderLength = fv.duration
	}

	// Defaults
	if cfg.RenderOutput == "" {
		cfg.RenderOutput = "render-" +
			time.Now().UTC().Format("02-01-2006-150405") + ".wav"
	}
}
