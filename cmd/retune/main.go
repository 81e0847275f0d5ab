package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/log"
	"gitlab.com/gomidi/midi/v2/drivers"
	"gitlab.com/gomidi/midi/v2/drivers/rtmididrv"

	"github.com/kjhall/adaptuner/pkg/backend"
	"github.com/kjhall/adaptuner/pkg/config"
	"github.com/kjhall/adaptuner/pkg/engine"
	"github.com/kjhall/adaptuner/pkg/interval"
	"github.com/kjhall/adaptuner/pkg/midiwire"
	"github.com/kjhall/adaptuner/pkg/process"
	"github.com/kjhall/adaptuner/pkg/tui"
)

func main() {
	configPath := flag.String("config", "", "Path to a YAML configuration file (built-in just-intonation springs config if omitted)")
	inName := flag.String("in", "", "MIDI input port name (substring match; virtual port if omitted)")
	outName := flag.String("out", "", "MIDI output port name (substring match; virtual port if omitted)")
	list := flag.Bool("list", false, "List available MIDI ports and exit")
	noUI := flag.Bool("no-ui", false, "Run without the terminal monitor, logging events to stderr")
	verbose := flag.Bool("verbose", false, "Enable debug logging")
	flag.Parse()

	if *verbose {
		log.SetLevel(log.DebugLevel)
	}

	driver, err := rtmididrv.New()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error initializing MIDI driver: %v\n", err)
		os.Exit(1)
	}
	defer driver.Close()

	if *list {
		listPorts(driver)
		return
	}

	cfg := defaultConfig()
	if *configPath != "" {
		cfg, err = config.Load(*configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
			os.Exit(1)
		}
	}

	built, err := config.Build(cfg, interval.FiveLimit, time.Now)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error building config: %v\n", err)
		os.Exit(1)
	}

	in, out, err := openPorts(driver, *inName, *outName)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening MIDI ports: %v\n", err)
		os.Exit(1)
	}

	proc := process.NewProcess(process.Config{
		Basis:              built.Basis,
		Temperaments:       built.Temperaments,
		ActiveTemperaments: built.ActiveTemperaments,
		KeyCenter:          built.KeyCenter,
		ReferenceStack:     built.ReferenceStack,
	}, built.Strategies[built.ActiveStrategy], midiwire.Decoder{}, time.Now)
	pb := backend.NewPitchbend(built.Channels, built.BendRange)

	eng := engine.New(proc, pb, out)
	eng.Start()
	eng.Inbox <- process.FromMidi{At: time.Now(), Msg: process.ToProcessStart{}}

	stop, err := in.Listen(func(msg []byte, milliseconds int32) {
		// The driver reuses its buffer between callbacks.
		raw := append([]byte(nil), msg...)
		eng.Inbox <- process.FromMidi{At: time.Now(), Msg: process.IncomingMidi{Bytes: raw}}
	}, drivers.ListenConfig{})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error listening on %s: %v\n", in.String(), err)
		os.Exit(1)
	}

	log.Info("retuning", "in", in.String(), "out", out.String(), "strategy", built.ActiveStrategy)

	if *noUI {
		runHeadless(eng)
	} else {
		runMonitor(eng, built.ActiveStrategy)
	}

	stop()
	eng.Stop()
}

func listPorts(driver *rtmididrv.Driver) {
	ins, _ := driver.Ins()
	outs, _ := driver.Outs()
	fmt.Println("MIDI inputs:")
	for _, p := range ins {
		fmt.Printf("  %s\n", p.String())
	}
	fmt.Println("MIDI outputs:")
	for _, p := range outs {
		fmt.Printf("  %s\n", p.String())
	}
}

// openPorts resolves the requested input and output, falling back to
// virtual ports so the retuner is usable with no hardware attached.
func openPorts(driver *rtmididrv.Driver, inName, outName string) (drivers.In, drivers.Out, error) {
	var in drivers.In
	var out drivers.Out
	var err error

	if inName == "" {
		in, err = driver.OpenVirtualIn("adaptuner in")
		if err != nil {
			return nil, nil, fmt.Errorf("virtual input: %w", err)
		}
	} else {
		ins, err := driver.Ins()
		if err != nil {
			return nil, nil, err
		}
		for _, p := range ins {
			if strings.Contains(strings.ToLower(p.String()), strings.ToLower(inName)) {
				in = p
				break
			}
		}
		if in == nil {
			return nil, nil, fmt.Errorf("no MIDI input matching %q", inName)
		}
		if err := in.Open(); err != nil {
			return nil, nil, fmt.Errorf("opening %s: %w", in.String(), err)
		}
	}

	if outName == "" {
		out, err = driver.OpenVirtualOut("adaptuner out")
		if err != nil {
			return nil, nil, fmt.Errorf("virtual output: %w", err)
		}
	} else {
		outs, err := driver.Outs()
		if err != nil {
			return nil, nil, err
		}
		for _, p := range outs {
			if strings.Contains(strings.ToLower(p.String()), strings.ToLower(outName)) {
				out = p
				break
			}
		}
		if out == nil {
			return nil, nil, fmt.Errorf("no MIDI output matching %q", outName)
		}
		if err := out.Open(); err != nil {
			return nil, nil, fmt.Errorf("opening %s: %w", out.String(), err)
		}
	}

	return in, out, nil
}

// runMonitor drives the bubbletea monitor until the user quits,
// mirroring engine UI events into its update loop.
func runMonitor(eng *engine.Engine, strategyName string) {
	p := tea.NewProgram(tui.NewModel(strategyName))
	go func() {
		for env := range eng.UI {
			p.Send(tui.EventMsg{Event: env.Event})
		}
	}()
	if _, err := p.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// runHeadless logs UI events to stderr until interrupted.
func runHeadless(eng *engine.Engine) {
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	for {
		select {
		case env := <-eng.UI:
			switch ev := env.Event.(type) {
			case process.DetunedNote:
				log.Warn("detuned", "note", ev.Note, "should-be", ev.ShouldBe, "actual", ev.Actual, "why", ev.Explanation)
			case process.MidiParseErr:
				log.Error("midi parse", "err", ev.Err)
			case process.Notify:
				log.Info(ev.Line)
			case process.BackendLatency:
				log.Debug("latency", "since-input", ev.SinceInput)
			}
		case <-sig:
			return
		}
	}
}

// defaultConfig is the built-in just-intonation springs setup: rods on
// unisons/octaves, single-candidate pure springs on the consonances,
// and two-candidate springs where the keyboard class is ambiguous
// (major second, tritone, major sixth, minor seventh). Quarter-comma meantone is
// defined but starts inactive.
func defaultConfig() *config.Config {
	spring := func(target []int64, num, den int64) config.SpringConfig {
		return config.SpringConfig{Target: target, StiffnessNumerator: num, StiffnessDenom: den}
	}
	return &config.Config{
		Temperaments: []config.TemperamentConfig{{
			Name:     "quarter-comma meantone",
			Tempered: [][]int64{{0, 4, 0}, {1, 0, 0}, {0, 0, 1}},
			Pure:     [][]int64{{2, 0, 1}, {1, 0, 0}, {0, 0, 1}},
		}},
		NamedIntervals: []config.NamedIntervalConfig{
			{Name: "syntonic", Target: []int64{-2, 4, -1}},
		},
		Strategies: []config.StrategyConfig{{
			Name: "springs",
			Kind: "springs",
			Springs: &config.SpringsConfig{
				MemoSprings:                 true,
				MinimumNumberOfSoundingKeys: 2,
				LowerNotesAreMoreStable:     true,
				TimeoutMillis:               50,
				Octave:                      []int64{1, 0, 0},
				ByClass: []config.ConnectorConfig{
					{Rod: []int64{0, 0, 0}},
					{Springs: []config.SpringConfig{spring([]int64{1, -1, -1}, 1, 1)}},
					{Springs: []config.SpringConfig{spring([]int64{-1, 2, 0}, 1, 1), spring([]int64{1, -2, 1}, 1, 2)}},
					{Springs: []config.SpringConfig{spring([]int64{0, 1, -1}, 1, 1)}},
					{Springs: []config.SpringConfig{spring([]int64{0, 0, 1}, 1, 1)}},
					{Springs: []config.SpringConfig{spring([]int64{1, -1, 0}, 1, 1)}},
					{Springs: []config.SpringConfig{spring([]int64{-1, 2, 1}, 1, 2), spring([]int64{2, -2, -1}, 1, 2)}},
					{Springs: []config.SpringConfig{spring([]int64{0, 1, 0}, 1, 1)}},
					{Springs: []config.SpringConfig{spring([]int64{1, 0, -1}, 1, 1)}},
					{Springs: []config.SpringConfig{spring([]int64{1, -1, 1}, 1, 1), spring([]int64{-1, 3, 0}, 1, 2)}},
					{Springs: []config.SpringConfig{spring([]int64{0, 2, -1}, 1, 1), spring([]int64{2, -2, 0}, 1, 2)}},
					{Springs: []config.SpringConfig{spring([]int64{0, 1, 1}, 1, 1)}},
				},
			},
		}},
		ActiveStrategy: "springs",
		Backend: config.BackendConfig{
			Channels:  []uint8{0, 1, 2, 3, 4, 5, 6, 7},
			BendRange: 2.0,
		},
		TuningReference: config.ReferenceConfig{
			Target:    []int64{5, 0, 0},
			Semitones: 60,
		},
	}
}
