package commands

import (
	"context"
	"fmt"
	"net/http"
	_ "net/http/pprof"
	"os"
	"time"

	"github.com/asticode/go-astiav"
	"github.com/davecgh/go-spew/spew"
	"github.com/facebookincubator/go-belt/tool/logger"
	"github.com/spf13/cobra"
	"github.com/xaionaro-go/observability"

	"github.com/cliptrim/cliptrim/pkg/astiavlogger"
	"github.com/cliptrim/cliptrim/pkg/clips"
	"github.com/cliptrim/cliptrim/pkg/decoder"
	"github.com/cliptrim/cliptrim/pkg/framepool"
	"github.com/cliptrim/cliptrim/pkg/player"
)

var (
	// Access these variables only from a main package:

	Root = &cobra.Command{
		Use: os.Args[0],
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			ctx := cmd.Context()
			l := logger.FromCtx(ctx).WithLevel(LoggerLevel)
			ctx = logger.CtxWithLogger(ctx, l)
			cmd.SetContext(ctx)
			logger.Debugf(ctx, "log-level: %v", LoggerLevel)

			astiav.SetLogLevel(astiavlogger.LogLevelToAstiav(LoggerLevel))
			astiav.SetLogCallback(astiavlogger.Callback(l))

			netPprofAddr, err := cmd.Flags().GetString("go-net-pprof-addr")
			if err != nil {
				l.Error("unable to get the value of the flag 'go-net-pprof-addr': %v", err)
			}
			if netPprofAddr != "" {
				observability.Go(ctx, func(ctx context.Context) {
					l.Infof("starting to listen for net/pprof requests at '%s'", netPprofAddr)
					l.Error(http.ListenAndServe(netPprofAddr, nil))
				})
			}
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			ctx := cmd.Context()
			logger.Debug(ctx, "end")
		},
	}

	Play = &cobra.Command{
		Use:  "play <file>",
		Args: cobra.ExactArgs(1),
		Run:  play,
	}

	Probe = &cobra.Command{
		Use:  "probe <file>",
		Args: cobra.ExactArgs(1),
		Run:  probe,
	}

	LoggerLevel = logger.LevelWarning
)

func init() {
	Root.AddCommand(Play)
	Root.AddCommand(Probe)

	Root.PersistentFlags().Var(&LoggerLevel, "log-level", "")
	Root.PersistentFlags().String("go-net-pprof-addr", "", "address to listen to for net/pprof requests")

	Play.Flags().String("keep", "", "comma-separated kept ranges, e.g. '1s-2.5s,10s-1m' (empty: keep everything)")
	Play.Flags().String("config", "", "the path to the player config file (YAML)")
	Play.Flags().String("audio-backend", "", "override the audio backend: auto|oto|pulse|dummy")
	Play.Flags().Bool("mute", false, "discard decoded audio instead of playing it")
}

func assertNoError(ctx context.Context, err error) {
	if err != nil {
		logger.Panic(ctx, err)
	}
}

func loadConfig(cmd *cobra.Command) (player.Config, error) {
	cfgPath, err := cmd.Flags().GetString("config")
	if err != nil {
		return player.Config{}, err
	}
	cfg := player.DefaultConfig()
	if cfgPath != "" {
		b, err := os.ReadFile(cfgPath)
		if err != nil {
			return player.Config{}, fmt.Errorf("unable to read the config file '%s': %w", cfgPath, err)
		}
		cfg, err = player.ParseConfig(b)
		if err != nil {
			return player.Config{}, fmt.Errorf("unable to parse the config file '%s': %w", cfgPath, err)
		}
	}

	if backend, err := cmd.Flags().GetString("audio-backend"); err != nil {
		return player.Config{}, err
	} else if backend != "" {
		cfg.AudioBackend = player.AudioBackend(backend)
	}

	if mute, err := cmd.Flags().GetBool("mute"); err != nil {
		return player.Config{}, err
	} else if mute {
		cfg.Mute = true
	}

	return cfg, nil
}

func play(cmd *cobra.Command, args []string) {
	ctx := cmd.Context()
	mediaPath := args[0]

	cfg, err := loadConfig(cmd)
	assertNoError(ctx, err)

	keepStr, err := cmd.Flags().GetString("keep")
	assertNoError(ctx, err)
	keep, err := clips.Parse(keepStr)
	assertNoError(ctx, err)

	decCfg, err := cfg.DecoderConfig()
	assertNoError(ctx, err)

	pool := framepool.New()
	dec, err := decoder.OpenFile(ctx, mediaPath, pool, decCfg)
	assertNoError(ctx, err)
	defer dec.Close()

	p, err := player.New(ctx, cfg, dec, pool, keep)
	assertNoError(ctx, err)
	defer p.Close(ctx)
	p.Start(ctx)

	fmt.Printf("playing '%s' (duration: %v)\n", mediaPath, dec.Duration())

	// Headless presentation: consume video frames at a fixed rate and
	// report the position once a second. A GUI would poll the mailbox
	// from its render loop instead.
	consumeTicker := time.NewTicker(10 * time.Millisecond)
	defer consumeTicker.Stop()
	reportTicker := time.NewTicker(time.Second)
	defer reportTicker.Stop()

	endCh := p.EndChan(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-endCh:
			fmt.Printf("finished at %v\n", p.Position(ctx))
			return
		case <-consumeTicker.C:
			if f := p.Mailbox.Consume(ctx); f != nil {
				f.Release(ctx)
			}
		case <-reportTicker.C:
			fmt.Printf("position: %v\n", p.Position(ctx))
		}
	}
}

func probe(cmd *cobra.Command, args []string) {
	ctx := cmd.Context()
	mediaPath := args[0]

	pool := framepool.New()
	dec, err := decoder.OpenFile(ctx, mediaPath, pool, decoder.DecoderConfig{})
	assertNoError(ctx, err)
	defer dec.Close()

	fmt.Printf("duration: %v\n", dec.Duration())
	spew.Dump(dec.Streams())
}
