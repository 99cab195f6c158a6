package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"

	"github.com/invopop/jsonschema"
	"github.com/spf13/cobra"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "ema-voice [prompt]",
	Short: "Chat with a local model and hear the answer while it is written",
	Long: `ema-voice streams answers from a chat endpoint and speaks them through a
speech synthesis endpoint while they are still being generated.

Without a prompt an interactive terminal UI is started. With a prompt the
answer is printed to stdout and the command exits once it has been spoken.

Configuration is read from, lowest priority first:
  1. built-in defaults
  2. ./ema-voice.yaml or $HOME/.config/ema-voice/ema-voice.yaml (or --config)
  3. EMA_VOICE_<SECTION>_<KEY> environment variables, e.g. EMA_VOICE_CHAT_MODEL
  4. command line flags`,
	Args:          cobra.ArbitraryArgs,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runRoot,
}

var configSchemaCmd = &cobra.Command{
	Use:   "config-schema",
	Short: "Print the JSON schema of the config file",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return writeConfigSchema(cmd.OutOrStdout())
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./ema-voice.yaml or $HOME/.config/ema-voice/ema-voice.yaml)")
	registerConfigFlags(rootCmd.Flags())

	rootCmd.AddCommand(configSchemaCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func runRoot(cmd *cobra.Command, args []string) error {
	config, err := loadConfig(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(config)
	if err != nil {
		return err
	}
	defer a.Close()

	var wg sync.WaitGroup
	serveErr := make(chan error, 1)
	if config.Display.Serve != "" {
		wg.Add(1)
		go func() {
			defer wg.Done()
			serveErr <- a.serveDisplay(ctx)
		}()
	}

	if prompt := strings.TrimSpace(strings.Join(args, " ")); prompt != "" {
		err = runOnce(ctx, a, prompt, cmd.OutOrStdout())
	} else {
		err = runTUI(a)
	}

	stop()
	wg.Wait()
	select {
	case serveFailure := <-serveErr:
		if err == nil {
			err = serveFailure
		}
	default:
	}
	return err
}

// runOnce answers a single prompt, printing the answer as it streams in.
func runOnce(ctx context.Context, a *app, prompt string, out io.Writer) error {
	printer := &streamPrinter{out: out}
	a.addDisplay(printer, nil)

	turn, err := a.orchestrator.Respond(ctx, prompt)
	printer.finish()
	if err != nil {
		return err
	}
	if turn.IsCancelled() {
		return ctx.Err()
	}
	return nil
}

// streamPrinter writes message updates to out. Text that only grows is
// printed incrementally; any other change reprints the whole message.
type streamPrinter struct {
	out io.Writer

	mu      sync.Mutex
	id      string
	printed string
}

func (p *streamPrinter) UpdateMessage(id, text string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	switch {
	case id != p.id:
		if p.printed != "" {
			fmt.Fprintln(p.out)
		}
		p.id = id
		fmt.Fprint(p.out, text)
	case strings.HasPrefix(text, p.printed):
		fmt.Fprint(p.out, text[len(p.printed):])
	default:
		fmt.Fprint(p.out, "\n"+text)
	}
	p.printed = text
}

func (p *streamPrinter) finish() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.printed != "" && !strings.HasSuffix(p.printed, "\n") {
		fmt.Fprintln(p.out)
	}
}

func writeConfigSchema(w io.Writer) error {
	reflector := jsonschema.Reflector{DoNotReference: true}
	schema := reflector.Reflect(&appConfig{})
	schema.Title = "ema-voice configuration"

	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(schema); err != nil {
		return fmt.Errorf("failed to encode config schema: %w", err)
	}
	return nil
}
