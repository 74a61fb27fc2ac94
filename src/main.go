package main

import (
	"fmt"
	"os"
	"strings"
	"sync"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"tigerc/src/backend"
	"tigerc/src/frame"
	"tigerc/src/frontend"
	"tigerc/src/semantics"
	"tigerc/src/temp"
	"tigerc/src/util"
)

// run reads source code and executes the compiler stages. Behaviour is
// defined by the util.Options structure.
func run(opt util.Options) error {
	// Read source code.
	src, err := util.ReadSource(opt)
	if err != nil {
		return fmt.Errorf("could not read source code: %w", err)
	}

	// Generate the syntax tree by lexing and parsing the source code.
	program, err := frontend.Parse(src)
	if err != nil {
		return err
	}
	log.Debug("parsing finished")

	// Type check the program and translate it into IR fragments.
	temps := temp.NewManager()
	tmap := frame.NewTempMap(temps)
	fragments := semantics.NewFragmentManager()
	if err = semantics.TranslateProgram(temps, tmap, fragments, program); err != nil {
		return err
	}
	log.Debugf("semantic analysis finished, %d fragment(s)", len(fragments.Fragments()))

	// Generate output assembler.
	if err = backend.GenerateAssembler(opt, temps, tmap, fragments.Fragments()); err != nil {
		return fmt.Errorf("code generation error: %w", err)
	}
	return nil
}

// compile wires the output writer listener around the compiler run. When
// any stage fails the output file is removed; failed compilations must not
// leave partial assembly behind.
func compile(opt util.Options) error {
	wg := sync.WaitGroup{}
	var f *os.File
	if len(opt.Out) > 0 {
		var err error
		if f, err = os.OpenFile(opt.Out, os.O_TRUNC|os.O_CREATE|os.O_WRONLY, 0644); err != nil {
			return err
		}
		util.ListenWrite(opt, f, &wg)
	} else {
		// Write results to stdout.
		util.ListenWrite(opt, nil, &wg)
	}

	if err := run(opt); err != nil {
		if f != nil {
			_ = f.Close()
			_ = os.Remove(opt.Out)
		}
		return err
	}

	// Wait for code generation output to drain before releasing the file.
	wg.Wait()
	util.Close()
	if f != nil {
		return f.Close()
	}
	return nil
}

func main() {
	opt := util.Options{Threads: 1}

	root := &cobra.Command{
		Use:           "tigerc [flags] <source.tig>",
		Short:         "Tiger compiler targeting x86-64 System V assembly",
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if opt.Threads < 1 || opt.Threads > util.MaxThreads {
				return fmt.Errorf("thread count must be in range [1, %d]", util.MaxThreads)
			}
			if opt.Verbose {
				log.SetLevel(log.DebugLevel)
			} else {
				log.SetLevel(log.WarnLevel)
			}
			if len(args) > 0 {
				opt.Src = args[0]
				if len(opt.Out) == 0 {
					opt.Out = strings.TrimSuffix(opt.Src, ".tig") + ".s"
				}
			}
			return compile(opt)
		},
	}
	root.Flags().StringVarP(&opt.Out, "out", "o", "", "path of the output assembly file (default: source with .s extension)")
	root.Flags().IntVarP(&opt.Threads, "threads", "t", 1, "number of backend worker go routines")
	root.Flags().BoolVarP(&opt.Verbose, "verbose", "v", false, "log compiler stage progress")

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
