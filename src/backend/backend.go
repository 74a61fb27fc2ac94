// Package backend turns translated fragments into a finished assembly file:
// canonicalization, instruction selection, register allocation and emission,
// procedure by procedure. Canonicalization and selection of independent
// procedures can fan out over worker go routines; allocation and emission
// stay sequential so the register mapping composes deterministically and
// procedures appear in translation order.
package backend

import (
	"fmt"
	"sync"

	log "github.com/sirupsen/logrus"

	"tigerc/src/asm"
	"tigerc/src/canon"
	"tigerc/src/codegen"
	"tigerc/src/frame"
	"tigerc/src/regalloc"
	"tigerc/src/semantics"
	"tigerc/src/temp"
	"tigerc/src/util"
)

// ---------------------
// ----- Functions -----
// ---------------------

// GenerateAssembler lowers every fragment and writes the output assembly
// through the writer listener. An error means no usable assembly was
// produced and the driver must discard the output file.
func GenerateAssembler(opt util.Options, temps *temp.Manager, tmap *frame.TempMap, fragments []semantics.Fragment) error {
	var procedures []*semantics.ProcFragment
	var strings []*semantics.StringFragment
	for _, fragment := range fragments {
		switch f := fragment.(type) {
		case *semantics.ProcFragment:
			procedures = append(procedures, f)
		case *semantics.StringFragment:
			strings = append(strings, f)
		}
	}
	log.Debugf("backend: %d procedure fragment(s), %d string fragment(s)", len(procedures), len(strings))

	selected, err := selectProcedures(opt, temps, tmap, procedures)
	if err != nil {
		return err
	}

	wr := util.NewWriter()
	defer wr.Close()

	writeDataHeader(&wr)
	for _, e1 := range strings {
		writeStringFragment(&wr, e1)
	}
	writeCodeHeader(&wr)

	for i1, procedure := range procedures {
		instructions := frame.Sink(tmap, selected[i1])
		result, err := regalloc.Allocate(procedure.Frame, tmap, temps, instructions)
		if err != nil {
			return fmt.Errorf("register allocation of %s failed: %w", procedure.Frame.Name, err)
		}
		tmap.UpdateRegisterMapping(result.Allocation)
		body := removeRedundantMoves(result.Instructions, tmap)
		log.Debugf("backend: %s allocated, %d instruction(s) after move removal", procedure.Frame.Name, len(body))
		writeProcedure(&wr, frame.AssemblyProcedure(procedure.Frame, body), tmap)
	}
	return nil
}

// selectProcedures canonicalizes and munches every procedure body.
// Fragments write disjoint state and temporaries are issued under a lock,
// so the work fans out over opt.Threads workers when asked to.
func selectProcedures(opt util.Options, temps *temp.Manager, tmap *frame.TempMap, procedures []*semantics.ProcFragment) ([][]asm.Instruction, error) {
	selected := make([][]asm.Instruction, len(procedures))

	if opt.Threads > 1 && len(procedures) > 1 {
		t := opt.Threads
		if t > len(procedures) {
			t = len(procedures)
		}
		n := len(procedures) / t
		res := len(procedures) % t

		perr := util.NewPerror(t)
		defer perr.Stop()
		wg := sync.WaitGroup{}
		wg.Add(t)

		start := 0
		for i1 := 0; i1 < t; i1++ {
			end := start + n
			if i1 < res {
				end++
			}

			go func(start, end int) {
				defer wg.Done()
				defer func() {
					if r := recover(); r != nil {
						perr.Append(fmt.Errorf("instruction selection worker: %v", r))
					}
				}()
				for i2 := start; i2 < end; i2++ {
					selected[i2] = codegen.SelectInstructions(temps, tmap,
						canon.Canonize(temps, procedures[i2].Body))
				}
			}(start, end)

			start = end
		}

		wg.Wait()
		if perr.Len() > 0 {
			for e1 := range perr.Errors() {
				log.Error(e1)
			}
			return nil, fmt.Errorf("%d error(s) during parallel instruction selection", perr.Len())
		}
		return selected, nil
	}

	for i1, e1 := range procedures {
		selected[i1] = codegen.SelectInstructions(temps, tmap, canon.Canonize(temps, e1.Body))
	}
	return selected, nil
}
