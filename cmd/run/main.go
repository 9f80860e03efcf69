package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"

	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/wippyai/wasm-handle/guest"
	"github.com/wippyai/wasm-handle/guest/demo"
	"github.com/wippyai/wasm-handle/handle"
)

type options struct {
	wasmFile    string
	createFunc  string
	destroyFunc string
	types       string
	params      string
	execFunc    string
	execTypes   string
	execArgs    string
	twice       bool
	list        bool
}

// report is the outcome of one handle lifecycle run.
type report struct {
	Module      string   `json:"module"`
	Exports     []string `json:"exports"`
	Events      []string `json:"events"`
	Result      []uint64 `json:"result,omitempty"`
	AfterAccess string   `json:"after_destroy,omitempty"`
	Address     uint64   `json:"address,omitempty"`
	Live        *uint32  `json:"live,omitempty"`
	Destroyed   bool     `json:"destroyed"`
}

func main() {
	var (
		o           options
		jsonOut     = flag.Bool("json", false, "Print the report as JSON")
		verbose     = flag.Bool("v", false, "Log handle and guest activity to stderr")
		interactive = flag.Bool("i", false, "Interactive mode with TUI")
	)
	flag.StringVar(&o.wasmFile, "wasm", "", "Path to a core wasm module (default: built-in demo guest)")
	flag.StringVar(&o.createFunc, "create", guest.DefaultCreateExport, "Factory export")
	flag.StringVar(&o.destroyFunc, "destroy", guest.DefaultDestroyExport, "Destructor export")
	flag.StringVar(&o.types, "types", "s32", "Factory parameter types (comma-separated WIT primitives)")
	flag.StringVar(&o.params, "params", "7", "Factory parameter values (comma-separated)")
	flag.StringVar(&o.execFunc, "exec", demo.ExportExecute, "Export to invoke with the handle address (empty to skip)")
	flag.StringVar(&o.execTypes, "exec-types", "s32", "Types of the extra -exec arguments")
	flag.StringVar(&o.execArgs, "exec-args", "35", "Extra -exec arguments after the address")
	flag.BoolVar(&o.twice, "twice", false, "Destroy the handle a second time")
	flag.BoolVar(&o.list, "list", false, "List exported functions and exit")
	flag.Parse()

	if *verbose {
		log, err := zap.NewDevelopment()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		defer log.Sync()
		handle.SetLogger(log.Named("handle"))
		guest.SetLogger(log.Named("guest"))
	}

	if *interactive {
		if err := runInteractive(o); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	rep, err := run(context.Background(), o)
	if rep != nil {
		if *jsonOut {
			out, jerr := jsoniter.ConfigCompatibleWithStandardLibrary.MarshalIndent(rep, "", "  ")
			if jerr != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", jerr)
				os.Exit(1)
			}
			fmt.Println(string(out))
		} else {
			printReport(rep)
		}
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func loadModule(ctx context.Context, wasmFile string) (*guest.Module, string, error) {
	name := "demo"
	data := demo.Binary()
	if wasmFile != "" {
		b, err := os.ReadFile(wasmFile)
		if err != nil {
			return nil, "", fmt.Errorf("read file: %w", err)
		}
		name, data = wasmFile, b
	}

	eng, err := guest.Load(ctx)
	if err != nil {
		return nil, "", fmt.Errorf("load engine: %w", err)
	}
	mod, err := eng.Compile(ctx, data)
	if err != nil {
		return nil, "", fmt.Errorf("compile: %w", err)
	}
	return mod, name, nil
}

// run creates one handle through the guest, optionally invokes an export on
// it, destroys it, and records what happened.
func run(ctx context.Context, o options) (*report, error) {
	mod, name, err := loadModule(ctx, o.wasmFile)
	if err != nil {
		return nil, err
	}
	rep := &report{Module: name, Exports: mod.Exports(), Events: []string{}}
	if o.list {
		return rep, nil
	}

	params, err := guest.ParseParams(guest.SplitList(o.types), guest.SplitList(o.params))
	if err != nil {
		return rep, err
	}

	inst, err := mod.Instantiate(ctx, &guest.InstanceConfig{
		CreateExport:  o.createFunc,
		DestroyExport: o.destroyFunc,
	})
	if err != nil {
		return rep, fmt.Errorf("instantiate: %w", err)
	}
	defer inst.Close(ctx)

	record := handle.ObserverFunc(func(e handle.Event) {
		rep.Events = append(rep.Events, e.Type.String())
	})
	h, err := handle.Create(ctx, inst, params, handle.WithLabel(o.createFunc), handle.WithObserver(record))
	if err != nil {
		return rep, err
	}
	rep.Address = uint64(h.MustAddress())
	rep.Live = liveCount(ctx, inst)

	if o.execFunc != "" {
		args, err := guest.ParseParams(guest.SplitList(o.execTypes), guest.SplitList(o.execArgs))
		if err != nil {
			return rep, errors.Join(err, h.Destroy(ctx))
		}
		rep.Result, err = inst.Invoke(ctx, h, o.execFunc, args...)
		if err != nil {
			return rep, errors.Join(err, h.Destroy(ctx))
		}
	}

	if err := h.Destroy(ctx); err != nil {
		return rep, err
	}
	if o.twice {
		if err := h.Destroy(ctx); err != nil {
			return rep, err
		}
	}
	rep.Destroyed = !h.IsValid()
	rep.Live = liveCount(ctx, inst)

	if _, err := h.Address(); err != nil {
		rep.AfterAccess = err.Error()
	}
	return rep, nil
}

// liveCount reads the demo guest's live counter when the module has one.
func liveCount(ctx context.Context, inst *guest.Instance) *uint32 {
	if _, _, ok := inst.Module().Signature(demo.ExportLive); !ok {
		return nil
	}
	res, err := inst.Call(ctx, demo.ExportLive)
	if err != nil || len(res) != 1 {
		return nil
	}
	n := uint32(res[0])
	return &n
}

func printReport(r *report) {
	fmt.Printf("Module: %s\n", r.Module)
	fmt.Printf("Exports: %s\n", strings.Join(r.Exports, ", "))
	if r.Address == 0 && len(r.Events) == 0 {
		return
	}
	fmt.Printf("\nAddress: %#x\n", r.Address)
	if r.Result != nil {
		fmt.Printf("Result: %v\n", r.Result)
	}
	fmt.Printf("Destroyed: %v\n", r.Destroyed)
	if r.Live != nil {
		fmt.Printf("Live resources: %d\n", *r.Live)
	}
	if r.AfterAccess != "" {
		fmt.Printf("Access after destroy: %s\n", r.AfterAccess)
	}
	fmt.Printf("Events: %s\n", strings.Join(r.Events, " -> "))
}
