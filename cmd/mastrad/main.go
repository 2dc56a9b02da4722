// Command mastrad loads a MastraPod manifest and runs it: every resource
// the pod declares is reconciled, then the named run target (an agent,
// workflow, or network) is invoked once and its result printed. This is a
// minimal bootstrap, not the full CLI surface.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"goa.design/clue/log"

	"github.com/mastra-run/mastra-go/crd"
	"github.com/mastra-run/mastra-go/dsl"
	"github.com/mastra-run/mastra-go/events"
	"github.com/mastra-run/mastra-go/manager"
	"github.com/mastra-run/mastra-go/resource"
	"github.com/mastra-run/mastra-go/schema"
	"github.com/mastra-run/mastra-go/store/memstore"
	"github.com/mastra-run/mastra-go/telemetry"
)

func main() {
	var (
		podF   = flag.String("pod", "", "path to a MastraPod manifest")
		kindF  = flag.String("kind", "workflow", "run target kind: agent, workflow, or network")
		nameF  = flag.String("name", "", "name of the resource to run")
		inputF = flag.String("input", "", "input text passed to the run target")
		dbgF   = flag.Bool("debug", false, "enable debug logging")
	)
	flag.Parse()

	format := log.FormatJSON
	if log.IsTerminal() {
		format = log.FormatTerminal
	}
	ctx := log.Context(context.Background(), log.WithFormat(format))
	if *dbgF {
		ctx = log.Context(ctx, log.WithDebug())
	}

	if *podF == "" || *nameF == "" {
		fmt.Fprintln(os.Stderr, "usage: mastrad -pod <path> -kind <agent|workflow|network> -name <resource> [-input <text>]")
		os.Exit(2)
	}

	if err := run(ctx, *podF, *kindF, *nameF, *inputF); err != nil {
		log.Error(ctx, err, log.KV{K: "msg", V: "mastrad: run failed"})
		os.Exit(1)
	}
}

func run(ctx context.Context, podPath, kind, name, input string) error {
	validator := schema.New()
	bus := events.New(nil)
	crds := crd.New(validator, bus)
	loader := dsl.New(validator, crds, envMap())

	pod, err := loader.ParseMastraPod(podPath)
	if err != nil {
		return fmt.Errorf("mastrad: load pod: %w", err)
	}

	mgr := manager.New(manager.Config{
		Store:           memstore.New(),
		Bus:             bus,
		Logger:          telemetry.NewClueLogger(),
		SchemaValidator: validator,
	})
	defer mgr.Shutdown()

	for _, r := range pod.Resources {
		if err := mgr.AddResource(ctx, r); err != nil {
			return fmt.Errorf("mastrad: reconcile %s: %w", r.Key(), err)
		}
	}

	namespace := "default"
	switch resource.Kind(titleCase(kind)) {
	case resource.KindAgent:
		reply, err := mgr.RunAgent(ctx, name, input)
		if err != nil {
			return err
		}
		fmt.Println(reply)
	case resource.KindWorkflow:
		result, err := mgr.RunWorkflow(ctx, namespace, name, map[string]any{"input": input})
		if err != nil {
			return err
		}
		fmt.Printf("status=%s output=%v\n", result.Status, result.Output)
	case resource.KindNetwork:
		result, err := mgr.RunNetwork(ctx, namespace, name, input)
		if err != nil {
			return err
		}
		fmt.Println(result.Answer)
	default:
		return fmt.Errorf("mastrad: unknown run target kind %q", kind)
	}
	return nil
}

func titleCase(s string) string {
	if s == "" {
		return s
	}
	b := []byte(s)
	if b[0] >= 'a' && b[0] <= 'z' {
		b[0] -= 'a' - 'A'
	}
	return string(b)
}

func envMap() map[string]string {
	out := make(map[string]string)
	for _, kv := range os.Environ() {
		for i := 0; i < len(kv); i++ {
			if kv[i] == '=' {
				out[kv[:i]] = kv[i+1:]
				break
			}
		}
	}
	return out
}
