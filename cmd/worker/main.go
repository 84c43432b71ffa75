package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	configs "github.com/Lelouch-Britannia/KubePlayground/pkg/configs/worker"
	kpool "github.com/Lelouch-Britannia/KubePlayground/pkg/conn/db/postgres/pool"
	kschema "github.com/Lelouch-Britannia/KubePlayground/pkg/conn/db/postgres/schema"
	"github.com/Lelouch-Britannia/KubePlayground/pkg/domain"
	"github.com/Lelouch-Britannia/KubePlayground/pkg/domain/cluster"
	kengine "github.com/Lelouch-Britannia/KubePlayground/pkg/domain/engine"
	eventpg "github.com/Lelouch-Britannia/KubePlayground/pkg/domain/event/db/postgres"
	jobpg "github.com/Lelouch-Britannia/KubePlayground/pkg/domain/job/db/postgres"
	"github.com/Lelouch-Britannia/KubePlayground/pkg/domain/scope"
	"github.com/Lelouch-Britannia/KubePlayground/pkg/domain/verify"
	"github.com/Lelouch-Britannia/KubePlayground/pkg/kubeutil"
	"github.com/Lelouch-Britannia/KubePlayground/pkg/loop/recurring"
	"github.com/Lelouch-Britannia/KubePlayground/pkg/utils/args"
	"github.com/Lelouch-Britannia/KubePlayground/pkg/utils/filewatch"
	"github.com/Lelouch-Britannia/KubePlayground/pkg/utils/try"
)

func main() {
	logger := log.Default()
	ctx, cancel := signal.NotifyContext(
		context.Background(), os.Interrupt, os.Kill, syscall.SIGTERM,
	)
	// call cancel() when this function exits
	defer cancel()

	// define command line flags
	//-- path to config file
	pconfig := flag.String(
		"config", os.Getenv("PLAYGROUND_WORKER_CONFIG"), "path to config file",
	)
	pSchemaRepo := flag.String(
		"schema-repo", os.Getenv("PLAYGROUND_SCHEMA"), "schema repository path",
	)
	pkubeconfig := flag.String(
		"kubeconfig", "", "path to kubeconfig file (default: in-cluster config)",
	)
	//-- which loop type to run
	loopType := args.Parser(domain.AsLoopType)
	flag.Var(loopType, "type", "one of loop type (engine|reaper)")
	//-- loop policy
	policy := args.Parser(recurring.ParsePolicy)
	flag.Var(
		policy, "policy",
		`loop policy (syntax: forever[:COOLDOWN]|backlog).`+
			` "forever[:COOLDOWN]" = run forever until error. When backlog is over, `+
			`wait COOLDOWN (optional duration. default: 0) as inteval.`+
			` "backlog" = run until error or backlog is over.`,
	)
	// parse command line flags
	flag.Parse()

	if !loopType.IsSet() {
		logger.Fatal("flag -type is required")
	}

	{
		// watch config
		wctx, cancel, err := filewatch.UntilModifyContext(ctx, *pconfig)
		if err != nil {
			logger.Fatal(err)
		}
		defer cancel()
		ctx = wctx
	}

	conf := try.To(configs.LoadWorkerConfig(*pconfig)).OrFatal(logger)
	kclientset := kubeutil.ConnectToK8s(*pkubeconfig)
	kclient := cluster.WrapK8sClient(kclientset)

	pool := try.To(kpool.New(ctx, conf.Cluster().Database())).OrFatal(logger)

	if repo := *pSchemaRepo; repo != "" {
		sch := kschema.New(pool, repo)
		if err := sch.Upgrade(ctx); err != nil {
			logger.Fatal(err)
		}
		// stop when the schema repository gets ahead of the database
		ctx_, ccan := sch.Context(ctx)
		defer ccan()
		ctx = ctx_
	}

	scopes := scope.NewManager(
		kclient, conf.Cluster().Quota(), conf.Worker().MaxLiveScopes(), logger,
	)
	events := eventpg.New(pool)
	engine := kengine.New(
		jobpg.New(pool), events, scopes, kclient, verify.New(),
		conf.Worker().Lease(), conf.Worker().StepTimeout(), logger,
	)

	pol := defaultPolicy(loopType.Value(), conf)
	if policy.IsSet() {
		pol = policy.Value()
	}

	logger.Printf(
		`start loop "%s" /w policy "%s"`,
		loopType.Value().String(), pol.String(),
	)

	manifest := LoopManifest{
		Type:   loopType.Value(),
		Policy: recurring.UntilError(pol),
	}

	var err error
	switch manifest.Type {
	case domain.EngineLoop:
		err = StartEngineLoop(
			ctx, logger, engine, conf.Worker().Concurrency(), manifest,
		)
	case domain.ReaperLoop:
		err = StartReaperLoop(
			ctx, logger, scopes, conf.Scopes().IdleThreshold(),
			events, conf.Events().Retention(), manifest,
		)
	default:
		logger.Fatalf(`unsupported loop type: "%s"`, manifest.Type)
	}

	if err == nil {
		return
	} else if errors.Is(err, context.Canceled) {
		logger.Fatal(err, "(loop context is cancelled by:", context.Cause(ctx), ")")
	}

	if ctx.Err() != nil {
		logger.Fatal(err)
	}
}

// policy to fall back on when -policy is not given.
func defaultPolicy(t domain.LoopType, conf *configs.WorkerConfig) recurring.Policy {
	switch t {
	case domain.ReaperLoop:
		return recurring.Forever(conf.Scopes().ReapInterval())
	default:
		return recurring.Forever(1 * time.Second)
	}
}
