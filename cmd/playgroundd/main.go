package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	configs "github.com/Lelouch-Britannia/KubePlayground/pkg/configs/worker"
	kpool "github.com/Lelouch-Britannia/KubePlayground/pkg/conn/db/postgres/pool"
	kschema "github.com/Lelouch-Britannia/KubePlayground/pkg/conn/db/postgres/schema"
	"github.com/Lelouch-Britannia/KubePlayground/pkg/domain/cluster"
	eventpg "github.com/Lelouch-Britannia/KubePlayground/pkg/domain/event/db/postgres"
	jobpg "github.com/Lelouch-Britannia/KubePlayground/pkg/domain/job/db/postgres"
	"github.com/Lelouch-Britannia/KubePlayground/pkg/domain/scope"
	"github.com/Lelouch-Britannia/KubePlayground/pkg/kubeutil"
)

func main() {

	pconfig := flag.String(
		"config", os.Getenv("PLAYGROUND_WORKER_CONFIG"), "path to config file",
	)
	pSchemaRepo := flag.String(
		"schema-repo", os.Getenv("PLAYGROUND_SCHEMA"), "schema repository path",
	)
	pkubeconfig := flag.String(
		"kubeconfig", "", "path to kubeconfig file (default: in-cluster config)",
	)
	loglevel := flag.String("loglevel", "warn", "log level. debug|info|warn|error|off")

	flag.Parse()

	ctx, cancel := signal.NotifyContext(
		context.Background(), os.Interrupt, os.Kill, syscall.SIGTERM,
	)
	defer cancel()

	conf, err := configs.LoadWorkerConfig(*pconfig)
	if err != nil {
		panic(err)
	}

	clientset := kubeutil.ConnectToK8s(*pkubeconfig)

	pool, err := kpool.New(ctx, conf.Cluster().Database())
	if err != nil {
		panic(err)
	}
	if repo := *pSchemaRepo; repo != "" {
		sch := kschema.New(pool, repo)
		if err := sch.Upgrade(ctx); err != nil {
			panic(err)
		}
		ctx_, ccan := sch.Context(ctx)
		defer ccan()
		ctx = ctx_
	}

	scopes := scope.NewManager(
		cluster.WrapK8sClient(clientset),
		conf.Cluster().Quota(), conf.Worker().MaxLiveScopes(), log.Default(),
	)

	server := BuildServer(jobpg.New(pool), eventpg.New(pool), scopes, *loglevel)
	for _, r := range server.Routes() {
		server.Logger.Debugf("- mount handler: %s %s", strings.ToUpper(r.Method), r.Path)
	}

	ch := make(chan error, 1)
	go func() {
		defer close(ch)
		if err := server.Start(fmt.Sprintf(":%d", conf.Port())); err != nil && err != http.ErrServerClosed {
			ch <- err
		}
	}()

	exit := 0
	select {
	case <-ctx.Done(): // wait
		if err := ctx.Err(); err != nil {
			server.Logger.Infof("context has been done: %s, cause: %s", err, context.Cause(ctx))
			exit = 1
		}
	case err := <-ch:
		if err != nil {
			server.Logger.Error("server stops with error:", err)
			exit = 1
		}
	}

	{
		server.Logger.Info("shutting down...")
		qctx, qcancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer qcancel()

		if err := server.Shutdown(qctx); err != nil {
			server.Logger.Fatalf("Shutdown with error. %+v", err)
			os.Exit(1)
		}
		os.Exit(exit)
	}
}
