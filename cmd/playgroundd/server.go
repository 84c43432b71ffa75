package main

import (
	"fmt"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	handlers "github.com/Lelouch-Britannia/KubePlayground/cmd/playgroundd/handlers"
	eventdb "github.com/Lelouch-Britannia/KubePlayground/pkg/domain/event/db"
	jobdb "github.com/Lelouch-Britannia/KubePlayground/pkg/domain/job/db"
	"github.com/Lelouch-Britannia/KubePlayground/pkg/domain/scope"
	"github.com/Lelouch-Britannia/KubePlayground/pkg/utils/echoutil"
)

var API_ROOT = "/api"

func api(subpath string) string {
	if !strings.HasSuffix(subpath, "/") {
		subpath += "/"
	}
	return fmt.Sprintf("%s/%s", API_ROOT, subpath)
}

func BuildServer(
	jobs jobdb.JobInterface,
	events eventdb.EventInterface,
	scopes scope.Manager,
	loglevel string,
) *echo.Echo {

	e := echo.New()
	echoutil.SetLevel(e, loglevel)

	e.HTTPErrorHandler = func(err error, ctx echo.Context) {
		e.DefaultHTTPErrorHandler(err, ctx)
		e.Logger.Error(err)
	}

	e.Pre(middleware.AddTrailingSlash())

	// logging for server-side latency.
	e.Use(echoutil.LogHandlerFunc)

	e.POST(api("jobs/deploy"), handlers.PostDeployHandler(jobs))
	e.POST(api("jobs/verify"), handlers.PostVerifyHandler(jobs))

	e.GET(api("jobs/:jobId/report"), handlers.GetReportHandler(events, "jobId"))
	e.GET(api("jobs/:jobId/events"), handlers.WatchEventsHandler(events, "jobId"))

	e.DELETE(api("scopes/:ownerKey"), handlers.DeleteScopeHandler(scopes, "ownerKey"))

	return e
}
