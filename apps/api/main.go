package main

import (
	"context"
	"expvar"
	"fmt"
	"log"
	"net/http"
	_ "net/http/pprof"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"go.uber.org/dig"

	dig_container "github.com/trezcool/learnsmart/apps/api/di/dig"
	echoapi "github.com/trezcool/learnsmart/apps/api/echo"
	"github.com/trezcool/learnsmart/core"
	"github.com/trezcool/learnsmart/core/notification"
	"github.com/trezcool/learnsmart/core/user"
	realtimesvc "github.com/trezcool/learnsmart/services/realtime"
)

type appParams struct {
	dig.In
	Conf       *core.Config
	Logger     core.Logger
	DBLogger   core.Logger `name:"dbLogger"`
	Worker     core.Logger `name:"workerLogger"`
	DBCloser   dig_container.DBCloser
	Validate   *validator.Validate
	Translator ut.Translator
	Queue      core.JobQueue
	NotifSvc   *notification.Service
	Bridge     *realtimesvc.RedisBridge
	Server     *echoapi.Server
}

func main() {
	c := dig_container.New(core.NewConfig)
	must(c.Invoke(run))
}

func run(p appParams) {
	conf, apiLogger := p.Conf, p.Logger

	// =========================================================================
	// Initialize App

	apiLogger.Info(fmt.Sprintf("Application initializing : version %q", conf.Build))

	core.InitValidators(p.Validate, p.Translator)
	user.InitValidators(p.Validate, p.Translator)

	core.ParseEmailTemplates(apiLogger)

	user.LoadCommonPasswords(apiLogger)

	defer func() {
		if err := p.DBCloser(); err != nil {
			p.DBLogger.Fatal("Failed to close", err)
		}
	}()
	defer apiLogger.Info("Application stopped")

	// =========================================================================
	// Start Debug Service
	//
	// /debug/pprof - Added to the default mux by importing the net/http/pprof package.
	// /debug/vars - Added to the default mux by importing the expvar package.

	// Expose important info under /debug/vars.
	expvar.NewString("build").Set(conf.Build)
	expvar.NewString("env").Set(conf.Env)

	go func() {
		if err := http.ListenAndServe(conf.Server.DebugHost, http.DefaultServeMux); err != nil {
			apiLogger.Error(fmt.Sprintf("debug server closed: %v", err), err)
		}
	}()

	// =========================================================================
	// Start Background Workers

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		handler := core.JobMux{notification.JobFanout: p.NotifSvc.HandleFanout}.Handle
		if err := p.Queue.Consume(ctx, handler); err != nil {
			p.Worker.Error(fmt.Sprintf("queue consumer stopped: %v", err), err)
		}
	}()

	if p.Bridge != nil {
		go func() {
			if err := p.Bridge.Run(ctx, nil); err != nil {
				p.Worker.Error(fmt.Sprintf("realtime bridge stopped: %v", err), err)
			}
		}()
	}

	// =========================================================================
	// Start API Service

	server := p.Server
	go func() {
		apiLogger.Info(fmt.Sprintf("API listening on %s", conf.Server.Host))
		server.Start()
	}()

	// =========================================================================
	// Shutdown

	select {
	case err := <-server.Errors():
		apiLogger.Fatal(fmt.Sprintf("server error: %v", err), err)

	case sig := <-server.ShutdownSignal():
		apiLogger.Info(fmt.Sprintf("%v: Start shutdown...", sig))

		// give outstanding requests a deadline for completion
		sctx, scancel := context.WithTimeout(context.Background(), conf.Server.ShutdownTimeout)
		defer scancel()

		// asking listener to shut down and shed load
		if err := server.Shutdown(sctx); err != nil {
			apiLogger.Error(fmt.Sprintf("could not stop server gracefully: %v", err), err)

			if err = server.Close(); err != nil {
				apiLogger.Fatal(fmt.Sprintf("could not force stop server: %v", err), err)
			}
		}
	}

	// stop the workers once no request can enqueue anymore
	cancel()
	if err := p.Queue.Close(); err != nil {
		p.Worker.Error(fmt.Sprintf("closing queue: %v", err), err)
	}
}

func must(err error) {
	if err != nil {
		log.Fatal(err)
	}
}
