package main

import (
	"fmt"
	"log"
	"os"

	"github.com/semed/merenda/core"
	"github.com/semed/merenda/core/auth"
	"github.com/semed/merenda/core/flow"
	"github.com/semed/merenda/core/responsible"
	apisvc "github.com/semed/merenda/services/api"
	logsvc "github.com/semed/merenda/services/logger"
	localstore "github.com/semed/merenda/storage/local"
)

var stdinFd = int(os.Stdin.Fd())

func main() {
	conf := core.NewConfig()
	stdLogger := log.New(os.Stderr, "MERENDA : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile)
	logger := logsvc.NewRollbarLogger(stdLogger, conf)
	defer logger.Close()

	// set up local state
	kv, err := localstore.Open(conf.Storage.Path)
	if err != nil {
		logger.Fatal("opening local storage", err)
	}
	defer kv.Close()

	client := apisvc.NewClientFromConfig(conf, auth.NewStore(kv, logger), logger)
	client.Session().OnSessionExpired(func() {
		fmt.Fprintln(os.Stderr, "Your session has expired. Run `login` again.")
	})

	validator := core.NewValidator()
	cli := commandLine{
		client: client,
		book:   responsible.Load(kv, validator, logger),
		logger: logger,
		flow:   &flow.Options{Validator: validator, Logger: logger},
		out:    os.Stdout,
	}
	if err := cli.run(os.Args); err != nil {
		if err != errHelp {
			stdLogger.Printf("\nerror: %s\n", err)
		}
		logger.Close()
		kv.Close()
		os.Exit(1)
	}
}
