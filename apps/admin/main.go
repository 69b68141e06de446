package main

import (
	"log"
	"os"

	"github.com/trezcool/juku/core"
	"github.com/trezcool/juku/core/organization"
	logsvc "github.com/trezcool/juku/services/logger"
	"github.com/trezcool/juku/storage/database"
	sqlxrepos "github.com/trezcool/juku/storage/database/sqlx"
)

func main() {
	conf := core.NewConfig()
	logger := logsvc.NewRollbarLogger(log.New(os.Stdout, "ADMIN : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile), conf)
	logger.Enable(!conf.Debug)

	// set up DB
	if err := database.CreateIfNotExist(conf); err != nil {
		logger.Fatal("setting up database", err)
	}
	db, err := database.Open(conf)
	if err != nil {
		logger.Fatal("opening database", err)
	}

	// start CLI
	cli := commandLine{
		db:     db,
		orgSvc: organization.NewService(sqlxrepos.NewOrganizationRepository(db), core.NewDefaultValidator()),
		out:    os.Stdout,
	}
	err = cli.run(os.Args)
	if err != nil && err != errHelp {
		logger.Error("error: "+err.Error(), err)
	}

	_ = db.Close()
	logger.Close()
	if err != nil {
		os.Exit(1)
	}
}
