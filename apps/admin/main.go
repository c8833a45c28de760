package main

import (
	"database/sql"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/go-playground/validator/v10"

	echoapi "github.com/trezcool/syllabus/apps/api/echo"
	"github.com/trezcool/syllabus/core"
	"github.com/trezcool/syllabus/core/degree"
	"github.com/trezcool/syllabus/core/task"
	logsvc "github.com/trezcool/syllabus/services/logger"
	"github.com/trezcool/syllabus/storage/database"
	dummydb "github.com/trezcool/syllabus/storage/database/dummy"
	sqlxrepos "github.com/trezcool/syllabus/storage/database/sqlx"
)

func main() {
	conf := core.NewConfig()

	logger := logsvc.NewRollbarLogger(
		log.New(os.Stdout, "ADMIN : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile),
		conf,
	)
	logger.Enable(!conf.Debug)

	validate := validator.New()
	translator := core.NewTranslator()
	core.InitValidators(validate, translator)
	task.InitValidators(validate, translator)

	cli := commandLine{
		auth:      echoapi.NewAuth(conf),
		logger:    logger,
		scheduler: conf.Scheduler,
		out:       os.Stdout,
		now:       time.Now,
	}

	// set up DB
	var (
		taskRepo   task.Repository
		degreeRepo degree.Repository
	)
	if conf.Database.InMemory() {
		db, err := dummydb.Open()
		errAndDie(logger, err)
		taskRepo = dummydb.NewTaskRepository(db)
		degreeRepo = dummydb.NewDegreeRepository(db)
	} else {
		db, err := database.Open(conf)
		errAndDie(logger, err)
		cli.db = db.DB
		taskRepo = sqlxrepos.NewTaskRepository(db)
		degreeRepo = sqlxrepos.NewDegreeRepository(db)
	}
	cli.degreeSvc = degree.NewService(degreeRepo, validate)
	cli.taskSvc = task.NewService(taskRepo, cli.degreeSvc, validate)

	// start CLI
	code := 0
	if err := cli.run(os.Args); err != nil {
		if err != errHelp {
			logger.Error(fmt.Sprintf("error: %v", err), err)
		}
		code = 1
	}
	logger.Close()
	closeDB(cli.db)
	os.Exit(code)
}

func closeDB(db *sql.DB) {
	if db != nil {
		_ = db.Close()
	}
}

func errAndDie(logger core.Logger, err error) {
	if err != nil {
		logger.Fatal(err.Error(), err)
	}
}
