package main

import (
	"database/sql"
	"log"
	"os"

	"github.com/trezcool/learnsmart/core"
	"github.com/trezcool/learnsmart/core/admin"
	"github.com/trezcool/learnsmart/core/user"
	logsvc "github.com/trezcool/learnsmart/services/logger"
	"github.com/trezcool/learnsmart/storage/database"
	inmemdb "github.com/trezcool/learnsmart/storage/database/inmem"
	sqlxdb "github.com/trezcool/learnsmart/storage/database/sqlx"
)

var logger core.Logger

func main() {
	conf := core.NewConfig()
	rl := logsvc.NewRollbarLogger(log.New(os.Stdout, "ADMIN : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile), conf)
	rl.Enable(!conf.Debug)
	logger = rl

	policy, err := admin.NewPolicy()
	errAndDie(err)

	cli := commandLine{conf: conf}
	var (
		usrRepo  user.Repository
		roleRepo admin.Repository
	)
	if conf.Database.Engine == "postgres" {
		errAndDie(database.CreateIfNotExist(conf))
		db, err := database.Open(conf)
		errAndDie(err)

		cli.db = db.DB
		usrRepo = sqlxdb.NewUserRepository(db)
		roleRepo = sqlxdb.NewRoleRepository(db)
	} else {
		logger.Info("database engine is inmem: changes are lost when this command exits")
		db := inmemdb.Open()
		usrRepo = inmemdb.NewUserRepository(db)
		roleRepo = inmemdb.NewRoleRepository(db)
	}

	cli.usrSvc = user.NewService(usrRepo, nil)
	cli.adminSvc = admin.NewService(conf, roleRepo, cli.usrSvc, policy)

	if err := cli.run(os.Args); err != nil {
		if err != errHelp {
			logger.Error("command failed: "+err.Error(), err)
		}
		closeAndExit(cli.db, 1)
	}
	closeAndExit(cli.db, 0)
}

// closeAndExit releases the pool; os.Exit skips deferred calls.
func closeAndExit(db *sql.DB, code int) {
	if db != nil {
		_ = db.Close()
	}
	os.Exit(code)
}

func errAndDie(err error) {
	if err != nil {
		logger.Fatal(err.Error(), err)
	}
}
