package dig_container

import (
	"fmt"
	"log"
	"os"
	"sync"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	"go.uber.org/dig"

	echoapi "github.com/trezcool/learnsmart/apps/api/echo"
	"github.com/trezcool/learnsmart/core"
	"github.com/trezcool/learnsmart/core/admin"
	"github.com/trezcool/learnsmart/core/chat"
	"github.com/trezcool/learnsmart/core/note"
	"github.com/trezcool/learnsmart/core/notification"
	"github.com/trezcool/learnsmart/core/otp"
	"github.com/trezcool/learnsmart/core/quiz"
	"github.com/trezcool/learnsmart/core/user"
	aisvc "github.com/trezcool/learnsmart/services/ai"
	emailsvc "github.com/trezcool/learnsmart/services/email"
	kvsvc "github.com/trezcool/learnsmart/services/kv"
	logsvc "github.com/trezcool/learnsmart/services/logger"
	queuesvc "github.com/trezcool/learnsmart/services/queue"
	realtimesvc "github.com/trezcool/learnsmart/services/realtime"
	storagesvc "github.com/trezcool/learnsmart/services/storage"
	"github.com/trezcool/learnsmart/storage/database"
	inmemdb "github.com/trezcool/learnsmart/storage/database/inmem"
	sqlxdb "github.com/trezcool/learnsmart/storage/database/sqlx"
)

type (
	DBLoggerParam struct {
		dig.In
		Logger core.Logger `name:"dbLogger"`
	}

	WorkerLoggerParam struct {
		dig.In
		Logger core.Logger `name:"workerLogger"`
	}

	// DBCloser releases the database connection pool, if any.
	DBCloser func() error

	Repositories struct {
		dig.Out
		Users         user.Repository
		Roles         admin.Repository
		Notifications notification.Repository
		Notes         note.Repository
		Quiz          quiz.Repository
		Closer        DBCloser
	}

	// RedisFunc lazily opens the shared Redis client; it is only dialed when an engine needs it.
	RedisFunc func() (*redis.Client, error)

	Realtime struct {
		dig.Out
		Publisher notification.Publisher
		Bridge    *realtimesvc.RedisBridge // nil unless the realtime engine is redis
	}

	ServerParams struct {
		dig.In
		Conf       *core.Config
		Logger     core.Logger
		Validate   *validator.Validate
		Translator ut.Translator
		UserSvc    *user.Service
		OTPSvc     *otp.Service
		AdminSvc   *admin.Service
		NotifSvc   *notification.Service
		NoteSvc    *note.Service
		QuizSvc    *quiz.Service
		ChatSvc    *chat.Service
		Hub        *realtimesvc.Hub
	}
)

func newStdLogger(prefix string, flags int, conf *core.Config) core.Logger {
	logger := logsvc.NewRollbarLogger(log.New(os.Stdout, prefix, flags), conf)
	logger.Enable(!conf.Debug)
	return logger
}

func newLogger(conf *core.Config) core.Logger {
	return newStdLogger("API : ", log.LstdFlags, conf)
}

func newDBLogger(conf *core.Config) core.Logger {
	return newStdLogger("DB : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile, conf)
}

func newWorkerLogger(conf *core.Config) core.Logger {
	return newStdLogger("WORKER : ", log.LstdFlags|log.Lmicroseconds, conf)
}

func newRepositories(conf *core.Config, loggerParam DBLoggerParam) Repositories {
	if conf.Database.Engine != "postgres" {
		db := inmemdb.Open()
		return Repositories{
			Users:         inmemdb.NewUserRepository(db),
			Roles:         inmemdb.NewRoleRepository(db),
			Notifications: inmemdb.NewNotificationRepository(db),
			Notes:         inmemdb.NewNoteRepository(db),
			Quiz:          inmemdb.NewQuizRepository(db),
			Closer:        func() error { return nil },
		}
	}

	if err := database.CreateIfNotExist(conf); err != nil {
		loggerParam.Logger.Fatal(fmt.Sprintf("setting up database: %v", err), err)
	}
	db, err := database.Open(conf)
	if err != nil {
		loggerParam.Logger.Fatal(fmt.Sprintf("setting up database: %v", err), err)
	}
	if err = database.Migrate(db.DB); err != nil {
		loggerParam.Logger.Fatal(fmt.Sprintf("setting up database: %v", err), err)
	}
	return Repositories{
		Users:         sqlxdb.NewUserRepository(db),
		Roles:         sqlxdb.NewRoleRepository(db),
		Notifications: sqlxdb.NewNotificationRepository(db),
		Notes:         sqlxdb.NewNoteRepository(db),
		Quiz:          sqlxdb.NewQuizRepository(db),
		Closer:        db.Close,
	}
}

func newRedisFunc(conf *core.Config) RedisFunc {
	var (
		once   sync.Once
		client *redis.Client
		err    error
	)
	return func() (*redis.Client, error) {
		once.Do(func() { client, err = kvsvc.NewRedisClient(conf) })
		return client, err
	}
}

func newKVStore(conf *core.Config, redisFn RedisFunc, logger core.Logger) (core.KVStore, error) {
	if conf.KV.Engine == "redis" {
		client, err := redisFn()
		if err != nil {
			return nil, err
		}
		return kvsvc.NewRedisStore(client, conf.AppName+":"), nil
	}

	store := kvsvc.NewMemoryStore()
	if err := store.StartJanitor(conf.KV.JanitorSchedule, logger); err != nil {
		return nil, errors.Wrap(err, "starting kv janitor")
	}
	return store, nil
}

func newRealtime(conf *core.Config, hub *realtimesvc.Hub, redisFn RedisFunc, logger core.Logger) (Realtime, error) {
	if conf.Realtime.Engine != "redis" {
		return Realtime{Publisher: hub}, nil
	}
	client, err := redisFn()
	if err != nil {
		return Realtime{}, err
	}
	bridge := realtimesvc.NewRedisBridge(hub, client, conf.Realtime.Channel, logger)
	return Realtime{Publisher: bridge, Bridge: bridge}, nil
}

func newQueue(conf *core.Config, loggerParam WorkerLoggerParam) (core.JobQueue, error) {
	return queuesvc.NewQueue(conf, loggerParam.Logger)
}

func newOTPService(conf *core.Config, store core.KVStore, mailSvc core.EmailService) *otp.Service {
	return otp.NewService(conf, store, mailSvc)
}

func newUserService(repo user.Repository, otpSvc *otp.Service) *user.Service {
	return user.NewService(repo, otpSvc)
}

func newAdminService(conf *core.Config, repo admin.Repository, usrSvc *user.Service, policy *admin.Policy) *admin.Service {
	return admin.NewService(conf, repo, usrSvc, policy)
}

func newNotificationService(
	conf *core.Config,
	repo notification.Repository,
	usrSvc *user.Service,
	mailSvc core.EmailService,
	publisher notification.Publisher,
	queue core.JobQueue,
	loggerParam WorkerLoggerParam,
) *notification.Service {
	return notification.NewService(conf, repo, usrSvc, mailSvc, publisher, queue, loggerParam.Logger)
}

func newNoteService(
	repo note.Repository, storage core.FileStorage, adminSvc *admin.Service, notifSvc *notification.Service, logger core.Logger,
) *note.Service {
	return note.NewService(repo, storage, adminSvc, notifSvc, logger)
}

func newQuizService(repo quiz.Repository, adminSvc *admin.Service, notifSvc *notification.Service, logger core.Logger) *quiz.Service {
	return quiz.NewService(repo, adminSvc, notifSvc, logger)
}

func newChatService(conf *core.Config) *chat.Service {
	return chat.NewService(aisvc.NewOpenAICompleter(conf))
}

func newServer(p ServerParams) *echoapi.Server {
	return echoapi.NewServer(&echoapi.Deps{
		Conf:       p.Conf,
		Logger:     p.Logger,
		Validate:   p.Validate,
		Translator: p.Translator,
		UserSvc:    p.UserSvc,
		OTPSvc:     p.OTPSvc,
		AdminSvc:   p.AdminSvc,
		NotifSvc:   p.NotifSvc,
		NoteSvc:    p.NoteSvc,
		QuizSvc:    p.QuizSvc,
		ChatSvc:    p.ChatSvc,
		Hub:        p.Hub,
	})
}

// New returns a new dependency injection dig.Container
func New(newConfig func() *core.Config) *dig.Container {
	c := dig.New()

	must(c.Provide(newConfig))
	must(c.Provide(newLogger))
	must(c.Provide(newDBLogger, dig.Name("dbLogger")))
	must(c.Provide(newWorkerLogger, dig.Name("workerLogger")))
	must(c.Provide(newRepositories))
	must(c.Provide(newRedisFunc))
	must(c.Provide(newKVStore))
	must(c.Provide(realtimesvc.NewHub))
	must(c.Provide(newRealtime))
	must(c.Provide(newQueue))
	must(c.Provide(storagesvc.NewStorage))
	must(c.Provide(emailsvc.NewService))
	must(c.Provide(validator.New))
	must(c.Provide(core.NewTranslator))
	must(c.Provide(admin.NewPolicy))
	must(c.Provide(newOTPService))
	must(c.Provide(newUserService))
	must(c.Provide(newAdminService))
	must(c.Provide(newNotificationService))
	must(c.Provide(newNoteService))
	must(c.Provide(newQuizService))
	must(c.Provide(newChatService))
	must(c.Provide(newServer))

	return c
}

// must exits program if err happened
func must(err error) {
	if err != nil {
		log.Fatal(errors.Wrap(err, "failed to provide dependency").Error())
	}
}
