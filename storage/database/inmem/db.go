package inmemdb

import (
	"sync"

	"github.com/trezcool/learnsmart/core/admin"
	"github.com/trezcool/learnsmart/core/note"
	"github.com/trezcool/learnsmart/core/notification"
	"github.com/trezcool/learnsmart/core/quiz"
	"github.com/trezcool/learnsmart/core/user"
)

type (
	// DB holds every table in memory. Each table has its own lock.
	DB struct {
		user         *userTable
		notification *notificationTable
		role         *roleTable
		note         *noteTable
		question     *questionTable
		result       *resultTable
	}

	userTable struct {
		table map[string]*user.User
		mutex sync.RWMutex
	}

	notificationTable struct {
		table map[string]*notification.Notification
		mutex sync.RWMutex
	}

	roleTable struct {
		table map[string]*admin.Role
		mutex sync.RWMutex
	}

	noteTable struct {
		table map[string]*note.Note
		mutex sync.RWMutex
	}

	questionTable struct {
		table map[string]*quiz.Question
		mutex sync.RWMutex
	}

	resultTable struct {
		rows  []quiz.Result // append-only
		mutex sync.RWMutex
	}
)

func Open() *DB {
	return &DB{
		user:         &userTable{table: make(map[string]*user.User)},
		notification: &notificationTable{table: make(map[string]*notification.Notification)},
		role:         &roleTable{table: make(map[string]*admin.Role)},
		note:         &noteTable{table: make(map[string]*note.Note)},
		question:     &questionTable{table: make(map[string]*quiz.Question)},
		result:       &resultTable{},
	}
}
