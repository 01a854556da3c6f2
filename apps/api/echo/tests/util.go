package tests

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"reflect"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	. "github.com/trezcool/learnsmart/apps/api/echo"
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
	inmemdb "github.com/trezcool/learnsmart/storage/database/inmem"
	testutil "github.com/trezcool/learnsmart/tests"
)

const testPassword = "Pass-w0rd!"

var (
	scope = core.Scope{Course: "B.Tech", Branch: "Computer Science", Semester: "3rd"}

	errMissingToken = ErrorResponse{Error: "missing or malformed jwt"}
)

type fixture struct {
	conf     *core.Config
	app      *Server
	mailSvc  *emailsvc.ConsoleServiceMock
	usrRepo  user.Repository
	usrSvc   *user.Service
	adminSvc *admin.Service
	notifSvc *notification.Service
	noteSvc  *note.Service
	quizSvc  *quiz.Service
	hub      *realtimesvc.Hub

	owner    user.User // main admin
	subAdmin user.User
	student  user.User
}

// setup wires the API on in-memory backends. The fan-out queue is drained in the background.
func setup(t *testing.T, opts ...func(*core.Config)) *fixture {
	t.Helper()

	conf := core.NewTestConfig()
	conf.Storage.LocalDir = t.TempDir()
	for _, opt := range opts {
		opt(conf)
	}
	logger := logsvc.NewTestLogger()

	validate := validator.New()
	translator := core.NewTranslator()
	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator)

	db := inmemdb.Open()
	f := &fixture{
		conf:    conf,
		mailSvc: emailsvc.NewConsoleServiceMock(conf),
		usrRepo: inmemdb.NewUserRepository(db),
		hub:     realtimesvc.NewHub(),
	}

	otpSvc := otp.NewService(conf, kvsvc.NewMemoryStore(), f.mailSvc)
	f.usrSvc = user.NewService(f.usrRepo, otpSvc)

	policy, err := admin.NewPolicy()
	require.NoError(t, err)
	f.adminSvc = admin.NewService(conf, inmemdb.NewRoleRepository(db), f.usrSvc, policy)

	queue := queuesvc.NewLocalQueue(conf, logger)
	f.notifSvc = notification.NewService(
		conf, inmemdb.NewNotificationRepository(db), f.usrSvc, f.mailSvc, f.hub, queue, logger,
	)
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		_ = queue.Consume(ctx, core.JobMux{notification.JobFanout: f.notifSvc.HandleFanout}.Handle)
	}()
	t.Cleanup(func() {
		cancel()
		_ = queue.Close()
	})

	storage := storagesvc.NewLocalStorage(conf.Storage.LocalDir, conf.Storage.Bucket)
	f.noteSvc = note.NewService(inmemdb.NewNoteRepository(db), storage, f.adminSvc, f.notifSvc, logger)
	f.quizSvc = quiz.NewService(inmemdb.NewQuizRepository(db), f.adminSvc, f.notifSvc, logger)

	f.app = NewServer(&Deps{
		Conf:           conf,
		Logger:         logger,
		Validate:       validate,
		Translator:     translator,
		DisableReqLogs: true,
		UserSvc:        f.usrSvc,
		OTPSvc:         otpSvc,
		AdminSvc:       f.adminSvc,
		NotifSvc:       f.notifSvc,
		NoteSvc:        f.noteSvc,
		QuizSvc:        f.quizSvc,
		ChatSvc:        chat.NewService(aisvc.NewOpenAICompleter(conf)),
		Hub:            f.hub,
	})

	f.owner = testutil.CreateUser(t, f.usrRepo, conf.MainAdminEmail, testPassword)
	f.subAdmin = testutil.CreateUser(t, f.usrRepo, "editor@example.com", testPassword)
	f.student = testutil.CreateUser(t, f.usrRepo, "student@example.com", testPassword)
	_, err = f.adminSvc.AddSubAdmin(context.Background(), f.owner, f.subAdmin.ID)
	require.NoError(t, err)
	return f
}

type httpTest struct {
	name     string
	method   string
	path     string
	body     []byte
	token    string
	wantCode int
	wantData []byte
	extra    interface{}
}

func (f *fixture) do(req *http.Request, rec *httptest.ResponseRecorder) *httptest.ResponseRecorder {
	f.app.ServeHTTP(rec, req)
	return rec
}

func newAuthRequest(method, path, token string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	var body bytes.Buffer
	if len(data) > 0 {
		body.Write(data[0])
	}
	req := httptest.NewRequest(method, path, &body)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	return req, rec
}

func newRequest(method, path string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	return newAuthRequest(method, path, "", data...)
}

// newMultipartRequest builds a multipart/form-data request; a non-nil pdf is attached as the `pdf` file.
func newMultipartRequest(
	t *testing.T, method, path, token string, fields map[string]string, filename, contentType string, pdf []byte,
) (*http.Request, *httptest.ResponseRecorder) {
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	for k, v := range fields {
		require.NoError(t, w.WriteField(k, v))
	}
	if pdf != nil {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", `form-data; name="pdf"; filename="`+filename+`"`)
		h.Set("Content-Type", contentType)
		part, err := w.CreatePart(h)
		require.NoError(t, err)
		_, err = part.Write(pdf)
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())

	req := httptest.NewRequest(method, path, &body)
	req.Header.Set("Content-Type", w.FormDataContentType())
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return req, httptest.NewRecorder()
}

func getToken(t *testing.T, f *fixture, usr user.User) string {
	t.Helper()
	role, err := f.adminSvc.RoleOf(context.Background(), usr)
	require.NoError(t, err)
	token, err := GenerateToken(f.conf, GetUserClaims(f.conf, usr, role))
	if err != nil {
		t.Fatalf("getToken(): %v", err)
	}
	return token
}

func marchallObj(t *testing.T, obj interface{}) []byte {
	data, err := json.Marshal(obj)
	if err != nil {
		t.Fatalf("marchallObj(): %v", err)
	}
	return data
}

func marchallList(t *testing.T, objs ...interface{}) []byte {
	if objs == nil {
		objs = []interface{}{}
	}
	data, err := json.Marshal(objs)
	if err != nil {
		t.Fatalf("marchallList(): %v", err)
	}
	return data
}

func unmarshal(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), v), rec.Body.String())
}

func jsonBytesEqual(b1, b2 []byte) (bool, error) {
	var j1, j2 interface{}
	if err := json.Unmarshal(b1, &j1); err != nil {
		return false, err
	}
	if err := json.Unmarshal(b2, &j2); err != nil {
		return false, err
	}
	return reflect.DeepEqual(j1, j2), nil
}

func checkCodeAndData(t *testing.T, tt httpTest, rec *httptest.ResponseRecorder) {
	t.Helper()
	assert.Equal(t, tt.wantCode, rec.Code, "code; body %s", rec.Body.String())
	if tt.wantData == nil {
		return
	}
	ok, err := jsonBytesEqual(rec.Body.Bytes(), tt.wantData)
	if err != nil {
		t.Errorf("jsonBytesEqual() failed to compare; err %v", err)
	}
	if !ok {
		t.Errorf("failed! data = %v; wantData %v", rec.Body.String(), string(tt.wantData))
	}
}

func runHTTPTests(t *testing.T, f *fixture, tests []httpTest) {
	t.Helper()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(tt.method, tt.path, tt.token, tt.body)
			checkCodeAndData(t, tt, f.do(req, rec))
		})
	}
}
