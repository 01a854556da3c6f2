package note_test

import (
	"bytes"
	"context"
	"io"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/learnsmart/core"
	"github.com/trezcool/learnsmart/core/admin"
	"github.com/trezcool/learnsmart/core/note"
	"github.com/trezcool/learnsmart/core/notification"
	"github.com/trezcool/learnsmart/core/user"
	logsvc "github.com/trezcool/learnsmart/services/logger"
	storagesvc "github.com/trezcool/learnsmart/services/storage"
	inmemdb "github.com/trezcool/learnsmart/storage/database/inmem"
)

type recordingAnnouncer struct {
	announcements []notification.Announcement
}

func (a *recordingAnnouncer) Announce(_ context.Context, ann notification.Announcement) error {
	a.announcements = append(a.announcements, ann)
	return nil
}

var (
	scope   = core.Scope{Course: "B.Tech", Branch: "Computer Science", Semester: "3rd"}
	pdfBody = []byte("%PDF-1.7\n\x00\xffbinary body")
)

type fixture struct {
	svc       *note.Service
	storage   *storagesvc.LocalStorage
	announcer *recordingAnnouncer
	admin     user.User
	student   user.User
}

func setup(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	conf := core.NewTestConfig()
	db := inmemdb.Open()
	usrSvc := user.NewService(inmemdb.NewUserRepository(db), nil)
	policy, err := admin.NewPolicy()
	require.NoError(t, err)
	adminSvc := admin.NewService(conf, inmemdb.NewRoleRepository(db), usrSvc, policy)

	f := &fixture{
		storage:   storagesvc.NewLocalStorage(t.TempDir(), conf.Storage.Bucket),
		announcer: &recordingAnnouncer{},
	}
	f.svc = note.NewService(inmemdb.NewNoteRepository(db), f.storage, adminSvc, f.announcer, logsvc.NewTestLogger())

	f.admin, err = usrSvc.Create(ctx, conf.MainAdminEmail, "Pass-w0rd!")
	require.NoError(t, err)
	f.student, err = usrSvc.Create(ctx, "student@example.com", "Pass-w0rd!")
	require.NoError(t, err)
	return f
}

func newPDF() *note.PDF {
	return &note.PDF{Filename: "graphs.pdf", ContentType: "application/pdf", Body: bytes.NewReader(pdfBody)}
}

func TestService_CreateWithPDF(t *testing.T) {
	ctx := context.Background()
	f := setup(t)

	n, err := f.svc.Create(ctx, f.admin, note.NewNote{Title: "Graphs", Content: "BFS and DFS", Scope: scope}, newPDF())
	require.NoError(t, err)
	assert.NotEmpty(t, n.ID)
	assert.Equal(t, f.admin.ID, n.UserID)
	assert.Contains(t, n.PDFPath, f.admin.ID+"/")

	got, rc, err := f.svc.DownloadPDF(ctx, n.ID)
	require.NoError(t, err)
	defer rc.Close()
	body, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, pdfBody, body)
	assert.Equal(t, n.ID, got.ID)

	require.Len(t, f.announcer.announcements, 1)
	a := f.announcer.announcements[0]
	assert.Equal(t, f.admin.ID, a.ExcludeUserID)
	assert.Equal(t, notification.TypeNote, a.Type)
	assert.Equal(t, `A new note "Graphs" has been added for B.Tech - Computer Science (3rd Semester)`, a.Content)
}

func TestService_CreateRules(t *testing.T) {
	ctx := context.Background()
	f := setup(t)

	_, err := f.svc.Create(ctx, f.student, note.NewNote{Title: "x", Content: "y", Scope: scope}, nil)
	assert.True(t, errors.Is(err, core.ErrForbidden))
	assert.Empty(t, f.announcer.announcements)

	_, err = f.svc.Create(ctx, f.admin, note.NewNote{Title: "x", Content: "y", Scope: scope},
		&note.PDF{Filename: "notes.docx", ContentType: "application/msword", Body: bytes.NewReader([]byte("doc"))})
	var verr *core.ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, "pdf", verr.Fields[0].Field)

	n, err := f.svc.Create(ctx, f.admin, note.NewNote{Title: "No file", Content: "text only", Scope: scope}, nil)
	require.NoError(t, err)
	_, _, err = f.svc.DownloadPDF(ctx, n.ID)
	assert.Equal(t, note.ErrNoPDF, err)
}

func TestService_UpdateKeepsOrReplacesPDF(t *testing.T) {
	ctx := context.Background()
	f := setup(t)

	n, err := f.svc.Create(ctx, f.admin, note.NewNote{Title: "Graphs", Content: "v1", Scope: scope}, newPDF())
	require.NoError(t, err)
	firstPDF := n.PDFPath

	updated, err := f.svc.Update(ctx, f.admin, n.ID, note.UpdateNote{Title: "Graphs", Content: "v2", Scope: scope}, nil)
	require.NoError(t, err)
	assert.Equal(t, "v2", updated.Content)
	assert.Equal(t, firstPDF, updated.PDFPath)

	updated, err = f.svc.Update(ctx, f.admin, n.ID, note.UpdateNote{Title: "Graphs", Content: "v3", Scope: scope}, newPDF())
	require.NoError(t, err)
	assert.NotEqual(t, firstPDF, updated.PDFPath)
	_, err = f.storage.Download(ctx, firstPDF)
	assert.True(t, errors.Is(err, core.ErrObjectNotFound), "old PDF is removed")

	_, err = f.svc.Update(ctx, f.student, n.ID, note.UpdateNote{Title: "t", Content: "c", Scope: scope}, nil)
	assert.True(t, errors.Is(err, core.ErrForbidden))
	_, err = f.svc.Update(ctx, f.admin, "missing", note.UpdateNote{Title: "t", Content: "c", Scope: scope}, nil)
	assert.True(t, errors.Is(err, core.ErrNotFound))
}

func TestService_Delete(t *testing.T) {
	ctx := context.Background()
	f := setup(t)

	n, err := f.svc.Create(ctx, f.admin, note.NewNote{Title: "Graphs", Content: "c", Scope: scope}, newPDF())
	require.NoError(t, err)

	assert.True(t, errors.Is(f.svc.Delete(ctx, f.student, n.ID), core.ErrForbidden))
	require.NoError(t, f.svc.Delete(ctx, f.admin, n.ID))

	_, err = f.svc.GetByID(ctx, n.ID)
	assert.True(t, errors.Is(err, core.ErrNotFound))
	_, err = f.storage.Download(ctx, n.PDFPath)
	assert.True(t, errors.Is(err, core.ErrObjectNotFound))
	assert.True(t, errors.Is(f.svc.Delete(ctx, f.admin, n.ID), core.ErrNotFound))
}

func TestService_Query(t *testing.T) {
	ctx := context.Background()
	f := setup(t)

	other := core.Scope{Course: "MCA", Branch: "Electronics", Semester: "1st"}
	for _, nn := range []note.NewNote{
		{Title: "a", Content: "c", Scope: scope},
		{Title: "b", Content: "c", Scope: other},
		{Title: "c", Content: "c", Scope: scope},
	} {
		_, err := f.svc.Create(ctx, f.admin, nn, nil)
		require.NoError(t, err)
	}

	tests := []struct {
		name  string
		scope core.Scope
		want  int
	}{
		{"exact", scope, 2},
		{"other", other, 1},
		{"course only", core.Scope{Course: " B.Tech "}, 2},
		{"empty", core.Scope{}, 3},
		{"no match", core.Scope{Course: "M.Tech"}, 0},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			notes, err := f.svc.Query(ctx, tc.scope)
			require.NoError(t, err)
			assert.Len(t, notes, tc.want)
		})
	}
}
