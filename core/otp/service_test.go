package otp

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/learnsmart/core"
	emailsvc "github.com/trezcool/learnsmart/services/email"
	kvsvc "github.com/trezcool/learnsmart/services/kv"
)

type otpSuite struct {
	svc     *Service
	store   *kvsvc.MemoryStore
	mailSvc *emailsvc.ConsoleServiceMock
}

func newOTPSuite(t *testing.T) otpSuite {
	t.Helper()
	conf := core.NewTestConfig()
	store := kvsvc.NewMemoryStore()
	mailSvc := emailsvc.NewConsoleServiceMock(conf)
	return otpSuite{svc: NewService(conf, store, mailSvc), store: store, mailSvc: mailSvc}
}

func freezeTime(t *testing.T, now time.Time) func(time.Time) {
	t.Helper()
	current := now
	NowFunc = func() time.Time { return current }
	t.Cleanup(func() { NowFunc = time.Now })
	return func(tm time.Time) { current = tm }
}

func TestParseFlow(t *testing.T) {
	tests := []struct {
		in      string
		want    Flow
		wantErr bool
	}{
		{in: "", want: FlowSignup},
		{in: "signup", want: FlowSignup},
		{in: " Reset ", want: FlowReset},
		{in: "password-reset", want: FlowReset},
		{in: "password_reset", want: FlowReset},
		{in: "login", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseFlow(tt.in)
			if tt.wantErr {
				var verr *core.ValidationError
				assert.True(t, errors.As(err, &verr))
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestGenerateCode(t *testing.T) {
	for i := 0; i < 200; i++ {
		code, err := generateCode()
		require.NoError(t, err)
		require.Len(t, code, 6)
		n, err := strconv.Atoi(code)
		require.NoError(t, err)
		assert.True(t, n >= 100000 && n <= 999999, n)
	}
}

func TestService_IssueSendsMail(t *testing.T) {
	s := newOTPSuite(t)
	ctx := context.Background()

	code, err := s.svc.Issue(ctx, " Alice@Example.COM ", FlowSignup)
	require.NoError(t, err)

	sent := s.mailSvc.SentMessages()
	require.Len(t, sent, 1)
	msg := sent[0]
	assert.Equal(t, []string{"alice@example.com"}, msg.RecipientList())
	assert.Equal(t, "LearnSmart - Email Verification OTP", msg.Subject)
	assert.Contains(t, msg.HTMLContent, code)
	assert.Contains(t, msg.TextContent, code)
	assert.Contains(t, msg.TextContent, "5 minutes")

	_, err = s.svc.Issue(ctx, "alice@example.com", FlowReset)
	require.NoError(t, err)
	sent = s.mailSvc.SentMessages()
	require.Len(t, sent, 2)
	assert.Equal(t, "LearnSmart - Password Reset OTP", sent[1].Subject)
}

func TestService_IssueMailFailure(t *testing.T) {
	s := newOTPSuite(t)
	s.mailSvc.FailFor("bob@example.com", errors.New("smtp down"))

	_, err := s.svc.Issue(context.Background(), "bob@example.com", FlowSignup)
	require.Error(t, err)
	_, ok := core.AsUpstream(err)
	assert.True(t, ok)
}

func TestService_Verify(t *testing.T) {
	ctx := context.Background()
	email := "alice@example.com"

	t.Run("match consumes the code", func(t *testing.T) {
		s := newOTPSuite(t)
		code, err := s.svc.Issue(ctx, email, FlowSignup)
		require.NoError(t, err)

		assert.NoError(t, s.svc.Verify(ctx, email, FlowSignup, code))
		assert.ErrorIs(t, s.svc.Verify(ctx, email, FlowSignup, code), core.ErrNotFound)
		assert.NoError(t, s.svc.ConsumeVerified(ctx, email, FlowSignup))
		assert.ErrorIs(t, s.svc.ConsumeVerified(ctx, email, FlowSignup), core.ErrNotFound)
	})

	t.Run("mismatch keeps the code", func(t *testing.T) {
		s := newOTPSuite(t)
		code, err := s.svc.Issue(ctx, email, FlowSignup)
		require.NoError(t, err)

		wrong := "000000"
		assert.ErrorIs(t, s.svc.Verify(ctx, email, FlowSignup, wrong), core.ErrMismatch)
		assert.NoError(t, s.svc.Verify(ctx, email, FlowSignup, code))
	})

	t.Run("no code", func(t *testing.T) {
		s := newOTPSuite(t)
		err := s.svc.Verify(ctx, email, FlowSignup, "123456")
		assert.ErrorIs(t, err, core.ErrNotFound)
		assert.EqualError(t, err, "No OTP found for this email")
	})

	t.Run("expired code is deleted", func(t *testing.T) {
		s := newOTPSuite(t)
		start := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)
		setNow := freezeTime(t, start)

		code, err := s.svc.Issue(ctx, email, FlowSignup)
		require.NoError(t, err)

		setNow(start.Add(5*time.Minute + time.Second))
		assert.ErrorIs(t, s.svc.Verify(ctx, email, FlowSignup, code), core.ErrExpired)
		assert.ErrorIs(t, s.svc.Verify(ctx, email, FlowSignup, code), core.ErrNotFound)
	})

	t.Run("code valid until expiry", func(t *testing.T) {
		s := newOTPSuite(t)
		start := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)
		setNow := freezeTime(t, start)

		code, err := s.svc.Issue(ctx, email, FlowSignup)
		require.NoError(t, err)

		setNow(start.Add(5 * time.Minute))
		assert.NoError(t, s.svc.Verify(ctx, email, FlowSignup, code))
	})

	t.Run("flows are disjoint", func(t *testing.T) {
		s := newOTPSuite(t)
		code, err := s.svc.Issue(ctx, email, FlowSignup)
		require.NoError(t, err)

		assert.ErrorIs(t, s.svc.Verify(ctx, email, FlowReset, code), core.ErrNotFound)
		assert.NoError(t, s.svc.Verify(ctx, email, FlowSignup, code))
	})

	t.Run("reissue replaces the code", func(t *testing.T) {
		s := newOTPSuite(t)
		codes := []string{"111111", "222222"}
		generateCodeFn = func() (string, error) {
			c := codes[0]
			codes = codes[1:]
			return c, nil
		}
		t.Cleanup(func() { generateCodeFn = generateCode })

		_, err := s.svc.Issue(ctx, email, FlowSignup)
		require.NoError(t, err)
		_, err = s.svc.Issue(ctx, email, FlowSignup)
		require.NoError(t, err)

		assert.ErrorIs(t, s.svc.Verify(ctx, email, FlowSignup, "111111"), core.ErrMismatch)
		assert.NoError(t, s.svc.Verify(ctx, email, FlowSignup, "222222"))
	})
}

func newRedisService(t *testing.T) (*Service, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	conf := core.NewTestConfig()
	return NewService(conf, kvsvc.NewRedisStore(client, "test:"), emailsvc.NewConsoleServiceMock(conf)), mr
}

func TestService_VerifyConcurrent(t *testing.T) {
	ctx := context.Background()
	email := "alice@example.com"
	svc, _ := newRedisService(t)

	for round := 0; round < 50; round++ {
		code, err := svc.Issue(ctx, email, FlowReset)
		require.NoError(t, err)

		var verified, consumed int32
		var wg sync.WaitGroup
		for i := 0; i < 8; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if svc.Verify(ctx, email, FlowReset, code) == nil {
					atomic.AddInt32(&verified, 1)
				}
			}()
		}
		wg.Wait()
		require.EqualValues(t, 1, verified, "round %d", round)

		for i := 0; i < 8; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if svc.ConsumeVerified(ctx, email, FlowReset) == nil {
					atomic.AddInt32(&consumed, 1)
				}
			}()
		}
		wg.Wait()
		require.EqualValues(t, 1, consumed, "round %d", round)
	}
}

func TestService_VerifyRetention(t *testing.T) {
	ctx := context.Background()
	email := "alice@example.com"
	start := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)

	tests := []struct {
		name    string
		elapsed time.Duration
		wantErr error
	}{
		{name: "within retention", elapsed: 14 * time.Minute, wantErr: ErrExpired},
		{name: "past retention", elapsed: 15*time.Minute + time.Second, wantErr: ErrNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, mr := newRedisService(t)
			setNow := freezeTime(t, start)

			code, err := svc.Issue(ctx, email, FlowSignup)
			require.NoError(t, err)

			setNow(start.Add(tt.elapsed))
			mr.FastForward(tt.elapsed)
			assert.Equal(t, tt.wantErr, svc.Verify(ctx, email, FlowSignup, code))
		})
	}
}

func TestHumanize(t *testing.T) {
	assert.Equal(t, "5 minutes", humanize(5*time.Minute))
	assert.Equal(t, "1 minute", humanize(time.Minute))
	assert.Equal(t, "1m30s", humanize(90*time.Second))
}
