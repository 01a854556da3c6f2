package tests

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/dgrijalva/jwt-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	. "github.com/trezcool/learnsmart/apps/api/echo"
	"github.com/trezcool/learnsmart/core/otp"
	"github.com/trezcool/learnsmart/core/user"
	testutil "github.com/trezcool/learnsmart/tests"
)

const newPassword = "Tr1cky-Lemon!"

// lastCode returns the passcode mailed last to email.
func lastCode(t *testing.T, f *fixture, email string) string {
	t.Helper()
	sent := f.mailSvc.SentMessages()
	for i := len(sent) - 1; i >= 0; i-- {
		if sent[i].To[0].Address == email {
			data, ok := sent[i].TemplateData.(map[string]string)
			require.True(t, ok)
			return data["Code"]
		}
	}
	t.Fatalf("no passcode mailed to %s", email)
	return ""
}

func sendOTP(t *testing.T, f *fixture, email, typ string) string {
	t.Helper()
	req, rec := newRequest(http.MethodPost, "/api/send-otp", marchallObj(t, SendOTPRequest{Email: email, Type: typ}))
	require.Equal(t, http.StatusOK, f.do(req, rec).Code, rec.Body.String())
	return lastCode(t, f, email)
}

func verifyOTP(t *testing.T, f *fixture, email, code, typ string) {
	t.Helper()
	body := marchallObj(t, VerifyOTPRequest{Email: email, OTP: code, Type: typ})
	req, rec := newRequest(http.MethodPost, "/api/verify-otp", body)
	require.Equal(t, http.StatusOK, f.do(req, rec).Code, rec.Body.String())
}

func Test_sendOTP(t *testing.T) {
	f := setup(t)

	tests := []httpTest{
		{
			name:     "missing email",
			method:   http.MethodPost,
			path:     "/api/send-otp",
			body:     []byte(`{"type":"signup"}`),
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, ErrorResponse{
				Error:  "email is required",
				Fields: map[string]string{"email": "email is required"},
			}),
		},
		{
			name:     "unknown type",
			method:   http.MethodPost,
			path:     "/api/send-otp",
			body:     []byte(`{"email":"jane@example.com","type":"login"}`),
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, ErrorResponse{
				Error:  "type must be either signup or reset",
				Fields: map[string]string{"type": "type must be either signup or reset"},
			}),
		},
		{
			name:     "signup by default",
			method:   http.MethodPost,
			path:     "/api/send-otp",
			body:     []byte(`{"email":" Jane@Example.com "}`),
			wantCode: http.StatusOK,
			wantData: marchallObj(t, SuccessResponse{Success: true, Message: "OTP sent successfully"}),
			extra:    "LearnSmart - Email Verification OTP",
		},
		{
			name:     "reset",
			method:   http.MethodPost,
			path:     "/api/send-otp",
			body:     []byte(`{"email":"jane@example.com","type":"password-reset"}`),
			wantCode: http.StatusOK,
			wantData: marchallObj(t, SuccessResponse{Success: true, Message: "OTP sent successfully"}),
			extra:    "LearnSmart - Password Reset OTP",
		},
		{
			name:     "transport failure",
			method:   http.MethodPost,
			path:     "/api/send-otp",
			body:     []byte(`{"email":"down@example.com"}`),
			wantCode: http.StatusInternalServerError,
			wantData: marchallObj(t, ErrorResponse{Error: "Failed to send OTP", Details: "smtp: connection refused"}),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f.mailSvc.FailFor("down@example.com", errors.New("smtp: connection refused"))
			before := len(f.mailSvc.SentMessages())

			req, rec := newRequest(tt.method, tt.path, tt.body)
			checkCodeAndData(t, tt, f.do(req, rec))

			sent := f.mailSvc.SentMessages()
			if subject, ok := tt.extra.(string); ok {
				require.Len(t, sent, before+1)
				msg := sent[len(sent)-1]
				assert.Equal(t, subject, msg.Subject)
				assert.Equal(t, "jane@example.com", msg.To[0].Address)
				assert.Regexp(t, `^\d{6}$`, msg.TemplateData.(map[string]string)["Code"])
			} else {
				assert.Len(t, sent, before)
			}
		})
	}
}

func Test_verifyOTP(t *testing.T) {
	f := setup(t)
	email := "jane@example.com"
	code := sendOTP(t, f, email, "")

	noOTP := marchallObj(t, ErrorResponse{Error: "No OTP found for this email"})
	verified := marchallObj(t, SuccessResponse{Success: true, Message: "Email verified successfully"})

	// order matters: the entry survives until the correct code is submitted
	tests := []httpTest{
		{
			name:     "missing otp",
			body:     marchallObj(t, VerifyOTPRequest{Email: email}),
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, ErrorResponse{
				Error:  "otp is required",
				Fields: map[string]string{"otp": "otp is required"},
			}),
		},
		{
			name:     "unknown email",
			body:     marchallObj(t, VerifyOTPRequest{Email: "john@example.com", OTP: code}),
			wantCode: http.StatusBadRequest,
			wantData: noOTP,
		},
		{
			name:     "other flow",
			body:     marchallObj(t, VerifyOTPRequest{Email: email, OTP: code, Type: "reset"}),
			wantCode: http.StatusBadRequest,
			wantData: noOTP,
		},
		{
			name:     "mismatch",
			body:     marchallObj(t, VerifyOTPRequest{Email: email, OTP: "000000"}),
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, ErrorResponse{Error: "Invalid OTP"}),
		},
		{
			name:     "verified",
			body:     marchallObj(t, VerifyOTPRequest{Email: " JANE@example.com", OTP: code, Type: "signup"}),
			wantCode: http.StatusOK,
			wantData: verified,
		},
		{
			name:     "consumed",
			body:     marchallObj(t, VerifyOTPRequest{Email: email, OTP: code}),
			wantCode: http.StatusBadRequest,
			wantData: noOTP,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newRequest(http.MethodPost, "/api/verify-otp", tt.body)
			checkCodeAndData(t, tt, f.do(req, rec))
		})
	}
}

func Test_verifyOTP_expired(t *testing.T) {
	f := setup(t)
	email := "jane@example.com"
	code := sendOTP(t, f, email, "")

	otp.NowFunc = func() time.Time { return time.Now().Add(5*time.Minute + time.Second) }
	defer func() { otp.NowFunc = time.Now }()

	expired := httpTest{wantCode: http.StatusBadRequest, wantData: marchallObj(t, ErrorResponse{Error: "OTP has expired"})}
	req, rec := newRequest(http.MethodPost, "/api/verify-otp", marchallObj(t, VerifyOTPRequest{Email: email, OTP: code}))
	checkCodeAndData(t, expired, f.do(req, rec))

	// the expired entry is gone
	gone := httpTest{wantCode: http.StatusBadRequest, wantData: marchallObj(t, ErrorResponse{Error: "No OTP found for this email"})}
	req, rec = newRequest(http.MethodPost, "/api/verify-otp", marchallObj(t, VerifyOTPRequest{Email: email, OTP: code}))
	checkCodeAndData(t, gone, f.do(req, rec))
}

func Test_signup(t *testing.T) {
	f := setup(t)
	email := "jane@example.com"
	signup := func(email, pwd string) []byte {
		return marchallObj(t, user.NewUser{Email: email, Password: pwd, PasswordConfirm: pwd})
	}

	t.Run("not verified", func(t *testing.T) {
		req, rec := newRequest(http.MethodPost, "/api/auth/signup", signup(email, newPassword))
		checkCodeAndData(t, httpTest{
			wantCode: http.StatusForbidden,
			wantData: marchallObj(t, ErrorResponse{Error: "email has not been verified"}),
		}, f.do(req, rec))
	})

	t.Run("weak password", func(t *testing.T) {
		req, rec := newRequest(http.MethodPost, "/api/auth/signup", signup(email, "password"))
		f.do(req, rec)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		var resp ErrorResponse
		unmarshal(t, rec, &resp)
		assert.Contains(t, resp.Fields, "password")
	})

	t.Run("verified", func(t *testing.T) {
		verifyOTP(t, f, email, sendOTP(t, f, email, "signup"), "signup")

		req, rec := newRequest(http.MethodPost, "/api/auth/signup", signup(email, newPassword))
		f.do(req, rec)
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
		var usr user.User
		unmarshal(t, rec, &usr)
		assert.NotEmpty(t, usr.ID)
		assert.Equal(t, email, usr.Email)
		assert.NotContains(t, rec.Body.String(), "password")

		// the new account can log in
		req, rec = newRequest(http.MethodPost, "/api/auth/login", marchallObj(t, LoginRequest{Email: email, Password: newPassword}))
		assert.Equal(t, http.StatusOK, f.do(req, rec).Code)
	})

	t.Run("email taken", func(t *testing.T) {
		req, rec := newRequest(http.MethodPost, "/api/auth/signup", signup(f.student.Email, newPassword))
		checkCodeAndData(t, httpTest{
			wantCode: http.StatusConflict,
			wantData: marchallObj(t, ErrorResponse{Error: "a user with this email already exists"}),
		}, f.do(req, rec))
	})
}

func Test_login(t *testing.T) {
	f := setup(t)
	failed := marchallObj(t, ErrorResponse{Error: "Invalid email or password"})

	tests := []httpTest{
		{
			name:     "missing password",
			body:     marchallObj(t, LoginRequest{Email: f.student.Email}),
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, ErrorResponse{
				Error:  "password is required",
				Fields: map[string]string{"password": "password is required"},
			}),
		},
		{
			name:     "unknown email",
			body:     marchallObj(t, LoginRequest{Email: "nobody@example.com", Password: testPassword}),
			wantCode: http.StatusBadRequest,
			wantData: failed,
		},
		{
			name:     "wrong password",
			body:     marchallObj(t, LoginRequest{Email: f.student.Email, Password: "nope"}),
			wantCode: http.StatusBadRequest,
			wantData: failed,
		},
		{
			name:     "student",
			body:     marchallObj(t, LoginRequest{Email: " Student@Example.com ", Password: testPassword}),
			wantCode: http.StatusOK,
			extra:    &Claims{Email: f.student.Email},
		},
		{
			name:     "main admin",
			body:     marchallObj(t, LoginRequest{Email: f.owner.Email, Password: testPassword}),
			wantCode: http.StatusOK,
			extra:    &Claims{Email: f.owner.Email, IsAdmin: true, IsMainAdmin: true},
		},
		{
			name:     "sub-admin",
			body:     marchallObj(t, LoginRequest{Email: f.subAdmin.Email, Password: testPassword}),
			wantCode: http.StatusOK,
			extra:    &Claims{Email: f.subAdmin.Email, IsAdmin: true},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newRequest(http.MethodPost, "/api/auth/login", tt.body)
			checkCodeAndData(t, tt, f.do(req, rec))

			want, ok := tt.extra.(*Claims)
			if !ok {
				return
			}
			var resp LoginResponse
			unmarshal(t, rec, &resp)
			claims := new(Claims)
			_, err := jwt.ParseWithClaims(resp.Token, claims, func(*jwt.Token) (interface{}, error) {
				return []byte(f.conf.SecretKey), nil
			})
			require.NoError(t, err)
			assert.Equal(t, want.Email, claims.Email)
			assert.Equal(t, want.IsAdmin, claims.IsAdmin)
			assert.Equal(t, want.IsMainAdmin, claims.IsMainAdmin)
			assert.NotEmpty(t, claims.Subject)
		})
	}

	usr, err := f.usrSvc.GetByID(context.Background(), f.student.ID)
	require.NoError(t, err)
	assert.False(t, usr.LastLogin.IsZero())
}

func Test_passwordReset(t *testing.T) {
	f := setup(t)
	email := f.student.Email
	reset := marchallObj(t, user.ResetUserPassword{Email: email, Password: newPassword, PasswordConfirm: newPassword})

	// no verified reset passcode yet
	req, rec := newRequest(http.MethodPost, "/api/auth/password-reset", reset)
	assert.Equal(t, http.StatusForbidden, f.do(req, rec).Code)

	// a signup verification does not allow a reset
	verifyOTP(t, f, email, sendOTP(t, f, email, "signup"), "signup")
	req, rec = newRequest(http.MethodPost, "/api/auth/password-reset", reset)
	assert.Equal(t, http.StatusForbidden, f.do(req, rec).Code)

	verifyOTP(t, f, email, sendOTP(t, f, email, "reset"), "reset")
	req, rec = newRequest(http.MethodPost, "/api/auth/password-reset", reset)
	checkCodeAndData(t, httpTest{
		wantCode: http.StatusOK,
		wantData: marchallObj(t, SuccessResponse{Success: true, Message: "Password has been reset with the new password."}),
	}, f.do(req, rec))

	req, rec = newRequest(http.MethodPost, "/api/auth/login", marchallObj(t, LoginRequest{Email: email, Password: testPassword}))
	assert.Equal(t, http.StatusBadRequest, f.do(req, rec).Code)
	req, rec = newRequest(http.MethodPost, "/api/auth/login", marchallObj(t, LoginRequest{Email: email, Password: newPassword}))
	assert.Equal(t, http.StatusOK, f.do(req, rec).Code)

	// the verification is single use
	req, rec = newRequest(http.MethodPost, "/api/auth/password-reset", reset)
	assert.Equal(t, http.StatusForbidden, f.do(req, rec).Code)
}

func Test_tokenRefresh(t *testing.T) {
	f := setup(t)

	stale, err := GenerateToken(f.conf, GetUserClaims(f.conf, f.student, "", time.Now().Add(-25*time.Hour).Unix()))
	require.NoError(t, err)

	tests := []httpTest{
		{
			name:     "no token",
			wantCode: http.StatusUnauthorized,
			wantData: marchallObj(t, errMissingToken),
		},
		{
			name:     "refresh expired",
			token:    stale,
			wantCode: http.StatusForbidden,
			wantData: marchallObj(t, ErrorResponse{Error: "refresh has expired"}),
		},
		{
			name:     "ok",
			token:    getToken(t, f, f.student),
			wantCode: http.StatusOK,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(http.MethodPost, "/api/auth/token-refresh", tt.token)
			checkCodeAndData(t, tt, f.do(req, rec))
			if tt.wantCode == http.StatusOK {
				var resp LoginResponse
				unmarshal(t, rec, &resp)
				assert.NotEmpty(t, resp.Token)
			}
		})
	}
}

func Test_me(t *testing.T) {
	f := setup(t)
	gone := testutil.CreateUser(t, f.usrRepo, "gone@example.com", testPassword)
	goneToken := getToken(t, f, gone)
	require.NoError(t, f.usrSvc.Delete(context.Background(), gone.ID))

	tests := []struct {
		name     string
		usr      user.User
		token    string
		wantCode int
		role     string
		admin    bool
		main     bool
	}{
		{name: "student", usr: f.student, wantCode: http.StatusOK},
		{name: "sub-admin", usr: f.subAdmin, wantCode: http.StatusOK, role: "sub_admin", admin: true},
		{name: "main admin", usr: f.owner, wantCode: http.StatusOK, role: "admin", admin: true, main: true},
		{name: "deleted user", token: goneToken, wantCode: http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			token := tt.token
			if token == "" {
				token = getToken(t, f, tt.usr)
			}
			req, rec := newAuthRequest(http.MethodGet, "/api/auth/me", token)
			f.do(req, rec)
			require.Equal(t, tt.wantCode, rec.Code, rec.Body.String())
			if tt.wantCode != http.StatusOK {
				return
			}

			var resp MeResponse
			unmarshal(t, rec, &resp)
			assert.Equal(t, tt.usr.ID, resp.ID)
			assert.Equal(t, tt.usr.Email, resp.Email)
			assert.Equal(t, tt.role, resp.Role)
			assert.Equal(t, tt.admin, resp.IsAdmin)
			assert.Equal(t, tt.main, resp.IsMainAdmin)
		})
	}
}
