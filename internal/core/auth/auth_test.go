package auth

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"net/http/httptest"
	"reflect"
	"strings"
	"testing"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

const testSecretID = "0123456789abcdef0123456789abcdef"

var testSecrets = map[string][]byte{
	testSecretID: []byte("0123456789abcdef0123456789abcdef-secret"),
}

type keyRow struct {
	id        string
	lastUsed  sql.NullTime
	revokedAt sql.NullTime
}

// fakeQueries serves get-api-key-by-hash from memory.
type fakeQueries struct {
	rows    map[string]keyRow // by string(hash)
	err     error
	touched []string
}

func (f *fakeQueries) GetContext(_ context.Context, name string, dest any, args ...any) error {
	if f.err != nil {
		return f.err
	}
	if name != "get-api-key-by-hash" {
		return errors.New("unexpected query " + name)
	}
	row, ok := f.rows[string(args[0].([]byte))]
	if !ok {
		return sql.ErrNoRows
	}
	v := reflect.ValueOf(dest).Elem()
	v.FieldByName("APIKeyID").SetString(row.id)
	v.FieldByName("LastUsedAt").Set(reflect.ValueOf(row.lastUsed))
	v.FieldByName("RevokedAt").Set(reflect.ValueOf(row.revokedAt))
	return nil
}

func (f *fakeQueries) ExecContext(_ context.Context, name string, args ...any) (sql.Result, error) {
	if name == "update-last-used" {
		f.touched = append(f.touched, args[1].(string))
	}
	return nil, nil
}

func issue(t *testing.T, f *fakeQueries, row keyRow) string {
	t.Helper()
	key, hash, err := NewAPIKey(testSecrets)
	if err != nil {
		t.Fatalf("NewAPIKey() error = %v, want nil", err)
	}
	if f.rows == nil {
		f.rows = make(map[string]keyRow)
	}
	f.rows[string(hash)] = row
	return key
}

func TestAuthenticate(t *testing.T) {
	ctx := context.Background()
	f := &fakeQueries{}
	a := NewAuthenticator(testSecrets, f)

	valid := issue(t, f, keyRow{id: "key-1"})
	revoked := issue(t, f, keyRow{id: "key-2", revokedAt: sql.NullTime{Time: time.Now(), Valid: true}})
	recent := issue(t, f, keyRow{id: "key-3", lastUsed: sql.NullTime{Time: time.Now(), Valid: true}})
	unknownSecret := FormatAPIKey("fedcba9876543210fedcba9876543210", strings.Repeat("a", 64))
	unregistered := FormatAPIKey(testSecretID, strings.Repeat("b", 64))

	tests := []struct {
		name    string
		key     string
		wantID  string
		wantErr error
	}{
		{"valid key", valid, "key-1", nil},
		{"recently used key", recent, "key-3", nil},
		{"revoked key", revoked, "", ErrKeyRevoked},
		{"malformed key", "not-a-key", "", ErrInvalidKeyFormat},
		{"unknown secret", unknownSecret, "", ErrUnknownKey},
		{"unregistered key", unregistered, "", ErrInvalidKey},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id, err := a.Authenticate(ctx, tt.key)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Authenticate() error = %v, want %v", err, tt.wantErr)
			}
			if id != tt.wantID {
				t.Errorf("Authenticate() = %q, want %q", id, tt.wantID)
			}
		})
	}

	// Only the never-used key gets its last_used_at written.
	if len(f.touched) != 1 || f.touched[0] != "key-1" {
		t.Errorf("touched = %v, want [key-1]", f.touched)
	}
}

func TestAuthenticate_StoreFailure(t *testing.T) {
	f := &fakeQueries{err: errors.New("connection refused")}
	a := NewAuthenticator(testSecrets, f)
	key, _, err := NewAPIKey(testSecrets)
	if err != nil {
		t.Fatal(err)
	}

	_, err = a.Authenticate(context.Background(), key)
	if !errors.Is(err, ErrUnavailable) {
		t.Errorf("Authenticate() error = %v, want ErrUnavailable", err)
	}
	if HTTPStatus(err) != http.StatusServiceUnavailable {
		t.Errorf("HTTPStatus() = %d, want 503", HTTPStatus(err))
	}
}

func TestUnaryInterceptor(t *testing.T) {
	f := &fakeQueries{}
	a := NewAuthenticator(testSecrets, f)
	valid := issue(t, f, keyRow{id: "key-1"})
	revoked := issue(t, f, keyRow{id: "key-2", revokedAt: sql.NullTime{Time: time.Now(), Valid: true}})

	var gotKeyID string
	handler := func(ctx context.Context, req any) (any, error) {
		gotKeyID = KeyIDFromContext(ctx)
		return "ok", nil
	}
	interceptor := a.UnaryInterceptor()
	info := &grpc.UnaryServerInfo{FullMethod: "/logview.v1.QueryService/Query"}

	tests := []struct {
		name     string
		ctx      context.Context
		method   string
		wantCode codes.Code
	}{
		{"no metadata", context.Background(), info.FullMethod, codes.Unauthenticated},
		{"missing key", metadata.NewIncomingContext(context.Background(), metadata.Pairs()), info.FullMethod, codes.Unauthenticated},
		{"valid key", metadata.NewIncomingContext(context.Background(), metadata.Pairs("x-api-key", valid)), info.FullMethod, codes.OK},
		{"revoked key", metadata.NewIncomingContext(context.Background(), metadata.Pairs("x-api-key", revoked)), info.FullMethod, codes.PermissionDenied},
		{"health without key", context.Background(), "/grpc.health.v1.Health/Check", codes.OK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := interceptor(tt.ctx, nil, &grpc.UnaryServerInfo{FullMethod: tt.method}, handler)
			if code := status.Code(err); code != tt.wantCode {
				t.Errorf("interceptor code = %v, want %v (err %v)", code, tt.wantCode, err)
			}
		})
	}

	if gotKeyID != "" {
		// Last successful call was the health check, which carries no key.
		t.Errorf("KeyIDFromContext() = %q after health check, want empty", gotKeyID)
	}
}

type fakeStream struct {
	grpc.ServerStream
	ctx context.Context
}

func (s *fakeStream) Context() context.Context { return s.ctx }

func TestStreamInterceptor(t *testing.T) {
	f := &fakeQueries{}
	a := NewAuthenticator(testSecrets, f)
	valid := issue(t, f, keyRow{id: "key-1"})

	var gotKeyID string
	handler := func(srv any, ss grpc.ServerStream) error {
		gotKeyID = KeyIDFromContext(ss.Context())
		return nil
	}
	info := &grpc.StreamServerInfo{FullMethod: "/logview.v1.QueryService/Query", IsServerStream: true}

	ctx := metadata.NewIncomingContext(context.Background(), metadata.Pairs("x-api-key", valid))
	if err := a.StreamInterceptor()(nil, &fakeStream{ctx: ctx}, info, handler); err != nil {
		t.Fatalf("StreamInterceptor() error = %v, want nil", err)
	}
	if gotKeyID != "key-1" {
		t.Errorf("KeyIDFromContext() = %q, want key-1", gotKeyID)
	}

	err := a.StreamInterceptor()(nil, &fakeStream{ctx: context.Background()}, info, handler)
	if status.Code(err) != codes.Unauthenticated {
		t.Errorf("StreamInterceptor() code = %v, want Unauthenticated", status.Code(err))
	}
}

func TestMiddleware(t *testing.T) {
	f := &fakeQueries{}
	a := NewAuthenticator(testSecrets, f)
	valid := issue(t, f, keyRow{id: "key-1"})

	var rejected error
	onError := func(w http.ResponseWriter, code int, err error) {
		rejected = err
		w.WriteHeader(code)
	}
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Key-ID", KeyIDFromContext(r.Context()))
		w.WriteHeader(http.StatusNoContent)
	})
	h := a.Middleware(onError)(next)

	tests := []struct {
		name     string
		header   string
		value    string
		wantCode int
	}{
		{"no key", "", "", http.StatusUnauthorized},
		{"x-api-key header", "x-api-key", valid, http.StatusNoContent},
		{"bearer token", "Authorization", "Bearer " + valid, http.StatusNoContent},
		{"bad key", "x-api-key", "lv-v1-nope", http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rejected = nil
			req := httptest.NewRequest(http.MethodPost, "/api/query", nil)
			if tt.header != "" {
				req.Header.Set(tt.header, tt.value)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			if rec.Code != tt.wantCode {
				t.Errorf("status = %d, want %d (rejected %v)", rec.Code, tt.wantCode, rejected)
			}
			if tt.wantCode == http.StatusNoContent && rec.Header().Get("X-Key-ID") != "key-1" {
				t.Errorf("X-Key-ID = %q, want key-1", rec.Header().Get("X-Key-ID"))
			}
		})
	}
}
