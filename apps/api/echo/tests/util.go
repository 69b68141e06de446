package tests

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"

	echoapi "github.com/trezcool/juku/apps/api/echo"
	"github.com/trezcool/juku/core"
	"github.com/trezcool/juku/core/identity"
	"github.com/trezcool/juku/core/organization"
	"github.com/trezcool/juku/core/registration"
	inmemdb "github.com/trezcool/juku/storage/database/inmem"
	testutil "github.com/trezcool/juku/tests"
)

type testEnv struct {
	app     *echoapi.Server
	db      *inmemdb.DB
	logger  *testutil.Logger
	orgRepo organization.Repository
	regRepo registration.Repository
}

func setup(t *testing.T) *testEnv {
	t.Helper()

	// set up DB & repos
	db := inmemdb.Open()
	orgRepo := inmemdb.NewOrganizationRepository(db)
	regRepo := inmemdb.NewRegistrationRepository(db)

	// set up services
	validate := core.NewDefaultValidator()
	logger := testutil.NewLogger()

	// set up server
	app := echoapi.NewServer(echoapi.ServerDeps{
		Conf:          &core.Config{TestMode: true, Server: core.ServerConfig{DisableReqLogs: true}},
		Logger:        logger,
		Validator:     validate,
		OrgSvc:        organization.NewService(orgRepo, validate),
		RegSvc:        registration.NewService(nil, regRepo, orgRepo, validate, logger),
		Authenticator: tokenAuthenticator{},
	})

	return &testEnv{app: app, db: db, logger: logger, orgRepo: orgRepo, regRepo: regRepo}
}

// tokenAuthenticator logs requests in as the user whose external id is the bearer token.
type tokenAuthenticator struct{}

func (tokenAuthenticator) Provider(token string) identity.Provider {
	return tokenProvider(token)
}

type tokenProvider string

func (p tokenProvider) IsLoggedIn() bool { return p != "" }

func (p tokenProvider) CurrentUser(context.Context) (identity.User, error) {
	return identity.User{ExternalID: string(p), DisplayName: "LINE " + string(p)}, nil
}

type httpErr struct {
	Error string `json:"error"`
}

type httpTest struct {
	name     string
	method   string
	path     string
	body     []byte
	token    string
	wantCode int
	wantData []byte
}

func (env *testEnv) do(method, path, token string, data ...[]byte) *httptest.ResponseRecorder {
	req, rec := newAuthRequest(method, path, token, data...)
	env.app.ServeHTTP(rec, req)
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

func marchallObj(t *testing.T, obj interface{}) []byte {
	data, err := json.Marshal(obj)
	if err != nil {
		t.Fatalf("marchallObj() failed: %v", err)
	}
	return data
}

func unmarshall(t *testing.T, rec *httptest.ResponseRecorder, dest interface{}) {
	if err := json.Unmarshal(rec.Body.Bytes(), dest); err != nil {
		t.Fatalf("unmarshall() failed: %v; body %s", err, rec.Body.String())
	}
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
	assert.Equal(t, tt.wantCode, rec.Code, "body: %s", rec.Body.String())
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
