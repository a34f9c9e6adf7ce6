package main

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	stationsBody = `{"SearchSTNBySubwayLineInfo":{"list_total_count":1,"RESULT":{"CODE":"INFO-000","MESSAGE":"정상 처리되었습니다"},"row":[` +
		`{"STATION_CD":"4201","STATION_NM":"서울역","STATION_NM_ENG":"Seoul Station","STATION_NM_CHN":"首尔站","STATION_NM_JPN":"ソウル駅","LINE_NUM":"공항철도","FR_CODE":"A01"}]}}`
	distancesBody = `{"StationDstncReqreTimeHm":{"list_total_count":2,"RESULT":{"CODE":"INFO-000","MESSAGE":"정상 처리되었습니다"},"row":[` +
		`{"SBWY_ROUT_LN":"7","SBWY_STNS_NM":"장암","HM":"0","DIST_KM":0,"ACML_DIST":0},` +
		`{"SBWY_ROUT_LN":"7","SBWY_STNS_NM":"도봉산","HM":"1:30","DIST_KM":1.4,"ACML_DIST":1.4}]}}`
	noDataBody = `{"RESULT":{"CODE":"INFO-200","MESSAGE":"해당하는 데이터가 없습니다."}}`
)

type upstream struct {
	mu    sync.Mutex
	paths []string
}

func newUpstream(t *testing.T, stations, distances string) (*httptest.Server, *upstream) {
	t.Helper()
	u := &upstream{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u.mu.Lock()
		u.paths = append(u.paths, r.URL.EscapedPath())
		u.mu.Unlock()

		w.Header().Set("Content-Type", "application/json")
		switch {
		case strings.Contains(r.URL.Path, "SearchSTNBySubwayLineInfo"):
			_, _ = w.Write([]byte(stations))
		case strings.Contains(r.URL.Path, "StationDstncReqreTimeHm"):
			_, _ = w.Write([]byte(distances))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(srv.Close)
	return srv, u
}

func setEnv(t *testing.T) {
	t.Helper()
	t.Setenv("SEOUL_OPENAPI_AUTH_KEY", "sample-key")
	t.Setenv("APP_ENV", "test")
	t.Setenv("LOG_LEVEL", "info")
}

func TestRun_FetchesAndLogsRecords(t *testing.T) {
	setEnv(t)
	srv, u := newUpstream(t, stationsBody, distancesBody)

	var out bytes.Buffer
	code := run(context.Background(), []string{"-base-url", srv.URL}, &out)

	assert.Equal(t, exitOK, code)
	require.Len(t, u.paths, 2)
	assert.Equal(t, "/sample-key/json/SearchSTNBySubwayLineInfo/1/400/%20/%20/%EA%B3%B5%ED%95%AD%EC%B2%A0%EB%8F%84/", u.paths[0])
	assert.Equal(t, "/sample-key/json/StationDstncReqreTimeHm/1/100/7/%20/", u.paths[1])

	logs := out.String()
	assert.Contains(t, logs, `"name_en":"Seoul Station"`)
	assert.Contains(t, logs, `"reference_station":true`)
	assert.Contains(t, logs, `"station":"도봉산"`)
	assert.NotContains(t, logs, "sample-key")
}

func TestRun_DomainErrorIsReported(t *testing.T) {
	setEnv(t)
	srv, _ := newUpstream(t, noDataBody, distancesBody)

	var out bytes.Buffer
	code := run(context.Background(), []string{"-base-url", srv.URL}, &out)

	assert.Equal(t, exitOK, code)
	assert.Contains(t, out.String(), `"code":"INFO-200"`)
	assert.Contains(t, out.String(), `"level":"warn"`)
}

func TestRun_SkipsDistances(t *testing.T) {
	setEnv(t)
	srv, u := newUpstream(t, stationsBody, distancesBody)

	var out bytes.Buffer
	code := run(context.Background(), []string{"-base-url", srv.URL, "-distance-line", "", "-line", "2호선", "-end", "51"}, &out)

	assert.Equal(t, exitOK, code)
	require.Len(t, u.paths, 1)
	assert.Contains(t, u.paths[0], "/1/51/")
}

func TestRun_SchemaMismatchFails(t *testing.T) {
	setEnv(t)
	srv, _ := newUpstream(t, `{"SearchSTNBySubwayLineInfo":{"RESULT":{"CODE":"INFO-000"},"row":[{"STATION_CD":"4201"}]}}`, distancesBody)

	var out bytes.Buffer
	code := run(context.Background(), []string{"-base-url", srv.URL}, &out)

	assert.Equal(t, exitFailed, code)
	assert.Contains(t, out.String(), "fetch failed")
}

func TestRun_TransportFailureFails(t *testing.T) {
	setEnv(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("<html>maintenance</html>"))
	}))
	defer srv.Close()

	var out bytes.Buffer
	code := run(context.Background(), []string{"-base-url", srv.URL}, &out)

	assert.Equal(t, exitFailed, code)
}

func TestRun_MissingKey(t *testing.T) {
	setEnv(t)
	t.Setenv("SEOUL_OPENAPI_AUTH_KEY", "")

	var out bytes.Buffer
	code := run(context.Background(), nil, &out)

	assert.Equal(t, exitConfig, code)
	assert.Contains(t, out.String(), "invalid configuration")
}

func TestRun_BadFlag(t *testing.T) {
	var out bytes.Buffer
	code := run(context.Background(), []string{"-nope"}, &out)

	assert.Equal(t, exitConfig, code)
}
