package service

import (
	"context"
	"net/http"
	"net/url"
	"reflect"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"calc-gateway/internal/model"
	"calc-gateway/internal/registry"
)

func endpoint(t testing.TB, name, raw string) registry.Endpoint {
	t.Helper()
	u, err := registry.ParseBaseURL(raw)
	require.NoError(t, err)
	return registry.Endpoint{Name: name, BaseURL: u}
}

func TestSplitServicePath(t *testing.T) {
	tests := []struct {
		path    string
		segment string
		rest    string
	}{
		{"/calculate/add", "calculate", "/add"},
		{"/login", "login", ""},
		{"/login/", "login", "/"},
		{"/calculate/calculate/x", "calculate", "/calculate/x"},
		{"/history/list/2024", "history", "/list/2024"},
		{"/calc/a%2Fb", "calc", "/a%2Fb"},
		{"/", "", ""},
		{"", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			seg, rest := SplitServicePath(tt.path)
			assert.Equal(t, tt.segment, seg)
			assert.Equal(t, tt.rest, rest)
		})
	}
}

func TestServiceToken(t *testing.T) {
	assert.Equal(t, "calculate", ServiceToken("/Calculate/add"))
	assert.Equal(t, "calculate", ServiceToken("/CALC%55LATE/add"))
	assert.Equal(t, "login", ServiceToken("/login"))
	assert.Equal(t, "", ServiceToken("/"))
}

func TestTranslate_ForwardsToBaseWithPrefixStripped(t *testing.T) {
	pr := &model.ProxyRequest{
		Ctx:      context.Background(),
		Method:   http.MethodPost,
		Path:     "/calculate/add",
		RawQuery: "precision=2&precision=4",
		Header: http.Header{
			"Content-Type":  {"application/json"},
			"Authorization": {"Bearer xyz"},
		},
		Body: []byte(`{"num1":2,"num2":3}`),
	}

	out := Translate(pr, endpoint(t, "calculate", "http://backend:8002"))

	assert.Equal(t, "calculate", out.Service)
	assert.Equal(t, http.MethodPost, out.Method)
	assert.Equal(t, "http://backend:8002/add?precision=2&precision=4", out.URL.String())
	assert.Equal(t, `{"num1":2,"num2":3}`, string(out.Body))
	assert.Equal(t, "Bearer xyz", out.Header.Get("Authorization"))
	assert.Equal(t, "application/json", out.Header.Get("Content-Type"))
}

func TestTranslate_EmptyRemainder(t *testing.T) {
	pr := &model.ProxyRequest{Method: http.MethodGet, Path: "/login"}

	out := Translate(pr, endpoint(t, "login", "http://localhost:8001"))

	assert.Equal(t, "http://localhost:8001", out.URL.String())
	assert.Equal(t, "", out.URL.Path)
	assert.Empty(t, out.Body)
}

func TestTranslate_URLShapes(t *testing.T) {
	tests := []struct {
		name  string
		base  string
		path  string
		query string
		want  string
	}{
		{"base with path", "http://h:1/api", "/calculate/add", "", "http://h:1/api/add"},
		{"base with trailing slash", "http://h:1/api/", "/calculate/add", "", "http://h:1/api/add"},
		{"root base trailing slash, empty remainder", "http://h:1/", "/login", "", "http://h:1"},
		{"trailing slash kept", "http://h:1", "/login/", "", "http://h:1/"},
		{"query on empty remainder", "http://h:1", "/login", "next=%2Fhome", "http://h:1?next=%2Fhome"},
		{"escaped slash kept", "http://h:1", "/calculate/a%2Fb", "", "http://h:1/a%2Fb"},
		{"repeated service segment", "http://h:1", "/calculate/calculate/x", "", "http://h:1/calculate/x"},
		{"https base", "https://h", "/history/list", "page=2", "https://h/list?page=2"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pr := &model.ProxyRequest{Method: http.MethodGet, Path: tt.path, RawQuery: tt.query}
			out := Translate(pr, endpoint(t, "svc", tt.base))
			assert.Equal(t, tt.want, out.URL.String())
		})
	}
}

func TestTranslate_DoesNotAliasInputs(t *testing.T) {
	ep := endpoint(t, "calculate", "http://backend:8002/base")
	pr := &model.ProxyRequest{
		Method: http.MethodPut,
		Path:   "/calculate/x",
		Header: http.Header{"X-Trace": {"a"}},
		Body:   []byte("abc"),
	}

	out := Translate(pr, ep)
	out.Header.Add("X-Trace", "b")
	out.Body[0] = 'z'
	out.URL.Path = "/changed"

	assert.Equal(t, []string{"a"}, pr.Header["X-Trace"])
	assert.Equal(t, "abc", string(pr.Body))
	assert.Equal(t, "/base", ep.BaseURL.Path)
}

func TestSanitizeHeader(t *testing.T) {
	src := http.Header{
		"Host":          {"gateway:8000"},
		"connection":    {"keep-alive"},
		"CONNECTION":    {"close"},
		"hOsT":          {"x"},
		"Authorization": {"Bearer xyz"},
		"X-Multi":       {"one", "two", "three"},
		"Keep-Alive":    {"timeout=5"},
	}

	dst := SanitizeHeader(src)

	for key := range dst {
		assert.False(t, strings.EqualFold(key, "host"), "Host variant %q leaked", key)
		assert.False(t, strings.EqualFold(key, "connection"), "Connection variant %q leaked", key)
	}
	assert.Equal(t, []string{"Bearer xyz"}, dst["Authorization"])
	assert.Equal(t, []string{"one", "two", "three"}, dst["X-Multi"])
	assert.Equal(t, []string{"timeout=5"}, dst["Keep-Alive"])
	assert.Len(t, src, 7, "source header must not be modified")
}

var headerTokens = rapid.StringMatching(`[A-Za-z][A-Za-z0-9-]{0,12}`)

// randomCase flips the case of each letter in s according to the drawn mask.
func randomCase(t *rapid.T, s, label string) string {
	mask := rapid.SliceOfN(rapid.Bool(), len(s), len(s)).Draw(t, label)
	b := []byte(s)
	for i, upper := range mask {
		if upper {
			b[i] = strings.ToUpper(string(b[i]))[0]
		} else {
			b[i] = strings.ToLower(string(b[i]))[0]
		}
	}
	return string(b)
}

func drawRequest(t *rapid.T) *model.ProxyRequest {
	segments := rapid.SliceOfN(rapid.StringMatching(`[a-z0-9._~-]{0,8}`), 0, 4).Draw(t, "segments")
	path := "/" + rapid.SampledFrom([]string{"calculate", "Calculate", "CALCULATE"}).Draw(t, "service")
	if len(segments) > 0 {
		path += "/" + strings.Join(segments, "/")
	}

	header := make(http.Header)
	for i, n := 0, rapid.IntRange(0, 6).Draw(t, "n_headers"); i < n; i++ {
		key := headerTokens.Draw(t, "header_key")
		header[key] = rapid.SliceOfN(rapid.StringMatching(`[ -~]{0,16}`), 1, 3).Draw(t, "header_vals")
	}
	if rapid.Bool().Draw(t, "has_host") {
		header[randomCase(t, "host", "host_case")] = []string{"gateway"}
	}
	if rapid.Bool().Draw(t, "has_connection") {
		header[randomCase(t, "connection", "connection_case")] = []string{"keep-alive"}
	}

	return &model.ProxyRequest{
		Method:   rapid.SampledFrom([]string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete}).Draw(t, "method"),
		Path:     path,
		RawQuery: rapid.StringMatching(`([a-z]{1,4}=[a-z0-9]{0,4}(&[a-z]{1,4}=[a-z0-9]{0,4}){0,3})?`).Draw(t, "query"),
		Header:   header,
		Body:     rapid.SliceOfN(rapid.Byte(), 0, 64).Draw(t, "body"),
	}
}

func TestTranslate_Idempotent(t *testing.T) {
	ep := endpoint(t, "calculate", "http://backend:8002")

	rapid.Check(t, func(t *rapid.T) {
		pr := drawRequest(t)

		first := Translate(pr, ep)
		second := Translate(pr, ep)

		if first.URL.String() != second.URL.String() {
			t.Fatalf("URL differs: %q vs %q", first.URL, second.URL)
		}
		if first.Method != second.Method || !reflect.DeepEqual(first.Header, second.Header) || string(first.Body) != string(second.Body) {
			t.Fatalf("translations differ: %+v vs %+v", first, second)
		}
	})
}

func TestTranslate_HeaderSanitisationProperty(t *testing.T) {
	ep := endpoint(t, "calculate", "http://backend:8002")

	rapid.Check(t, func(t *rapid.T) {
		pr := drawRequest(t)
		out := Translate(pr, ep)

		for key := range out.Header {
			if strings.EqualFold(key, "Host") || strings.EqualFold(key, "Connection") {
				t.Fatalf("hop-by-hop header %q forwarded", key)
			}
		}
		for key, vals := range pr.Header {
			if strings.EqualFold(key, "Host") || strings.EqualFold(key, "Connection") {
				continue
			}
			if !reflect.DeepEqual(out.Header[key], vals) {
				t.Fatalf("header %q = %q, want %q", key, out.Header[key], vals)
			}
		}
	})
}

func TestTranslate_PrefixStrippingProperty(t *testing.T) {
	ep := endpoint(t, "calculate", "http://backend:8002")

	rapid.Check(t, func(t *rapid.T) {
		pr := drawRequest(t)
		out := Translate(pr, ep)

		_, remainder := SplitServicePath(pr.Path)
		want := "http://backend:8002" + remainder
		if pr.RawQuery != "" {
			want += "?" + pr.RawQuery
		}
		if got := out.URL.String(); got != want {
			t.Fatalf("URL = %q, want %q", got, want)
		}
		if _, err := url.Parse(out.URL.String()); err != nil {
			t.Fatalf("outbound URL does not parse: %v", err)
		}
	})
}
