/*
 * Copyright (C) 2024, Xiongfa Li.
 * All rights reserved.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *   http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package web

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"reflect"
	"sync/atomic"
	"testing"
	"testing/fstest"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xfali/neve-context/appcontext"
	"github.com/xfali/neve-context/env"
	"github.com/xfali/neve-context/errors"
	"github.com/xfali/neve-context/injector"
	"github.com/xfali/neve-context/reader"
	"github.com/xfali/neve-context/reflection"
)

var requestDestroyed int32

type siteInfo struct {
	Title  string
	server *ServerContext
	config *ComponentConfig
}

func (s *siteInfo) SetServerContext(sc *ServerContext) {
	s.server = sc
}

func (s *siteInfo) SetComponentConfig(config *ComponentConfig) {
	s.config = config
}

type requestData struct {
	Path string
}

func (d *requestData) BeanDestroy() error {
	atomic.AddInt32(&requestDestroyed, 1)
	return nil
}

type sessionCart struct {
	Items []string
}

func className(o interface{}) string {
	return reflection.GetClassName(reflect.TypeOf(o))
}

func webRoot() fstest.MapFS {
	beans := fmt.Sprintf(`<beans>
    <bean id="site" class="%s">
        <property name="Title" value="${site.title}"/>
    </bean>
    <bean id="requestData" class="%s" scope="request"/>
    <bean id="cart" class="%s" scope="session"/>
</beans>`, className(&siteInfo{}), className(&requestData{}), className(&sessionCart{}))
	script := fmt.Sprintf(`bean site("%s") {
    Title = "${site.title}"
}
`, className(&siteInfo{}))
	return fstest.MapFS{
		"config/application-context.xml": {Data: []byte(beans)},
		"config/admin.xml":               {Data: []byte(beans)},
		"config/admin.beans":             {Data: []byte(script)},
	}
}

func testServer() *ServerContext {
	sc := NewServerContext("/shop", webRoot(),
		OptSetInitParameter("site.title", "Shop"),
		OptSetInitParameters(map[string]string{"site.owner": "neve"}))
	sc.SetAttribute("startedBy", "test")
	return sc
}

func testWebContext(t *testing.T, server *ServerContext, opts ...Opt) *Context {
	types := injector.NewTypeRegistry()
	require.NoError(t, types.RegisterType(&siteInfo{}, &requestData{}, &sessionCart{}))
	base := []Opt{
		OptAddContextOpts(
			appcontext.OptSetTypeRegistry(types),
			appcontext.OptSetEnvironment(env.NewEnvironment(env.OptWithoutSystemEnvironment()))),
	}
	ctx := NewContext(server, append(base, opts...)...)
	t.Cleanup(func() {
		ctx.Close()
	})
	return ctx
}

func TestContextDefaults(t *testing.T) {
	server := testServer()
	root := testWebContext(t, server)
	assert.Equal(t, RootContextDisplayName, root.DisplayName())
	assert.Equal(t, "/shop", root.GetApplicationName())
	assert.Equal(t, []string{"/config/application-context.xml"}, root.ConfigLocations())
	assert.True(t, root.GetResource("/config/application-context.xml").Exists())

	admin := testWebContext(t, server, OptSetComponentConfig(NewComponentConfig("admin", server, nil)))
	assert.Equal(t, "admin", admin.Namespace())
	assert.Equal(t, "WebApplicationContext for namespace 'admin'", admin.DisplayName())
	assert.Equal(t, []string{"/config/admin.xml"}, admin.ConfigLocations())

	script := testWebContext(t, server, OptSetNamespace("admin"), OptSetFormat(reader.FormatScript))
	assert.Equal(t, []string{"/config/admin.beans"}, script.ConfigLocations())

	assert.Equal(t, []string{"/**/*.go"}, ConfigLocations(reader.FormatScan)(""))
	assert.Equal(t, []string{"/api/**/*.go"}, ConfigLocations(reader.FormatScan)("api"))
}

func TestContextRefresh(t *testing.T) {
	server := testServer()
	config := NewComponentConfig("admin", server, map[string]string{"site.title": "Admin Shop"})
	ctx := testWebContext(t, server, OptSetComponentConfig(config))
	require.NoError(t, ctx.Refresh())

	names := ctx.Environment().PropertySources().Names()
	require.True(t, len(names) >= 2)
	assert.Equal(t, []string{ComponentConfigPropertySourceName, ServerContextPropertySourceName}, names[:2])

	o, err := ctx.GetBean("site")
	require.NoError(t, err)
	site := o.(*siteInfo)
	assert.Equal(t, "Admin Shop", site.Title)
	assert.Same(t, server, site.server)
	assert.Same(t, config, site.config)

	o, err = ctx.GetBean(ServerContextBeanName)
	require.NoError(t, err)
	assert.Same(t, server, o)

	o, err = ctx.GetBean(ContextParametersBeanName)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"site.title": "Admin Shop", "site.owner": "neve"}, o)

	o, err = ctx.GetBean(ContextAttributesBeanName)
	require.NoError(t, err)
	assert.Equal(t, map[string]interface{}{"startedBy": "test"}, o)
}

func TestScriptFormat(t *testing.T) {
	ctx := testWebContext(t, testServer(), OptSetNamespace("admin"), OptSetFormat(reader.FormatScript))
	require.NoError(t, ctx.Refresh())
	o, err := ctx.GetBean("site")
	require.NoError(t, err)
	assert.Equal(t, "Shop", o.(*siteInfo).Title)
}

func TestRequestScope(t *testing.T) {
	atomic.StoreInt32(&requestDestroyed, 0)
	ctx := testWebContext(t, testServer())
	require.NoError(t, ctx.Refresh())

	_, err := ctx.GetBean("requestData")
	assert.True(t, errors.IsCode(err, errors.CodeLifecycle))

	var seen []*requestData
	r := chi.NewRouter()
	ctx.Mount(r)
	r.Get("/data", func(w http.ResponseWriter, req *http.Request) {
		a, err := ctx.GetRequestBean(req, "requestData")
		require.NoError(t, err)
		b, err := ctx.GetRequestBean(req, "requestData")
		require.NoError(t, err)
		assert.Same(t, a, b)
		seen = append(seen, a.(*requestData))
		w.WriteHeader(http.StatusOK)
	})

	for i := 0; i < 2; i++ {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/data", nil))
		assert.Equal(t, http.StatusOK, w.Code)
	}
	require.Len(t, seen, 2)
	assert.NotSame(t, seen[0], seen[1])
	assert.Equal(t, int32(2), atomic.LoadInt32(&requestDestroyed))
}

func TestSessionScope(t *testing.T) {
	ctx := testWebContext(t, testServer())
	require.NoError(t, ctx.Refresh())

	var carts []*sessionCart
	h := ctx.Middleware(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		o, err := ctx.GetRequestBean(req, "cart")
		require.NoError(t, err)
		carts = append(carts, o.(*sessionCart))
	}))

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	cookies := w.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, DefaultSessionCookie, cookies[0].Name)
	assert.Equal(t, "/shop", cookies[0].Path)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(cookies[0])
	w = httptest.NewRecorder()
	h.ServeHTTP(w, req)
	assert.Empty(t, w.Result().Cookies())

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	require.Len(t, carts, 3)
	assert.Same(t, carts[0], carts[1])
	assert.NotSame(t, carts[0], carts[2])
	assert.Equal(t, 2, ctx.SessionScope().SessionCount())

	ctx.InvalidateSession(cookies[0].Value)
	assert.Equal(t, 1, ctx.SessionScope().SessionCount())

	require.NoError(t, ctx.Refresh())
	assert.Equal(t, 0, ctx.SessionScope().SessionCount())
}

func TestScopeWithoutBinding(t *testing.T) {
	rs := NewRequestScope(nil)
	_, err := rs.Get(context.Background(), "x", func() (interface{}, error) {
		return 1, nil
	})
	assert.True(t, errors.IsCode(err, errors.CodeLifecycle))

	ss := NewSessionScope(nil)
	assert.Error(t, ss.RegisterDestructionCallback(context.Background(), "x", func() {}))
	_, ok := ss.Remove(WithSession(context.Background(), "none"), "x")
	assert.False(t, ok)

	c, end := rs.Begin(context.Background())
	var called int32
	_, err = rs.Get(c, "x", func() (interface{}, error) {
		return 1, nil
	})
	require.NoError(t, err)
	require.NoError(t, rs.RegisterDestructionCallback(c, "x", func() {
		atomic.AddInt32(&called, 1)
	}))
	o, ok := rs.Remove(c, "x")
	assert.True(t, ok)
	assert.Equal(t, 1, o)
	end()
	assert.Equal(t, int32(0), atomic.LoadInt32(&called))
}

func TestScriptObject(t *testing.T) {
	ctx := testWebContext(t, testServer())
	require.NoError(t, ctx.Refresh())
	so := NewScriptObject(ctx)

	o, err := so.Property("site")
	require.NoError(t, err)
	assert.Equal(t, "Shop", o.(*siteInfo).Title)

	o, err = so.Property("displayName")
	require.NoError(t, err)
	assert.Equal(t, RootContextDisplayName, o)

	o, err = so.Property("applicationName")
	require.NoError(t, err)
	assert.Equal(t, "/shop", o)

	o, err = so.Property("site.owner")
	require.NoError(t, err)
	assert.Equal(t, "neve", o)

	_, err = so.Property("missing")
	assert.True(t, errors.IsCode(err, errors.CodeNoSuchDefinition))

	_, err = so.Property("close")
	assert.Error(t, err)
	assert.Equal(t, appcontext.StateActive, ctx.State())

	require.NoError(t, so.SetProperty("namespace", "admin"))
	assert.Equal(t, "admin", ctx.Namespace())
	require.NoError(t, so.SetProperty("configLocations", "/config/admin.xml"))
	assert.Equal(t, []string{"/config/admin.xml"}, ctx.ConfigLocations())
	assert.Error(t, so.SetProperty("id", "x"))

	ret, err := so.Invoke("ContainsBean", "site")
	require.NoError(t, err)
	assert.Equal(t, []interface{}{true}, ret)

	ret, err = so.Invoke("Refresh")
	require.NoError(t, err)
	assert.Empty(t, ret)
	assert.Equal(t, uint64(2), ctx.Generation())

	_, err = so.Invoke("Missing")
	assert.Error(t, err)
	_, err = so.Invoke("ContainsBean")
	assert.Error(t, err)
}
