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

package reader

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xfali/neve-context/bean"
	"github.com/xfali/neve-context/errors"
	"github.com/xfali/neve-context/injector"
	"github.com/xfali/neve-context/metadata"
	"github.com/xfali/neve-context/resource"
)

func TestScanReader(t *testing.T) {
	loader := resource.NewLoader(resource.OptSetClasspathDir("testdata/scan"))

	t.Run("default profile", func(t *testing.T) {
		registry := bean.NewRegistry()
		r := NewScanReader(registry,
			OptSetLoader(loader),
			OptSetEnvironment(testEnv()),
			OptSetBasePackage("github.com/acme/app"))
		n, err := r.LoadLocation("classpath:**/*.go")
		require.NoError(t, err)
		assert.Equal(t, 5, n)
		assert.Equal(t, []string{"appConfig", "clock", "timer", "userService", "audit"}, registry.DefinitionNames())

		def, err := registry.GetDefinition("userService")
		require.NoError(t, err)
		g := def.Generic()
		assert.Equal(t, "github.com.acme.app.svc.UserService", g.ClassName)
		assert.Equal(t, bean.ScopePrototype, g.Scope)
		assert.Equal(t, bean.LazyTrue, g.Lazy)
		assert.True(t, g.Primary)
		assert.Equal(t, []string{"dataSource", "cache"}, g.DependsOn)
		assert.Equal(t, "user service", g.Description)
		assert.Equal(t, "classpath:svc/service.go", g.ResourceDescription)

		m, ok := bean.MetadataOf(def)
		require.True(t, ok)
		assert.Equal(t, "github.com.acme.app.repo.Base", m.SuperClassName())
		assert.Equal(t, []string{"github.com.acme.app.svc.Greeter"}, m.InterfaceNames())
		assert.True(t, m.HasAnnotation(metadata.Component))

		audit, err := registry.GetDefinition("audit")
		require.NoError(t, err)
		assert.Equal(t, "github.com.acme.app.svc.Audit", audit.Generic().ClassName)

		clock, err := registry.GetDefinition("clock")
		require.NoError(t, err)
		assert.Equal(t, "appConfig", clock.Generic().FactoryBean)
		assert.Equal(t, "Clock", clock.Generic().FactoryMethod)
		assert.Equal(t, bean.ScopePrototype, clock.Generic().Scope)
		assert.Equal(t, "clock", registry.ResolveAlias("systemClock"))

		timer, err := registry.GetDefinition("timer")
		require.NoError(t, err)
		assert.Equal(t, "Timer", timer.Generic().FactoryMethod)
	})

	t.Run("dev profile", func(t *testing.T) {
		registry := bean.NewRegistry()
		r := NewScanReader(registry, OptSetLoader(loader), OptSetEnvironment(testEnv("dev")))
		_, err := r.LoadLocation("classpath:svc/service.go")
		require.NoError(t, err)
		assert.Equal(t, []string{"userService", "audit"}, registry.DefinitionNames())

		audit, err := registry.GetDefinition("audit")
		require.NoError(t, err)
		assert.Equal(t, "svc.DevAudit", audit.Generic().ClassName)
	})

	t.Run("test files", func(t *testing.T) {
		registry := bean.NewRegistry()
		n, err := NewScanReader(registry, OptSetLoader(loader)).LoadLocation("classpath:svc/service_test.go")
		require.NoError(t, err)
		assert.Equal(t, 0, n)
	})

	t.Run("package scope", func(t *testing.T) {
		fsLoader := testLoader(map[string]string{
			"app/config.go": "package app\n\ntype AppConfig struct {\n\t_ struct{} `neve:\"@Configuration\"`\n}\n",
			"app/beans.go": `package app

type Greeter interface {
	Greet() string
}

var _ Greeter = (*AppConfig)(nil)

//neve:@Bean
func (c *AppConfig) Clock() *Clock {
	return &Clock{}
}

func (c *AppConfig) Greet() string {
	return "hi"
}

type Clock struct{}
`,
			"app/beans_test.go": "package app\n\n//neve:@Bean\nfunc (c *AppConfig) Fake() {}\n",
		})
		registry := bean.NewRegistry()
		n, err := NewScanReader(registry, OptSetLoader(fsLoader), OptSetBasePackage("example.com")).
			LoadLocation("app/config.go")
		require.NoError(t, err)
		assert.Equal(t, 2, n)
		assert.Equal(t, []string{"appConfig", "clock"}, registry.DefinitionNames())

		def, err := registry.GetDefinition("appConfig")
		require.NoError(t, err)
		m, ok := bean.MetadataOf(def)
		require.True(t, ok)
		assert.Equal(t, "example.com.app.AppConfig", m.ClassName())
		assert.Equal(t, []string{"example.com.app.Greeter"}, m.InterfaceNames())
		assert.Len(t, m.DeclaredMethods(), 2)

		clock, err := registry.GetDefinition("clock")
		require.NoError(t, err)
		assert.Equal(t, "appConfig", clock.Generic().FactoryBean)
		assert.Equal(t, "Clock", clock.Generic().FactoryMethod)
	})

	t.Run("broken source", func(t *testing.T) {
		fsLoader := testLoader(map[string]string{"pkg/broken.go": "package pkg\n\ntype X struct {"})
		_, err := NewScanReader(bean.NewRegistry(), OptSetLoader(fsLoader)).LoadLocation("pkg/broken.go")
		assert.True(t, errors.IsCode(err, errors.CodeDefinitionParse))
	})
}

type orderService struct {
	_ struct{} `neve:"@Service @Scope(prototype)"`

	Name string
}

type order struct{}

func (s *orderService) MethodAnnotations() map[string]string {
	return map[string]string{
		"NewOrder": "@Bean(order)",
	}
}

func (s *orderService) NewOrder() *order {
	return &order{}
}

type reportJob struct {
	_ struct{} `neve:"@Lazy(false) @Profile(dev)"`
}

func TestAnnotatedReader(t *testing.T) {
	t.Run("register", func(t *testing.T) {
		registry := bean.NewRegistry()
		types := injector.NewTypeRegistry()
		r := NewAnnotatedReader(registry, OptSetTypeRegistry(types), OptSetEnvironment(testEnv("prod")))

		n, err := r.Register(&orderService{}, &reportJob{})
		require.NoError(t, err)
		assert.Equal(t, 2, n)
		assert.Equal(t, []string{"orderService", "order"}, registry.DefinitionNames())

		def, err := registry.GetDefinition("orderService")
		require.NoError(t, err)
		assert.Equal(t, "github.com.xfali.neve-context.reader.orderService", def.Generic().ClassName)
		assert.Equal(t, bean.ScopePrototype, def.Generic().Scope)
		assert.Equal(t, reflectionLocation, def.Generic().ResourceDescription)
		_, ok := types.Type("github.com.xfali.neve-context.reader.orderService")
		assert.True(t, ok)

		od, err := registry.GetDefinition("order")
		require.NoError(t, err)
		assert.Equal(t, "orderService", od.Generic().FactoryBean)
		assert.Equal(t, "NewOrder", od.Generic().FactoryMethod)
	})

	t.Run("with name", func(t *testing.T) {
		registry := bean.NewRegistry()
		n, err := NewAnnotatedReader(registry, OptSetEnvironment(testEnv("dev"))).RegisterWithName("job", reportJob{})
		require.NoError(t, err)
		assert.Equal(t, 1, n)
		def, err := registry.GetDefinition("job")
		require.NoError(t, err)
		assert.Equal(t, bean.LazyFalse, def.Generic().Lazy)
	})

	t.Run("nil", func(t *testing.T) {
		registry := bean.NewRegistry()
		_, err := NewAnnotatedReader(registry).Register(&orderService{}, nil)
		assert.True(t, errors.IsCode(err, errors.CodeDefinitionParse))
		assert.Equal(t, 0, registry.DefinitionCount())
	})
}
