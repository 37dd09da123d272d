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

package metadata

import (
	"os"
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const fixturePkg = "github.com/xfali/neve-context/metadata"

func TestParseAnnotations(t *testing.T) {
	t.Run("value and named", func(t *testing.T) {
		as, err := ParseAnnotations(`@Service(userService) @Scope(value="prototype", proxy='none') @Lazy`)
		require.NoError(t, err)
		require.Len(t, as, 3)
		assert.Equal(t, "Service", as[0].Name)
		assert.Equal(t, "userService", as[0].Attributes.Value())
		assert.Equal(t, "prototype", as[1].Attributes.Get("value"))
		assert.Equal(t, "none", as[1].Attributes.Get("proxy"))
		assert.Equal(t, "Lazy", as[2].Name)
		assert.Empty(t, as[2].Attributes)
	})
	t.Run("dotted name", func(t *testing.T) {
		as, err := ParseAnnotations(`@web.Controller(12)`)
		require.NoError(t, err)
		assert.Equal(t, "web.Controller", as[0].Name)
		assert.Equal(t, "12", as[0].Attributes.Value())
	})
	t.Run("empty", func(t *testing.T) {
		as, err := ParseAnnotations("  ")
		require.NoError(t, err)
		assert.Nil(t, as)
	})
	t.Run("malformed", func(t *testing.T) {
		_, err := ParseAnnotations(`@Service(`)
		assert.Error(t, err)
	})
}

func TestMetaAnnotations(t *testing.T) {
	registry := NewAnnotationRegistry()
	require.NoError(t, registry.Declare("RestController", "@Controller"))
	require.NoError(t, registry.Declare("A", "@B"))
	require.NoError(t, registry.Declare("B", "@A"))

	resolved := registry.resolve([]Annotation{{Name: "RestController", Attributes: Attributes{"value": "api"}}})
	assert.Contains(t, resolved, "Controller")
	assert.Contains(t, resolved, Component)
	assert.Equal(t, "api", resolved["RestController"].Attributes.Value())

	cyclic := registry.resolve([]Annotation{{Name: "A"}})
	assert.Len(t, cyclic, 2)
}

func TestReadType(t *testing.T) {
	registry := NewAnnotationRegistry()
	require.NoError(t, registry.RegisterInterface((*Greeter)(nil)))

	m, err := ReadObject(registry, &helloService{})
	require.NoError(t, err)
	assert.Equal(t, "github.com.xfali.neve-context.metadata.helloService", m.ClassName())
	assert.Equal(t, "github.com.xfali.neve-context.metadata.baseService", m.SuperClassName())
	assert.True(t, m.HasSuperClass())
	assert.Equal(t, []string{"github.com.xfali.neve-context.metadata.Greeter"}, m.InterfaceNames())
	assert.Equal(t, []string{"Service", "Scope"}, m.AnnotationTypes())
	assert.True(t, m.HasAnnotation(Component))
	assert.False(t, m.HasDirectAnnotation(Component))
	attrs, ok := m.AnnotationAttributes(Scope)
	require.True(t, ok)
	assert.Equal(t, "prototype", attrs.Value())

	var names []string
	for _, method := range m.DeclaredMethods() {
		names = append(names, method.MethodName())
		assert.Equal(t, m.ClassName(), method.DeclaringClassName())
	}
	// Prefix is promoted from baseService
	assert.Equal(t, []string{"Describe", "Greet"}, names)

	beans := m.AnnotatedMethods(Bean)
	require.Len(t, beans, 1)
	attrs, _ = beans[0].AnnotationAttributes(Bean)
	assert.Equal(t, "greeting", attrs.Value())

	plain, err := ReadType(registry, reflect.TypeOf(plainValue{}))
	require.NoError(t, err)
	assert.False(t, plain.HasSuperClass())
	assert.Empty(t, plain.AnnotationTypes())
	assert.Empty(t, plain.DeclaredMethods())

	_, err = ReadObject(registry, nil)
	assert.Error(t, err)
}

func TestSourceReaderMatchesReflection(t *testing.T) {
	registry := NewAnnotationRegistry()
	require.NoError(t, registry.RegisterInterface((*Greeter)(nil)))

	reflected, err := ReadObject(registry, &helloService{})
	require.NoError(t, err)

	reader := NewSourceReader(registry)
	parsed, err := reader.ReadFile(fixturePkg, "fixture_test.go")
	require.NoError(t, err)

	var found *AnnotationMetadata
	for _, m := range parsed {
		if m.ClassName() == reflected.ClassName() {
			found = m
		}
	}
	require.NotNil(t, found)
	assert.Equal(t, reflected, found)
}

func TestSourceReaderNeverLoads(t *testing.T) {
	reader := NewSourceReader(NewAnnotationRegistry())
	src, err := os.ReadFile("testdata/broken/broken.go")
	require.NoError(t, err)

	first, err := reader.ReadSource("example.com/broken", "broken.go", src)
	require.NoError(t, err)
	require.Len(t, first, 1)

	m := first[0]
	assert.Equal(t, "example.com.broken.Widget", m.ClassName())
	assert.Equal(t, "github.com.not.exist.base.Model", m.SuperClassName())
	assert.Equal(t, []string{"example.invalid.pkg.v3.Store"}, m.InterfaceNames())
	assert.True(t, m.HasAnnotation(Component))
	assert.True(t, m.HasDirectAnnotation(Lazy))

	methods := m.DeclaredMethods()
	require.Len(t, methods, 1)
	attrs, ok := methods[0].AnnotationAttributes(Bean)
	require.True(t, ok)
	assert.Equal(t, "widgetFactory", attrs.Get("name"))
	assert.Equal(t, "true", attrs.Get("primary"))

	second, err := reader.ReadSource("example.com/broken", "broken.go", src)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

const (
	splitConfigSrc = `package app

type AppConfig struct {
	_ struct{} ` + "`neve:\"@Configuration\"`" + `
}
`
	splitBeansSrc = `package app

import "example.com/api"

var _ api.Greeter = (*AppConfig)(nil)

//neve:@Bean(clock)
func (c *AppConfig) Clock() *Clock {
	return &Clock{}
}

func (c *AppConfig) Greet() string {
	return "hi"
}

type Clock struct{}
`
	otherPkgSrc = `package app_test

func (c *AppConfig) Ignored() {}
`
)

func TestSourceReaderPackageScope(t *testing.T) {
	reader := NewSourceReader(NewAnnotationRegistry())

	single, err := reader.ReadSource("example.com/app", "config.go", []byte(splitConfigSrc))
	require.NoError(t, err)
	require.Len(t, single, 1)
	assert.Empty(t, single[0].DeclaredMethods())
	assert.Empty(t, single[0].InterfaceNames())

	types, err := reader.ReadPackage("example.com/app",
		SourceFile{Name: "config.go", Src: []byte(splitConfigSrc)},
		SourceFile{Name: "beans.go", Src: []byte(splitBeansSrc)},
		SourceFile{Name: "external_test.go", Src: []byte(otherPkgSrc)})
	require.NoError(t, err)
	require.Len(t, types["config.go"], 1)
	require.Len(t, types["beans.go"], 1)
	assert.NotContains(t, types, "external_test.go")

	m := types["config.go"][0]
	assert.Equal(t, "example.com.app.AppConfig", m.ClassName())
	assert.Equal(t, []string{"example.com.api.Greeter"}, m.InterfaceNames())
	var names []string
	for _, method := range m.DeclaredMethods() {
		names = append(names, method.MethodName())
	}
	assert.Equal(t, []string{"Clock", "Greet"}, names)
	beans := m.AnnotatedMethods(Bean)
	require.Len(t, beans, 1)
	assert.Equal(t, "Clock", beans[0].MethodName())
	assert.Equal(t, "example.com.app.Clock", types["beans.go"][0].ClassName())
}

func TestSnapshotIsImmutable(t *testing.T) {
	m, err := ReadObject(NewAnnotationRegistry(), &helloService{})
	require.NoError(t, err)
	attrs, _ := m.AnnotationAttributes(Service)
	attrs["value"] = "changed"
	again, _ := m.AnnotationAttributes(Service)
	assert.Equal(t, "helloService", again.Value())

	types := m.AnnotationTypes()
	types[0] = "changed"
	assert.Equal(t, "Service", m.AnnotationTypes()[0])
}
