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

package env

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xfali/fig"
	"github.com/xfali/neve-context/errors"
)

func TestPlaceholders(t *testing.T) {
	values := map[string]string{
		"name":  "neve",
		"key":   "name",
		"loopA": "${loopB}",
		"loopB": "${loopA}",
		"greet": "hello ${name}",
	}
	resolver := func(key string) (string, bool) {
		v, ok := values[key]
		return v, ok
	}

	cases := []struct {
		text   string
		expect string
	}{
		{"plain", "plain"},
		{"${name}", "neve"},
		{"${greet}!", "hello neve!"},
		{"${missing:fallback}", "fallback"},
		{"${missing:}", ""},
		{"${missing:${name}}", "neve"},
		{"${${key}}", "neve"},
		{"${a}-${name}", "${a}-neve"},
		{"${unclosed", "${unclosed"},
	}
	for _, c := range cases {
		v, err := ReplacePlaceholders(c.text, resolver, true)
		require.NoError(t, err, c.text)
		assert.Equal(t, c.expect, v, c.text)
	}

	_, err := ReplacePlaceholders("${a}", resolver, false)
	assert.True(t, errors.IsCode(err, errors.CodeUnresolvableReference))

	_, err = ReplacePlaceholders("${loopA}", resolver, true)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "circular")
}

func TestPropertySources(t *testing.T) {
	e := NewEnvironment(OptWithoutSystemEnvironment())
	e.PropertySources().AddLast(NewMapSource("low", map[string]string{"k": "low", "only": "low"}))
	e.PropertySources().AddFirst(NewMapSource("high", map[string]string{"k": "high"}))

	assert.Equal(t, []string{"high", "low"}, e.PropertySources().Names())
	assert.Equal(t, "high", e.GetProperty("k", ""))
	assert.Equal(t, "low", e.GetProperty("only", ""))
	assert.Equal(t, "def", e.GetProperty("none", "def"))
	assert.False(t, e.ContainsProperty("none"))

	assert.True(t, e.PropertySources().Replace(NewMapSource("high", map[string]string{"k": "replaced"})))
	assert.Equal(t, "replaced", e.GetProperty("k", ""))
	assert.Equal(t, []string{"high", "low"}, e.PropertySources().Names())

	e.PropertySources().Remove("high")
	assert.Equal(t, "low", e.GetProperty("k", ""))
}

func TestSystemEnvironmentRelaxed(t *testing.T) {
	s := &systemSource{
		lookup: func(key string) (string, bool) {
			if key == "NEVE_RESOURCE_ROOT" {
				return "/srv", true
			}
			return "", false
		},
	}
	v, ok := s.Property("neve.resource-root")
	assert.True(t, ok)
	assert.Equal(t, "/srv", v)
}

func TestFigAndDotEnvSources(t *testing.T) {
	props, err := fig.LoadYamlFile("testdata/application.yaml")
	require.NoError(t, err)
	dotenv, err := NewDotEnvSource(DotEnvSourceName, "testdata/test.env")
	require.NoError(t, err)

	e := NewEnvironment(
		OptWithoutSystemEnvironment(),
		OptAddPropertySource(NewPropertiesSource(ApplicationConfigSourceName, props), dotenv))

	assert.Equal(t, "env-test", e.GetProperty("neve.application.name", ""))
	assert.Equal(t, "http://localhost:8080", e.ResolvePlaceholders("http://${server.host}:${server.port}"))
	assert.Equal(t, "postgres://neve@localhost/app", e.GetProperty("DB_URL", ""))
	assert.Equal(t, []string{"dev", "cloud"}, e.ActiveProfiles())

	v, err := e.ResolveRequiredPlaceholders("${DB_USER}:${server.port}")
	require.NoError(t, err)
	assert.Equal(t, "neve:8080", v)
}

func TestProfiles(t *testing.T) {
	e := NewEnvironment(OptWithoutSystemEnvironment())
	assert.Empty(t, e.ActiveProfiles())
	assert.Equal(t, []string{DefaultProfile}, e.DefaultProfiles())
	assert.True(t, e.AcceptsProfiles("default"))
	assert.True(t, e.AcceptsProfiles("!dev"))
	assert.False(t, e.AcceptsProfiles("dev"))

	e.SetActiveProfiles("dev")
	e.AddActiveProfile("cloud")
	e.AddActiveProfile("dev")
	assert.Equal(t, []string{"dev", "cloud"}, e.ActiveProfiles())
	assert.False(t, e.AcceptsProfiles("default"))
	assert.True(t, e.AcceptsProfiles("prod", "cloud"))
	assert.False(t, e.AcceptsProfiles("!dev", "prod"))
	assert.False(t, e.AcceptsProfiles())

	assert.Equal(t, []string{"a", "b", "c"}, SplitProfiles(" a, b;c "))
}
