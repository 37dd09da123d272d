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

package resource

import (
	"io"
	"os"
	"path/filepath"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xfali/neve-context/errors"
)

func testFS() fstest.MapFS {
	return fstest.MapFS{
		"cfg/a-context.xml":       {Data: []byte("<beans/>")},
		"cfg/b-context.xml":       {Data: []byte("<beans/>")},
		"cfg/readme.txt":          {Data: []byte("not a definition")},
		"cfg/sub/c-context.xml":   {Data: []byte("<beans/>")},
		"cfg/sub/d-context.beans": {Data: []byte("")},
		"other/e-context.xml":     {Data: []byte("<beans/>")},
	}
}

func locations(rs []Resource) []string {
	var ret []string
	for _, r := range rs {
		ret = append(ret, r.Location())
	}
	return ret
}

func TestPatterns(t *testing.T) {
	l := NewLoader(OptSetClasspath(testFS()))

	rs, err := l.GetResources("/cfg/*-context.xml")
	require.NoError(t, err)
	assert.Equal(t, []string{"/cfg/a-context.xml", "/cfg/b-context.xml"}, locations(rs))

	rs, err = l.GetResources("classpath:cfg/**/*-context.*")
	require.NoError(t, err)
	assert.Equal(t, []string{
		"classpath:cfg/a-context.xml",
		"classpath:cfg/b-context.xml",
		"classpath:cfg/sub/c-context.xml",
		"classpath:cfg/sub/d-context.beans",
	}, locations(rs))

	rs, err = l.GetResources("cfg/?-context.{xml,beans}")
	require.NoError(t, err)
	assert.Len(t, rs, 2)

	rs, err = l.GetResources("cfg/none/*.xml")
	require.NoError(t, err)
	assert.Empty(t, rs)

	_, err = l.GetResources("cfg/[a.xml")
	assert.True(t, errors.IsCode(err, errors.CodeResourceResolution))
}

func TestResource(t *testing.T) {
	l := NewLoader(OptSetClasspath(testFS()))

	r := l.GetResource("classpath:/cfg/sub/c-context.xml")
	assert.True(t, r.Exists())
	assert.Equal(t, "cfg/sub/c-context.xml", r.Path())
	assert.Equal(t, "c-context.xml", r.Filename())

	rc, err := r.Open()
	require.NoError(t, err)
	data, err := io.ReadAll(rc)
	rc.Close()
	require.NoError(t, err)
	assert.Equal(t, "<beans/>", string(data))

	assert.Equal(t, "classpath:cfg/a-context.xml", r.Relative("../a-context.xml").Location())
	assert.Equal(t, "classpath:other/e-context.xml", r.Relative("/other/e-context.xml").Location())
	assert.True(t, r.Relative("d-context.beans").Exists())

	missing := l.GetResource("cfg/missing.xml")
	assert.False(t, missing.Exists())
	_, err = missing.Open()
	assert.Error(t, err)

	assert.False(t, l.GetResource("cfg").Exists())
}

func TestRootAndFile(t *testing.T) {
	l := NewLoader(OptSetClasspath(fstest.MapFS{}), OptSetRoot(testFS()))
	assert.True(t, l.GetResource("/other/e-context.xml").Exists())
	assert.False(t, l.GetResource("classpath:other/e-context.xml").Exists())

	dir := t.TempDir()
	file := filepath.Join(dir, "app.xml")
	require.NoError(t, os.WriteFile(file, []byte("<beans/>"), 0644))

	r := l.GetResource(FilePrefix + file)
	assert.True(t, r.Exists())
	rs, err := l.GetResources(FilePrefix + filepath.Join(dir, "*.xml"))
	require.NoError(t, err)
	require.Len(t, rs, 1)
	assert.Equal(t, r.Location(), rs[0].Location())
}
