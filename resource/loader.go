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
	"fmt"
	"io/fs"
	"os"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/xfali/neve-context/errors"
)

const (
	EnvResourceDir = "ENV_RESOURCE_DIR"
)

type Loader interface {
	// 获取单个资源，资源不存在时仍返回对象，打开时报错
	GetResource(location string) Resource
}

type PatternResolver interface {
	Loader

	// 解析带有 * ** ? {a,b} 的路径，按字典序返回匹配的文件
	GetResources(locationPattern string) ([]Resource, error)
}

type DefaultLoader struct {
	classpath fs.FS
	root      fs.FS
	files     fs.FS
}

type Opt func(l *DefaultLoader)

// NewLoader 创建资源加载器，classpath默认根目录为ENV_RESOURCE_DIR，未设置时为工作目录
func NewLoader(opts ...Opt) *DefaultLoader {
	dir := os.Getenv(EnvResourceDir)
	if dir == "" {
		dir = "."
	}
	ret := &DefaultLoader{
		classpath: os.DirFS(dir),
		files:     fileFS(),
	}
	for _, opt := range opts {
		opt(ret)
	}
	if ret.root == nil {
		ret.root = ret.classpath
	}
	return ret
}

// OptSetClasspathDir 设置classpath:前缀的根目录
func OptSetClasspathDir(dir string) Opt {
	return func(l *DefaultLoader) {
		if dir != "" {
			l.classpath = os.DirFS(dir)
		}
	}
}

func OptSetClasspath(fsys fs.FS) Opt {
	return func(l *DefaultLoader) {
		l.classpath = fsys
	}
}

// OptSetRoot 设置无前缀路径的根文件系统，默认同classpath
func OptSetRoot(fsys fs.FS) Opt {
	return func(l *DefaultLoader) {
		l.root = fsys
	}
}

func (l *DefaultLoader) GetResource(location string) Resource {
	prefix, fsys, p := l.split(location)
	return newResource(prefix, fsys, p)
}

func (l *DefaultLoader) GetResources(locationPattern string) ([]Resource, error) {
	prefix, fsys, p := l.split(locationPattern)
	p = cleanPattern(p)
	if !HasPattern(p) {
		return []Resource{newResource(prefix, fsys, p)}, nil
	}
	if !doublestar.ValidatePattern(p) {
		return nil, errors.ResourceResolution(locationPattern, fmt.Errorf("invalid pattern %q", p))
	}
	matches, err := doublestar.Glob(fsys, p, doublestar.WithFilesOnly(), doublestar.WithFailOnIOErrors())
	if err != nil {
		return nil, errors.ResourceResolution(locationPattern, err)
	}
	sort.Strings(matches)
	ret := make([]Resource, 0, len(matches))
	for _, m := range matches {
		ret = append(ret, newResource(prefix, fsys, m))
	}
	return ret, nil
}

func (l *DefaultLoader) split(location string) (string, fs.FS, string) {
	switch {
	case strings.HasPrefix(location, ClasspathPrefix):
		return ClasspathPrefix, l.classpath, strings.TrimPrefix(location, ClasspathPrefix)
	case strings.HasPrefix(location, FilePrefix):
		return FilePrefix + "/", l.files, absFilePath(strings.TrimPrefix(location, FilePrefix))
	default:
		return "", l.root, location
	}
}

func cleanPattern(p string) string {
	p = strings.TrimLeft(strings.ReplaceAll(p, "\\", "/"), "/")
	for strings.HasPrefix(p, "./") {
		p = p[2:]
	}
	return p
}

// HasPattern 路径中是否包含匹配符
func HasPattern(location string) bool {
	return strings.ContainsAny(location, "*?[{")
}

// IsPrefixed 路径是否包含显式的前缀
func IsPrefixed(location string) bool {
	return strings.HasPrefix(location, ClasspathPrefix) || strings.HasPrefix(location, FilePrefix)
}
